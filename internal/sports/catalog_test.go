package sports

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EmbeddedDefaults(t *testing.T) {
	catalog, err := Load("", zerolog.Nop())
	require.NoError(t, err)

	epl := catalog.Get("soccer_epl")
	assert.True(t, epl.DrawsAllowed)
	assert.Equal(t, 3*time.Hour, epl.LiveCeiling)

	nba := catalog.Get("basketball_nba")
	assert.False(t, nba.DrawsAllowed)
	assert.Equal(t, 4*time.Hour, nba.LiveCeiling)

	assert.Len(t, catalog.Keys(), 5)
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	catalog, err := Load("/nonexistent/catalog.yaml", zerolog.Nop())
	require.NoError(t, err)
	assert.NotEmpty(t, catalog.Keys())
}

func TestLoad_CustomFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	raw := `
defaults:
  draws_allowed: false
  live_ceiling: 2h
terminal_statuses: [FT]
sports:
  cricket_odi:
    display_name: One Day International
    draws_allowed: true
    live_ceiling: 10h
  handball_ehf:
    display_name: EHF Handball
team_aliases:
  mi: mumbai indians
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	catalog, err := Load(path, zerolog.Nop())
	require.NoError(t, err)

	odi := catalog.Get("cricket_odi")
	assert.True(t, odi.DrawsAllowed)
	assert.Equal(t, 10*time.Hour, odi.LiveCeiling)

	// Unset fields inherit the file defaults.
	handball := catalog.Get("handball_ehf")
	assert.False(t, handball.DrawsAllowed)
	assert.Equal(t, 2*time.Hour, handball.LiveCeiling)

	canonical, aliased := catalog.ResolveAlias("mi")
	assert.True(t, aliased)
	assert.Equal(t, "mumbai indians", canonical)
}

func TestGet_UnknownSportUsesDefaults(t *testing.T) {
	catalog, err := Load("", zerolog.Nop())
	require.NoError(t, err)

	unknown := catalog.Get("rugby_union")
	assert.Equal(t, "rugby_union", unknown.SportKey)
	assert.True(t, unknown.DrawsAllowed)
	assert.Equal(t, 6*time.Hour, unknown.LiveCeiling)
}

func TestIsTerminalStatus(t *testing.T) {
	catalog, err := Load("", zerolog.Nop())
	require.NoError(t, err)

	assert.True(t, catalog.IsTerminalStatus("FT"))
	assert.True(t, catalog.IsTerminalStatus("ft"))
	assert.True(t, catalog.IsTerminalStatus(" Final "))
	assert.False(t, catalog.IsTerminalStatus("HT"))
	assert.False(t, catalog.IsTerminalStatus("1H"))
	assert.False(t, catalog.IsTerminalStatus(""))
}

func TestResolveAlias_Unmapped(t *testing.T) {
	catalog, err := Load("", zerolog.Nop())
	require.NoError(t, err)

	name, aliased := catalog.ResolveAlias("chelsea")
	assert.False(t, aliased)
	assert.Equal(t, "chelsea", name)

	name, aliased = catalog.ResolveAlias("la lakers")
	assert.True(t, aliased)
	assert.Equal(t, "los angeles lakers", name)
}
