package sports

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Capability describes how one sport behaves for lifecycle and prediction
// purposes. DrawsAllowed is a sport property, never a heuristic on team names.
type Capability struct {
	SportKey     string
	DisplayName  string
	DrawsAllowed bool
	LiveCeiling  time.Duration
}

type capabilityYAML struct {
	DisplayName  string `yaml:"display_name"`
	DrawsAllowed *bool  `yaml:"draws_allowed"`
	LiveCeiling  string `yaml:"live_ceiling"`
}

type catalogFile struct {
	Defaults struct {
		DrawsAllowed bool   `yaml:"draws_allowed"`
		LiveCeiling  string `yaml:"live_ceiling"`
	} `yaml:"defaults"`
	TerminalStatuses []string                  `yaml:"terminal_statuses"`
	Sports           map[string]capabilityYAML `yaml:"sports"`
	TeamAliases      map[string]string         `yaml:"team_aliases"`
}

// Catalog is the registry of sport capabilities, the terminal-status token
// set and the team alias table. Loaded once at startup from YAML; an embedded
// default catalog keeps the service usable without any file on disk.
type Catalog struct {
	mu               sync.RWMutex
	sports           map[string]Capability
	terminalStatuses map[string]struct{}
	aliases          map[string]string
	defaultCap       Capability
}

// Load reads the catalog from path, falling back to the embedded defaults
// when path is empty or the file does not exist.
func Load(path string, logger zerolog.Logger) (*Catalog, error) {
	raw := defaultCatalog
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			raw = data
		case os.IsNotExist(err):
			logger.Warn().Str("path", path).Msg("sports catalog file not found, using embedded defaults")
		default:
			return nil, fmt.Errorf("read sports catalog: %w", err)
		}
	}

	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse sports catalog: %w", err)
	}

	defaultCeiling, err := parseCeiling(file.Defaults.LiveCeiling, 6*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("parse default live_ceiling: %w", err)
	}

	c := &Catalog{
		sports:           make(map[string]Capability, len(file.Sports)),
		terminalStatuses: make(map[string]struct{}, len(file.TerminalStatuses)),
		aliases:          make(map[string]string, len(file.TeamAliases)),
		defaultCap: Capability{
			DrawsAllowed: file.Defaults.DrawsAllowed,
			LiveCeiling:  defaultCeiling,
		},
	}

	for key, raw := range file.Sports {
		ceiling, err := parseCeiling(raw.LiveCeiling, defaultCeiling)
		if err != nil {
			return nil, fmt.Errorf("parse live_ceiling for %s: %w", key, err)
		}
		drawsAllowed := file.Defaults.DrawsAllowed
		if raw.DrawsAllowed != nil {
			drawsAllowed = *raw.DrawsAllowed
		}
		c.sports[key] = Capability{
			SportKey:     key,
			DisplayName:  raw.DisplayName,
			DrawsAllowed: drawsAllowed,
			LiveCeiling:  ceiling,
		}
	}
	for _, token := range file.TerminalStatuses {
		c.terminalStatuses[strings.ToUpper(strings.TrimSpace(token))] = struct{}{}
	}
	for alias, canonical := range file.TeamAliases {
		c.aliases[strings.ToLower(strings.TrimSpace(alias))] = strings.ToLower(strings.TrimSpace(canonical))
	}

	logger.Info().
		Int("sports", len(c.sports)).
		Int("terminal_statuses", len(c.terminalStatuses)).
		Int("team_aliases", len(c.aliases)).
		Msg("sports catalog loaded")

	return c, nil
}

// Get returns the capability for a sport, falling back to catalog defaults
// for unknown sport keys.
func (c *Catalog) Get(sportKey string) Capability {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if sport, ok := c.sports[sportKey]; ok {
		return sport
	}
	sport := c.defaultCap
	sport.SportKey = sportKey
	return sport
}

// Keys returns all explicitly configured sport keys.
func (c *Catalog) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.sports))
	for k := range c.sports {
		keys = append(keys, k)
	}
	return keys
}

// IsTerminalStatus reports whether a provider status token means the match is
// over. Matching is case-insensitive against the configured closed set.
func (c *Catalog) IsTerminalStatus(token string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.terminalStatuses[strings.ToUpper(strings.TrimSpace(token))]
	return ok
}

// ResolveAlias maps an already lower-cased team name through the alias table.
// Returns the input unchanged when no alias is configured.
func (c *Catalog) ResolveAlias(name string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if canonical, ok := c.aliases[name]; ok {
		return canonical, true
	}
	return name, false
}

func parseCeiling(raw string, fallback time.Duration) (time.Duration, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return fallback, nil
	}
	return d, nil
}
