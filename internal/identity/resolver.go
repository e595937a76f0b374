package identity

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/domain"
	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/sports"
)

// ErrUnresolvable is returned when a fragment lacks the fields identity
// derivation needs. Such fragments are dropped, never guessed at.
var ErrUnresolvable = errors.New("fragment identity unresolvable")

// commence times from different providers land in the same bucket as long as
// their clocks disagree by less than half of this
const commenceBucket = time.Hour

// Normalizer canonicalizes team names: lowercase, diacritics stripped,
// punctuation removed, whitespace collapsed, then the catalog alias table.
type Normalizer struct {
	catalog *sports.Catalog
	strip   transform.Transformer
}

func NewNormalizer(catalog *sports.Catalog) *Normalizer {
	return &Normalizer{
		catalog: catalog,
		strip:   transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
	}
}

// Team returns the canonical form of a provider team name and whether the
// alias table was consulted successfully for it.
func (n *Normalizer) Team(name string) (string, bool) {
	s, _, err := transform.String(n.strip, name)
	if err != nil {
		s = name
	}
	s = strings.ToLower(s)

	var b strings.Builder
	lastSpace := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case !lastSpace && b.Len() > 0:
			b.WriteRune(' ')
			lastSpace = true
		}
	}
	cleaned := strings.TrimSpace(b.String())
	return n.catalog.ResolveAlias(cleaned)
}

// SameTeam reports whether two provider team names normalize to the same
// canonical team.
func (n *Normalizer) SameTeam(a, b string) bool {
	na, _ := n.Team(a)
	nb, _ := n.Team(b)
	return na != "" && na == nb
}

// Resolver derives the canonical match identity from a fragment. Identity is
// computed, not provider-supplied, because every provider uses its own
// external IDs for the same real-world match.
type Resolver struct {
	normalizer *Normalizer
	logger     zerolog.Logger
}

func NewResolver(normalizer *Normalizer, logger zerolog.Logger) *Resolver {
	return &Resolver{normalizer: normalizer, logger: logger}
}

// Resolve returns the matchId a fragment belongs to. The key is
// sport + normalized teams + commence time rounded to the nearest hour, which
// tolerates sub-hour provider clock skew.
func (r *Resolver) Resolve(f domain.MatchFragment) (string, error) {
	if f.SportKey == "" || strings.TrimSpace(f.HomeTeam) == "" || strings.TrimSpace(f.AwayTeam) == "" {
		return "", fmt.Errorf("%w: provider=%s external_id=%s", ErrUnresolvable, f.Provider, f.ExternalID)
	}
	if f.CommenceTime.IsZero() {
		return "", fmt.Errorf("%w: missing commence time for %s vs %s", ErrUnresolvable, f.HomeTeam, f.AwayTeam)
	}

	home, homeAliased := r.normalizer.Team(f.HomeTeam)
	away, awayAliased := r.normalizer.Team(f.AwayTeam)
	if home == "" || away == "" {
		return "", fmt.Errorf("%w: team names empty after normalization", ErrUnresolvable)
	}

	// Short all-caps names are almost always abbreviations. When one misses
	// the alias table it can split one real match into two canonical records,
	// so it is worth a data-quality signal.
	r.flagSuspectAlias(f, f.HomeTeam, homeAliased)
	r.flagSuspectAlias(f, f.AwayTeam, awayAliased)

	bucket := f.CommenceTime.UTC().Round(commenceBucket)
	return fmt.Sprintf("%s:%s:%s:%s", f.SportKey, slug(home), slug(away), bucket.Format("2006010215")), nil
}

// NewCanonical builds the initial record for a previously unseen matchId.
// The first provider to register a match owns its commence time; later
// disagreement beyond the identity bucket is logged, never applied.
func (r *Resolver) NewCanonical(matchID string, f domain.MatchFragment, now time.Time) *domain.CanonicalMatch {
	home, _ := r.normalizer.Team(f.HomeTeam)
	away, _ := r.normalizer.Team(f.AwayTeam)
	return &domain.CanonicalMatch{
		MatchID:      matchID,
		SportKey:     f.SportKey,
		HomeTeam:     home,
		AwayTeam:     away,
		CommenceTime: f.CommenceTime.UTC(),
		State:        domain.LifecycleScheduled,
		LastUpdated:  f.ObservedAt,
		CreatedAt:    now,
	}
}

func (r *Resolver) flagSuspectAlias(f domain.MatchFragment, raw string, aliased bool) {
	if aliased {
		return
	}
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) <= 4 && trimmed == strings.ToUpper(trimmed) && trimmed != strings.ToLower(trimmed) {
		r.logger.Warn().
			Str("provider", f.Provider).
			Str("sport_key", f.SportKey).
			Str("team", raw).
			Msg("team name looks like an unmapped abbreviation, possible duplicate canonical match")
	}
}

func slug(name string) string {
	return strings.ReplaceAll(name, " ", "-")
}
