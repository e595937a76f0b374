package providers

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/valyala/fasthttp"
	"golang.org/x/sync/errgroup"

	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/domain"
	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/sports"
)

const oddsAPIVersion = "v4"

// OddsAPIProvider adapts The Odds API h2h feed into match fragments carrying
// bookmaker odds. It never asserts liveness or completion; those signals come
// from the score feed.
type OddsAPIProvider struct {
	apiKey   string
	baseURL  string
	regions  string
	catalog  *sports.Catalog
	client   *fasthttp.Client
	interval time.Duration
	logger   zerolog.Logger

	rateLimitMu sync.RWMutex
	remaining   int

	Now func() time.Time
}

func NewOddsAPIProvider(apiKey, baseURL, regions string, interval time.Duration, catalog *sports.Catalog, logger zerolog.Logger) *OddsAPIProvider {
	return &OddsAPIProvider{
		apiKey:    apiKey,
		baseURL:   baseURL,
		regions:   regions,
		catalog:   catalog,
		client:    newHTTPClient(),
		interval:  interval,
		logger:    logger,
		remaining: 500,
		Now:       time.Now,
	}
}

func (p *OddsAPIProvider) Name() string                { return "the-odds-api" }
func (p *OddsAPIProvider) PollInterval() time.Duration { return p.interval }

// RequestsRemaining reports the provider quota seen on the last response.
func (p *OddsAPIProvider) RequestsRemaining() int {
	p.rateLimitMu.RLock()
	defer p.rateLimitMu.RUnlock()
	return p.remaining
}

// FetchFragments pulls h2h odds for every configured sport in parallel and
// normalizes them. A sport whose fetch fails is skipped this cycle.
func (p *OddsAPIProvider) FetchFragments(ctx context.Context) ([]domain.MatchFragment, error) {
	sportKeys := p.catalog.Keys()

	var mu sync.Mutex
	var fragments []domain.MatchFragment

	g, gCtx := errgroup.WithContext(ctx)
	for _, sportKey := range sportKeys {
		g.Go(func() error {
			frs, err := p.fetchSport(gCtx, sportKey)
			if err != nil {
				p.logger.Warn().Err(err).Str("sport_key", sportKey).Msg("odds fetch failed for sport, skipping this cycle")
				return nil
			}
			mu.Lock()
			fragments = append(fragments, frs...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return fragments, nil
}

func (p *OddsAPIProvider) fetchSport(ctx context.Context, sportKey string) ([]domain.MatchFragment, error) {
	params := url.Values{}
	params.Set("apiKey", p.apiKey)
	params.Set("regions", p.regions)
	params.Set("markets", "h2h")
	params.Set("oddsFormat", "decimal")
	params.Set("dateFormat", "iso")
	fullURL := fmt.Sprintf("%s/%s/sports/%s/odds?%s", p.baseURL, oddsAPIVersion, sportKey, params.Encode())

	events, err := fetchJSON[[]oddsAPIEvent](ctx, p.client, fullURL, nil, p.updateRateLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch odds for %s: %w", sportKey, err)
	}

	observedAt := p.Now()
	fragments := make([]domain.MatchFragment, 0, len(*events))
	for _, ev := range *events {
		f, ok := p.toFragment(ev, observedAt)
		if !ok {
			continue
		}
		fragments = append(fragments, f)
	}
	return fragments, nil
}

func (p *OddsAPIProvider) toFragment(ev oddsAPIEvent, observedAt time.Time) (domain.MatchFragment, bool) {
	commence, err := time.Parse(time.RFC3339, ev.CommenceTime)
	if err != nil {
		p.logger.Warn().
			Str("external_id", ev.ID).
			Str("commence_time", ev.CommenceTime).
			Msg("unparseable commence time, fragment dropped")
		return domain.MatchFragment{}, false
	}

	odds := make(map[string]map[domain.Outcome]decimal.Decimal, len(ev.Bookmakers))
	for _, book := range ev.Bookmakers {
		for _, market := range book.Markets {
			if market.Key != "h2h" {
				continue
			}
			prices := make(map[domain.Outcome]decimal.Decimal, len(market.Outcomes))
			for _, out := range market.Outcomes {
				switch out.Name {
				case ev.HomeTeam:
					prices[domain.OutcomeHome] = out.Price
				case ev.AwayTeam:
					prices[domain.OutcomeAway] = out.Price
				case "Draw":
					prices[domain.OutcomeDraw] = out.Price
				}
			}
			if len(prices) > 0 {
				odds[book.Key] = prices
			}
		}
	}

	return domain.MatchFragment{
		Provider:     p.Name(),
		ExternalID:   ev.ID,
		SportKey:     ev.SportKey,
		HomeTeam:     ev.HomeTeam,
		AwayTeam:     ev.AwayTeam,
		CommenceTime: commence,
		Odds:         odds,
		ObservedAt:   observedAt,
	}, true
}

func (p *OddsAPIProvider) updateRateLimit(resp *fasthttp.Response) {
	remaining := string(resp.Header.Peek("X-Requests-Remaining"))
	if remaining == "" {
		return
	}
	if val, err := strconv.Atoi(remaining); err == nil {
		p.rateLimitMu.Lock()
		p.remaining = val
		p.rateLimitMu.Unlock()
	}
}

type oddsAPIEvent struct {
	ID           string             `json:"id"`
	SportKey     string             `json:"sport_key"`
	CommenceTime string             `json:"commence_time"`
	HomeTeam     string             `json:"home_team"`
	AwayTeam     string             `json:"away_team"`
	Bookmakers   []oddsAPIBookmaker `json:"bookmakers"`
}

type oddsAPIBookmaker struct {
	Key        string          `json:"key"`
	Title      string          `json:"title"`
	LastUpdate string          `json:"last_update"`
	Markets    []oddsAPIMarket `json:"markets"`
}

type oddsAPIMarket struct {
	Key      string           `json:"key"`
	Outcomes []oddsAPIOutcome `json:"outcomes"`
}

type oddsAPIOutcome struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}
