package providers

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/domain"
)

// league ids on the score feed mapped to our sport keys; fixtures from
// leagues we do not track are dropped at the adapter boundary
var livescoreLeagues = map[int]string{
	39: "soccer_epl",
	2:  "soccer_uefa_champs_league",
}

// statuses the score feed uses while play is in progress
var livescoreInPlay = map[string]struct{}{
	"1H": {}, "HT": {}, "2H": {}, "ET": {}, "BT": {}, "P": {}, "LIVE": {},
}

// LiveScoreProvider adapts an api-football style fixtures feed into match
// fragments carrying scores and lifecycle signals. It never carries odds.
type LiveScoreProvider struct {
	apiKey   string
	baseURL  string
	client   *fasthttp.Client
	interval time.Duration
	logger   zerolog.Logger

	Now func() time.Time
}

func NewLiveScoreProvider(apiKey, baseURL string, interval time.Duration, logger zerolog.Logger) *LiveScoreProvider {
	return &LiveScoreProvider{
		apiKey:   apiKey,
		baseURL:  baseURL,
		client:   newHTTPClient(),
		interval: interval,
		logger:   logger,
		Now:      time.Now,
	}
}

func (p *LiveScoreProvider) Name() string                { return "livescore" }
func (p *LiveScoreProvider) PollInterval() time.Duration { return p.interval }

// FetchFragments pulls in-play fixtures plus today's fixtures, so terminal
// statuses still reach the pipeline after a match drops out of the live set.
func (p *LiveScoreProvider) FetchFragments(ctx context.Context) ([]domain.MatchFragment, error) {
	observedAt := p.Now()

	live, err := p.fetchFixtures(ctx, p.baseURL+"/fixtures?live=all")
	if err != nil {
		return nil, fmt.Errorf("fetch live fixtures: %w", err)
	}
	today, err := p.fetchFixtures(ctx, p.baseURL+"/fixtures?date="+observedAt.UTC().Format("2006-01-02"))
	if err != nil {
		// Live data alone is still worth ingesting.
		p.logger.Warn().Err(err).Msg("today's fixtures fetch failed, continuing with live set only")
		today = nil
	}

	seen := make(map[int]struct{}, len(live)+len(today))
	var fragments []domain.MatchFragment
	for _, fx := range append(live, today...) {
		if _, dup := seen[fx.Fixture.ID]; dup {
			continue
		}
		seen[fx.Fixture.ID] = struct{}{}

		f, ok := p.toFragment(fx, observedAt)
		if !ok {
			continue
		}
		fragments = append(fragments, f)
	}
	return fragments, nil
}

func (p *LiveScoreProvider) fetchFixtures(ctx context.Context, url string) ([]livescoreFixture, error) {
	headers := map[string]string{"x-apisports-key": p.apiKey}
	resp, err := fetchJSON[livescoreResponse](ctx, p.client, url, headers, nil)
	if err != nil {
		return nil, err
	}
	return resp.Response, nil
}

func (p *LiveScoreProvider) toFragment(fx livescoreFixture, observedAt time.Time) (domain.MatchFragment, bool) {
	sportKey, tracked := livescoreLeagues[fx.League.ID]
	if !tracked {
		return domain.MatchFragment{}, false
	}

	commence, err := time.Parse(time.RFC3339, fx.Fixture.Date)
	if err != nil {
		p.logger.Warn().
			Int("fixture_id", fx.Fixture.ID).
			Str("date", fx.Fixture.Date).
			Msg("unparseable fixture date, fragment dropped")
		return domain.MatchFragment{}, false
	}

	status := fx.Fixture.Status.Short
	_, inPlay := livescoreInPlay[status]
	completed := status == "FT" || status == "AET" || status == "PEN"

	var scores []domain.TeamScore
	if fx.Goals.Home != nil && fx.Goals.Away != nil {
		scores = []domain.TeamScore{
			{Team: fx.Teams.Home.Name, Score: strconv.Itoa(*fx.Goals.Home)},
			{Team: fx.Teams.Away.Name, Score: strconv.Itoa(*fx.Goals.Away)},
		}
	}

	return domain.MatchFragment{
		Provider:     p.Name(),
		ExternalID:   strconv.Itoa(fx.Fixture.ID),
		SportKey:     sportKey,
		HomeTeam:     fx.Teams.Home.Name,
		AwayTeam:     fx.Teams.Away.Name,
		CommenceTime: commence,
		Scores:       scores,
		MatchStatus:  status,
		IsLive:       inPlay,
		Completed:    completed,
		ObservedAt:   observedAt,
	}, true
}

type livescoreResponse struct {
	Response []livescoreFixture `json:"response"`
}

type livescoreFixture struct {
	Fixture struct {
		ID     int    `json:"id"`
		Date   string `json:"date"`
		Status struct {
			Short   string `json:"short"`
			Elapsed *int   `json:"elapsed"`
		} `json:"status"`
	} `json:"fixture"`
	League struct {
		ID int `json:"id"`
	} `json:"league"`
	Teams struct {
		Home struct {
			Name string `json:"name"`
		} `json:"home"`
		Away struct {
			Name string `json:"name"`
		} `json:"away"`
	} `json:"teams"`
	Goals struct {
		Home *int `json:"home"`
		Away *int `json:"away"`
	} `json:"goals"`
}
