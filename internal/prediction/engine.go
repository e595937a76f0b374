package prediction

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/FUN-BET-ME/Funbet-ai-27-sub001/internal/domain"
)

// ErrInsufficientOdds means too few bookmakers quote the match to trust an
// estimate; single-source prices are noise.
var ErrInsufficientOdds = errors.New("not enough bookmakers quoting this match")

var one = decimal.NewFromInt(1)

// Evaluate computes an outcome estimate from a match's bookmaker odds.
// Each bookmaker's decimal price becomes an implied probability (1/price),
// implied probabilities are averaged per outcome across bookmakers, then the
// averages are renormalized to sum to 1, which removes the bookmaker
// overround. Only bookmakers quoting every required outcome count toward the
// threshold, so a partial h2h quote cannot skew the average.
func Evaluate(m *domain.CanonicalMatch, minBookmakers int, drawsAllowed bool, now time.Time) (*domain.Prediction, error) {
	required := []domain.Outcome{domain.OutcomeHome, domain.OutcomeAway}
	if drawsAllowed {
		required = []domain.Outcome{domain.OutcomeHome, domain.OutcomeDraw, domain.OutcomeAway}
	}

	sums := make(map[domain.Outcome]decimal.Decimal, len(required))
	books := 0

bookLoop:
	for _, bp := range m.Odds {
		for _, o := range required {
			price, ok := bp.Prices[o]
			if !ok || !price.IsPositive() {
				continue bookLoop
			}
		}
		for _, o := range required {
			sums[o] = sums[o].Add(one.Div(bp.Prices[o]))
		}
		books++
	}

	if books < minBookmakers {
		return nil, ErrInsufficientOdds
	}

	count := decimal.NewFromInt(int64(books))
	total := decimal.Zero
	avgs := make(map[domain.Outcome]decimal.Decimal, len(required))
	for _, o := range required {
		avg := sums[o].Div(count)
		avgs[o] = avg
		total = total.Add(avg)
	}

	p := &domain.Prediction{
		MatchID:      m.MatchID,
		EvaluatedAt:  now,
		OddsSnapshot: m.Clone().Odds,
	}
	p.ProbHome = avgs[domain.OutcomeHome].Div(total).InexactFloat64()
	p.ProbAway = avgs[domain.OutcomeAway].Div(total).InexactFloat64()
	if drawsAllowed {
		p.ProbDraw = avgs[domain.OutcomeDraw].Div(total).InexactFloat64()
	}
	p.PredictedWinner = pickWinner(p, drawsAllowed)
	return p, nil
}

// pickWinner breaks ties deterministically: Home beats Draw beats Away.
func pickWinner(p *domain.Prediction, drawsAllowed bool) domain.Outcome {
	if !drawsAllowed {
		if p.ProbHome >= p.ProbAway {
			return domain.OutcomeHome
		}
		return domain.OutcomeAway
	}
	if p.ProbHome >= p.ProbDraw && p.ProbHome >= p.ProbAway {
		return domain.OutcomeHome
	}
	if p.ProbDraw >= p.ProbAway {
		return domain.OutcomeDraw
	}
	return domain.OutcomeAway
}
