package credit

import (
	"github.com/shopspring/decimal"
)

// aovSampleFloor is the order count below which average order value is not
// scored; tiny samples would swing the score on a single purchase.
const aovSampleFloor = 5

// ScoreInputs are the customer purchase stats the score is derived from.
type ScoreInputs struct {
	TotalOrders  int
	TotalSpent   decimal.Decimal
	RecentOrders int // orders in the trailing 30 days
}

// ComputeCreditScore derives a heuristic 0-100 creditworthiness score from
// purchase history. Pure and deterministic: same inputs, same output. The
// result is clamped to [max(minScore, 0), 100].
func ComputeCreditScore(in ScoreInputs, minScore int) int {
	score := 100

	score += orderCountBand(in.TotalOrders)
	score += spendBand(in.TotalSpent)
	if in.TotalOrders >= aovSampleFloor {
		avg := in.TotalSpent.Div(decimal.NewFromInt(int64(in.TotalOrders)))
		score += averageOrderValueBand(avg)
	}
	score += recencyBand(in.RecentOrders)

	floor := minScore
	if floor < 0 {
		floor = 0
	}
	if score < floor {
		return floor
	}
	if score > 100 {
		return 100
	}
	return score
}

func orderCountBand(orders int) int {
	switch {
	case orders < 5:
		return -15
	case orders < 10:
		return -8
	case orders < 20:
		return -3
	case orders >= 50:
		return 5
	default:
		return 0
	}
}

func spendBand(spent decimal.Decimal) int {
	switch {
	case spent.LessThan(decimal.NewFromInt(1000)):
		return -20
	case spent.LessThan(decimal.NewFromInt(5000)):
		return -10
	case spent.LessThan(decimal.NewFromInt(10000)):
		return -5
	case spent.LessThan(decimal.NewFromInt(20000)):
		return -2
	case spent.GreaterThanOrEqual(decimal.NewFromInt(50000)):
		return 10
	default:
		return 5
	}
}

func averageOrderValueBand(avg decimal.Decimal) int {
	switch {
	case avg.LessThan(decimal.NewFromInt(100)):
		return -10
	case avg.LessThan(decimal.NewFromInt(500)):
		return -5
	case avg.GreaterThanOrEqual(decimal.NewFromInt(1000)):
		return 5
	default:
		return 0
	}
}

func recencyBand(recent int) int {
	switch {
	case recent == 0:
		return -10
	case recent >= 3:
		return 5
	default:
		return 0
	}
}
