package credit

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestComputeCreditScoreWorkedExample(t *testing.T) {
	// 3 orders / 500 spent: -15 for order count, -20 for spend
	score := ComputeCreditScore(ScoreInputs{
		TotalOrders:  3,
		TotalSpent:   decimal.NewFromInt(500),
		RecentOrders: 1,
	}, 0)
	assert.Equal(t, 65, score)
}

func TestComputeCreditScoreClampsToFloor(t *testing.T) {
	inputs := ScoreInputs{TotalOrders: 3, TotalSpent: decimal.NewFromInt(500), RecentOrders: 1}

	assert.Equal(t, 70, ComputeCreditScore(inputs, 70))
	assert.Equal(t, 65, ComputeCreditScore(inputs, 50))
	// negative floors are treated as zero
	assert.Equal(t, 65, ComputeCreditScore(inputs, -10))
}

func TestComputeCreditScoreNewCustomer(t *testing.T) {
	score := ComputeCreditScore(ScoreInputs{TotalSpent: decimal.Zero}, 0)
	// -15 orders, -20 spend, -10 no recent activity
	assert.Equal(t, 55, score)
}

func TestComputeCreditScoreEstablishedCustomer(t *testing.T) {
	score := ComputeCreditScore(ScoreInputs{
		TotalOrders:  60,
		TotalSpent:   decimal.NewFromInt(72000),
		RecentOrders: 4,
	}, 0)
	// +5 orders, +10 spend, +5 AOV (1200 avg), +5 recency -> clamped to 100
	assert.Equal(t, 100, score)
}

func TestComputeCreditScoreAverageOrderValuePenalty(t *testing.T) {
	score := ComputeCreditScore(ScoreInputs{
		TotalOrders:  12,
		TotalSpent:   decimal.NewFromInt(1100),
		RecentOrders: 1,
	}, 0)
	// -3 orders, -10 spend (<5000), -10 AOV (~91)
	assert.Equal(t, 77, score)
}

func TestComputeCreditScoreSkipsAOVForSmallSamples(t *testing.T) {
	// below the sample floor the AOV band must not fire even when the
	// average would otherwise be penalized
	score := ComputeCreditScore(ScoreInputs{
		TotalOrders:  4,
		TotalSpent:   decimal.NewFromInt(300),
		RecentOrders: 2,
	}, 0)
	assert.Equal(t, 65, score)
}

func TestComputeCreditScoreDeterministic(t *testing.T) {
	inputs := ScoreInputs{TotalOrders: 17, TotalSpent: decimal.NewFromInt(8400), RecentOrders: 2}
	first := ComputeCreditScore(inputs, 0)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ComputeCreditScore(inputs, 0))
	}
	assert.GreaterOrEqual(t, first, 0)
	assert.LessOrEqual(t, first, 100)
}
