package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optlens/optlens/internal/models"
)

func TestGroupEquitiesBypassGrouping(t *testing.T) {
	positions := []models.Position{
		eqPos("AAPL", 100, 15000),
		eqPos("MSFT", 50, 20000),
	}

	rows := Group(positions)

	require.Len(t, rows, 2)
	assert.Equal(t, "AAPL", rows[0].Single.Symbol)
	assert.Equal(t, "MSFT", rows[1].Single.Symbol)
}

func TestGroupPairsVertical(t *testing.T) {
	positions := []models.Position{
		optPos("SPY", models.Put, 190, 1, 50),
		optPos("SPY", models.Put, 200, -1, -150),
	}

	rows := Group(positions)

	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].Strategy)
	assert.Equal(t, models.StrategyPutVertical, rows[0].Strategy.Name)
	assert.Len(t, rows[0].Strategy.Legs, 2)
}

func TestGroupKeySeparatesBuckets(t *testing.T) {
	near := optPos("SPY", models.Put, 190, 1, 50)
	far := optPos("SPY", models.Put, 200, -1, -150)
	far.DTE = intp(60) // different expiry distance, must not pair with near

	rows := Group([]models.Position{near, far})

	require.Len(t, rows, 2)
	assert.Nil(t, rows[0].Strategy)
	assert.Nil(t, rows[1].Strategy)
}

func TestGroupQuantityMagnitudeSeparatesBuckets(t *testing.T) {
	a := optPos("SPY", models.Put, 190, 2, 100)
	b := optPos("SPY", models.Put, 200, -1, -150)

	rows := Group([]models.Position{a, b})

	require.Len(t, rows, 2)
}

func TestGroupSplitFallback(t *testing.T) {
	// Two independent put verticals encoded as one 4-leg bucket. The
	// whole-bucket classification fails (no calls), so the engine must
	// split into the first pairing whose halves both classify.
	positions := []models.Position{
		optPos("SPY", models.Put, 190, 1, 40),
		optPos("SPY", models.Put, 200, -1, -120),
		optPos("SPY", models.Put, 210, 1, 90),
		optPos("SPY", models.Put, 220, -1, -210),
	}

	rows := Group(positions)

	require.Len(t, rows, 2)
	for _, row := range rows {
		require.NotNil(t, row.Strategy)
		assert.Equal(t, models.StrategyPutVertical, row.Strategy.Name)
		assert.Len(t, row.Strategy.Legs, 2)
	}
}

func TestGroupNoSplitFallsBackToSingles(t *testing.T) {
	// Four same-sign calls at distinct strikes admit no valid pairing.
	positions := []models.Position{
		optPos("SPY", models.Call, 400, 1, 100),
		optPos("SPY", models.Call, 410, 1, 80),
		optPos("SPY", models.Call, 420, 1, 60),
		optPos("SPY", models.Call, 430, 1, 40),
	}

	rows := BuildRows(positions)

	require.Len(t, rows, 4)
	for _, row := range rows {
		assert.Equal(t, models.StrategyCall, row.StrategyName)
		assert.Equal(t, 1, row.LegCount)
	}
}

func TestGroupBucketOfThreeDissolves(t *testing.T) {
	positions := []models.Position{
		optPos("SPY", models.Put, 190, 1, 40),
		optPos("SPY", models.Put, 200, -1, -120),
		optPos("SPY", models.Put, 210, 1, 90),
	}
	positions[2].Quantity = 1

	rows := Group(positions)

	require.Len(t, rows, 3)
	for _, row := range rows {
		assert.Nil(t, row.Strategy)
	}
}

func TestPartitionInvariant(t *testing.T) {
	// Every input position lands in exactly one row: the LegCount sum
	// across all rows equals the input length.
	positions := []models.Position{
		eqPos("AAPL", 100, 15000),
		optPos("SPY", models.Call, 210, 1, 100),
		optPos("SPY", models.Call, 190, -1, -400),
		optPos("SPY", models.Put, 190, 1, 50),
		optPos("SPY", models.Put, 210, -1, -200),
		optPos("QQQ", models.Put, 400, 2, 300),
		eqPos("TSLA", -10, -2500),
		optPos("IWM", models.Call, 220, 3, 90),
		optPos("IWM", models.Put, 200, 3, 70),
	}

	rows := BuildRows(positions)

	total := 0
	for _, row := range rows {
		total += row.LegCount
	}
	assert.Equal(t, len(positions), total)
}

func TestGroupIdempotentAndNonMutating(t *testing.T) {
	positions := []models.Position{
		optPos("SPY", models.Put, 190, 1, 50),
		optPos("SPY", models.Put, 200, -1, -150),
		eqPos("AAPL", 100, 15000),
	}
	snapshot := make([]models.Position, len(positions))
	copy(snapshot, positions)

	first := BuildRows(positions)
	second := BuildRows(positions)

	assert.Equal(t, first, second)
	assert.Equal(t, snapshot, positions, "input must not be mutated")
}

func TestGroupPreservesFirstSeenBucketOrder(t *testing.T) {
	positions := []models.Position{
		optPos("QQQ", models.Put, 400, 1, 50),
		optPos("SPY", models.Put, 190, 1, 40),
		optPos("QQQ", models.Put, 410, -1, -90),
		optPos("SPY", models.Put, 200, -1, -120),
	}

	rows := Group(positions)

	require.Len(t, rows, 2)
	assert.Equal(t, "QQQ", rows[0].Strategy.Legs[0].BaseSymbol)
	assert.Equal(t, "SPY", rows[1].Strategy.Legs[0].BaseSymbol)
}
