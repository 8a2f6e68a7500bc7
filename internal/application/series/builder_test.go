package series

import (
	"testing"

	"github.com/damon-houk/exchange-rate-chart/internal/domain/entity"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
)

func TestBuild(t *testing.T) {
	t.Run("Empty input", func(t *testing.T) {
		points := Build(nil)
		assert.NotNil(t, points)
		assert.Empty(t, points)

		points = Build([]entity.RateRecord{})
		assert.Empty(t, points)
	})

	t.Run("Three hourly records", func(t *testing.T) {
		records := []entity.RateRecord{
			{Currency: "USD", TimestampMillis: 1000, Rate: 17.5},
			{Currency: "USD", TimestampMillis: 1000 + 3_600_000, Rate: 17.8},
			{Currency: "USD", TimestampMillis: 1000 + 7_200_000, Rate: 17.5},
		}

		want := []entity.PlotPoint{
			{X: 0.0, Y: 17.5},
			{X: 1.0, Y: 17.8},
			{X: 2.0, Y: 17.5},
		}

		got := Build(records)
		if diff := cmp.Diff(want, got, cmpopts.EquateApprox(1e-9, 0)); diff != "" {
			t.Errorf("unexpected points (-want, +got): %s", diff)
		}
	})

	t.Run("Single record", func(t *testing.T) {
		got := Build([]entity.RateRecord{{Currency: "EUR", TimestampMillis: 5000, Rate: 20.0}})
		assert.Equal(t, []entity.PlotPoint{{X: 0.0, Y: 20.0}}, got)
	})

	t.Run("Shared timestamp", func(t *testing.T) {
		got := Build([]entity.RateRecord{
			{TimestampMillis: 42, Rate: 1.0},
			{TimestampMillis: 42, Rate: 2.0},
			{TimestampMillis: 42, Rate: 3.0},
		})

		for _, p := range got {
			assert.Equal(t, 0.0, p.X)
		}
	})

	t.Run("Unordered input uses explicit minimum", func(t *testing.T) {
		records := []entity.RateRecord{
			{TimestampMillis: 7_200_000, Rate: 3},
			{TimestampMillis: 0, Rate: 1},
			{TimestampMillis: 1_800_000, Rate: 2},
		}

		got := Build(records)
		assert.Len(t, got, 3)
		assert.InDelta(t, 2.0, got[0].X, 1e-9)
		assert.InDelta(t, 0.0, got[1].X, 1e-9)
		assert.InDelta(t, 0.5, got[2].X, 1e-9)
	})
}

func TestBuildProperties(t *testing.T) {
	records := []entity.RateRecord{
		{TimestampMillis: 1_700_000_000_000, Rate: 18.21},
		{TimestampMillis: 1_700_000_900_000, Rate: 18.25},
		{TimestampMillis: 1_700_003_600_000, Rate: 18.19},
		{TimestampMillis: 1_700_050_000_123, Rate: 18.40},
		{TimestampMillis: 1_700_600_000_000, Rate: 17.98},
	}

	got := Build(records)
	minTimestamp := records[0].TimestampMillis

	assert.Len(t, got, len(records))
	assert.Equal(t, 0.0, got[0].X)

	for i, p := range got {
		want := float64(records[i].TimestampMillis-minTimestamp) / 3_600_000.0
		assert.InEpsilon(t, want+1, p.X+1, 1e-9, "x of point %d", i)
		assert.Equal(t, records[i].Rate, p.Y, "y of point %d", i)

		if i > 0 {
			assert.GreaterOrEqual(t, p.X, got[i-1].X, "x must be non-decreasing")
		}
	}
}

func TestBuildDoesNotMutateInput(t *testing.T) {
	records := []entity.RateRecord{
		{Currency: "USD", TimestampMillis: 3_600_000, Rate: 2},
		{Currency: "USD", TimestampMillis: 0, Rate: 1},
	}
	original := append([]entity.RateRecord(nil), records...)

	Build(records)

	assert.Equal(t, original, records)
}
