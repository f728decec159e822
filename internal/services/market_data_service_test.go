package services

import (
	"context"
	"testing"
	"time"

	"coinfluence/internal/models"
	"coinfluence/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChartSummary(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	closes := []string{"1.00", "1.50", "0.80", "1.20"}
	for i, c := range closes {
		bar := models.HourlyCandle{Candle: models.Candle{
			TokenID: 7,
			TS:      start.Add(time.Duration(i) * time.Hour),
			Open:    testutil.Dec(c),
			High:    testutil.Dec(c),
			Low:     testutil.Dec(c),
			Close:   testutil.Dec(c),
			Volume:  testutil.Dec("10"),
		}}
		require.NoError(t, db.Create(&bar).Error)
	}

	svc := NewMarketDataService(db)
	chart, err := svc.Chart(ctx, 7, "1d")
	require.NoError(t, err)
	assert.Equal(t, "1D", chart.Range)
	assert.Equal(t, 4, chart.DataPoints)
	assert.True(t, chart.Summary.FirstPrice.Equal(testutil.Dec("1")))
	assert.True(t, chart.Summary.LastPrice.Equal(testutil.Dec("1.2")))
	assert.True(t, chart.Summary.PriceChangePercent.Equal(testutil.Dec("20")), chart.Summary.PriceChangePercent.String())
	assert.True(t, chart.Summary.High.Equal(testutil.Dec("1.5")))
	assert.True(t, chart.Summary.Low.Equal(testutil.Dec("0.8")))
	assert.True(t, chart.Summary.AvgVolume.Equal(testutil.Dec("10")))

	fallback, err := svc.Chart(ctx, 7, "decade")
	require.NoError(t, err)
	assert.Equal(t, "1D", fallback.Range)

	_, err = svc.Chart(ctx, 7, "1Y")
	assert.ErrorIs(t, err, ErrTokenDataNotFound)
}

func TestQuoteUnknownToken(t *testing.T) {
	db := testutil.NewDB(t)
	_, err := NewMarketDataService(db).Quote(context.Background(), 404)
	assert.ErrorIs(t, err, ErrTokenDataNotFound)
}
