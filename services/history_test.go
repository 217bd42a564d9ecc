package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"kzz_crawler/models"
)

func fp(v float64) *float64 { return &v }

func candidate() models.HistoryCandidate {
	return models.HistoryCandidate{
		BondID:          "110043",
		Price:           fp(125.5),
		Volume:          fp(3021.4),
		MaturityDt:      "2028-01-01",
		Info:            `{"page":1,"rows":[{"id":"110043","cell":{"last_chg_dt":"2026-10-14","price":"118.2"}}],"total":1}`,
		MaxHistoryPrice: fp(121.45),
		MinHistoryPrice: fp(112.9),
		MaxPriceDate:    "2026-10-13",
		MinPriceDate:    "2026-10-09",
	}
}

func TestRollForwardPrependsSnapshot(t *testing.T) {
	date := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	c := candidate()

	rec, ok, err := RollForward(&c, date)
	require.NoError(t, err)
	require.True(t, ok)

	info := gjson.Parse(string(rec.Info.Val))
	assert.Equal(t, int64(2), info.Get("total").Int())
	assert.Equal(t, int64(2), info.Get("rows.#").Int())
	assert.Equal(t, "2026-10-15", info.Get("rows.0.cell.last_chg_dt").String())
	assert.Equal(t, 125.5, info.Get("rows.0.cell.price").Float())
	assert.Equal(t, "2026-10-14", info.Get("rows.1.cell.last_chg_dt").String())
	assert.Equal(t, int64(1), info.Get("page").Int())

	assert.Equal(t, models.Some(125.5), rec.MaxHistoryPrice)
	assert.Equal(t, models.Some("2026-10-15"), rec.MaxPriceDate)
	assert.False(t, rec.MinHistoryPrice.Set, "min unchanged")
}

func TestRollForwardBareArray(t *testing.T) {
	date := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	c := candidate()
	c.Info = `[{"id":"110043","cell":{"last_chg_dt":"2026-10-14","price":"118.2"}}]`
	c.Price = fp(100)

	rec, ok, err := RollForward(&c, date)
	require.NoError(t, err)
	require.True(t, ok)

	info := gjson.Parse(string(rec.Info.Val))
	assert.Equal(t, int64(2), info.Get("#").Int())
	assert.Equal(t, models.Some(100.0), rec.MinHistoryPrice)
	assert.False(t, rec.MaxHistoryPrice.Set)
}

func TestRollForwardSkips(t *testing.T) {
	date := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		mutate func(*models.HistoryCandidate)
	}{
		{"already rolled", func(c *models.HistoryCandidate) {
			c.Info = `{"rows":[{"id":"110043","cell":{"last_chg_dt":"2026-10-15","price":"118.2"}}],"total":1}`
		}},
		{"matured", func(c *models.HistoryCandidate) { c.MaturityDt = "2026-10-01" }},
		{"third board", func(c *models.HistoryCandidate) { c.MarketCd = "sb" }},
		{"exchangeable", func(c *models.HistoryCandidate) { c.Btype = "E" }},
		{"blacklisted", func(c *models.HistoryCandidate) { c.IsBlacklisted = true }},
		{"forced redemption", func(c *models.HistoryCandidate) { c.RedeemStatus = "已公告强赎" }},
		{"no price", func(c *models.HistoryCandidate) { c.Price = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := candidate()
			tt.mutate(&c)
			rec, ok, err := RollForward(&c, date)
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Nil(t, rec)
		})
	}
}

func TestRollHistoryCountsOutcomes(t *testing.T) {
	store := newFakeStore()
	good := candidate()
	broken := candidate()
	broken.BondID = "123001"
	broken.Info = `{"rows": not json`
	skipped := candidate()
	skipped.BondID = "127001"
	skipped.Btype = "E"
	store.candidates = []models.HistoryCandidate{good, broken, skipped}

	svc := newTestService(store, nil)
	stats, err := svc.RollHistory(context.Background())
	require.NoError(t, err)

	assert.Equal(t, RollStats{Candidates: 3, Updated: 1, Skipped: 1, Failed: 1}, stats)
	assert.Len(t, store.details["110043"], 1)
}
