package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"kzz_crawler/market"
	"kzz_crawler/models"
	"kzz_crawler/storage"
)

type RollStats struct {
	Candidates int
	Updated    int
	Skipped    int
	Failed     int
}

// RollHistory prepends today's summary snapshot to every stored price history
// that does not have it yet, keeping the recorded extremes in step.
func (s *BondService) RollHistory(ctx context.Context) (RollStats, error) {
	var stats RollStats

	candidates, err := s.store.HistoryCandidates(ctx)
	if err != nil {
		return stats, err
	}
	stats.Candidates = len(candidates)

	date := market.TradingDate(s.now())
	for i := range candidates {
		c := &candidates[i]
		rec, ok, err := RollForward(c, date)
		if err != nil {
			log.Printf("[history] %s: %v", c.BondID, err)
			stats.Failed++
			continue
		}
		if !ok {
			stats.Skipped++
			continue
		}
		if _, _, err := s.store.UpsertDetail(ctx, models.DetailKey{BondID: c.BondID}, rec); err != nil {
			log.Printf("[history] %s: %v", c.BondID, err)
			stats.Failed++
			continue
		}
		stats.Updated++
	}

	log.Printf("[history] roll-forward: %d candidates, %d updated, %d skipped, %d failed",
		stats.Candidates, stats.Updated, stats.Skipped, stats.Failed)
	return stats, nil
}

// RollForward computes the detail update that appends date's snapshot to c's
// stored history. ok is false when the bond is excluded, has no price, or the
// history already starts at date.
func RollForward(c *models.HistoryCandidate, date time.Time) (*models.DetailRecord, bool, error) {
	day := date.Format("2006-01-02")

	if c.MaturityDt != "" && c.MaturityDt < day {
		return nil, false, nil
	}
	if c.MarketCd == "sb" || c.Btype == "E" || c.IsBlacklisted || storage.RedeemPending(c.RedeemStatus) {
		return nil, false, nil
	}
	if c.Price == nil || c.Info == "" {
		return nil, false, nil
	}

	info := gjson.Parse(string(c.Info))
	rowsPath := "rows"
	if info.IsArray() {
		rowsPath = ""
	}
	first := info.Get(joinPath(rowsPath, "0.cell.last_chg_dt"))
	if first.String() == day {
		return nil, false, nil
	}

	row, err := json.Marshal(map[string]any{
		"id": c.BondID,
		"cell": map[string]any{
			"bond_id":       c.BondID,
			"last_chg_dt":   day,
			"price":         c.Price,
			"sprice":        c.Sprice,
			"volume":        c.Volume,
			"ytm_rt":        c.YtmRt,
			"premium_rt":    c.PremiumRt,
			"turnover_rt":   c.TurnoverRt,
			"curr_iss_amt":  c.CurrIssAmt,
			"convert_value": c.ConvertValue,
		},
	})
	if err != nil {
		return nil, false, err
	}

	updated, err := prependRow(c.Info, info.IsArray(), row)
	if err != nil {
		return nil, false, err
	}

	rec := &models.DetailRecord{
		Info:       models.Some(updated),
		UpdateTime: models.Some(time.Now()),
	}
	price := *c.Price
	if c.MaxHistoryPrice == nil || price > *c.MaxHistoryPrice {
		rec.MaxHistoryPrice = models.Some(price)
		rec.MaxPriceDate = models.Some(day)
	}
	if c.MinHistoryPrice == nil || price < *c.MinHistoryPrice {
		rec.MinHistoryPrice = models.Some(price)
		rec.MinPriceDate = models.Some(day)
	}
	return rec, true, nil
}

// prependRow puts row at the head of the history. The {rows, total}
// envelope gets its total bumped; other keys are kept as they were.
func prependRow(info models.JSONText, bare bool, row []byte) (models.JSONText, error) {
	if bare {
		var rows []json.RawMessage
		if err := json.Unmarshal([]byte(info), &rows); err != nil {
			return "", fmt.Errorf("decode history: %w", err)
		}
		out, err := json.Marshal(append([]json.RawMessage{row}, rows...))
		return models.JSONText(out), err
	}

	var env map[string]json.RawMessage
	if err := json.Unmarshal([]byte(info), &env); err != nil {
		return "", fmt.Errorf("decode history: %w", err)
	}
	var rows []json.RawMessage
	if raw, ok := env["rows"]; ok {
		if err := json.Unmarshal(raw, &rows); err != nil {
			return "", fmt.Errorf("decode history rows: %w", err)
		}
	}
	rows = append([]json.RawMessage{row}, rows...)

	data, err := json.Marshal(rows)
	if err != nil {
		return "", err
	}
	env["rows"] = data

	total := len(rows)
	if raw, ok := env["total"]; ok {
		if n, err := strconv.Atoi(string(gjson.ParseBytes(raw).String())); err == nil {
			total = n + 1
		}
	}
	env["total"] = json.RawMessage(strconv.Itoa(total))

	out, err := json.Marshal(env)
	return models.JSONText(out), err
}

func joinPath(prefix, rest string) string {
	if prefix == "" {
		return rest
	}
	return prefix + "." + rest
}
