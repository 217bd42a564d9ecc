package parser

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"kzz_crawler/models"
)

// ParseHistory reads a per-bond price history payload. Both the
// {rows:[...], total} envelope and a bare array are accepted; an empty body
// is valid and yields a summary with zero rows.
func ParseHistory(body []byte) (*models.HistorySummary, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return &models.HistorySummary{}, nil
	}
	if !gjson.ValidBytes(trimmed) {
		return nil, fmt.Errorf("history payload is not valid JSON")
	}

	root := gjson.ParseBytes(trimmed)
	rows := root
	if !root.IsArray() {
		rows = root.Get("rows")
	}

	summary := &models.HistorySummary{}
	if !rows.IsArray() {
		return summary, nil
	}

	rows.ForEach(func(_, row gjson.Result) bool {
		cell := row.Get("cell")
		if !cell.Exists() {
			cell = row
		}
		price, ok := number(cell.Get("price"))
		if !ok {
			return true
		}
		date := cell.Get("last_chg_dt").String()
		summary.Rows++

		if summary.MaxPrice == nil || price > *summary.MaxPrice {
			p := price
			summary.MaxPrice = &p
			summary.MaxDate = date
		}
		if summary.MinPrice == nil || price < *summary.MinPrice {
			p := price
			summary.MinPrice = &p
			summary.MinDate = date
		}
		return true
	})

	if summary.Rows > 0 {
		summary.Info = models.JSONText(trimmed)
	}
	return summary, nil
}

func number(r gjson.Result) (float64, bool) {
	switch r.Type {
	case gjson.Number:
		return r.Float(), true
	case gjson.String:
		s := strings.TrimSpace(strings.TrimSuffix(r.Str, "%"))
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	return 0, false
}
