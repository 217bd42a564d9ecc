package parser

import (
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"kzz_crawler/models"
)

// ParseIndexFigure parses a widget figure such as "1,834.21" or "31.52%".
func ParseIndexFigure(text string) *float64 {
	s := strings.TrimSpace(text)
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.Join(strings.Fields(s), "")
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

// ParseIndexHistory reads median-price history. The payload carries either
// parallel data.price_dt / data.mid_price arrays or a data array of objects.
func ParseIndexHistory(body []byte, loc *time.Location) []models.IndexHistoryPoint {
	if !gjson.ValidBytes(body) {
		return nil
	}
	data := gjson.GetBytes(body, "data")

	var points []models.IndexHistoryPoint
	if data.IsArray() {
		data.ForEach(func(_, item gjson.Result) bool {
			points = append(points, indexPoint(item.Get("price_dt"), item.Get("mid_price"), loc))
			return true
		})
		return points
	}

	dates := data.Get("price_dt").Array()
	prices := data.Get("mid_price").Array()
	for i := range dates {
		var price gjson.Result
		if i < len(prices) {
			price = prices[i]
		}
		points = append(points, indexPoint(dates[i], price, loc))
	}
	return points
}

func indexPoint(date, price gjson.Result, loc *time.Location) models.IndexHistoryPoint {
	var p models.IndexHistoryPoint
	if d, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(date.String()), loc); err == nil {
		p.PriceDate = d
	}
	if f, ok := number(price); ok {
		p.MidPrice = &f
	}
	return p
}
