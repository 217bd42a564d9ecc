package parser

import (
	"fmt"
	"html"
	"log"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"kzz_crawler/models"
)

const (
	adjustKind      = "下修"
	statusFinalized = "成功"
	statusProposed  = "提议"
)

var (
	tagRegex         = regexp.MustCompile(`<[^>]*>`)
	bottomPriceRegex = regexp.MustCompile(`下修底价\s*(\d+(\.\d+)?)`)
)

// ParseAdjustData parses the percent-encoded adjustment log table. Only
// downward resets that were finalized or proposed produce a record; a
// malformed row is dropped without affecting the others.
func ParseAdjustData(encoded string) []models.AdjustmentRecord {
	decoded, err := url.PathUnescape(encoded)
	if err != nil {
		log.Printf("[parser] adjust log decode: %v", err)
		return []models.AdjustmentRecord{}
	}

	fragments := strings.Split(decoded, "<tr>")
	records := []models.AdjustmentRecord{}
	// fragments[0] precedes the table, fragments[1] is the header row
	for i := 2; i < len(fragments); i++ {
		rec, err := adjustRow(fragments[i])
		if err != nil {
			log.Printf("[parser] adjust log row %d: %v", i-1, err)
			continue
		}
		if rec != nil {
			records = append(records, *rec)
		}
	}
	return records
}

func adjustRow(fragment string) (rec *models.AdjustmentRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()

	parts := strings.Split(fragment, "</td>")
	cells := make([]string, len(parts))
	for i, p := range parts {
		cells[i] = strings.TrimSpace(html.UnescapeString(tagRegex.ReplaceAllString(p, "")))
	}
	return AdjustRecordFromCells(cells)
}

// AdjustRecordFromCells builds a record from one row's stripped cell texts.
// It returns nil, nil for rows that are not finalized or proposed resets.
func AdjustRecordFromCells(cells []string) (*models.AdjustmentRecord, error) {
	if len(cells) < 6 || cells[4] != adjustKind {
		return nil, nil
	}
	if cells[5] != statusFinalized && cells[5] != statusProposed {
		return nil, nil
	}
	if len(cells) < 7 {
		return nil, fmt.Errorf("want 7 cells, got %d", len(cells))
	}

	rec := &models.AdjustmentRecord{
		MeetingDate:   cells[0],
		EffectiveDate: cells[1],
		NewPrice:      parseFloat(cells[2]),
		OldPrice:      parseFloat(cells[3]),
		Status:        cells[5],
	}

	if m := bottomPriceRegex.FindStringSubmatch(cells[6]); m != nil {
		rec.BottomPrice = parseFloat(m[1])
	}

	if rec.BottomPrice != nil && rec.NewPrice != nil && *rec.NewPrice != 0 {
		ratio := decimal.NewFromFloat(*rec.BottomPrice).
			Div(decimal.NewFromFloat(*rec.NewPrice)).
			Round(2).
			InexactFloat64()
		rec.AdjRatio = &ratio
	}
	return rec, nil
}

func parseFloat(s string) *float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return &f
}
