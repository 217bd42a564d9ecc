package parser

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"kzz_crawler/models"
)

const netProfitLabel = "净利润"

var yiRegex = regexp.MustCompile(`(-?\d+\.?\d*)亿`)

// ParseCashFlow extracts the last three yearly net-profit figures from the
// cash-flow text block. It returns nil when the label line or the figures
// are missing.
func ParseCashFlow(text string) *models.CashFlowSummary {
	if text == "" {
		return nil
	}

	var line string
	for _, l := range strings.Split(text, "\n") {
		if strings.Contains(l, netProfitLabel) {
			line = l
			break
		}
	}
	if line == "" {
		return nil
	}

	idx := strings.IndexAny(line, ":：")
	if idx < 0 {
		return nil
	}
	_, size := utf8.DecodeRuneInString(line[idx:])
	matches := yiRegex.FindAllStringSubmatch(line[idx+size:], -1)
	if len(matches) == 0 {
		return nil
	}

	figures := make([]decimal.Decimal, 0, len(matches))
	for _, m := range matches {
		d, err := decimal.NewFromString(m[1])
		if err != nil {
			return nil
		}
		figures = append(figures, d)
	}
	if len(figures) > 3 {
		figures = figures[len(figures)-3:]
	}

	profits := make([]float64, len(figures))
	for i, d := range figures {
		profits[i] = d.InexactFloat64()
	}
	return &models.CashFlowSummary{
		Profits: profits,
		Total:   decimal.Sum(figures[0], figures[1:]...).Round(2).InexactFloat64(),
	}
}
