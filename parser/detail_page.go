package parser

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"kzz_crawler/models"
)

type DetailSelectors struct {
	Industry string
	Concepts string
	CashFlow string
}

// DetailPage is what the detail page HTML contributes to a detail record.
type DetailPage struct {
	Industry     string
	Concepts     []models.ConceptTag
	CashFlowText string
}

func ParseDetailPage(r io.Reader, sel DetailSelectors) (*DetailPage, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	page := &DetailPage{}
	if sel.Industry != "" {
		page.Industry = cleanText(doc.Find(sel.Industry).First().Text())
	}
	if sel.Concepts != "" {
		doc.Find(sel.Concepts).Each(func(_ int, s *goquery.Selection) {
			name := cleanText(s.Text())
			if name == "" {
				return
			}
			link, _ := s.Attr("href")
			page.Concepts = append(page.Concepts, models.ConceptTag{Name: name, Link: link})
		})
	}
	if sel.CashFlow != "" {
		page.CashFlowText = blockText(doc.Find(sel.CashFlow).First())
	}
	return page, nil
}

// blockText keeps one line per child element so line-oriented parsers work.
func blockText(s *goquery.Selection) string {
	children := s.Children()
	if children.Length() == 0 {
		return strings.TrimSpace(s.Text())
	}
	var lines []string
	children.Each(func(_ int, c *goquery.Selection) {
		if t := cleanText(c.Text()); t != "" {
			lines = append(lines, t)
		}
	})
	return strings.Join(lines, "\n")
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
