package parser

import (
	"encoding/json"
	"log"

	"github.com/tidwall/gjson"

	"kzz_crawler/models"
)

// ParseListPayload decodes the list endpoint body. ok is false when the body
// is not trustworthy: malformed, missing the data array, or holding no more
// than minItems rows (a partial or visitor-limited load).
func ParseListPayload(body []byte, minItems int) (rows []models.SummaryRecord, ok bool) {
	if !gjson.ValidBytes(body) {
		log.Printf("[parser] list payload is not valid JSON (%d bytes)", len(body))
		return nil, false
	}

	data := gjson.GetBytes(body, "data")
	if !data.IsArray() {
		log.Printf("[parser] list payload has no data array")
		return nil, false
	}

	count := gjson.GetBytes(body, "data.#").Int()
	if count <= int64(minItems) {
		log.Printf("[parser] list payload has %d rows, need more than %d; ignoring", count, minItems)
		return nil, false
	}

	rows = make([]models.SummaryRecord, 0, count)
	data.ForEach(func(_, item gjson.Result) bool {
		var rec models.SummaryRecord
		if err := json.Unmarshal([]byte(item.Raw), &rec); err != nil {
			log.Printf("[parser] skipping list row: %v", err)
			return true
		}
		if rec.BondID == "" {
			return true
		}
		rows = append(rows, rec)
		return true
	})

	return rows, true
}

// IDs returns the bond ids of rows in order.
func IDs(rows []models.SummaryRecord) []string {
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.BondID)
	}
	return ids
}
