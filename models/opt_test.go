package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummaryDecodeTracksPresence(t *testing.T) {
	payload := `{
		"bond_id": "110043",
		"bond_nm": " 无锡转债 ",
		"price": "123.45",
		"increase_rt": -1.2,
		"fund_rt": "-",
		"rating_cd": null,
		"t_flag": ["a", 1],
		"owned": 0
	}`

	var rec SummaryRecord
	require.NoError(t, json.Unmarshal([]byte(payload), &rec))

	assert.Equal(t, "110043", rec.BondID)

	name, ok := rec.BondNm.Get()
	require.True(t, ok)
	assert.Equal(t, "无锡转债", name)

	price, ok := rec.Price.Get()
	require.True(t, ok)
	assert.InDelta(t, 123.45, price, 1e-9)

	assert.True(t, rec.FundRt.Set)
	assert.True(t, rec.FundRt.Null, "placeholder dash decodes to null")
	assert.True(t, rec.RatingCd.Set)
	assert.True(t, rec.RatingCd.Null)
	assert.False(t, rec.PB.Set, "absent key stays unset")
	assert.Equal(t, JSONText(`["a", 1]`), rec.TFlag.Val)
}

func TestFieldTablePresentKeepsTableOrder(t *testing.T) {
	rec := DetailRecord{
		BondID:   "123001",
		Concept:  Some(JSONText(`[{"name":"光伏","link":"/x"}]`)),
		Industry: Some("电力设备"),
		LtBps:    Null[float64](),
	}

	cols, vals := DetailFields.Present(&rec)
	assert.Equal(t, []string{"industry", "concept", "lt_bps"}, cols)
	assert.Equal(t, []any{"电力设备", `[{"name":"光伏","link":"/x"}]`, nil}, vals)
}

func TestFieldTableKinds(t *testing.T) {
	kinds := map[string]FieldKind{}
	for _, f := range DetailFields.Fields() {
		kinds[f.Column] = f.Kind
	}
	assert.Equal(t, KindJSON, kinds["info"])
	assert.Equal(t, KindNumber, kinds["max_history_price"])
	assert.Equal(t, KindText, kinds["industry"])
	assert.Equal(t, KindTime, kinds["update_time"])

	assert.Len(t, SummaryFields.Columns(), 111)
}

func TestOptMarshal(t *testing.T) {
	out, err := json.Marshal(struct {
		A Opt[float64]  `json:"a"`
		B Opt[string]   `json:"b"`
		C Opt[JSONText] `json:"c"`
	}{A: Some(1.5), B: Null[string](), C: Some(JSONText(`{"k":1}`))})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1.5,"b":null,"c":{"k":1}}`, string(out))
}

func TestSummaryMatured(t *testing.T) {
	today := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)

	rec := SummaryRecord{MaturityDt: Some("2026-10-14")}
	assert.True(t, rec.Matured(today))

	rec.MaturityDt = Some("2026-10-15")
	assert.False(t, rec.Matured(today))

	rec.MaturityDt = Null[string]()
	assert.False(t, rec.Matured(today))
}

func TestCookieExpiresAt(t *testing.T) {
	c := Cookie{Expires: 1700000000.5}
	assert.Equal(t, int64(1700000000), c.ExpiresAt().Unix())
	assert.True(t, Cookie{Expires: -1}.ExpiresAt().IsZero())
}
