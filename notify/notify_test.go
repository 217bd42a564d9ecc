package notify

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kzz_crawler/models"
)

func ptr[T any](v T) *T { return &v }

func TestFormatDigest(t *testing.T) {
	now := time.Date(2026, 10, 15, 2, 5, 9, 0, time.UTC)
	rows := []models.AlertRow{
		{
			BondID:         "113052",
			BondName:       "兴业转债",
			Price:          ptr(108.5),
			IncreaseRt:     ptr(-2.31),
			TargetPrice:    ptr(110.0),
			SellPrice:      ptr(130.0),
			Level:          ptr(int64(2)),
			ProfitStrategy: "双低",
		},
		{
			BondID:     "123001",
			BondName:   "蓝标",
			Price:      ptr(142.0),
			IncreaseRt: ptr(3.5),
			Level:      ptr(int64(0)),
		},
	}

	got := FormatDigest(now, ptr(117.26), rows)

	want := "[2026/10/15 10:05:09] 当前中位数: 117.26\n" +
		"兴业 113052(现价: 108.5, 目标价: 110, 卖出价: 130, 涨跌幅: -2.31% |双低| 绝对安全)\n" +
		"蓝标 123001(现价: 142, 涨跌幅: 3.5% || 不安全)"
	assert.Equal(t, want, got)
}

func TestFormatDigestWithoutMedian(t *testing.T) {
	got := FormatDigest(time.Date(2026, 10, 15, 2, 0, 0, 0, time.UTC), nil, nil)
	assert.Equal(t, "[2026/10/15 10:00:00] 当前中位数: -", got)
}

func TestFeishuNotifierPostsTextMessage(t *testing.T) {
	var got feishuMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"code":0,"msg":"success"}`)
	}))
	defer srv.Close()

	n := NewFeishuNotifier(srv.URL, time.Second)
	require.NoError(t, n.Send(t.Context(), "hello"))

	assert.Equal(t, "text", got.MsgType)
	assert.Equal(t, "hello", got.Content.Text)
}

func TestFeishuNotifierRejectedCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"code":19021,"msg":"sign match fail"}`)
	}))
	defer srv.Close()

	err := NewFeishuNotifier(srv.URL, time.Second).Send(t.Context(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "19021")
}

func TestFeishuNotifierHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewFeishuNotifier(srv.URL, time.Second).Send(t.Context(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestNewFallsBackToLog(t *testing.T) {
	assert.IsType(t, LogNotifier{}, New("", time.Second))
	assert.IsType(t, &FeishuNotifier{}, New("https://open.feishu.cn/hook/x", time.Second))
}
