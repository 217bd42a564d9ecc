package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"kzz_crawler/models"
)

func TestRedeemPending(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{"已公告强赎", true},
		{"强赎 2026-11-02最后交易", true},
		{"公告要强赎", false},
		{"", false},
		{"已满足强赎条件", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RedeemPending(tt.status), tt.status)
	}
}

func TestQualifies(t *testing.T) {
	base := models.AlertRow{BondID: "110043", IsFavorite: true}
	assert.True(t, Qualifies(base))

	notFav := base
	notFav.IsFavorite = false
	assert.False(t, Qualifies(notFav))

	black := base
	black.IsBlacklisted = true
	assert.False(t, Qualifies(black))

	redeem := base
	redeem.RedeemStatus = "已公告强赎"
	assert.False(t, Qualifies(redeem))
}
