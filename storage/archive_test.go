package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestArchiveKey(t *testing.T) {
	at := time.Date(2026, 10, 15, 9, 31, 5, 0, time.UTC)
	assert.Equal(t, "raw/list/2026/10/15/093105.json", ArchiveKey("raw", "list", at))
	assert.Equal(t, "list/2026/10/15/093105.json", ArchiveKey("", "list", at))
}
