package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnapshotKeyIgnoresOrder(t *testing.T) {
	a := SnapshotKey([]string{"110043", "123001", "128136"})
	b := SnapshotKey([]string{"128136", " 110043", "123001", "123001"})
	assert.Equal(t, a, b)
}

func TestSnapshotKeyDistinguishesSets(t *testing.T) {
	assert.NotEqual(t, SnapshotKey([]string{"110043"}), SnapshotKey([]string{"110043", "123001"}))
	assert.Equal(t, SnapshotKey(nil), SnapshotKey([]string{}))
}

func TestNormalizeIDs(t *testing.T) {
	assert.Equal(t, []string{"1", "2"}, NormalizeIDs([]string{"2", "", "1", "2"}))
}
