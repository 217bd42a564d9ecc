package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
)

// SnapshotKey returns an order-insensitive identity for a set of bond ids.
// Duplicates and surrounding whitespace are ignored.
func SnapshotKey(ids []string) string {
	norm := NormalizeIDs(ids)
	data, _ := json.Marshal(norm)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:16])
}

func NormalizeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
