package storage

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mama165/sdk-go/database"
)

// Key namespaces written by the badger adapters.
const (
	PrefixTable   = "tbl:"
	PrefixIndex   = "idx:"
	PrefixQueue   = "queue:"
	PrefixArchive = "archive:"
)

// Describe classifies a raw badger entry and summarizes its value.
func Describe(key string, val []byte) (string, string) {
	switch {
	case strings.HasPrefix(key, PrefixIndex):
		return "INDEX", "-"
	case strings.HasPrefix(key, PrefixArchive):
		return "ARCHIVE", fmt.Sprintf("%d bytes", len(val))
	case strings.HasPrefix(key, PrefixTable):
		table := strings.SplitN(strings.TrimPrefix(key, PrefixTable), ":", 2)[0]
		return strings.ToUpper(table), summarize(val)
	case strings.HasPrefix(key, PrefixQueue):
		return "QUEUE", summarize(val)
	default:
		return "RAW", fmt.Sprintf("%d bytes", len(val))
	}
}

// InspectMapper renders store entries in the debug inspector.
func InspectMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)
	row.Type, row.Detail = Describe(key, val)
	return row
}

func summarize(val []byte) string {
	record, err := decodeRecord(val)
	if err != nil {
		return "Error: unmarshal failed"
	}
	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, record[k]))
	}
	return strings.Join(parts, " ")
}
