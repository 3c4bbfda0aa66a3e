package sqlstore

import (
	"bufio"
	"embed"
	"fmt"
	"strings"
)

//go:embed queries/*.sql
var queryFiles embed.FS

// Query names defined in queries/*.sql.
const (
	qCreateZones         = "create_zones"
	qCreateTrips         = "create_trips"
	qCreateCheckpoints   = "create_checkpoints"
	qUpsertZones         = "upsert_zones"
	qUpsertZonesConflict = "upsert_zones_conflict"
	qSelectZoneIDs       = "select_zone_ids"
	qInsertTrips         = "insert_trips"
	qSelectCheckpoint    = "select_checkpoint"
	qSaveCheckpoint      = "save_checkpoint"
	qDeleteCheckpoint    = "delete_checkpoint"
)

// loadQueries reads every embedded query file. A name defined twice is an
// error.
func loadQueries() (map[string]string, error) {
	entries, err := queryFiles.ReadDir("queries")
	if err != nil {
		return nil, fmt.Errorf("read queries directory: %w", err)
	}

	queries := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		content, err := queryFiles.ReadFile("queries/" + name)
		if err != nil {
			return nil, fmt.Errorf("read query file %s: %w", name, err)
		}
		for q, text := range parseNamedQueries(string(content)) {
			if _, exists := queries[q]; exists {
				return nil, fmt.Errorf("duplicate query name %q in file %s", q, name)
			}
			queries[q] = text
		}
	}
	return queries, nil
}

// parseNamedQueries extracts queries introduced by a "-- name: X" line.
// Other comment lines and blank lines are dropped.
func parseNamedQueries(content string) map[string]string {
	queries := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(content))

	var current strings.Builder
	var name string

	flush := func() {
		if name != "" && current.Len() > 0 {
			queries[name] = current.String()
		}
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if rest, ok := strings.CutPrefix(line, "-- name:"); ok {
			flush()
			name = strings.TrimSpace(rest)
			current.Reset()
			continue
		}
		if line == "" || strings.HasPrefix(line, "--") || name == "" {
			continue
		}

		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(line)
	}
	flush()

	return queries
}
