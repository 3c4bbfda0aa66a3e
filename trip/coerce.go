package trip

import (
	"database/sql"
	"math"
	"strconv"
	"strings"
	"time"
)

// nullTokens are cell values read as missing, in addition to the empty string.
var nullTokens = map[string]struct{}{
	"nan":  {},
	"null": {},
	"na":   {},
	"n/a":  {},
	"<na>": {},
	"none": {},
	"#n/a": {},
	"-nan": {},
}

// timeLayouts are tried in order. The first two cover the MM/DD/YYYY HH:MM
// export format; the rest are ISO-8601 variants.
var timeLayouts = []string{
	"01/02/2006 15:04",
	"01/02/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
}

// IsMissing reports whether a raw cell carries no value.
func IsMissing(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}
	_, ok := nullTokens[strings.ToLower(s)]
	return ok
}

// ParseFloat coerces a raw cell to a nullable number. Missing, malformed and
// non-finite values are null. It never fails.
func ParseFloat(s string) sql.NullFloat64 {
	if IsMissing(s) {
		return sql.NullFloat64{}
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}

// ParseTime parses a raw timestamp in any accepted layout. Values without a
// zone are read as UTC.
func ParseTime(s string) (time.Time, bool) {
	if IsMissing(s) {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ID converts a nullable number to a location identifier. Fractional values
// are not identifiers.
func ID(n sql.NullFloat64) (int64, bool) {
	if !n.Valid || n.Float64 != math.Trunc(n.Float64) {
		return 0, false
	}
	// float64(math.MaxInt64) rounds up to 2^63, which is out of range.
	if n.Float64 >= math.MaxInt64 || n.Float64 < math.MinInt64 {
		return 0, false
	}
	return int64(n.Float64), true
}

// ParseID parses a raw location identifier cell. "132" and "132.0" are both 132.
func ParseID(s string) (int64, bool) {
	return ID(ParseFloat(s))
}
