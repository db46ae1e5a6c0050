package store

import "time"

// parseTimeValue parses raw against the winning layout format determined
// during type inference (or a user-supplied override format).
func parseTimeValue(format string, raw []byte) (time.Time, bool) {
	t, err := time.Parse(format, string(raw))
	return t, err == nil
}
