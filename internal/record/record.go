package record

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/google/uuid"
)

// Level is the severity of a captured log record. The set is closed;
// unknown values are rejected at the store boundary.
type Level string

const (
	LevelLog   Level = "log"
	LevelError Level = "error"
	LevelWarn  Level = "warn"
	LevelInfo  Level = "info"
)

// Levels lists every valid level in a stable order.
var Levels = []Level{LevelLog, LevelError, LevelWarn, LevelInfo}

// ParseLevel validates a level string against the closed set.
func ParseLevel(s string) (Level, error) {
	switch Level(s) {
	case LevelLog, LevelError, LevelWarn, LevelInfo:
		return Level(s), nil
	}
	return "", &ValidationError{Field: "level", Reason: fmt.Sprintf("unknown level %q", s)}
}

// Valid reports whether l belongs to the closed level set.
func (l Level) Valid() bool {
	_, err := ParseLevel(string(l))
	return err == nil
}

// UnknownDomain is the sentinel origin domain for records whose origin URL
// cannot be parsed.
const UnknownDomain = "unknown"

// Record is the unit of storage: a single captured log entry.
type Record struct {
	// ID is the globally unique primary key. Caller-supplied or assigned by
	// Normalize. Re-inserting an existing ID is an upsert.
	ID string `json:"id"`
	// Timestamp is the event time in milliseconds since the Unix epoch. Not
	// required to be monotonic across records.
	Timestamp int64 `json:"timestamp"`
	Level     Level `json:"level"`
	// Message is pre-formatted human-readable text; formatting is the
	// caller's responsibility.
	Message      string `json:"message"`
	OriginURL    string `json:"origin_url"`
	OriginDomain string `json:"origin_domain"`
	// TabID and SessionID are grouping keys, opaque to the engine.
	TabID     *int64 `json:"tab_id"`
	SessionID string `json:"session_id"`
	// Metadata is free-form, never indexed, never interpreted.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ValidationError reports malformed caller input rejected at the store
// boundary.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// DomainOf extracts the hostname portion of an origin URL, falling back to
// UnknownDomain when the URL is empty or unparseable.
func DomainOf(originURL string) string {
	if originURL == "" {
		return UnknownDomain
	}
	u, err := url.Parse(originURL)
	if err != nil || u.Hostname() == "" {
		return UnknownDomain
	}
	return u.Hostname()
}

// Normalize fills derived and generated fields: OriginDomain from OriginURL
// when unset, and a fresh ID when the caller supplied none.
func (r *Record) Normalize() {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.OriginDomain == "" {
		r.OriginDomain = DomainOf(r.OriginURL)
	}
}

// Validate checks required fields. Records failing validation are rejected
// before any write; nothing is partially stored.
func (r *Record) Validate() error {
	if r.ID == "" {
		return &ValidationError{Field: "id", Reason: "missing"}
	}
	if r.Timestamp <= 0 {
		return &ValidationError{Field: "timestamp", Reason: "must be a positive ms epoch value"}
	}
	if !r.Level.Valid() {
		return &ValidationError{Field: "level", Reason: fmt.Sprintf("unknown level %q", r.Level)}
	}
	if r.OriginDomain == "" {
		return &ValidationError{Field: "origin_domain", Reason: "missing"}
	}
	if r.SessionID == "" {
		return &ValidationError{Field: "session_id", Reason: "missing"}
	}
	return nil
}

// Canonical returns the canonical JSON export form of the record. The same
// bytes back the stored value and the size estimate.
func (r *Record) Canonical() ([]byte, error) {
	return json.Marshal(r)
}

// EstimatedSize measures the canonical serialization length. Approximate by
// design: it drives threshold comparisons, not exact accounting.
func (r *Record) EstimatedSize() int {
	b, err := r.Canonical()
	if err != nil {
		return 0
	}
	return len(b)
}

// FromCanonical decodes a record from its canonical JSON form.
func FromCanonical(b []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
