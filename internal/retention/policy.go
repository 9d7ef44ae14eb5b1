package retention

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// Policy bounds the store along three independent axes. A nil field means
// the axis is unbounded; an all-nil policy retains everything.
type Policy struct {
	MaxAge        *time.Duration `yaml:"max_age" json:"max_age"`
	MaxTotalBytes *int64         `yaml:"max_total_bytes" json:"max_total_bytes"`
	MaxRecords    *int64         `yaml:"max_records" json:"max_records"`
}

func durationPtr(d time.Duration) *time.Duration { return &d }
func int64Ptr(n int64) *int64                    { return &n }

// Presets, each axis strictly tighter than the previous.
func Conservative() Policy {
	return Policy{
		MaxAge:        durationPtr(90 * 24 * time.Hour),
		MaxTotalBytes: int64Ptr(1 << 30),
		MaxRecords:    int64Ptr(1_000_000),
	}
}

func Balanced() Policy {
	return Policy{
		MaxAge:        durationPtr(30 * 24 * time.Hour),
		MaxTotalBytes: int64Ptr(256 << 20),
		MaxRecords:    int64Ptr(250_000),
	}
}

func Aggressive() Policy {
	return Policy{
		MaxAge:        durationPtr(7 * 24 * time.Hour),
		MaxTotalBytes: int64Ptr(64 << 20),
		MaxRecords:    int64Ptr(50_000),
	}
}

// Preset resolves a named preset. Unknown names fall back to Balanced.
func Preset(name string) Policy {
	switch name {
	case "conservative":
		return Conservative()
	case "aggressive":
		return Aggressive()
	default:
		return Balanced()
	}
}

// Enabled reports whether any axis is bounded.
func (p Policy) Enabled() bool {
	return p.MaxAge != nil || p.MaxTotalBytes != nil || p.MaxRecords != nil
}

// Validate rejects non-positive bounds; a bound of zero would silently
// drain the store on every pass.
func (p Policy) Validate() error {
	if p.MaxAge != nil && *p.MaxAge <= 0 {
		return fmt.Errorf("retention: max_age must be positive, got %s", *p.MaxAge)
	}
	if p.MaxTotalBytes != nil && *p.MaxTotalBytes <= 0 {
		return fmt.Errorf("retention: max_total_bytes must be positive, got %d", *p.MaxTotalBytes)
	}
	if p.MaxRecords != nil && *p.MaxRecords <= 0 {
		return fmt.Errorf("retention: max_records must be positive, got %d", *p.MaxRecords)
	}
	return nil
}

// String renders the policy for logs and CLI output.
func (p Policy) String() string {
	if !p.Enabled() {
		return "retain everything"
	}
	out := ""
	if p.MaxAge != nil {
		out += fmt.Sprintf("age<=%s ", p.MaxAge)
	}
	if p.MaxTotalBytes != nil {
		out += fmt.Sprintf("bytes<=%s ", humanize.IBytes(uint64(*p.MaxTotalBytes)))
	}
	if p.MaxRecords != nil {
		out += fmt.Sprintf("records<=%d ", *p.MaxRecords)
	}
	return out[:len(out)-1]
}
