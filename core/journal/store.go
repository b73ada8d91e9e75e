// Package journal persists the outcome of solve runs so that past
// schedules can be listed and compared.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/unitcommit/core/model"
)

// RunRecord captures one finished solve run.
type RunRecord struct {
	RunID      string          `json:"run_id"`
	Mode       string          `json:"mode"`
	Status     string          `json:"status"`
	Started    time.Time       `json:"started"`
	Finished   time.Time       `json:"finished"`
	Generators int             `json:"generators"`
	Periods    int             `json:"periods"`
	Iterations int             `json:"iterations"`
	Cuts       int             `json:"cuts"`
	TotalCost  float64         `json:"total_cost"`
	LowerBound float64         `json:"lower_bound"`
	UpperBound float64         `json:"upper_bound"`
	Error      string          `json:"error,omitempty"`
	Schedule   *model.Schedule `json:"schedule,omitempty"`
}

// RunQuery defines filters for retrieving records. Zero values match
// everything; Limit keeps the most recent records.
type RunQuery struct {
	Start  time.Time
	End    time.Time
	RunID  string
	Mode   string
	Status string
	Limit  int
}

// Matches reports whether r passes every filter of q.
func (q RunQuery) Matches(r RunRecord) bool {
	if !q.Start.IsZero() && r.Started.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Started.After(q.End) {
		return false
	}
	if q.RunID != "" && r.RunID != q.RunID {
		return false
	}
	if q.Mode != "" && r.Mode != q.Mode {
		return false
	}
	if q.Status != "" && r.Status != q.Status {
		return false
	}
	return true
}

// limit keeps the last n records of recs, all of them when n ≤ 0.
func limit(recs []RunRecord, n int) []RunRecord {
	if n <= 0 || len(recs) <= n {
		return recs
	}
	return recs[len(recs)-n:]
}

// Store persists RunRecords and supports querying.
type Store interface {
	Append(ctx context.Context, rec RunRecord) error
	Query(ctx context.Context, q RunQuery) ([]RunRecord, error)
	Close() error
}

// Config defines settings for run journal storage and rotation.
type Config struct {
	// Backend selects the store type: "jsonl", "rotating", "sqlite" or "none".
	Backend string `json:"backend"`
	// Path is the file location of the store.
	Path string `json:"path"`
	// MaxSizeMB triggers rotation when the file exceeds this size in megabytes.
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" {
		switch c.Backend {
		case "sqlite":
			c.Path = "runs.db"
		default:
			c.Path = "runs.jsonl"
		}
	}
	if c.Backend == "rotating" && c.MaxSizeMB == 0 {
		c.MaxSizeMB = 10
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	switch c.Backend {
	case "jsonl", "rotating", "sqlite", "none":
	default:
		return fmt.Errorf("unknown backend %s", c.Backend)
	}
	if c.Backend != "none" && c.Path == "" {
		return fmt.Errorf("path is required")
	}
	if c.MaxSizeMB < 0 || c.MaxBackups < 0 || c.MaxAgeDays < 0 {
		return fmt.Errorf("rotation settings must be non-negative")
	}
	return nil
}

// NopStore drops every record.
type NopStore struct{}

func (NopStore) Append(context.Context, RunRecord) error               { return nil }
func (NopStore) Query(context.Context, RunQuery) ([]RunRecord, error) { return nil, nil }
func (NopStore) Close() error                                         { return nil }
