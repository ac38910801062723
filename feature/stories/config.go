package stories

import "time"

const (
	// SourceHackerNews fetches stories from the Hacker News Firebase API.
	SourceHackerNews = "hackernews"
	// SourceSnapshot reads stories from a snapshot object in storage.
	SourceSnapshot = "snapshot"
)

// SourceConfig holds configuration for the authoritative story source.
type SourceConfig struct {
	// Kind selects the source (hackernews, snapshot).
	Kind string `mapstructure:"kind" default:"hackernews"`
	// BaseURL is the Hacker News API root.
	BaseURL string `mapstructure:"base_url" default:"https://hacker-news.firebaseio.com"`
	// Limit is how many top stories are mirrored.
	Limit int `mapstructure:"limit" default:"40"`
	// Concurrency bounds parallel item fetches.
	Concurrency int `mapstructure:"concurrency" default:"8"`
	// RequestsPerSecond paces outbound requests. Zero disables pacing.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" default:"20"`
	// TimeoutSeconds bounds each outbound request.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"10"`
	// SnapshotObject is the object name used for snapshot export and the snapshot source.
	SnapshotObject string `mapstructure:"snapshot_object" default:"snapshots/stories.json"`
}

// SyncConfig holds configuration for reconciliation passes.
type SyncConfig struct {
	// Mode is the reconcile mode (transactional, streaming).
	Mode string `mapstructure:"mode" default:"transactional"`
	// IntervalSeconds schedules background refreshes. Zero refreshes on demand only.
	IntervalSeconds int `mapstructure:"interval_seconds" default:"0"`
	// MinIntervalSeconds is how long a successful refresh report is reused
	// before another unforced refresh hits the source.
	MinIntervalSeconds int `mapstructure:"min_interval_seconds" default:"5"`
}

// Interval returns the background refresh interval.
func (c SyncConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// MinInterval returns how long a refresh report stays fresh.
func (c SyncConfig) MinInterval() time.Duration {
	return time.Duration(c.MinIntervalSeconds) * time.Second
}
