package stories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"datakit/core/reconcile"
	"datakit/core/storage"
	"datakit/core/store"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrNotFound is returned when a story is not in the mirror or at the source.
	ErrNotFound = errors.New("story not found")

	// ErrStorageDisabled is returned by snapshot operations without object storage.
	ErrStorageDisabled = errors.New("object storage is disabled")

	// ErrUnsupported is returned when the source cannot fetch single items.
	ErrUnsupported = errors.New("operation not supported by source")
)

// RefreshOptions controls one refresh.
type RefreshOptions struct {
	reconcile.Options
	// Force bypasses the minimum refresh interval.
	Force bool
}

// Report describes one refresh pass.
type Report struct {
	Source    string         `json:"source"`
	Mode      reconcile.Mode `json:"mode"`
	DryRun    bool           `json:"dry_run"`
	Fetched   int            `json:"fetched"`
	Inserted  int            `json:"inserted"`
	Updated   int            `json:"updated"`
	Deleted   int            `json:"deleted"`
	Unchanged int            `json:"unchanged"`
	Skipped   int            `json:"skipped"`
	Failures  []string       `json:"failures,omitempty"`
	Error     string         `json:"error,omitempty"`
	Started   time.Time      `json:"started"`
	Finished  time.Time      `json:"finished"`
	// Cached is set when the report of an earlier refresh was reused.
	Cached bool `json:"cached"`
}

func newReport(source string, opts reconcile.Options, fetched int, res *reconcile.Result[int64], started time.Time, err error) *Report {
	r := &Report{
		Source:   source,
		Mode:     opts.Mode,
		DryRun:   opts.DryRun,
		Fetched:  fetched,
		Started:  started,
		Finished: time.Now(),
	}
	if r.Mode == "" {
		r.Mode = reconcile.ModeTransactional
	}
	if res != nil {
		r.Inserted = res.Inserted
		r.Updated = res.Updated
		r.Deleted = res.Deleted
		r.Unchanged = res.Unchanged
		r.Skipped = res.Skipped
		for _, f := range res.Failures {
			r.Failures = append(r.Failures, f.Message())
		}
	}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// Changed returns the number of records written.
func (r *Report) Changed() int {
	return r.Inserted + r.Updated + r.Deleted
}

// Service mirrors the source into the local story table.
type Service struct {
	ctx    *store.Context
	repo   *store.Repo[Story, int64]
	source Source
	client storage.Client
	bucket string
	object string
	sync   SyncConfig
	logger *zap.Logger

	sf   singleflight.Group
	mu   sync.RWMutex
	last *Report
}

// Options wires a Service.
type Options struct {
	// Context is the unit of work refreshes run on, usually the container's main context.
	Context *store.Context
	// Source is the authoritative story set.
	Source Source
	// Storage is the snapshot object store. Nil disables snapshot export.
	Storage storage.Client
	// Bucket holds snapshots.
	Bucket string
	// SnapshotObject is the object name snapshots are exported to.
	SnapshotObject string
	// Sync configures the refresh mode and intervals.
	Sync SyncConfig
	// Logger receives refresh reports.
	Logger *zap.Logger
}

// NewService creates a story service.
func NewService(opts Options) (*Service, error) {
	if opts.Context == nil {
		return nil, fmt.Errorf("stories service requires a store context")
	}
	if opts.Source == nil {
		return nil, fmt.Errorf("stories service requires a source")
	}
	if _, err := reconcile.ParseMode(opts.Sync.Mode); err != nil {
		return nil, err
	}

	repo, err := store.NewRepo[Story, int64](opts.Context)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	object := opts.SnapshotObject
	if object == "" {
		object = "snapshots/stories.json"
	}

	return &Service{
		ctx:    opts.Context,
		repo:   repo,
		source: opts.Source,
		client: opts.Storage,
		bucket: opts.Bucket,
		object: object,
		sync:   opts.Sync,
		logger: logger.With(zap.String("feature", "stories")),
	}, nil
}

// Mode returns the configured reconcile mode.
func (s *Service) Mode() reconcile.Mode {
	mode, _ := reconcile.ParseMode(s.sync.Mode)
	return mode
}

// Refresh fetches the source and reconciles the mirror against it.
// Concurrent refreshes with the same options share one pass. A successful report
// younger than the minimum interval is returned as is unless opts.Force is set.
// A failed fetch leaves the mirror untouched.
func (s *Service) Refresh(ctx context.Context, opts RefreshOptions) (*Report, error) {
	if opts.Mode == "" {
		opts.Mode = s.Mode()
	}

	if !opts.Force && !opts.DryRun {
		if last := s.fresh(); last != nil {
			return last, nil
		}
	}

	key := fmt.Sprintf("%s/%t", opts.Mode, opts.DryRun)
	v, err, _ := s.sf.Do(key, func() (any, error) {
		if !opts.Force && !opts.DryRun {
			if last := s.fresh(); last != nil {
				return last, nil
			}
		}
		return s.refresh(ctx, opts.Options)
	})
	report, _ := v.(*Report)
	return report, err
}

func (s *Service) refresh(ctx context.Context, opts reconcile.Options) (*Report, error) {
	started := time.Now()

	payloads, err := s.source.Fetch(ctx)
	if err != nil {
		err = fmt.Errorf("failed to fetch stories from %s: %w", s.source.Name(), err)
		s.logger.Error("Story refresh failed", zap.String("source", s.source.Name()), zap.Error(err))
		return newReport(s.source.Name(), opts, 0, nil, started, err), err
	}

	var res *reconcile.Result[int64]
	err = s.ctx.PerformAndWait(ctx, func(*store.Context) error {
		var rerr error
		res, rerr = reconcile.ReconcileMany(ctx, s.repo, Adapter{}, payloads, opts)
		return rerr
	})

	report := newReport(s.source.Name(), opts, len(payloads), res, started, err)
	if !opts.DryRun && err == nil {
		s.remember(report)
	}
	return report, s.logReport(report, err)
}

// Plan is a refresh computed against one fetch of the source. Apply commits exactly
// these decisions, so a confirmed plan is the one written.
type Plan struct {
	mode    reconcile.Mode
	fetched int
	plan    *reconcile.Plan[Payload, Story, int64]

	// Report lists the planned changes as a dry run.
	Report *Report
}

// Plan fetches the source once and computes the changes a refresh in mode would make.
// Nothing is written.
func (s *Service) Plan(ctx context.Context, mode reconcile.Mode) (*Plan, error) {
	if mode == "" {
		mode = s.Mode()
	}
	started := time.Now()
	opts := reconcile.Options{Mode: mode, DryRun: true}

	payloads, err := s.source.Fetch(ctx)
	if err != nil {
		err = fmt.Errorf("failed to fetch stories from %s: %w", s.source.Name(), err)
		s.logger.Error("Story refresh failed", zap.String("source", s.source.Name()), zap.Error(err))
		return nil, err
	}

	var plan *reconcile.Plan[Payload, Story, int64]
	var res *reconcile.Result[int64]
	err = s.ctx.PerformAndWait(ctx, func(*store.Context) error {
		var perr error
		if plan, perr = reconcile.BuildPlan(ctx, s.repo, Adapter{}, payloads); perr != nil {
			return perr
		}
		res, perr = reconcile.ApplyPlan(ctx, s.repo, plan, opts)
		return perr
	})
	if err != nil {
		return nil, s.logReport(newReport(s.source.Name(), opts, len(payloads), res, started, err), err)
	}

	report := newReport(s.source.Name(), opts, len(payloads), res, started, nil)
	return &Plan{mode: mode, fetched: len(payloads), plan: plan, Report: report}, s.logReport(report, nil)
}

// Apply commits the decisions of p. The source is not fetched again.
func (s *Service) Apply(ctx context.Context, p *Plan) (*Report, error) {
	if p == nil || p.plan == nil {
		return nil, errors.New("refresh plan is empty")
	}
	started := time.Now()
	opts := reconcile.Options{Mode: p.mode}

	var res *reconcile.Result[int64]
	err := s.ctx.PerformAndWait(ctx, func(*store.Context) error {
		var aerr error
		res, aerr = reconcile.ApplyPlan(ctx, s.repo, p.plan, opts)
		return aerr
	})

	report := newReport(s.source.Name(), opts, p.fetched, res, started, err)
	if err == nil {
		s.remember(report)
	}
	return report, s.logReport(report, err)
}

// logReport logs a finished pass and returns err.
func (s *Service) logReport(report *Report, err error) error {
	fields := []zap.Field{
		zap.String("source", report.Source),
		zap.String("mode", string(report.Mode)),
		zap.Bool("dry_run", report.DryRun),
		zap.Int("fetched", report.Fetched),
		zap.Int("inserted", report.Inserted),
		zap.Int("updated", report.Updated),
		zap.Int("deleted", report.Deleted),
		zap.Int("unchanged", report.Unchanged),
		zap.Int("skipped", report.Skipped),
		zap.Duration("took", report.Finished.Sub(report.Started)),
	}
	if err != nil {
		s.logger.Error("Story refresh failed", append(fields, zap.Error(err))...)
		return err
	}
	s.logger.Info("Stories refreshed", fields...)
	return nil
}

// fresh returns a copy of the last report while it is within the minimum interval.
func (s *Service) fresh() *Report {
	ttl := s.sync.MinInterval()
	if ttl <= 0 {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil || time.Since(s.last.Finished) > ttl {
		return nil
	}
	cached := *s.last
	cached.Cached = true
	return &cached
}

func (s *Service) remember(r *Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = r
}

// LastReport returns the last successful non-dry-run report, or nil.
func (s *Service) LastReport() *Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return nil
	}
	r := *s.last
	return &r
}

// RefreshOne fetches a single story from the source and inserts or updates it.
// Other stories are left alone.
func (s *Service) RefreshOne(ctx context.Context, id int64) (*reconcile.Result[int64], error) {
	items, ok := s.source.(ItemSource)
	if !ok {
		return nil, fmt.Errorf("%w: %s cannot fetch single items", ErrUnsupported, s.source.Name())
	}

	payload, err := items.Item(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch story %d: %w", id, err)
	}
	if payload == nil {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	var res *reconcile.Result[int64]
	err = s.ctx.PerformAndWait(ctx, func(*store.Context) error {
		var rerr error
		res, rerr = reconcile.ReconcileOne(ctx, s.repo, Adapter{}, payload)
		return rerr
	})
	if err != nil {
		return res, err
	}

	s.logger.Info("Story refreshed",
		zap.Int64("id", id),
		zap.Int("inserted", res.Inserted),
		zap.Int("updated", res.Updated),
		zap.Int("skipped", res.Skipped))
	return res, nil
}

// List returns up to limit stories, newest first. A limit of zero returns every story.
func (s *Service) List(ctx context.Context, limit int) ([]*Story, error) {
	return s.repo.All(ctx, store.Query{
		Order: []store.Order{{Column: "time", Desc: true}, {Column: "story_id"}},
		Limit: limit,
	})
}

// Get returns one story from the mirror.
func (s *Service) Get(ctx context.Context, id int64) (*Story, error) {
	story, err := s.repo.FindOne(ctx, id)
	if err != nil {
		return nil, err
	}
	if story == nil {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return story, nil
}

// Count returns the number of mirrored stories.
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx, store.Query{})
}

// Snapshot describes an exported snapshot object.
type Snapshot struct {
	Bucket  string `json:"bucket"`
	Object  string `json:"object"`
	Stories int    `json:"stories"`
	Size    int64  `json:"size"`
}

// ExportSnapshot writes the whole mirror to object storage in source wire format,
// so it can be read back by SnapshotSource.
func (s *Service) ExportSnapshot(ctx context.Context) (*Snapshot, error) {
	if s.client == nil {
		return nil, ErrStorageDisabled
	}

	all, err := s.repo.AllOrdered(ctx)
	if err != nil {
		return nil, err
	}
	payloads := make([]Payload, 0, len(all))
	for _, story := range all {
		payloads = append(payloads, story.Payload())
	}

	if err := storage.EnsureBucket(ctx, s.client, s.bucket, ""); err != nil {
		return nil, err
	}
	info, err := storage.PutJSON(ctx, s.client, s.bucket, s.object, payloads)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Snapshot exported",
		zap.String("bucket", s.bucket),
		zap.String("object", s.object),
		zap.Int("stories", len(payloads)))
	return &Snapshot{Bucket: s.bucket, Object: s.object, Stories: len(payloads), Size: info.Size}, nil
}

// Snapshots lists exported snapshot objects under the snapshot object's directory.
func (s *Service) Snapshots(ctx context.Context) ([]minio.ObjectInfo, error) {
	if s.client == nil {
		return nil, ErrStorageDisabled
	}
	prefix := ""
	if i := strings.LastIndex(s.object, "/"); i >= 0 {
		prefix = s.object[:i+1]
	}
	return storage.List(ctx, s.client, s.bucket, prefix)
}

// Run refreshes every interval until ctx is done. Failures are logged and retried
// on the next tick.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("Background refresh started", zap.Duration("interval", interval))
	for {
		if _, err := s.Refresh(ctx, RefreshOptions{Force: true}); err != nil && ctx.Err() == nil {
			s.logger.Warn("Background refresh failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			s.logger.Info("Background refresh stopped")
			return
		case <-ticker.C:
		}
	}
}
