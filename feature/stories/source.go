package stories

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"datakit/core/storage"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// ErrFetchFailed marks a source that could not deliver a complete item set.
var ErrFetchFailed = errors.New("fetch failed")

// Source delivers the authoritative story set.
// Fetch must fail rather than return a partial set: a missing item would be deleted
// from the mirror.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]Payload, error)
}

// ItemSource is implemented by sources that can fetch a single item.
// A nil Payload means the item does not exist.
type ItemSource interface {
	Item(ctx context.Context, id int64) (Payload, error)
}

// NewSource builds the source selected by cfg.Kind.
func NewSource(cfg SourceConfig, client storage.Client, bucket string, logger *zap.Logger) (Source, error) {
	switch cfg.Kind {
	case SourceHackerNews, "":
		return NewHackerNewsSource(cfg, logger), nil
	case SourceSnapshot:
		if client == nil {
			return nil, fmt.Errorf("snapshot source requires object storage")
		}
		return NewSnapshotSource(client, bucket, cfg.SnapshotObject), nil
	default:
		return nil, fmt.Errorf("unknown story source %q", cfg.Kind)
	}
}

// HackerNewsSource reads the top stories from the Hacker News Firebase API.
type HackerNewsSource struct {
	baseURL     string
	limit       int
	concurrency int
	client      *http.Client
	limiter     *rate.Limiter
	logger      *zap.Logger
}

// NewHackerNewsSource creates a source for cfg.BaseURL.
func NewHackerNewsSource(cfg SourceConfig, logger *zap.Logger) *HackerNewsSource {
	if logger == nil {
		logger = zap.NewNop()
	}

	limit := cfg.Limit
	if limit <= 0 {
		limit = 40
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 8
	}
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 10
	}

	rps := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		rps = rate.Limit(cfg.RequestsPerSecond)
	}

	return &HackerNewsSource{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		limit:       limit,
		concurrency: concurrency,
		client:      &http.Client{Timeout: time.Duration(timeout) * time.Second},
		limiter:     rate.NewLimiter(rps, concurrency),
		logger:      logger,
	}
}

// Name returns the source name.
func (s *HackerNewsSource) Name() string {
	return SourceHackerNews
}

// TopStories returns the ids of the current top stories, best first.
func (s *HackerNewsSource) TopStories(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := s.getJSON(ctx, "/v0/topstories.json", &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// Item fetches one item. Deleted or unknown items come back as JSON null and yield nil.
func (s *HackerNewsSource) Item(ctx context.Context, id int64) (Payload, error) {
	var p Payload
	if err := s.getJSON(ctx, fmt.Sprintf("/v0/item/%d.json", id), &p); err != nil {
		return nil, err
	}
	return p, nil
}

// Fetch returns the first limit top stories in top-list order.
// Items are fetched concurrently; any failed request fails the whole fetch.
func (s *HackerNewsSource) Fetch(ctx context.Context) ([]Payload, error) {
	ids, err := s.TopStories(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) > s.limit {
		ids = ids[:s.limit]
	}

	items := make([]Payload, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			p, err := s.Item(gctx, id)
			if err != nil {
				return err
			}
			items[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	payloads := compact(items)
	s.logger.Debug("Fetched stories",
		zap.Int("listed", len(ids)),
		zap.Int("items", len(payloads)))
	return payloads, nil
}

func (s *HackerNewsSource) getJSON(ctx context.Context, path string, v any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: GET %s: %w", ErrFetchFailed, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: GET %s: HTTP %d", ErrFetchFailed, path, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: GET %s: %w", ErrFetchFailed, path, err)
	}
	if err := decode(data, v); err != nil {
		return fmt.Errorf("%w: GET %s: invalid JSON: %w", ErrFetchFailed, path, err)
	}
	return nil
}

// SnapshotSource reads a JSON array of payloads from object storage.
type SnapshotSource struct {
	client storage.Client
	bucket string
	object string
}

// NewSnapshotSource creates a source reading bucket/object.
func NewSnapshotSource(client storage.Client, bucket, object string) *SnapshotSource {
	return &SnapshotSource{client: client, bucket: bucket, object: object}
}

// Name returns the source name.
func (s *SnapshotSource) Name() string {
	return SourceSnapshot
}

// Fetch downloads and decodes the snapshot. Null entries are dropped.
func (s *SnapshotSource) Fetch(ctx context.Context) ([]Payload, error) {
	var payloads []Payload
	if err := storage.GetJSON(ctx, s.client, s.bucket, s.object, &payloads); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	return compact(payloads), nil
}
