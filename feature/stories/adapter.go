package stories

import (
	"fmt"
	"time"

	"datakit/core/reconcile"
	"datakit/core/utils"
)

// Adapter binds Story to the reconciler. Payloads are keyed by their "id" field.
type Adapter struct{}

var (
	_ reconcile.Adapter[Payload, Story, int64] = Adapter{}
	_ reconcile.Comparer[Story]                = Adapter{}
)

// Name returns the adapter name.
func (Adapter) Name() string {
	return "stories"
}

// InputKey returns the payload id. The payload is malformed when the id is missing or
// not an integer, or when any mapped field has the wrong type.
func (Adapter) InputKey(in Payload) (int64, error) {
	raw, ok := in["id"]
	if !ok || raw == nil {
		return 0, fmt.Errorf("%w: missing id", reconcile.ErrMalformedInput)
	}
	id, err := utils.Int64(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: id: %w", reconcile.ErrMalformedInput, err)
	}
	if _, err := decodeFields(in); err != nil {
		return 0, err
	}
	return id, nil
}

// RecordKey returns the story id.
func (Adapter) RecordKey(rec *Story) int64 {
	return rec.StoryID
}

// NewRecord allocates a story with the given id.
func (Adapter) NewRecord(key int64) *Story {
	return &Story{StoryID: key}
}

// Apply overwrites every mapped field. Absent or null fields reset to zero values.
func (Adapter) Apply(dst *Story, in Payload) {
	f, _ := decodeFields(in)
	dst.Time = f.time
	dst.Title = f.title
	dst.URL = f.url
	dst.By = f.by
	dst.Score = f.score
}

// Equal compares mapped fields, using time.Time.Equal for the timestamp.
func (Adapter) Equal(a, b *Story) bool {
	return a.StoryID == b.StoryID &&
		a.Time.Equal(b.Time) &&
		a.Title == b.Title &&
		a.URL == b.URL &&
		a.By == b.By &&
		a.Score == b.Score
}

type fields struct {
	time  time.Time
	title string
	url   string
	by    string
	score int64
}

func decodeFields(in Payload) (fields, error) {
	var f fields
	var err error

	if v, ok := in["time"]; ok && v != nil {
		if f.time, err = utils.UnixTime(v); err != nil {
			return fields{}, fmt.Errorf("%w: time: %w", reconcile.ErrMalformedInput, err)
		}
	}
	for key, dst := range map[string]*string{"title": &f.title, "url": &f.url, "by": &f.by} {
		if v, ok := in[key]; ok && v != nil {
			if *dst, err = utils.String(v); err != nil {
				return fields{}, fmt.Errorf("%w: %s: %w", reconcile.ErrMalformedInput, key, err)
			}
		}
	}
	if v, ok := in["score"]; ok && v != nil {
		if f.score, err = utils.Int64(v); err != nil {
			return fields{}, fmt.Errorf("%w: score: %w", reconcile.ErrMalformedInput, err)
		}
	}
	return f, nil
}
