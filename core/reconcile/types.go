package reconcile

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedInput marks an input whose identifier or mapped fields cannot be decoded.
	ErrMalformedInput = errors.New("malformed input")

	// ErrCommitFailed marks a mutation the store could not commit.
	ErrCommitFailed = errors.New("store commit failed")

	// ErrOrderingViolation is returned when the store's ordered scan disagrees with
	// the canonical identifier comparator.
	ErrOrderingViolation = errors.New("ordering violation")

	// ErrDuplicateKey marks an input whose identifier already appeared earlier in the batch.
	ErrDuplicateKey = errors.New("duplicate identifier")
)

// Mode selects how decisions reach the store.
type Mode string

const (
	// ModeTransactional accumulates every decision and commits them once.
	// Either all decisions are persisted or none are.
	ModeTransactional Mode = "transactional"

	// ModeStreaming commits each decision as soon as it is made.
	// It is not atomic: readers can observe a partially reconciled store and a
	// failure or cancellation leaves the decisions applied so far in place.
	ModeStreaming Mode = "streaming"
)

// ParseMode converts a configuration string into a Mode.
// An empty string selects ModeTransactional.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeTransactional:
		return ModeTransactional, nil
	case ModeStreaming:
		return ModeStreaming, nil
	default:
		return "", fmt.Errorf("unknown reconcile mode %q", s)
	}
}

// ActionType represents the type of mutation decided by the merge walk.
type ActionType string

const (
	// ActionInsert creates a record for an input with no persisted counterpart.
	ActionInsert ActionType = "insert"
	// ActionUpdate overwrites a persisted record with its matching input.
	ActionUpdate ActionType = "update"
	// ActionDelete removes a persisted record absent from the input set.
	ActionDelete ActionType = "delete"
	// ActionUnchanged marks a match whose fields already equal the input.
	// Nothing is written for it.
	ActionUnchanged ActionType = "unchanged"
	// ActionSkip is reported for inputs that were not reconciled.
	ActionSkip ActionType = "skip"
)

// Action represents a planned mutation.
type Action[I any, T any, K comparable] struct {
	// Type specifies the action to perform.
	Type ActionType

	// Key is the record identifier.
	Key K

	// Index is the position of the input in the caller's slice, or -1 for deletes.
	Index int

	// Input is the authoritative payload for inserts, updates and unchanged matches.
	Input I

	// Record is the record to write: a new record for inserts, an updated copy of the
	// persisted record for updates, and the persisted record for deletes and unchanged
	// matches.
	Record *T
}

// Outcome reports what happened to one input or persisted record.
type Outcome[K comparable] struct {
	Op    ActionType `json:"op"`
	Key   K          `json:"key"`
	Index int        `json:"index"`
	Err   error      `json:"-"`
}

// Message returns the outcome error message, or an empty string.
func (o Outcome[K]) Message() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// PlanSummary provides aggregate counts for a plan.
type PlanSummary struct {
	Inputs    int `json:"inputs"`
	Existing  int `json:"existing"`
	Inserts   int `json:"inserts"`
	Updates   int `json:"updates"`
	Deletes   int `json:"deletes"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped"`
}

// Plan contains the decisions of one merge walk in ascending identifier order.
type Plan[I any, T any, K comparable] struct {
	// Actions are the insert, update and delete decisions.
	Actions []Action[I, T, K]

	// Skipped holds inputs rejected before the walk (malformed or duplicate).
	Skipped []Outcome[K]

	// Summary provides aggregate counts.
	Summary PlanSummary
}

// Options controls how a reconciliation pass is applied.
type Options struct {
	// Mode selects transactional (default) or streaming application.
	Mode Mode

	// DryRun computes decisions without writing anything.
	DryRun bool
}

func (o Options) mode() Mode {
	if o.Mode == "" {
		return ModeTransactional
	}
	return o.Mode
}

// Result is the structured report of a reconciliation pass.
type Result[K comparable] struct {
	Mode      Mode `json:"mode"`
	DryRun    bool `json:"dry_run"`
	Inserted  int  `json:"inserted"`
	Updated   int  `json:"updated"`
	Deleted   int  `json:"deleted"`
	Unchanged int  `json:"unchanged"`
	Skipped   int  `json:"skipped"`

	// Outcomes lists every decision and skip in the order they were made.
	Outcomes []Outcome[K] `json:"-"`

	// Failures lists the outcomes that carry an error, skips included.
	Failures []Outcome[K] `json:"-"`
}

// Changed returns the number of applied inserts, updates and deletes.
func (r *Result[K]) Changed() int {
	return r.Inserted + r.Updated + r.Deleted
}

// Err joins every failure of the pass, or returns nil.
func (r *Result[K]) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, fmt.Errorf("%s %v: %w", f.Op, f.Key, f.Err))
	}
	return errors.Join(errs...)
}

func (r *Result[K]) record(o Outcome[K]) {
	r.Outcomes = append(r.Outcomes, o)
	if o.Err != nil {
		r.Failures = append(r.Failures, o)
		if o.Op == ActionSkip {
			r.Skipped++
		}
		return
	}
	switch o.Op {
	case ActionInsert:
		r.Inserted++
	case ActionUpdate:
		r.Updated++
	case ActionDelete:
		r.Deleted++
	case ActionUnchanged:
		r.Unchanged++
	case ActionSkip:
		r.Skipped++
	}
}
