// Package progress defines the event structures emitted during a harvest run.
package progress

import (
	"errors"
	"fmt"
	"time"
)

// Kind denotes the milestone represented by an Event.
type Kind string

// Supported progress kinds.
const (
	KindRunStart      Kind = "RUN_START"
	KindRunDone       Kind = "RUN_DONE"
	KindRunError      Kind = "RUN_ERROR"
	KindPageStart     Kind = "PAGE_START"
	KindPageDone      Kind = "PAGE_DONE"
	KindPageSkip      Kind = "PAGE_SKIP"
	KindRecordAppend  Kind = "RECORD_APPEND"
	KindDuplicateSkip Kind = "DUPLICATE_SKIP"
	KindEnrichSkip    Kind = "ENRICH_SKIP"
)

// Event captures a single milestone of harvester progress.
type Event struct {
	// RunID identifies the harvest run that produced the event.
	RunID string
	// At is the UTC timestamp recorded by the emitter.
	At time.Time
	// Kind denotes which lifecycle, page, or record milestone occurred.
	Kind Kind
	// Page is the 1-based catalog page for page- and record-scoped kinds.
	Page int
	// WorkID scopes record events to a single work identifier.
	WorkID string
	// Count carries the number of records affected by batch milestones.
	Count int64
	// Dur captures execution latency for page and run completions.
	Dur time.Duration
	// Note lets emitters attach low-volume debug context (e.g. failure kind).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == "" {
		return errors.New("run id is required")
	}
	if e.At.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Kind {
	case KindRunStart, KindRunDone, KindRunError:
	case KindPageStart, KindPageDone, KindPageSkip:
		if e.Page < 1 {
			return fmt.Errorf("%s requires a page number", e.Kind)
		}
	case KindRecordAppend, KindDuplicateSkip, KindEnrichSkip:
		if e.Page < 1 {
			return fmt.Errorf("%s requires a page number", e.Kind)
		}
		if e.WorkID == "" {
			return fmt.Errorf("%s requires a work id", e.Kind)
		}
	default:
		return fmt.Errorf("unknown kind %q", e.Kind)
	}
	if e.Count < 0 {
		return errors.New("count must be >= 0")
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
