package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/openlibrary-harvester/internal/progress"
)

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 500
	streamHeartbeat    = 15 * time.Second
)

// EventSource provides retained progress events and live subscriptions.
type EventSource interface {
	Recent(limit int) []progress.Event
	Subscribe(buffer int) (<-chan progress.Event, func())
}

// ProgressHandler exposes read-only progress endpoints backed by the
// recent-events sink.
type ProgressHandler struct {
	source    EventSource
	heartbeat time.Duration
	logger    *zap.Logger
}

// NewProgressHandler wires the event source and logger.
func NewProgressHandler(source EventSource, logger *zap.Logger) *ProgressHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressHandler{
		source:    source,
		heartbeat: streamHeartbeat,
		logger:    logger,
	}
}

// Recent handles GET /v1/progress/recent?limit=&kind=. It returns a
// JSON object {"events": [...]} with the newest events first, 400 for
// invalid parameters, or 503 when no event source is wired. The kind
// filter narrows the returned window; it does not reach further back.
func (h *ProgressHandler) Recent(w http.ResponseWriter, r *http.Request) {
	if h.source == nil {
		writeError(w, http.StatusServiceUnavailable, "progress source unavailable")
		return
	}
	limit, err := parseLimit(r, defaultRecentLimit, maxRecentLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var kind progress.Kind
	if kindParam := strings.TrimSpace(r.URL.Query().Get("kind")); kindParam != "" {
		kind, err = parseKind(kindParam)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	events := h.source.Recent(limit)
	if kind != "" {
		filtered := events[:0]
		for _, evt := range events {
			if evt.Kind == kind {
				filtered = append(filtered, evt)
			}
		}
		events = filtered
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": toEventDTOs(events),
	})
}

// Stream handles GET /v1/progress/stream. It serves a Server-Sent
// Events feed of progress events as they arrive, with periodic
// heartbeat comments so intermediaries keep the connection open. The
// stream ends when the client disconnects or the sink shuts down.
func (h *ProgressHandler) Stream(w http.ResponseWriter, r *http.Request) {
	if h.source == nil {
		writeError(w, http.StatusServiceUnavailable, "progress source unavailable")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	events, cancel := h.source.Subscribe(0)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, open := <-events:
			if !open {
				return
			}
			data, err := json.Marshal(toEventDTO(evt))
			if err != nil {
				h.logger.Error("marshal progress event", zap.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Kind, data); err != nil {
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := io.WriteString(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func parseLimit(r *http.Request, def, maxLimit int) (int, error) {
	limit := def
	if limStr := r.URL.Query().Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, errors.New("invalid limit")
		}
		if val > maxLimit {
			val = maxLimit
		}
		limit = val
	}
	return limit, nil
}

func parseKind(input string) (progress.Kind, error) {
	kind := progress.Kind(strings.ToUpper(input))
	switch kind {
	case progress.KindRunStart, progress.KindRunDone, progress.KindRunError,
		progress.KindPageStart, progress.KindPageDone, progress.KindPageSkip,
		progress.KindRecordAppend, progress.KindDuplicateSkip, progress.KindEnrichSkip:
		return kind, nil
	default:
		return "", errors.New("invalid kind")
	}
}

func toEventDTOs(in []progress.Event) []eventDTO {
	out := make([]eventDTO, 0, len(in))
	for _, evt := range in {
		out = append(out, toEventDTO(evt))
	}
	return out
}

func toEventDTO(evt progress.Event) eventDTO {
	return eventDTO{
		RunID:  evt.RunID,
		At:     evt.At,
		Kind:   string(evt.Kind),
		Page:   evt.Page,
		WorkID: evt.WorkID,
		Count:  evt.Count,
		DurMS:  evt.Dur.Milliseconds(),
		Note:   evt.Note,
	}
}

type eventDTO struct {
	RunID  string    `json:"run_id"`
	At     time.Time `json:"at"`
	Kind   string    `json:"kind"`
	Page   int       `json:"page,omitempty"`
	WorkID string    `json:"work_id,omitempty"`
	Count  int64     `json:"count,omitempty"`
	DurMS  int64     `json:"dur_ms,omitempty"`
	Note   string    `json:"note,omitempty"`
}
