// Package ingest is the HTTP surface the extension shim posts observed
// page activity to: trigger signals with DOM snapshots, navigation
// events, cookie/storage probes and login response bodies.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hfi/credential-capture-agent/internal/correlate"
	"github.com/hfi/credential-capture-agent/internal/metrics"
)

// Event type discriminators.
const (
	EventSignal     = "signal"
	EventNavigation = "navigation"
	EventPageState  = "page_state"
	EventResponse   = "response"
)

// Signal kind discriminators accepted on the wire.
const (
	KindFormSubmit = "form_submit"
	KindClick      = "click"
	KindEnterKey   = "enter_key"
	KindRequest    = "request"
	KindBlur       = "blur"
)

// Pipeline is the capture pipeline the ingest API feeds. Implemented by
// agent.Agent.
type Pipeline interface {
	HandleFormSubmit(pageURL, snapshot string)
	HandleClick(pageURL, snapshot, targetText, targetAria, targetType string)
	HandleEnterKey(pageURL, snapshot, focusTag string)
	HandleRequest(pageURL, requestURL, snapshot string)
	HandleBlur(pageURL, snapshot string)
	HandleNavigation(ctx context.Context, nav correlate.Navigation) bool
	HandlePageState(ctx context.Context, state correlate.PageState) bool
	HandleResponse(ctx context.Context, status int, body []byte) bool
}

// SignalEvent is one trigger observation from a listener channel.
type SignalEvent struct {
	Kind       string `json:"kind"`
	PageURL    string `json:"page_url"`
	Snapshot   string `json:"snapshot"`
	RequestURL string `json:"request_url,omitempty"`
	TargetText string `json:"target_text,omitempty"`
	TargetAria string `json:"target_aria,omitempty"`
	TargetType string `json:"target_type,omitempty"`
	FocusTag   string `json:"focus_tag,omitempty"`
}

// NavigationEvent reports a completed navigation.
type NavigationEvent struct {
	URL     string `json:"url"`
	FrameID int    `json:"frame_id"`
}

// PageStateEvent reports an in-page probe of cookies and web storage.
type PageStateEvent struct {
	Cookies        string            `json:"cookies"`
	LocalStorage   map[string]string `json:"local_storage"`
	SessionStorage map[string]string `json:"session_storage"`
}

// ResponseEvent carries the status and body of a same-page login call.
type ResponseEvent struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// Event is one entry of an ingest batch; exactly the payload named by
// Type must be present.
type Event struct {
	Type       string           `json:"type"`
	Signal     *SignalEvent     `json:"signal,omitempty"`
	Navigation *NavigationEvent `json:"navigation,omitempty"`
	PageState  *PageStateEvent  `json:"page_state,omitempty"`
	Response   *ResponseEvent   `json:"response,omitempty"`
}

// Rejection names one event of a batch that could not be applied.
type Rejection struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// BatchResult is the ingest response. Confirmed counts the events that
// triggered a login confirmation.
type BatchResult struct {
	BatchID   string      `json:"batch_id"`
	Accepted  int         `json:"accepted"`
	Confirmed int         `json:"confirmed"`
	Rejected  []Rejection `json:"rejected,omitempty"`
}

// Handler serves the ingest routes.
type Handler struct {
	pipeline Pipeline
	log      zerolog.Logger
}

// NewHandler creates an ingest handler over the pipeline.
func NewHandler(pipeline Pipeline, log zerolog.Logger) *Handler {
	return &Handler{pipeline: pipeline, log: log}
}

// Register mounts the ingest routes on rg.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/events", h.PostEvents)
}

// PostEvents applies a batch of events. A malformed event rejects that
// event only; the rest of the batch is still applied.
func (h *Handler) PostEvents(c *gin.Context) {
	var batch struct {
		Events []Event `json:"events"`
	}
	if err := c.ShouldBindJSON(&batch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := BatchResult{BatchID: uuid.NewString()}
	for i, ev := range batch.Events {
		confirmed, err := h.apply(c.Request.Context(), ev)
		if err != nil {
			result.Rejected = append(result.Rejected, Rejection{Index: i, Reason: err.Error()})
			continue
		}
		result.Accepted++
		if confirmed {
			result.Confirmed++
		}
		metrics.IngestEventsTotal.WithLabelValues(ev.Type).Inc()
	}

	h.log.Debug().
		Str("batch_id", result.BatchID).
		Int("accepted", result.Accepted).
		Int("rejected", len(result.Rejected)).
		Msg("ingest batch applied")
	c.JSON(http.StatusOK, result)
}

func (h *Handler) apply(ctx context.Context, ev Event) (bool, error) {
	switch ev.Type {
	case EventSignal:
		if ev.Signal == nil {
			return false, fmt.Errorf("signal event without signal payload")
		}
		return false, h.applySignal(*ev.Signal)
	case EventNavigation:
		if ev.Navigation == nil {
			return false, fmt.Errorf("navigation event without navigation payload")
		}
		return h.pipeline.HandleNavigation(ctx, correlate.Navigation{
			URL:     ev.Navigation.URL,
			FrameID: ev.Navigation.FrameID,
		}), nil
	case EventPageState:
		if ev.PageState == nil {
			return false, fmt.Errorf("page_state event without page_state payload")
		}
		return h.pipeline.HandlePageState(ctx, correlate.PageState{
			Cookies:        ev.PageState.Cookies,
			LocalStorage:   ev.PageState.LocalStorage,
			SessionStorage: ev.PageState.SessionStorage,
		}), nil
	case EventResponse:
		if ev.Response == nil {
			return false, fmt.Errorf("response event without response payload")
		}
		return h.pipeline.HandleResponse(ctx, ev.Response.Status, ev.Response.Body), nil
	default:
		return false, fmt.Errorf("unknown event type %q", ev.Type)
	}
}

func (h *Handler) applySignal(s SignalEvent) error {
	if s.PageURL == "" {
		return fmt.Errorf("signal without page_url")
	}
	switch s.Kind {
	case KindFormSubmit:
		h.pipeline.HandleFormSubmit(s.PageURL, s.Snapshot)
	case KindClick:
		h.pipeline.HandleClick(s.PageURL, s.Snapshot, s.TargetText, s.TargetAria, s.TargetType)
	case KindEnterKey:
		h.pipeline.HandleEnterKey(s.PageURL, s.Snapshot, s.FocusTag)
	case KindRequest:
		if s.RequestURL == "" {
			return fmt.Errorf("request signal without request_url")
		}
		h.pipeline.HandleRequest(s.PageURL, s.RequestURL, s.Snapshot)
	case KindBlur:
		h.pipeline.HandleBlur(s.PageURL, s.Snapshot)
	default:
		return fmt.Errorf("unknown signal kind %q", s.Kind)
	}
	return nil
}
