// Package admin is the CRUD backend over the record collection. The
// response envelope and paging shape match what the existing web client
// consumes.
package admin

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/hfi/credential-capture-agent/internal/records"
	"github.com/hfi/credential-capture-agent/internal/relay"
	"github.com/hfi/credential-capture-agent/internal/storage"
)

const defaultPageSize = 10

// envelope is the wire envelope every admin response is wrapped in.
type envelope struct {
	Code    string `json:"code"`
	Msg     string `json:"msg"`
	Success bool   `json:"success"`
	Fail    bool   `json:"fail"`
	Data    any    `json:"data"`
}

func ok(msg string, data any) envelope {
	return envelope{Code: "200", Msg: msg, Success: true, Data: data}
}

func failure(code, msg string) envelope {
	return envelope{Code: code, Msg: msg, Fail: true}
}

// page is the paged record listing inside the envelope's data field.
type page struct {
	Content          []storage.Record `json:"content"`
	TotalElements    int              `json:"totalElements"`
	TotalPages       int              `json:"totalPages"`
	Size             int              `json:"size"`
	Number           int              `json:"number"`
	NumberOfElements int              `json:"numberOfElements"`
	First            bool             `json:"first"`
	Last             bool             `json:"last"`
	Empty            bool             `json:"empty"`
}

// Handler serves the admin CRUD routes.
type Handler struct {
	store    storage.RecordStore
	upserter *records.Upserter
	notifier relay.Notifier
	log      zerolog.Logger
}

// NewHandler creates an admin handler over the store.
func NewHandler(store storage.RecordStore, upserter *records.Upserter, notifier relay.Notifier, log zerolog.Logger) *Handler {
	if notifier == nil {
		notifier = relay.Nop{}
	}
	return &Handler{store: store, upserter: upserter, notifier: notifier, log: log}
}

// Register mounts the admin routes on rg.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/records", h.List)
	rg.POST("/records", h.Upsert)
	rg.PUT("/records", h.Upsert)
	rg.DELETE("/records/*origin", h.Delete)
}

// List returns a page of records, optionally filtered by username or URL
// substring.
func (h *Handler) List(c *gin.Context) {
	pageNum, _ := strconv.Atoi(c.DefaultQuery("page", "0"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", strconv.Itoa(defaultPageSize)))
	if pageNum < 0 {
		pageNum = 0
	}
	if size <= 0 {
		size = defaultPageSize
	}
	username := c.Query("username")
	urlFilter := c.Query("url")

	all, err := h.store.Load(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("record listing failed")
		c.JSON(http.StatusInternalServerError, failure("500", err.Error()))
		return
	}

	filtered := all[:0:0]
	for _, rec := range all {
		if username != "" && !strings.Contains(rec.Username, username) {
			continue
		}
		if urlFilter != "" && !strings.Contains(rec.URL, urlFilter) {
			continue
		}
		filtered = append(filtered, rec)
	}

	total := len(filtered)
	totalPages := (total + size - 1) / size
	start := pageNum * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	content := filtered[start:end]
	if content == nil {
		content = []storage.Record{}
	}

	c.JSON(http.StatusOK, ok("ok", page{
		Content:          content,
		TotalElements:    total,
		TotalPages:       totalPages,
		Size:             size,
		Number:           pageNum,
		NumberOfElements: len(content),
		First:            pageNum == 0,
		Last:             (pageNum+1)*size >= total,
		Empty:            len(content) == 0,
	}))
}

// Upsert creates or replaces the record for the submitted origin. POST and
// PUT behave identically: the collection is keyed by origin and the last
// write wins.
func (h *Handler) Upsert(c *gin.Context) {
	var rec storage.Record
	if err := c.ShouldBindJSON(&rec); err != nil {
		c.JSON(http.StatusBadRequest, failure("400", err.Error()))
		return
	}
	if rec.Password == "" {
		c.JSON(http.StatusBadRequest, failure("400", "password is required"))
		return
	}

	count, err := h.upserter.Upsert(c.Request.Context(), rec)
	if err != nil {
		c.JSON(http.StatusInternalServerError, failure("500", err.Error()))
		return
	}

	h.notifier.Notify(relay.Message{Type: relay.TypeUpdateRecords, Data: map[string]int{"recordCount": count}})
	c.JSON(http.StatusOK, ok("saved", rec))
}

// Delete removes the record for the origin named in the path. The origin
// may be URL-escaped.
func (h *Handler) Delete(c *gin.Context) {
	target := strings.TrimPrefix(c.Param("origin"), "/")
	if unescaped, err := url.PathUnescape(target); err == nil {
		target = unescaped
	}
	if target == "" {
		c.JSON(http.StatusBadRequest, failure("400", "origin is required"))
		return
	}

	ctx := c.Request.Context()
	all, err := h.store.Load(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, failure("500", err.Error()))
		return
	}

	kept := all[:0:0]
	for _, rec := range all {
		if rec.Origin != target {
			kept = append(kept, rec)
		}
	}
	if len(kept) == len(all) {
		c.JSON(http.StatusNotFound, failure("404", "record not found"))
		return
	}

	if err := h.store.Save(ctx, kept); err != nil {
		c.JSON(http.StatusInternalServerError, failure("500", err.Error()))
		return
	}

	h.log.Info().Str("origin", target).Msg("record deleted")
	h.notifier.Notify(relay.Message{Type: relay.TypeUpdateRecords, Data: map[string]int{"recordCount": len(kept)}})
	c.JSON(http.StatusOK, ok("deleted", "success"))
}
