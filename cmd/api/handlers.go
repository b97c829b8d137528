package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/formats"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/logging"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/metrics"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/middleware"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/negotiation"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/session"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/streaming"
	"github.com/therealutkarshpriyadarshi/mediastream/pkg/models"
)

// EventHistory lists the recorded lifecycle events of a session
type EventHistory interface {
	ListBySession(ctx context.Context, sessionID string, limit int) ([]models.SessionEvent, error)
}

// HealthCheck reports whether a dependency is reachable
type HealthCheck func(ctx context.Context) error

// API serves the session control endpoints
type API struct {
	service  *streaming.Service
	registry *session.Registry
	history  EventHistory
	checks   map[string]HealthCheck
	logger   *logging.Logger
}

type sessionView struct {
	ID               string                        `json:"id"`
	ClientID         string                        `json:"client_id"`
	ProfileID        string                        `json:"profile_id"`
	Media            models.MediaItem              `json:"media"`
	Live             bool                          `json:"live"`
	State            string                        `json:"state"`
	Mime             string                        `json:"mime,omitempty"`
	Transcoded       bool                          `json:"transcoded"`
	Streamable       bool                          `json:"streamable"`
	TranscodeID      string                        `json:"transcode_id,omitempty"`
	Descriptor       *models.TranscodingDescriptor `json:"descriptor,omitempty"`
	Metadata         *models.MetadataContainer     `json:"metadata,omitempty"`
	SegmentDir       string                        `json:"segment_dir,omitempty"`
	SubStreams       int                           `json:"sub_streams"`
	CreatedAt        time.Time                     `json:"created_at"`
	LastUsed         time.Time                     `json:"last_used"`
	NegotiationError string                        `json:"negotiation_error,omitempty"`
}

func newSessionView(s *session.Session, negotiationErr error) sessionView {
	v := sessionView{
		ID:          s.ID(),
		ClientID:    s.ClientID(),
		ProfileID:   s.ProfileID(),
		Media:       s.Media(),
		Live:        s.Live(),
		State:       s.State().String(),
		Mime:        s.Mime(),
		Transcoded:  s.IsTranscoded(),
		Streamable:  s.IsStreamable(),
		TranscodeID: s.TranscodeID(),
		Descriptor:  s.Descriptor(),
		Metadata:    s.Metadata(),
		SegmentDir:  s.SegmentDir(),
		SubStreams:  len(s.SubStreams()),
		CreatedAt:   s.CreatedAt(),
		LastUsed:    s.LastUsed(),
	}
	if negotiationErr != nil {
		v.NegotiationError = negotiationErr.Error()
	}
	return v
}

// errorStatus maps registry and negotiation errors to HTTP statuses
func errorStatus(err error) int {
	var unsupported *formats.UnsupportedError
	switch {
	case errors.Is(err, streaming.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrBusy):
		return http.StatusServiceUnavailable
	case errors.Is(err, session.ErrMisconfigured),
		errors.As(err, &unsupported),
		errors.Is(err, negotiation.ErrNoCompatibleMime):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrMismatch):
		return http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (api *API) fail(c *gin.Context, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		api.logger.WithField("path", c.Request.URL.Path).WithError(err).Error("request failed")
		metrics.RecordError("api", "internal")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// createSession negotiates and registers a new session
func (api *API) createSession(c *gin.Context) {
	var req struct {
		SessionID string           `json:"session_id"`
		ClientID  string           `json:"client_id"`
		ProfileID string           `json:"profile_id"`
		Media     models.MediaItem `json:"media"`
		Live      bool             `json:"live"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ClientID == "" {
		req.ClientID = c.GetHeader(middleware.ClientIDHeader)
	}
	if req.ClientID == "" {
		req.ClientID = c.ClientIP()
	}

	sess, err := api.service.CreateSession(c.Request.Context(), streaming.CreateRequest{
		SessionID: req.SessionID,
		ClientID:  req.ClientID,
		ProfileID: req.ProfileID,
		Media:     req.Media,
		Live:      req.Live,
	})
	if sess == nil {
		api.fail(c, err)
		return
	}

	// negotiation failures still register the session
	c.JSON(http.StatusCreated, newSessionView(sess, err))
}

// listSessions returns every registered session ordered by id
func (api *API) listSessions(c *gin.Context) {
	sessions := api.registry.GetAll()

	views := make([]sessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, newSessionView(s, nil))
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions": views,
		"count":    len(views),
	})
}

func (api *API) getSession(c *gin.Context) {
	sess, ok := api.registry.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	c.JSON(http.StatusOK, newSessionView(sess, nil))
}

// updateProfile re-negotiates a session for another client profile
func (api *API) updateProfile(c *gin.Context) {
	var req struct {
		ProfileID string `json:"profile_id" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, err := api.service.UpdateProfile(c.Request.Context(), c.Param("id"), req.ProfileID)
	if sess == nil {
		api.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, newSessionView(sess, err))
}

func (api *API) deleteSession(c *gin.Context) {
	if !api.registry.Delete(c.Request.Context(), c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	c.Status(http.StatusNoContent)
}

// streamSession starts transcoded streaming and copies the output to the
// client. The offset query parameter is in seconds.
func (api *API) streamSession(c *gin.Context) {
	id := c.Param("id")

	var offset time.Duration
	if raw := c.Query("offset"); raw != "" {
		secs, err := strconv.ParseFloat(raw, 64)
		if err != nil || secs < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be a non-negative number of seconds"})
			return
		}
		offset = time.Duration(secs * float64(time.Second))
	}

	stream, err := api.registry.StartStreaming(c.Request.Context(), id, offset)
	if err != nil {
		api.fail(c, err)
		return
	}
	defer api.registry.Release(id, stream)

	contentType := "application/octet-stream"
	if sess, ok := api.registry.Get(id); ok && sess.Mime() != "" {
		contentType = sess.Mime()
	}

	api.copyStream(c, contentType, stream)
}

// streamOriginal streams the unmodified source file
func (api *API) streamOriginal(c *gin.Context) {
	id := c.Param("id")

	handle, err := api.registry.StartOriginalFileStreaming(c.Request.Context(), id)
	if err != nil {
		api.fail(c, err)
		return
	}
	defer api.registry.StopStreaming(context.WithoutCancel(c.Request.Context()), id)

	contentType := "application/octet-stream"
	if sess, ok := api.registry.Get(id); ok && !sess.IsTranscoded() && sess.Mime() != "" {
		contentType = sess.Mime()
	}

	api.copyStream(c, contentType, handle)
}

func (api *API) copyStream(c *gin.Context, contentType string, r io.Reader) {
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)

	n, err := io.Copy(c.Writer, r)
	switch {
	case errors.Is(err, session.ErrStreamSuperseded):
		api.logger.WithSessionID(c.Param("id")).Debug("stream taken over by a later start")
	case err != nil && c.Request.Context().Err() == nil:
		api.logger.WithSessionID(c.Param("id")).WithError(err).Warn("stream copy interrupted")
	}
	api.logger.WithSessionID(c.Param("id")).WithField("bytes", n).Debug("stream finished")
}

func (api *API) stopSession(c *gin.Context) {
	id := c.Param("id")
	if _, ok := api.registry.Get(id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"stopped": api.registry.StopStreaming(c.Request.Context(), id)})
}

func (api *API) openSubStream(c *gin.Context) {
	token, err := api.service.OpenSubStream(c.Param("id"))
	if err != nil {
		api.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"token": token})
}

func (api *API) closeSubStream(c *gin.Context) {
	if !api.service.CloseSubStream(c.Param("id"), c.Param("token")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Sub-stream not found"})
		return
	}

	c.Status(http.StatusNoContent)
}

// sessionEvents lists the recorded lifecycle events of a session
func (api *API) sessionEvents(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	events, err := api.history.ListBySession(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		api.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"limit":  limit,
	})
}

// healthCheck runs every dependency check
func (api *API) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	failures := gin.H{}
	for name, check := range api.checks {
		if err := check(ctx); err != nil {
			failures[name] = err.Error()
		}
	}

	if len(failures) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"errors": failures,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"sessions": api.registry.Len(),
	})
}
