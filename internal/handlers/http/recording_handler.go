package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"
	"streamcast/pkg/optimize"
	"streamcast/pkg/tracing"
	"streamcast/pkg/validation"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// downloadBuffers recycles copy buffers across concurrent downloads.
var downloadBuffers = optimize.NewBytePool(64 * 1024)

// RecordingMetrics observes store and transcode activity. A nil value
// disables reporting.
type RecordingMetrics interface {
	RecordingStored(bytes int64)
	TranscodeStarted()
	TranscodeFinished()
	TranscodeCompleted(seconds float64)
}

type RecordingHandler struct {
	store      ports.RecordingStore
	transcoder ports.Transcoder
	metrics    RecordingMetrics
	logger     *zap.SugaredLogger
}

func NewRecordingHandler(store ports.RecordingStore, transcoder ports.Transcoder, metrics RecordingMetrics, logger *zap.SugaredLogger) *RecordingHandler {
	return &RecordingHandler{
		store:      store,
		transcoder: transcoder,
		metrics:    metrics,
		logger:     logger,
	}
}

func (h *RecordingHandler) SetupRoutes(group *gin.RouterGroup) {
	group.POST("/recordings", h.Upload)
	group.GET("/recordings", h.List)
	group.GET("/recordings/:id", h.Download)
	group.DELETE("/recordings/:id", h.Delete)
}

func (h *RecordingHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field is required"})
		return
	}
	defer file.Close()

	if !h.storeReady(c) {
		return
	}

	ctx, span := tracing.TraceStoreOperation(c.Request.Context(), "upload", "")
	defer span.End()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	rec, err := h.store.Upload(ctx, header.Filename, contentType, file)
	if err != nil {
		h.storeError(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordingStored(rec.Length)
	}
	h.logger.Infow("recording stored",
		"recording_id", rec.ID, "filename", rec.Filename, "length", rec.Length)
	c.JSON(http.StatusCreated, rec)
}

func (h *RecordingHandler) List(c *gin.Context) {
	if !h.storeReady(c) {
		return
	}

	recs, err := h.store.List(c.Request.Context())
	if err != nil {
		h.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, recs)
}

func (h *RecordingHandler) Download(c *gin.Context) {
	id := c.Param("id")
	if err := validation.ValidateRecordingID(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Quality is rejected before the store is touched.
	quality := c.DefaultQuery("quality", "original")
	if err := validation.ValidateQuality(quality); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !h.storeReady(c) {
		return
	}

	ctx, span := tracing.TraceTranscode(c.Request.Context(), id, quality)
	defer span.End()

	rec, err := h.store.Get(ctx, domain.RecordingID(id))
	if err != nil {
		h.storeError(c, err)
		return
	}

	src, err := h.store.Open(ctx, rec.ID)
	if err != nil {
		h.storeError(c, err)
		return
	}
	defer src.Close()

	if quality == "original" {
		c.Header("Content-Type", rec.ContentType)
		c.Header("Content-Disposition", attachment(rec.Filename))
		c.Header("Content-Length", strconv.FormatInt(rec.Length, 10))
		c.Status(http.StatusOK)
		buf := downloadBuffers.Get()
		defer downloadBuffers.Put(buf)
		if _, err := io.CopyBuffer(c.Writer, src, buf); err != nil {
			// Headers are out; all that is left is to cut the body.
			h.logger.Warnw("original download aborted", "recording_id", rec.ID, "error", err)
		}
		return
	}

	if h.metrics != nil {
		h.metrics.TranscodeStarted()
		defer h.metrics.TranscodeFinished()
	}
	start := time.Now()

	var terr error
	switch quality {
	case "audio":
		c.Header("Content-Type", "audio/mpeg")
		c.Header("Content-Disposition", attachment(replaceExt(rec.Filename, "_audio.mp3")))
		c.Status(http.StatusOK)
		terr = h.transcoder.TranscodeAudio(ctx, src, c.Writer)
	default:
		c.Header("Content-Type", "video/webm")
		c.Header("Content-Disposition", attachment(replaceExt(rec.Filename, "_"+quality+".webm")))
		c.Status(http.StatusOK)
		terr = h.transcoder.Transcode(ctx, src, c.Writer, domain.PresetName(quality))
	}

	if terr != nil {
		// The status line is already on the wire; the truncated body is
		// the failure signal the client sees.
		h.logger.Errorw("transcode failed mid-stream",
			"recording_id", rec.ID, "quality", quality, "error", terr)
		return
	}

	if h.metrics != nil {
		h.metrics.TranscodeCompleted(time.Since(start).Seconds())
	}
}

func (h *RecordingHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := validation.ValidateRecordingID(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !h.storeReady(c) {
		return
	}

	if err := h.store.Delete(c.Request.Context(), domain.RecordingID(id)); err != nil {
		h.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// storeReady pings the store before any stream work so a half-open
// response is never left dangling. Writes the 503 itself.
func (h *RecordingHandler) storeReady(c *gin.Context) bool {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "recording store unavailable"})
		return false
	}
	return true
}

func (h *RecordingHandler) storeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrRecordingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "recording not found"})
	case errors.Is(err, domain.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "recording store unavailable"})
	default:
		h.logger.Errorw("store operation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func attachment(filename string) string {
	return fmt.Sprintf("attachment; filename=%q", filename)
}

// replaceExt swaps the filename extension for suffix, which carries
// its own extension.
func replaceExt(filename, suffix string) string {
	base := strings.TrimSuffix(filename, path.Ext(filename))
	if base == "" {
		base = "recording"
	}
	return base + suffix
}
