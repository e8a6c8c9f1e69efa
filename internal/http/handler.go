package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"parking-anpr-service/internal/config"
	"parking-anpr-service/internal/recognizer"
	"parking-anpr-service/internal/service"
)

type Handler struct {
	anprService    *service.ANPRService
	parkingService *service.ParkingService
	recognizer     recognizer.Recognizer
	config         *config.Config
	log            zerolog.Logger
}

// NewHandler wires the transport. rec is only served on /recognize and may be nil.
func NewHandler(
	anprService *service.ANPRService,
	parkingService *service.ParkingService,
	rec recognizer.Recognizer,
	cfg *config.Config,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		anprService:    anprService,
		parkingService: parkingService,
		recognizer:     rec,
		config:         cfg,
		log:            log,
	}
}

func (h *Handler) Register(r *gin.Engine) {
	r.GET("/healthz", h.health)

	spots := r.Group("/api/spots")
	{
		spots.GET("", h.listSpots)
		spots.POST("", h.createSpot)
		spots.GET("/:id", h.getSpot)
		spots.POST("/:id/exit", h.exitSpot)
	}
	r.GET("/api/stats", h.stats)

	uploads := r.Group("")
	uploads.Use(h.limitBody())
	{
		uploads.POST("/process_plate", h.processPlate)
		uploads.POST("/process_video", h.processVideo)
		if h.recognizer != nil {
			uploads.POST("/recognize", h.recognize)
		}
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) listSpots(c *gin.Context) {
	spots, err := h.parkingService.ListSpots(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, spots)
}

type createSpotRequest struct {
	Plate *string `json:"plate"`
}

func (h *Handler) createSpot(c *gin.Context) {
	var req createSpotRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Plate == nil {
		c.JSON(http.StatusBadRequest, errorResponse("No plate provided"))
		return
	}

	spot, err := h.parkingService.CreateSpot(c.Request.Context(), *req.Plate)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, spot)
}

func (h *Handler) getSpot(c *gin.Context) {
	id, ok := spotID(c)
	if !ok {
		return
	}
	spot, err := h.parkingService.GetSpot(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, spot)
}

func (h *Handler) exitSpot(c *gin.Context) {
	id, ok := spotID(c)
	if !ok {
		return
	}
	spot, err := h.parkingService.ExitSpot(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Spot is now free",
		"spot":    spot,
	})
}

func (h *Handler) stats(c *gin.Context) {
	c.JSON(http.StatusOK, successResponse(h.anprService.Stats()))
}

func (h *Handler) processPlate(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("No file uploaded"))
		return
	}
	data, err := readUpload(fh)
	if err != nil {
		h.handleError(c, err)
		return
	}

	result := h.anprService.ProcessImage(c.Request.Context(), data, fh.Filename)
	c.JSON(http.StatusOK, result)
}

func (h *Handler) processVideo(c *gin.Context) {
	fh, err := c.FormFile("video")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("No video uploaded"))
		return
	}

	stride := h.config.Video.Stride
	if raw := firstNonEmpty(c.PostForm("stride"), c.Query("stride")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, errorResponse("stride must be a positive integer"))
			return
		}
		stride = parsed
	}

	f, err := fh.Open()
	if err != nil {
		h.handleError(c, fmt.Errorf("failed to read upload: %w", err))
		return
	}
	defer f.Close()

	results, err := h.anprService.ProcessVideo(c.Request.Context(), f, stride)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			h.log.Warn().Err(err).Int("processed", len(results)).Msg("video request ended early")
			c.JSON(http.StatusOK, gin.H{"plates_detected": results, "cancelled": true})
			return
		}
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plates_detected": results})
}

func (h *Handler) recognize(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("No file uploaded"))
		return
	}
	data, err := readUpload(fh)
	if err != nil {
		h.handleError(c, err)
		return
	}

	out, err := h.recognizer.Recognize(c.Request.Context(), data, fh.Filename)
	if err != nil {
		h.log.Error().Err(err).Str("filename", fh.Filename).Msg("recognition failed")
		c.JSON(http.StatusBadGateway, errorResponse("OpenALPR failed"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"output": out})
}

func (h *Handler) limitBody() gin.HandlerFunc {
	limit := h.config.HTTP.MaxUploadMB << 20
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse("Spot not found"))
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, errorResponse("Plate already in parking"))
	case errors.Is(err, service.ErrVideoOpen):
		c.JSON(http.StatusUnprocessableEntity, errorResponse("Failed to open video"))
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func spotID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid spot id"))
		return 0, false
	}
	return id, true
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: uploaded file is empty", service.ErrInvalidInput)
	}
	return data, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}
