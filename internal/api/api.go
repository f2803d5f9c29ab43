// Package api implements the local JSON gateway over the diagnosis workflow.
// It exposes the session operations to browser frontends and scripting
// clients on the loopback interface.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AyanAhmedKhan/endoscopy-go/internal/conf"
	"github.com/AyanAhmedKhan/endoscopy-go/internal/datastore"
	"github.com/AyanAhmedKhan/endoscopy-go/internal/diagnosis"
	"github.com/AyanAhmedKhan/endoscopy-go/internal/errors"
	"github.com/AyanAhmedKhan/endoscopy-go/internal/logging"
)

// Controller manages the API routes and handlers.
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	Session  *diagnosis.Session
	DS       datastore.Interface
	Settings *conf.Settings

	logger   *slog.Logger
	registry *prometheus.Registry
}

// ErrorResponse is the standard JSON error envelope.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// NewErrorResponse creates an ErrorResponse with a fresh correlation ID.
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	resp := &ErrorResponse{
		Error:         message,
		Message:       message,
		Code:          code,
		CorrelationID: uuid.New().String()[:8],
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}

// New creates the gateway controller and registers its routes.
// The registry may be nil when metrics are disabled.
func New(settings *conf.Settings, session *diagnosis.Session, ds datastore.Interface, registry *prometheus.Registry) *Controller {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	c := &Controller{
		Echo:     e,
		Session:  session,
		DS:       ds,
		Settings: settings,
		logger:   logging.ServiceLogger("api"),
		registry: registry,
	}

	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("55M"))

	c.initRoutes()
	return c
}

// initRoutes wires the versioned route group.
func (c *Controller) initRoutes() {
	c.Group = c.Echo.Group("/api/v1")

	c.Group.GET("/health", c.GetHealth)
	c.Group.GET("/models", c.GetModels)
	c.Group.POST("/models/select", c.SelectModel)
	c.Group.POST("/analyze", c.Analyze)
	c.Group.GET("/results/latest", c.GetLatestResult)
	c.Group.POST("/results/view", c.SelectView)
	c.Group.POST("/reset", c.Reset)
	c.Group.POST("/report", c.GenerateReport)
	c.Group.GET("/history", c.GetHistory)

	if c.registry != nil {
		c.Echo.GET("/metrics", echo.WrapHandler(
			promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})))
	}
}

// Start runs the gateway on the configured listen address. Blocks until the
// server stops.
func (c *Controller) Start() error {
	c.logger.Info("Starting gateway", "listen", c.Settings.Gateway.Listen)
	return c.Echo.Start(c.Settings.Gateway.Listen)
}

// Shutdown stops the gateway gracefully.
func (c *Controller) Shutdown() error {
	ctx, cancel := contextWithTimeout(5 * time.Second)
	defer cancel()
	return c.Echo.Shutdown(ctx)
}

// HandleError logs the failure and writes the standard error envelope. The
// HTTP status is derived from the error category when the caller passes zero.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	if code == 0 {
		code = statusFromError(err)
	}
	resp := NewErrorResponse(err, message, code)

	c.logger.Error("API error",
		"correlation_id", resp.CorrelationID,
		"message", message,
		"error", err,
		"code", code,
		"path", ctx.Request().URL.Path,
		"method", ctx.Request().Method,
		"ip", ctx.RealIP())

	return ctx.JSON(code, resp)
}

// statusFromError maps the error taxonomy onto HTTP status codes.
func statusFromError(err error) int {
	switch {
	case errors.IsValidation(err):
		return http.StatusBadRequest
	case errors.IsCategory(err, errors.CategoryState):
		return http.StatusConflict
	case errors.IsCategory(err, errors.CategoryModelAvailability):
		return http.StatusConflict
	case errors.IsCategory(err, errors.CategoryTimeout):
		return http.StatusGatewayTimeout
	case errors.IsCategory(err, errors.CategoryNetwork):
		return http.StatusBadGateway
	case errors.IsCategory(err, errors.CategoryHTTP),
		errors.IsCategory(err, errors.CategoryMalformedResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
