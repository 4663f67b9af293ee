package boleto

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Runner runs one reminder batch. *Service implements it.
type Runner interface {
	Run(ctx context.Context, dayOffset int) (*BatchResult, error)
}

// Handler exposes the reminder batch over HTTP.
type Handler struct {
	runner Runner
	log    *zap.Logger
}

func NewHandler(runner Runner, log *zap.Logger) *Handler {
	return &Handler{runner: runner, log: log.Named("boleto.http")}
}

// RunRequest is the body of POST /api/boletos/notifications/run.
type RunRequest struct {
	DayOffset *int `json:"dayOffset"`
}

// RunNotifications triggers a run synchronously and returns its result. The
// run keeps going if the client disconnects.
func (h *Handler) RunNotifications(c echo.Context) error {
	var req RunRequest
	if err := c.Bind(&req); err != nil || req.DayOffset == nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "dayOffset is required"})
	}

	ctx := context.WithoutCancel(c.Request().Context())
	res, err := h.runner.Run(ctx, *req.DayOffset)
	status := StatusFor(err)
	if err != nil {
		if status >= http.StatusInternalServerError {
			h.log.Error("notification run failed", zap.Int("day_offset", *req.DayOffset), zap.Error(err))
		}
		return c.JSON(status, map[string]string{"error": err.Error()})
	}
	return c.JSON(status, res)
}

// Health reports liveness.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// StatusFor maps a run error onto the HTTP status both entry points report.
func StatusFor(err error) int {
	var verr *ValidationError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, ErrRunInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
