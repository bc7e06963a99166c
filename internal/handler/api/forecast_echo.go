package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	models "FinCast/internal/domain/models"
	domsvc "FinCast/internal/domain/service"
	"FinCast/internal/service/ratelimit"
	"FinCast/internal/usecase"
	xhttp "FinCast/pkg/http"
	xlogger "FinCast/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Forecaster is what the HTTP surface needs from the predictor.
type Forecaster interface {
	Predict(ctx context.Context, symbol string, steps int, level float64) (*models.Prediction, error)
	Summarize(ctx context.Context, symbol string) (*models.PredictionSummary, error)
	CompareModels(ctx context.Context, symbol string, steps int) (*models.ModelComparison, error)
}

// HealthChecker reports whether a backing service is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

const healthTimeout = 2 * time.Second

// ForecastEchoHandler serves forecasts over Echo.
type ForecastEchoHandler struct {
	logger *xlogger.Logger
	f      Forecaster
	rl     *ratelimit.Limiter
	checks map[string]HealthChecker
	maxAge time.Duration
}

type ForecastHandlerOption func(*ForecastEchoHandler)

// WithRateLimiter limits /api requests per client IP.
func WithRateLimiter(rl *ratelimit.Limiter) ForecastHandlerOption {
	return func(h *ForecastEchoHandler) { h.rl = rl }
}

// WithHealthCheck adds a named dependency to /healthz.
func WithHealthCheck(name string, hc HealthChecker) ForecastHandlerOption {
	return func(h *ForecastEchoHandler) {
		if hc != nil {
			h.checks[name] = hc
		}
	}
}

// WithCacheMaxAge sets the Cache-Control max-age on successful responses.
func WithCacheMaxAge(d time.Duration) ForecastHandlerOption {
	return func(h *ForecastEchoHandler) { h.maxAge = d }
}

func NewForecastEchoHandler(logger *xlogger.Logger, f Forecaster, opts ...ForecastHandlerOption) *ForecastEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	h := &ForecastEchoHandler{
		logger: logger.Component("api"),
		f:      f,
		checks: make(map[string]HealthChecker),
		maxAge: 30 * time.Second,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *ForecastEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api", h.rateLimit)
	g.GET("/predict/:symbol", h.Predict)
	g.GET("/summary/:symbol", h.Summary)
	g.GET("/compare/:symbol", h.Compare)
}

func (h *ForecastEchoHandler) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if h.rl != nil && !h.rl.Allow(c.RealIP()) {
			return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limit exceeded"))
		}
		return next(c)
	}
}

func (h *ForecastEchoHandler) Predict(c echo.Context) error {
	req := &models.PredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.f.Predict(c.Request().Context(), models.NormalizeSymbol(req.Symbol), req.Steps, req.ConfidenceLevel)
	if err != nil {
		return h.fail(c, "predict", err)
	}
	h.cacheable(c)
	return xhttp.SuccessResponse(c, res)
}

func (h *ForecastEchoHandler) Summary(c echo.Context) error {
	req := &models.SummaryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.f.Summarize(c.Request().Context(), models.NormalizeSymbol(req.Symbol))
	if err != nil {
		return h.fail(c, "summary", err)
	}
	h.cacheable(c)
	return xhttp.SuccessResponse(c, res)
}

func (h *ForecastEchoHandler) Compare(c echo.Context) error {
	req := &models.CompareRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.f.CompareModels(c.Request().Context(), models.NormalizeSymbol(req.Symbol), req.Steps)
	if err != nil {
		return h.fail(c, "compare", err)
	}
	h.cacheable(c)
	return xhttp.SuccessResponse(c, res)
}

// Health pings every registered dependency. Any failure turns the whole
// response into a 503.
func (h *ForecastEchoHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, hc := range h.checks {
		if err := hc.Health(ctx); err != nil {
			h.logger.Warn("health check failed", xlogger.String("dependency", name), xlogger.Error(err))
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}
	return xhttp.DataResponse(c, status, map[string]interface{}{"dependencies": deps})
}

// fail maps domain errors onto HTTP errors.
func (h *ForecastEchoHandler) fail(c echo.Context, op string, err error) error {
	l := h.logger.Ctx(c.Request().Context())
	var appErr *xhttp.AppError
	switch {
	case errors.Is(err, domsvc.ErrDataUnavailable):
		appErr = xhttp.NotFoundError("no market data for symbol").WithField("symbol").WithError(err)
	case errors.Is(err, usecase.ErrInvalidRequest):
		appErr = xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.Is(err, domsvc.ErrModelFitting):
		appErr = xhttp.UnprocessableError("model fitting failed").WithError(err)
	default:
		l.Error(op+" usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("Something went wrong").WithError(err))
	}
	l.Warn(op+" request failed",
		xlogger.Int("status", appErr.Status),
		xlogger.Error(err),
	)
	return xhttp.AppErrorResponse(c, appErr)
}

func (h *ForecastEchoHandler) cacheable(c echo.Context) {
	if h.maxAge > 0 {
		c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age="+strconv.Itoa(int(h.maxAge/time.Second)))
	}
}
