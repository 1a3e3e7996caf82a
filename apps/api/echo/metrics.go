package echoapi

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/hudhuria/core/attendance"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hudhuria_http_requests_total",
		Help: "Number of HTTP requests processed.",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "hudhuria_http_request_duration_seconds",
		Help: "HTTP request latencies.",
	}, []string{"method", "path"})

	submissionsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hudhuria_attendance_submissions_accepted_total",
		Help: "Number of accepted attendance submissions.",
	})

	submissionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hudhuria_attendance_submissions_rejected_total",
		Help: "Number of rejected attendance submissions, by reason.",
	}, []string{"reason"})
)

func metricsHandler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}

func metricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			if err := next(ctx); err != nil {
				ctx.Error(err) // run the error handler now so the status is final
			}

			method := ctx.Request().Method
			path := ctx.Path()
			httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(ctx.Response().Status)).Inc()
			httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}

var submissionRejectReasons = map[error]string{
	attendance.ErrSessionNotFound:  "session_not_found",
	attendance.ErrSessionInactive:  "session_inactive",
	attendance.ErrWindowNotStarted: "window_not_started",
	attendance.ErrWindowEnded:      "window_ended",
	attendance.ErrNotEnrolled:      "not_enrolled",
	attendance.ErrInvalidCode:      "invalid_code",
	attendance.ErrOutOfRange:       "out_of_range",
	attendance.ErrAlreadySubmitted: "already_submitted",
}

// observeSubmission counts a submission outcome.
func observeSubmission(err error) {
	if err == nil {
		submissionsAccepted.Inc()
		return
	}
	if reason, ok := submissionRejectReasons[errors.Cause(err)]; ok {
		submissionsRejected.WithLabelValues(reason).Inc()
	}
}
