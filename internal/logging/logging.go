// Package logging builds the process logger and the HTTP access log middleware.
package logging

import (
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// New returns a logger at the given level. In dev the output is a human
// readable console stream; everywhere else it is JSON, one event per line.
// Unknown levels fall back to info.
func New(level, appEnv string) zerolog.Logger {
	var out io.Writer = os.Stderr
	if appEnv == "dev" {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}
	return NewWithWriter(out, level).With().Str("env", appEnv).Logger()
}

// NewWithWriter returns a JSON logger writing to w.
func NewWithWriter(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// Middleware attaches log to every request context and writes one access log
// line per request. Health probes are logged at debug.
func Middleware(log zerolog.Logger) func(http.Handler) http.Handler {
	withLogger := hlog.NewHandler(log)
	access := hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		ev := hlog.FromRequest(r).Info()
		switch {
		case status >= 500:
			ev = hlog.FromRequest(r).Error()
		case r.URL.Path == "/healthz":
			ev = hlog.FromRequest(r).Debug()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	})
	requestID := hlog.RequestIDHandler("request_id", "X-Request-Id")
	remote := hlog.RemoteAddrHandler("remote")

	return func(next http.Handler) http.Handler {
		return withLogger(requestID(remote(access(next))))
	}
}
