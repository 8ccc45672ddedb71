package logger

import (
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	httpmw "github.com/wolfeidau/orgmgr/internal/http"
)

// Setup returns the process logger. Dev mode switches to console output at
// debug level with stack traces.
func Setup(dev bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if dev {
		level = zerolog.DebugLevel
	}

	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Caller().Logger()

	if dev {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, FormatTimestamp: func(i any) string {
			return time.Now().Format(time.RFC3339)
		}}).Level(level).With().Stack().Logger()
	}

	return logger
}

// Requests logs one line per HTTP request and attaches a request scoped
// logger to the context for handlers to use via zerolog.Ctx.
func Requests(logger zerolog.Logger) httpmw.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()

			reqLogger := logger.With().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("proto", r.Proto).
				Str("client_ip", httpmw.ClientIPFromContext(r.Context())).
				Logger()
			ctx := reqLogger.WithContext(r.Context())

			rec := httpmw.NewStatusRecorder(w)
			next.ServeHTTP(rec, r.WithContext(ctx))

			status := rec.Status()
			event := reqLogger.Info()
			switch {
			case status >= http.StatusInternalServerError:
				event = reqLogger.Error()
			case status >= http.StatusBadRequest:
				event = reqLogger.Warn()
			}

			event.
				Int("status", status).
				Int("bytes", rec.BytesWritten()).
				Dur("duration", time.Since(started)).
				Msg("http request")
		})
	}
}
