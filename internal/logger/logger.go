// Package logger provides request-scoped structured logging on top of logrus.
package logger

import (
	"context"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type contextLoggerValues struct {
	RequestID string `json:"requestID"`
	Actor     string `json:"actor"`
}

type contextKeyRequestLoggerType struct{}

var contextKeyRequestLogger = &contextKeyRequestLoggerType{}

const (
	requestIDLoggerKey string = "requestID"
	actorLoggerKey     string = "actor"
)

// Init sets up the process-wide log formatter and level.
func Init(level logrus.Level) {
	f := new(logrus.TextFormatter)
	f.TimestampFormat = "2006-01-02 15:04:05"
	f.FullTimestamp = true
	logrus.SetFormatter(f)
	logrus.SetLevel(level)
}

// AddRequestID installs middleware that attaches a logger with a fresh
// request id to every request that does not already carry one.
func AddRequestID(router *mux.Router) {
	router.Use(func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, _ := ContextWithLogger(r.Context())
			h.ServeHTTP(w, r.WithContext(ctx))
		})
	})
}

// Default returns a logger with no request id, for use outside request scope
// (background workers, startup).
func Default() *logrus.Entry {
	return logrus.NewEntry(logrus.StandardLogger())
}

// ContextWithLogger returns a context carrying a logger, reusing one already
// present or creating one tagged with a new request id.
func ContextWithLogger(ctx context.Context) (context.Context, *logrus.Entry) {
	if ctx == nil {
		ctx = context.Background()
	} else if rlog := loggerFromContext(ctx); rlog != nil {
		return ctx, rlog
	}
	id, _ := uuid.NewUUID()
	rlog := logrus.WithField(requestIDLoggerKey, id.String())
	return context.WithValue(ctx, contextKeyRequestLogger, rlog), rlog
}

func loggerFromContext(ctx context.Context) *logrus.Entry {
	if ctx == nil {
		return nil
	}
	rlog, _ := ctx.Value(contextKeyRequestLogger).(*logrus.Entry)
	return rlog
}

// FromContext returns the request's logger, or a bare default if none was
// ever attached.
func FromContext(ctx context.Context) *logrus.Entry {
	if rlog := loggerFromContext(ctx); rlog != nil {
		return rlog
	}
	return Default()
}

// ContextWithActor tags the context's logger with the caller's identity.
func ContextWithActor(ctx context.Context, actor string) (context.Context, *logrus.Entry) {
	ctx, rlog := ContextWithLogger(ctx)
	rlog = rlog.WithField(actorLoggerKey, actor)
	return context.WithValue(ctx, contextKeyRequestLogger, rlog), rlog
}

// Serialize extracts the request id and actor for cross-process propagation
// (e.g. into an outbox payload processed by a worker goroutine).
func Serialize(ctx context.Context) []byte {
	v := loggerValues(ctx)
	if v.RequestID == "" {
		return []byte("{}")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return b
}

func loggerValues(ctx context.Context) contextLoggerValues {
	var v contextLoggerValues
	rlog := loggerFromContext(ctx)
	if rlog == nil {
		return v
	}
	if s, ok := rlog.Data[requestIDLoggerKey].(string); ok {
		v.RequestID = s
	}
	if s, ok := rlog.Data[actorLoggerKey].(string); ok {
		v.Actor = s
	}
	return v
}

// RequestIDFromContext returns the request id carried by the context's logger.
func RequestIDFromContext(ctx context.Context) string {
	return loggerValues(ctx).RequestID
}
