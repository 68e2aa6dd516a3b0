package respond

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/janisto/wa-photo-proxy/internal/api"
	applog "github.com/janisto/wa-photo-proxy/internal/platform/logging"
)

const (
	msgNotFound         = "resource not found"
	msgMethodNotAllowed = "method not allowed"
	msgInternal         = "internal server error"
)

var installOnce sync.Once

// Install makes huma render framework errors (oversized bodies, unsupported
// media types, validation failures) in the service error shape and logs them
// by severity.
func Install() {
	installOnce.Do(func() {
		huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
			return newError(context.Background(), status, msg, errs...)
		}
		huma.NewErrorWithContext = func(hctx huma.Context, status int, msg string, errs ...error) huma.StatusError {
			ctx := context.Background()
			if hctx != nil {
				ctx = hctx.Context()
			}
			return newError(ctx, status, msg, errs...)
		}
	})
}

func newError(ctx context.Context, status int, msg string, errs ...error) huma.StatusError {
	e := api.NewError(status, msg)
	logWithStatus(ctx, status, e.Message, errors.Join(errs...))
	return e
}

// Write serializes v as JSON with the given status.
func Write(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// WriteError renders an ErrorResponse and logs it.
func WriteError(w http.ResponseWriter, ctx context.Context, status int, msg string, errs ...error) error {
	e := newError(ctx, status, msg, errs...)
	return Write(w, e.GetStatus(), e)
}

// NotFoundHandler emits a 404 in the service error shape.
func NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := WriteError(w, r.Context(), http.StatusNotFound, msgNotFound); err != nil {
			applog.LogError(r.Context(), "failed to render not found", err)
		}
	}
}

// MethodNotAllowedHandler emits a 405 listing the methods chi can route for the path.
func MethodNotAllowedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if allow := allowedMethods(r); len(allow) > 0 {
			w.Header().Set("Allow", strings.Join(allow, ", "))
		}
		if err := WriteError(w, r.Context(), http.StatusMethodNotAllowed, msgMethodNotAllowed); err != nil {
			applog.LogError(r.Context(), "failed to render method not allowed", err)
		}
	}
}

// Recoverer converts panics into 500 responses. http.ErrAbortHandler is
// re-raised so net/http can abort the connection.
func Recoverer() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler { //nolint:errorlint // sentinel compared by identity
					panic(rec)
				}
				err, ok := rec.(error)
				if !ok {
					err = fmt.Errorf("%v", rec)
				}
				err = fmt.Errorf("%w\n%s", err, debug.Stack())
				if ww.Status() != 0 {
					applog.LogError(r.Context(), "panic after response started", err)
					return
				}
				if writeErr := WriteError(ww, r.Context(), http.StatusInternalServerError, msgInternal, err); writeErr != nil {
					applog.LogError(r.Context(), "failed to render internal error", writeErr)
				}
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// allowedMethods probes chi's route tree for the methods registered on the request path.
func allowedMethods(r *http.Request) []string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil || rctx.Routes == nil {
		return nil
	}
	path := rctx.RoutePath
	if path == "" {
		path = r.URL.RawPath
	}
	if path == "" {
		path = r.URL.Path
	}
	if path == "" {
		path = "/"
	}

	var allowed []string
	for _, method := range []string{
		http.MethodGet,
		http.MethodHead,
		http.MethodPost,
		http.MethodPut,
		http.MethodPatch,
		http.MethodDelete,
		http.MethodOptions,
	} {
		if rctx.Routes.Match(chi.NewRouteContext(), method, path) {
			allowed = append(allowed, method)
		}
	}
	return allowed
}

func logWithStatus(ctx context.Context, status int, msg string, err error) {
	fields := []zap.Field{zap.Int("status", status), zap.String("message", msg)}
	switch {
	case status >= http.StatusInternalServerError:
		applog.LogError(ctx, "request failed", err, fields...)
	case status >= http.StatusBadRequest:
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		applog.LogWarn(ctx, "request rejected", fields...)
	default:
		applog.LogInfo(ctx, "request answered with status", fields...)
	}
}
