package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

const allowOriginHeader = "Access-Control-Allow-Origin"

// CORS returns the cross-origin policy for browser clients. Every response
// carries Access-Control-Allow-Origin: *, including requests that send no
// Origin header. Preflight requests are annotated and then passed through so
// route handlers can answer them with their own allow lists.
func CORS() func(http.Handler) http.Handler {
	policy := cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodHead,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"X-Request-Id",
			"traceparent",
		},
		ExposedHeaders:     []string{"X-Request-Id"},
		MaxAge:             300,
		OptionsPassthrough: true,
	})
	return func(next http.Handler) http.Handler {
		inner := policy(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(allowOriginHeader, "*")
			inner.ServeHTTP(w, r)
		})
	}
}
