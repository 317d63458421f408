package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS returns a cors handler for the given origins
// 빈 목록이면 모든 origin 허용 (credentials 비활성)
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", RequestIDHeader},
		ExposedHeaders:   []string{"Link", RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if len(allowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
		opts.AllowCredentials = false
	}
	return cors.Handler(opts)
}
