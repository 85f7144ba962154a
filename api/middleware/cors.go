package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// CORS allows the web app origin plus local development.
func CORS(publicBaseURL string) func(http.Handler) http.Handler {
	origins := []string{"http://localhost:3000"}
	if origin := strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"); origin != "" && origin != origins[0] {
		origins = append(origins, origin)
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
