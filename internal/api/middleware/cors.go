// Package middleware holds the gin middleware in front of the gateway API:
// cross-origin policy and inbound rate limiting.
package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSConfig controls cross-origin access to the gateway API.
type CORSConfig struct {
	// AllowOrigins lists the origins embedding hosts serve from. Empty
	// allows any origin.
	AllowOrigins     []string
	AllowCredentials bool
}

// CORS builds the gateway's cross-origin policy: the methods of the REST
// surface, and the trace headers responses carry exposed so host tooling
// can correlate requests.
func CORS(cfg CORSConfig) gin.HandlerFunc {
	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type",
			"Accept",
			"Origin",
			"Authorization",
			"X-Trace-ID",
			"X-Span-ID",
		},
		ExposeHeaders:    []string{"X-Trace-ID", "X-Span-ID"},
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           12 * time.Hour,
	})
}
