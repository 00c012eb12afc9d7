package httpapi

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

// maxRequestBodyBytes is the request body size cap.
const maxRequestBodyBytes = 100 << 20

// corsMiddleware wraps cors.Handler for use as gin middleware. go-chi/cors
// and gin both operate on http.Handler, so the CORS package is exercised
// unmodified; only the adapter between the two router styles is ours.
func corsMiddleware() gin.HandlerFunc {
	mw := cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
	})

	return func(c *gin.Context) {
		handled := false
		wrapped := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handled = true
			c.Next()
		}))
		wrapped.ServeHTTP(c.Writer, c.Request)
		if !handled {
			// cors.Handler answered the request itself (an OPTIONS
			// preflight); nothing downstream should run.
			c.Abort()
		}
	}
}

// bodySizeLimitMiddleware caps request bodies at limit bytes: a read past
// the cap, by a handler or by gin's JSON binding, fails with
// *http.MaxBytesError. The middleware does not answer the request itself.
func bodySizeLimitMiddleware(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

// rateLimitMiddleware enforces a per-process token-bucket limit protecting
// the local tensor-runtime engine from request bursts it cannot serve
// concurrently.
func rateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{
					"message": "rate limit exceeded, retry after a short delay",
					"type":    "rate_limit_exceeded",
				},
			})
			return
		}
		c.Next()
	}
}

// requestLogMiddleware logs one terse summary line per request after the
// handler completes.
func requestLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)
		log.Printf("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), elapsed)
	}
}
