package middleware

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var defaultOrigins = []string{
	"http://localhost:3000",
	"http://127.0.0.1:3000",
}

// CORS allows the given browser origins to call the API with the
// idempotency and correlation headers.
func CORS(origins []string) gin.HandlerFunc {
	if len(origins) == 0 {
		origins = defaultOrigins
	}
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Idempotency-Key", HeaderCorrelationID, HeaderRequestID},
		ExposeHeaders:    []string{HeaderCorrelationID, HeaderRequestID, HeaderTraceID},
		AllowCredentials: true,
	})
}
