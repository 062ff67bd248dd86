package server

import (
	"time"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// requestIDMiddleware tags every request with a ULID, reusing the caller's id when sent
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = ulid.Make().String()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// loggingMiddleware creates a custom logging middleware using zerolog
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start)

		s.logger.Info().
			Str("request_id", c.GetString(requestIDKey)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}

func respondWithError(c *gin.Context, log zerolog.Logger, statusCode int, err error, message string) {
	log.Warn().Err(err).Str("request_id", c.GetString(requestIDKey)).Msg(message)
	c.JSON(statusCode, gin.H{"error": message})
	c.Abort()
}

// newValidator builds the request validator with the custom "bearer" rule:
// printable, no whitespace, no characters that would break a query string
func newValidator() *validator.Validate {
	validate := validator.New()

	validate.RegisterValidation("bearer", func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		for _, char := range value {
			if unicode.IsSpace(char) || !unicode.IsPrint(char) {
				return false
			}
			switch char {
			case '&', '#', '?':
				return false
			}
		}
		return true
	})

	return validate
}
