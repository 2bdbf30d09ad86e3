// Package validation provides input validation middleware and helpers for the
// SafeTrace API.
package validation

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// MaxRequestSize is the maximum request body size (1MB)
const MaxRequestSize = 1 << 20 // 1MB

// MaxStringLength is the maximum length for string fields
const MaxStringLength = 10000

// RequestSizeMiddleware limits request body size
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// SanitizeString removes dangerous characters and limits length
func SanitizeString(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	s = strings.ReplaceAll(s, "\x00", "")
	return s
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	return e[0].Field + ": " + e[0].Message
}

// Validate validates a request and returns errors
func Validate(validators ...func() *ValidationError) ValidationErrors {
	var errors ValidationErrors
	for _, v := range validators {
		if err := v(); err != nil {
			errors = append(errors, *err)
		}
	}
	return errors
}

// Required checks if a field is non-empty
func Required(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if strings.TrimSpace(value) == "" {
			return &ValidationError{Field: field, Message: "is required"}
		}
		return nil
	}
}

// MaxLength checks if a field exceeds max length
func MaxLength(field, value string, max int) func() *ValidationError {
	return func() *ValidationError {
		if len(value) > max {
			return &ValidationError{Field: field, Message: "exceeds maximum length"}
		}
		return nil
	}
}

// ValidLatitude checks a latitude lies in [-90, 90].
func ValidLatitude(field string, lat float64) func() *ValidationError {
	return func() *ValidationError {
		if lat < -90 || lat > 90 {
			return &ValidationError{Field: field, Message: "must be between -90 and 90"}
		}
		return nil
	}
}

// ValidLongitude checks a longitude lies in [-180, 180].
func ValidLongitude(field string, lon float64) func() *ValidationError {
	return func() *ValidationError {
		if lon < -180 || lon > 180 {
			return &ValidationError{Field: field, Message: "must be between -180 and 180"}
		}
		return nil
	}
}

// ValidRating checks a safety rating lies in the 1-5 scale.
func ValidRating(field string, rating int) func() *ValidationError {
	return func() *ValidationError {
		if rating < 1 || rating > 5 {
			return &ValidationError{Field: field, Message: "must be between 1 and 5"}
		}
		return nil
	}
}

// NonNegativeID checks an identifier is not negative.
func NonNegativeID(field string, id int64) func() *ValidationError {
	return func() *ValidationError {
		if id < 0 {
			return &ValidationError{Field: field, Message: "must be non-negative"}
		}
		return nil
	}
}
