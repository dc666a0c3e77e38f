package utils

import (
	"errors"
	"net/http"

	"tutorbook/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorResponse defines the structure of error responses
type ErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// HandleErrors is a middleware to catch panics and return structured errors
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				Logger := GetLogger()
				Logger.Error("Unhandled panic", zap.Any("error", err))

				c.JSON(http.StatusInternalServerError, ErrorResponse{
					Message: "Internal Server Error",
					Details: "An unexpected error occurred. Please try again later.",
				})
				c.Abort()
			}
		}()
		c.Next()
	}
}

// JSONError sends a standardized JSON error response
func JSONError(c *gin.Context, status int, message string, details string) {
	Logger := GetLogger()
	Logger.Warn(message, zap.String("details", details))
	c.JSON(status, ErrorResponse{Message: message, Details: details})
}

var errorCodes = []struct {
	err    error
	status int
	code   string
}{
	{models.ErrNotFound, http.StatusNotFound, "not_found"},
	{models.ErrNotOwner, http.StatusForbidden, "not_owner"},
	{models.ErrWrongState, http.StatusConflict, "wrong_state"},
	{models.ErrSlotUnavailable, http.StatusConflict, "slot_unavailable"},
	{models.ErrSlotGone, http.StatusGone, "slot_gone"},
	{models.ErrSlotBooked, http.StatusConflict, "slot_booked"},
	{models.ErrHeldByOther, http.StatusConflict, "held_by_other"},
	{models.ErrPriceNotConfigured, http.StatusInternalServerError, "price_not_configured"},
	{models.ErrTooLate, http.StatusUnprocessableEntity, "too_late"},
	{models.ErrInvalidSignature, http.StatusBadRequest, "invalid_signature"},
	{models.ErrGateway, http.StatusBadGateway, "gateway_error"},
}

// StatusFor maps a domain error to its HTTP status and machine-readable code.
// The table is ordered so an outer failure such as ErrSlotUnavailable wins
// over the cause it wraps.
func StatusFor(err error) (int, string) {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.status, e.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

// DomainError writes err using the domain error table.
func DomainError(c *gin.Context, err error) {
	status, code := StatusFor(err)
	logger := GetLogger()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.String("code", code), zap.Error(err))
	} else {
		logger.Warn("request rejected", zap.String("code", code), zap.Error(err))
	}
	c.JSON(status, ErrorResponse{Message: err.Error(), Code: code})
}
