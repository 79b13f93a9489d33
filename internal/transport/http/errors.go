package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"quizcat-service/internal/domain"
	"quizcat-service/internal/questionbank"
)

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type errorEnvelope struct {
	Error apiError `json:"error"`
}

// statusFor maps domain errors to HTTP status codes and stable error codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrNotSessionOwner):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrQuestionNotFound),
		errors.Is(err, domain.ErrAnswerNotFound),
		errors.Is(err, domain.ErrRewardNotFound),
		errors.Is(err, domain.ErrProfileNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrInsufficientBalance):
		return http.StatusConflict, "insufficient_balance"
	case errors.Is(err, domain.ErrRewardExpired):
		return http.StatusConflict, "reward_expired"
	case errors.Is(err, domain.ErrSessionFinished),
		errors.Is(err, domain.ErrAlreadyAnswered),
		errors.Is(err, domain.ErrSessionInProgress):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrEmptyQuestionPool):
		return http.StatusUnprocessableEntity, "empty_pool"
	case errors.Is(err, questionbank.ErrGeneratorDisabled):
		return http.StatusServiceUnavailable, "generator_disabled"
	case errors.Is(err, domain.ErrNoChoiceSelected),
		errors.Is(err, domain.ErrConfidenceRequired),
		errors.Is(err, domain.ErrInvalidChoice),
		errors.Is(err, domain.ErrInvalidConfidence),
		errors.Is(err, domain.ErrInvalidDifficulty),
		errors.Is(err, domain.ErrInvalidGrade),
		errors.Is(err, domain.ErrInvalidQuestion),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidReward),
		errors.Is(err, domain.ErrInvalidTheme),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "invalid_request"
	}
	var invalid *questionbank.ErrInvalidResponse
	if errors.As(err, &invalid) {
		return http.StatusBadGateway, "generator_response"
	}
	return http.StatusInternalServerError, "internal"
}

var errBadRequest = errors.New("bad request")

func respondError(c *gin.Context, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, errorEnvelope{Error: apiError{Message: msg, Code: code}})
}

var errForbiddenAdmin = fmt.Errorf("%w: admin only", domain.ErrForbidden)
