package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/blogkeeper/internal/common"
	"github.com/dmitrijs2005/blogkeeper/internal/logging"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Details []common.FieldError `json:"details,omitempty"`
}

var errRouteNotFound = fmt.Errorf("route: %w", common.ErrorNotFound)

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

// Checked in order; the first match wins.
var errorMappings = []errorMapping{
	{common.ErrorValidation, http.StatusBadRequest, "VALIDATION_ERROR", "request validation failed"},
	{common.ErrorInvalidCredential, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid credentials"},
	{common.ErrorUnauthenticated, http.StatusUnauthorized, "UNAUTHENTICATED", "authentication required"},
	{common.ErrInvalidToken, http.StatusUnauthorized, "UNAUTHENTICATED", "authentication required"},
	{common.ErrTokenExpired, http.StatusUnauthorized, "UNAUTHENTICATED", "authentication required"},
	{common.ErrorForbidden, http.StatusForbidden, "FORBIDDEN", "insufficient permissions"},
	{common.ErrorNotFound, http.StatusNotFound, "NOT_FOUND", "resource not found"},
	{common.ErrorConflict, http.StatusConflict, "CONFLICT", "resource already exists"},
	{common.ErrorTooManyRequests, http.StatusTooManyRequests, "TOO_MANY_REQUESTS", "too many requests"},
	{common.ErrorTooLarge, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "payload too large"},
	{common.ErrorUpstream, http.StatusBadGateway, "UPSTREAM_ERROR", "upstream service failed"},
}

// errorResponder renders service errors as JSON envelopes. Unknown errors
// become 500 and are logged; their text never reaches the client.
type errorResponder struct {
	log logging.Logger
}

func (e errorResponder) write(w http.ResponseWriter, r *http.Request, err error) {
	status, body := e.classify(err)
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		e.log.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else if status == http.StatusBadGateway {
		e.log.Warn(r.Context(), "upstream failure", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, body)
}

func (e errorResponder) classify(err error) (int, ErrorResponse) {
	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		detail := ErrorDetail{Code: m.code, Message: m.message}
		var verr *common.ValidationError
		if errors.As(err, &verr) {
			detail.Details = verr.Fields
		}
		return m.status, ErrorResponse{Error: detail}
	}
	return http.StatusInternalServerError, ErrorResponse{Error: ErrorDetail{
		Code:    "INTERNAL_ERROR",
		Message: "internal server error",
	}}
}

// tooManyRequests answers 429 with a Retry-After header in whole seconds.
func (e errorResponder) tooManyRequests(w http.ResponseWriter, r *http.Request, retryAfter time.Duration) {
	seconds := int((retryAfter + time.Second - 1) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	e.write(w, r, common.ErrorTooManyRequests)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}
