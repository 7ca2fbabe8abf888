package endpoint

import (
	"encoding/json"
	"errors"
	"net/http"

	model "github.com/viant/intake/model/workflow"
	"github.com/viant/intake/service/dao"
	"github.com/viant/intake/service/normalizer"
	"github.com/viant/intake/service/token"
	"github.com/viant/intake/service/workflow"
)

// statusOf maps an engine error to an HTTP status.
func statusOf(err error) int {
	switch token.KindOf(err) {
	case token.KindMissing, token.KindInvalid:
		return http.StatusBadRequest
	case token.KindUnknown:
		return http.StatusNotFound
	case token.KindExpired:
		return http.StatusGone
	case token.KindRedeemed:
		return http.StatusConflict
	}
	switch {
	case errors.Is(err, normalizer.ErrValidation),
		errors.Is(err, workflow.ErrInvalidDecision):
		return http.StatusBadRequest
	case errors.Is(err, dao.ErrNotFound), errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, dao.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

var statusMessages = map[int]string{
	http.StatusBadRequest: "invalid token",
	http.StatusNotFound:   "unknown token",
	http.StatusGone:       "this link has expired",
	http.StatusConflict:   "a decision has already been recorded",
}

// messageOf returns the reviewer facing text for a failed redemption.
func messageOf(status int, err error) string {
	if message, ok := statusMessages[status]; ok {
		return message
	}
	var downstream *model.DownstreamError
	if errors.As(err, &downstream) {
		return "the decision was recorded but processing failed: " + downstream.Reason
	}
	return "internal error"
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeText(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(message + "\n"))
}
