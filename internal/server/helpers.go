package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rendis/erdstudio/internal/pipeline"
	"github.com/rendis/erdstudio/pkg/schema"
)

type apiError struct {
	Code        string         `json:"code"`
	Message     string         `json:"message"`
	UserMessage string         `json:"user_message"`
	Details     map[string]any `json:"details,omitempty"`
}

type errorBody struct {
	Error apiError           `json:"error"`
	State *pipeline.Snapshot `json:"state,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status code and writes it with the optional
// session snapshot.
func writeError(w http.ResponseWriter, err error, state *pipeline.Snapshot) {
	body := errorBody{State: state}
	var erdErr *schema.ErdError
	if errors.As(err, &erdErr) {
		body.Error = apiError{
			Code:        erdErr.Code,
			Message:     erdErr.Message,
			UserMessage: schema.UserMessage(err),
			Details:     erdErr.Details,
		}
	} else {
		body.Error = apiError{Code: "INTERNAL", Message: err.Error(), UserMessage: schema.UserMessage(err)}
	}
	writeJSON(w, statusFor(body.Error.Code), body)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeError(w, schema.NewError(schema.ErrCodeValidation, msg), nil)
}

func statusFor(code string) int {
	switch code {
	case schema.ErrCodeValidation:
		return http.StatusBadRequest
	case schema.ErrCodeNotFound:
		return http.StatusNotFound
	case schema.ErrCodePipelineBusy, schema.ErrCodeInvalidTransition,
		schema.ErrCodeRenderSuperseded, schema.ErrCodeNothingToExport, schema.ErrCodeCancelled:
		return http.StatusConflict
	case schema.ErrCodeExtractionCorrupt, schema.ErrCodeExtractionEmpty,
		schema.ErrCodeInvalidSyntax, schema.ErrCodeRasterizationFailed:
		return http.StatusUnprocessableEntity
	case schema.ErrCodeSynthesisUnavailable, schema.ErrCodeSynthesisMalformed:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// queryInt extracts an integer query param with a default value.
func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
