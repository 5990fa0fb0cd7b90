// Package respond writes the JSON envelope every API response shares.
package respond

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/vidtube/backend/internal/apierror"
	"github.com/vidtube/backend/internal/logging"
)

// Envelope is the body of every response.
type Envelope struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

// Failure is the envelope of an error response.
type Failure struct {
	Envelope
	Errors []string `json:"errors"`
}

// JSON writes a success envelope.
func JSON(ctx context.Context, w http.ResponseWriter, status int, data any, message string) {
	write(ctx, w, status, Envelope{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    status < http.StatusBadRequest,
	})
}

// Error writes the failure envelope for err. Unclassified errors become 500s
// and their cause is only logged.
func Error(ctx context.Context, w http.ResponseWriter, err error) {
	apiErr := apierror.From(err)
	status := apiErr.Status()

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "message", apiErr.Message, "error", err, "stack", apiErr.Stack())
	default:
		logger.Warn("request returned client error", "status", status, "message", apiErr.Message, "error", err)
	}

	details := apiErr.Details
	if details == nil {
		details = []string{}
	}
	write(ctx, w, status, Failure{
		Envelope: Envelope{StatusCode: status, Message: apiErr.Message},
		Errors:   details,
	})
}

func write(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
	}
}
