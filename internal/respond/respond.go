// Package respond writes the JSON bodies shared by the handlers and the
// middleware, so every response the API produces uses the same envelope.
package respond

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/storefront/internal/model"
)

// InternalErrorMessage is the only detail a client sees for a 500.
const InternalErrorMessage = "internal server error"

// JSON writes data as a JSON body with the given status. A nil data writes
// the status alone.
func JSON(w http.ResponseWriter, logger *zap.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}

// Error writes the error envelope.
func Error(w http.ResponseWriter, logger *zap.Logger, status int, message string) {
	JSON(w, logger, status, model.ErrorResponse{
		Code:    status,
		Message: message,
	})
}
