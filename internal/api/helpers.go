// Package api serves the local control API of the sync daemon.
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

var validate = validator.New()

// writeJSON encodes v before touching the response so an encoding failure
// never leaves a partial body.
func writeJSON(w http.ResponseWriter, log logrus.FieldLogger, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		log.WithError(err).Error("Failed to encode response")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.WithError(err).Warn("Failed to write response")
	}
}

// decodeJSON reads and validates a request body. It writes a 400 and returns
// false when the body is not acceptable.
func decodeJSON(w http.ResponseWriter, r *http.Request, log logrus.FieldLogger, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		log.WithError(err).Debug("Failed to decode request")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			http.Error(w, fmt.Sprintf("%s failed on %q", verrs[0].Field(), verrs[0].Tag()), http.StatusBadRequest)
			return false
		}
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// ScheduleResponse tells whether a request was admitted by the scheduler.
type ScheduleResponse struct {
	Scheduled bool `json:"scheduled"`
}

func scheduleStatus(scheduled bool) int {
	if scheduled {
		return http.StatusAccepted
	}
	return http.StatusOK
}
