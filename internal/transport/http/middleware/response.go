package middleware

import (
	"encoding/json"
	"net/http"
)

// writeJSONError writes a failure envelope with the correct Content-Type.
// Kept in sync with the handler package's envelope shape.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success":    false,
		"statusCode": status,
		"message":    msg,
		"error":      msg,
	})
}
