// Package middleware provides HTTP middleware for the decoy API.
package middleware

import (
	"encoding/json"
	"net/http"
)

// writeError writes the API's JSON error shape. It mirrors api.Error without
// importing the api package.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "error",
		"message": message,
	})
}
