package httpx

import (
	"encoding/json"
	"net/http"
	"strings"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	var body []byte
	var err error
	if payload != nil {
		body, err = json.Marshal(payload)
		if err != nil {
			http.Error(w, `{"error":"encode_error"}`, http.StatusInternalServerError)
			return
		}
	} else {
		body = []byte("null")
	}
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func JSONError(w http.ResponseWriter, status int, msg string, details any) {
	JSON(w, status, ErrorResponse{Error: msg, Details: details})
}

// WantsJSON reports whether the client asked for JSON rather than HTML,
// either through Accept or by posting a JSON body.
func WantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}
