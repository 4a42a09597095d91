package handlers

import (
	"encoding/json"
	"net/http"
)

// writeJSON renders v as a JSON body. Business errors of both dialects go
// out with status 200; only transport-level failures use other codes.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// writeUpstream relays a proxied upstream reply verbatim.
func writeUpstream(w http.ResponseWriter, statusCode int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(body)
}

// internalError is the shape unexpected failures surface with.
func internalError(w http.ResponseWriter) {
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "Internal server error.",
	})
}

// requestURL reconstructs the full URL the client signed: scheme, host,
// path and query string.
func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
