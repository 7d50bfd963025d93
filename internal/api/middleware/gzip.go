package middleware

import (
	"compress/gzip"
	"encoding/json"
	"net/http"
	"strings"
)

// GzipRequestBody transparently decompresses request bodies sent with
// Content-Encoding: gzip so handlers always read plain JSON. Bodies that
// fail to decompress are rejected up front.
func GzipRequestBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.EqualFold(r.Header.Get("Content-Encoding"), "gzip") {
			gz, err := gzip.NewReader(r.Body)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"message": "failed to decompress gzipped content",
					"status":  http.StatusBadRequest,
				})
				return
			}
			defer gz.Close()
			r.Body = gz
			r.Header.Del("Content-Encoding")
			r.ContentLength = -1
		}
		next.ServeHTTP(w, r)
	})
}
