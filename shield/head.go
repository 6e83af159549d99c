package shield

import (
	"net/http"
	"strings"
)

// HeadToGet serves HEAD through the GET routes and drops the body the
// handler writes. HEAD on a path under one of the expensive prefixes
// answers 405 instead, so a link checker never starts a browser capture.
func HeadToGet(expensive ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}
			for _, p := range expensive {
				if strings.HasPrefix(r.URL.Path, p) {
					w.Header().Set("Allow", http.MethodGet)
					w.WriteHeader(http.StatusMethodNotAllowed)
					return
				}
			}
			r.Method = http.MethodGet
			next.ServeHTTP(headWriter{w}, r)
		})
	}
}

// headWriter keeps status and headers and discards the body.
type headWriter struct {
	http.ResponseWriter
}

func (w headWriter) Write(b []byte) (int, error) { return len(b), nil }
