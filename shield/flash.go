package shield

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"unicode/utf8"
)

// FlashKind selects the toast style of a flash message.
type FlashKind string

const (
	FlashSuccess FlashKind = "success" // entry saved
	FlashError   FlashKind = "error"   // entry rejected or save failed
)

const (
	flashCookie = "zona9_flash"
	// maxFlashLen keeps the cookie well under the 4 KiB browser limit; save
	// errors can quote a whole form field.
	maxFlashLen = 512
)

// FlashMessage is a one-time notification rendered as a toast on the next
// page load.
type FlashMessage struct {
	Type    FlashKind
	Message string
}

// GetFlash returns the flash message of the request, nil if none.
func GetFlash(ctx context.Context) *FlashMessage {
	v, _ := ctx.Value(FlashKey).(*FlashMessage)
	return v
}

// SetFlash queues a message for the page the response redirects to. The
// cookie lives 10 seconds.
func SetFlash(w http.ResponseWriter, kind FlashKind, message string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    base64.RawURLEncoding.EncodeToString([]byte(string(kind) + "\n" + truncate(message, maxFlashLen))),
		Path:     "/",
		MaxAge:   10,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Flash moves the flash cookie into the request context and clears it.
// Cookies of an unknown kind or that do not decode are dropped.
func Flash(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(flashCookie)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: flashCookie, Path: "/", MaxAge: -1})

		if msg, ok := decodeFlash(cookie.Value); ok {
			r = r.WithContext(context.WithValue(r.Context(), FlashKey, msg))
		}
		next.ServeHTTP(w, r)
	})
}

func decodeFlash(v string) (*FlashMessage, bool) {
	raw, err := base64.RawURLEncoding.DecodeString(v)
	if err != nil {
		return nil, false
	}
	kind, text, ok := strings.Cut(string(raw), "\n")
	if !ok || text == "" {
		return nil, false
	}
	switch k := FlashKind(kind); k {
	case FlashSuccess, FlashError:
		return &FlashMessage{Type: k, Message: truncate(text, maxFlashLen)}, true
	}
	return nil, false
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s + "…"
}
