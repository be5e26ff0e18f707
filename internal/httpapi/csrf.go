package httpapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var csrfExemptPaths = map[string]bool{
	"/api/v1/auth/login": true,
}

// csrfToken signs the hour bucket (unix seconds truncated to the hour).
func (a *API) csrfToken(bucket int64) string {
	mac := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(mac, "%d", bucket)
	return hex.EncodeToString(mac.Sum(nil))
}

func (a *API) currentCSRFToken() string {
	return a.csrfToken(time.Now().UTC().Truncate(time.Hour).Unix())
}

// validCSRFToken accepts tokens of the current and the previous hour.
func (a *API) validCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	current := time.Now().UTC().Truncate(time.Hour).Unix()
	for _, bucket := range []int64{current, current - 3600} {
		if hmac.Equal([]byte(token), []byte(a.csrfToken(bucket))) {
			return true
		}
	}
	return false
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func (a *API) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	if !isMutating(r.Method) || csrfExemptPaths[r.URL.Path] {
		return true
	}
	if !a.validCSRFToken(strings.TrimSpace(r.Header.Get("X-CSRF-Token"))) {
		a.writeError(w, http.StatusForbidden, errors.New("missing or invalid CSRF token"))
		return false
	}
	return true
}

// handleCSRFToken hands out the token clients send as X-CSRF-Token on every
// mutating request.
func (a *API) handleCSRFToken(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"csrf_token": a.currentCSRFToken()})
}
