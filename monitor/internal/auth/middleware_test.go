package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func call(h http.Handler, header, key string) int {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/inject", nil)
	if key != "" {
		req.Header.Set(header, key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		mode     string
		key      string
		sent     string
		wantCode int
	}{
		{"mode none passes", "none", "secret", "", http.StatusNoContent},
		{"empty mode passes", "", "secret", "", http.StatusNoContent},
		{"unconfigured key passes", "apikey", "", "", http.StatusNoContent},
		{"correct key", "apikey", "supersecret", "supersecret", http.StatusNoContent},
		{"wrong key", "apikey", "supersecret", "guess", http.StatusUnauthorized},
		{"missing key", "apikey", "supersecret", "", http.StatusUnauthorized},
		{"prefix of key", "apikey", "supersecret", "super", http.StatusUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := APIKey(tc.mode, "X-API-Key", tc.key)(okHandler)
			if got := call(h, "X-API-Key", tc.sent); got != tc.wantCode {
				t.Errorf("status: got %d, want %d", got, tc.wantCode)
			}
		})
	}
}

func TestAPIKey_HeaderCaseInsensitive(t *testing.T) {
	h := APIKey("apikey", "x-api-key", "k")(okHandler)
	if got := call(h, "X-Api-Key", "k"); got != http.StatusNoContent {
		t.Errorf("status: got %d, want %d", got, http.StatusNoContent)
	}
}
