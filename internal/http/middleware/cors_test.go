package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCORSPolicies(t *testing.T) {
	widget := CORSPolicy{
		AllowedOrigins: []string{"*"},
		Methods:        []string{http.MethodPost, http.MethodOptions},
		Headers:        []string{"Content-Type"},
	}
	site := CORSPolicy{AllowedOrigins: []string{" https://askstuart.com.au ", ""}, MaxAge: time.Hour}

	cases := []struct {
		name        string
		policy      CORSPolicy
		method      string
		origin      string
		preflight   bool
		wantOrigin  string
		wantVary    string
		wantMethods string
		wantHeaders string
		wantMaxAge  string
		wantNext    bool
	}{
		{
			name: "wildcard without origin header", policy: widget, method: http.MethodPost,
			wantOrigin: "*", wantMethods: "POST, OPTIONS", wantHeaders: "Content-Type", wantMaxAge: "86400", wantNext: true,
		},
		{
			name: "listed origin is echoed", policy: site, method: http.MethodGet, origin: "https://askstuart.com.au",
			wantOrigin: "https://askstuart.com.au", wantVary: "Origin", wantMethods: "GET, POST, OPTIONS",
			wantHeaders: "Content-Type, Authorization", wantMaxAge: "3600", wantNext: true,
		},
		{
			name: "unlisted origin gets no headers", policy: site, method: http.MethodGet, origin: "https://evil.example",
			wantNext: true,
		},
		{
			name: "preflight short-circuits", policy: widget, method: http.MethodOptions, origin: "https://askstuart.com.au", preflight: true,
			wantOrigin: "*", wantMethods: "POST, OPTIONS", wantHeaders: "Content-Type", wantMaxAge: "86400",
		},
		{
			name: "bare OPTIONS reaches the handler", policy: widget, method: http.MethodOptions,
			wantOrigin: "*", wantMethods: "POST, OPTIONS", wantHeaders: "Content-Type", wantMaxAge: "86400", wantNext: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reached := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				reached = true
				w.WriteHeader(http.StatusAccepted)
			})

			req := httptest.NewRequest(tc.method, "/api/messages", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			if tc.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rec := httptest.NewRecorder()
			CORS(tc.policy)(next).ServeHTTP(rec, req)

			h := rec.Header()
			assert.Equal(t, tc.wantOrigin, h.Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tc.wantVary, h.Get("Vary"))
			assert.Equal(t, tc.wantMethods, h.Get("Access-Control-Allow-Methods"))
			assert.Equal(t, tc.wantHeaders, h.Get("Access-Control-Allow-Headers"))
			assert.Equal(t, tc.wantMaxAge, h.Get("Access-Control-Max-Age"))
			assert.Equal(t, tc.wantNext, reached)
			if tc.wantNext {
				assert.Equal(t, http.StatusAccepted, rec.Code)
			} else {
				assert.Equal(t, http.StatusOK, rec.Code)
				assert.Zero(t, rec.Body.Len())
			}
		})
	}
}
