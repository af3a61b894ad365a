package security

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func echoBody(captured *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		*captured = string(data)
		w.WriteHeader(http.StatusOK)
	})
}

func TestBodyLimit(t *testing.T) {
	cases := []struct {
		name          string
		body          string
		contentLength int64
		wantStatus    int
	}{
		{name: "within limit", body: "hello", contentLength: 5, wantStatus: http.StatusOK},
		{name: "declared oversized", body: "content", contentLength: 100, wantStatus: http.StatusRequestEntityTooLarge},
		{name: "streamed oversized", body: "excessive payload", contentLength: -1, wantStatus: http.StatusRequestEntityTooLarge},
		{name: "streamed within limit", body: "tiny", contentLength: -1, wantStatus: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var captured string
			handler := BodyLimit{Max: 10}.Middleware(echoBody(&captured))

			req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(tc.body))
			req.ContentLength = tc.contentLength
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, rr.Code)
			}
			if tc.wantStatus == http.StatusOK && captured != tc.body {
				t.Fatalf("expected body to pass through, got %q", captured)
			}
			if tc.wantStatus == http.StatusRequestEntityTooLarge && !strings.Contains(rr.Body.String(), `"PAYLOAD_TOO_LARGE"`) {
				t.Fatalf("expected error envelope, got %s", rr.Body.String())
			}
		})
	}
}

func TestBodyLimitDisabled(t *testing.T) {
	var captured string
	handler := BodyLimit{}.Middleware(echoBody(&captured))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 64))))
	if rr.Code != http.StatusOK || len(captured) != 64 {
		t.Fatalf("expected passthrough, got %d with %d bytes", rr.Code, len(captured))
	}
}
