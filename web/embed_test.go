package web

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func get(t *testing.T, h http.Handler, target string) (int, string) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	body, err := io.ReadAll(w.Result().Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return w.Code, string(body)
}

func TestPagesHandler(t *testing.T) {
	h := PagesHandler()

	tests := []struct {
		target string
		want   string
	}{
		{"/", "Vehicle departure and return"},
		{"/checklist", "Vehicle checklist"},
		{"/lista", "<tbody id=\"registros\">"},
		{"/kiosk.js", "/ws/kiosk"},
		{"/no/such/page", "Vehicle departure and return"},
	}
	for _, tt := range tests {
		code, body := get(t, h, tt.target)
		if code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", tt.target, code)
			continue
		}
		if !strings.Contains(body, tt.want) {
			t.Errorf("%s: expected body to contain %q", tt.target, tt.want)
		}
	}
}
