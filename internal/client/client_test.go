package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ashureev/fleetscan/internal/workflow"
)

func newTestBackend(t *testing.T, h http.HandlerFunc) *Backend {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	b, err := New(Config{BaseURL: srv.URL, RequestTimeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestNew_RejectsBadURL(t *testing.T) {
	for _, u := range []string{"", "ftp://example.com", "://bad"} {
		if _, err := New(Config{BaseURL: u}); err == nil {
			t.Errorf("Expected error for %q", u)
		}
	}
}

func TestDecode_SendsPlainBase64(t *testing.T) {
	var got decodeRequest
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/escaneo_qr" {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		writeJSON(w, http.StatusOK, `{"success":true,"qr_data":"ABC123"}`)
	})

	res, err := b.Decode(context.Background(), workflow.CapturedFrame{Data: []byte("img"), Encoding: "image/png"})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !res.Found || res.Payload != "ABC123" {
		t.Errorf("Unexpected result %+v", res)
	}
	if got.Image != base64.StdEncoding.EncodeToString([]byte("img")) {
		t.Errorf("Expected plain base64 image, got %q", got.Image)
	}
}

func TestDecode_Classification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantFound bool
		wantErr   bool
	}{
		{"not found", http.StatusOK, `{"success":false,"message":"no QR code detected"}`, false, false},
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`, false, true},
		{"bad request", http.StatusBadRequest, `{"error":"invalid image"}`, false, true},
		{"malformed json", http.StatusOK, `{"success":`, false, true},
		{"missing discriminator", http.StatusOK, `{}`, false, true},
		{"success without payload", http.StatusOK, `{"success":true}`, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBackend(t, func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})
			res, err := b.Decode(context.Background(), workflow.CapturedFrame{})
			if tt.wantErr {
				if !errors.Is(err, workflow.ErrTransport) {
					t.Fatalf("Expected ErrTransport, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if res.Found != tt.wantFound {
				t.Errorf("Expected found=%v, got %+v", tt.wantFound, res)
			}
		})
	}
}

func TestDecode_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	b, err := New(DefaultConfig(url))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := b.Decode(context.Background(), workflow.CapturedFrame{}); !errors.Is(err, workflow.ErrTransport) {
		t.Errorf("Expected ErrTransport, got %v", err)
	}
}

func TestLookupRecord(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    workflow.RecordLookupResult
		wantErr bool
	}{
		{
			name:   "existing",
			status: http.StatusOK,
			body:   `{"exists":true,"nombre_tecnico":"J. Perez","ultimo_mantenimiento":"2024-01-10"}`,
			want: workflow.RecordLookupResult{
				Exists: true,
				Fields: workflow.RecordFields{Technician: "J. Perez", LastMaintenance: "2024-01-10"},
			},
		},
		{name: "new", status: http.StatusOK, body: `{"exists":false}`},
		{name: "database error", status: http.StatusInternalServerError, body: `{"error":"db down"}`, wantErr: true},
		{name: "missing exists", status: http.StatusOK, body: `{"error":"odd"}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sent lookupRequest
			b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/verificar_qr" {
					t.Errorf("Unexpected path %s", r.URL.Path)
				}
				_ = json.NewDecoder(r.Body).Decode(&sent)
				writeJSON(w, tt.status, tt.body)
			})
			got, err := b.LookupRecord(context.Background(), "ABC123")
			if tt.wantErr {
				if !errors.Is(err, workflow.ErrTransport) {
					t.Fatalf("Expected ErrTransport, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("LookupRecord: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
			if sent.QRData != "ABC123" {
				t.Errorf("Expected qr_data ABC123 sent, got %q", sent.QRData)
			}
		})
	}
}

func TestAssetDetail_Found(t *testing.T) {
	var path string
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.EscapedPath()
		writeJSON(w, http.StatusOK, `{
			"numero_coche": "CAR 7",
			"kilometraje": 120345,
			"estado_llantas": "good",
			"estado_rines": "scuffed",
			"detalles_raspones": "rear bumper",
			"estado_faros": "ok",
			"otros_detalles": null,
			"ultima_actualizacion": "2024-03-02 10:15:00"
		}`)
	})

	res, err := b.AssetDetail(context.Background(), "CAR 7")
	if err != nil {
		t.Fatalf("AssetDetail: %v", err)
	}
	if path != "/get_car_details/CAR%207" {
		t.Errorf("Expected escaped path, got %q", path)
	}
	want := workflow.AssetFields{
		Mileage:            "120345",
		TireCondition:      "good",
		RimCondition:       "scuffed",
		ScratchDetails:     "rear bumper",
		HeadlightCondition: "ok",
		OtherNotes:         "",
		LastUpdated:        "2024-03-02 10:15:00",
	}
	if !res.Found || res.Fields != want {
		t.Errorf("Expected %+v, got %+v", want, res)
	}
}

func TestAssetDetail_Missing(t *testing.T) {
	b := newTestBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, `{"error":"car not found"}`)
	})

	res, err := b.AssetDetail(context.Background(), "CAR-404")
	if err != nil {
		t.Fatalf("AssetDetail: %v", err)
	}
	if res.Found || res.Reason != "car not found" {
		t.Errorf("Expected missing with reason, got %+v", res)
	}
}

func TestAssetDetail_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"error":"db down"}`},
		{"plain 404", http.StatusNotFound, `404 page not found`},
		{"bad field type", http.StatusOK, `{"kilometraje": {"nested": true}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBackend(t, func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})
			if _, err := b.AssetDetail(context.Background(), "CAR-1"); !errors.Is(err, workflow.ErrTransport) {
				t.Errorf("Expected ErrTransport, got %v", err)
			}
		})
	}
}

func TestRequestTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(block)
		srv.Close()
	})

	b, err := New(Config{BaseURL: srv.URL, RequestTimeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := b.LookupRecord(context.Background(), "slow"); !errors.Is(err, workflow.ErrTransport) {
		t.Errorf("Expected ErrTransport on timeout, got %v", err)
	}
}
