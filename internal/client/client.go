// Package client talks to the decode, record lookup and asset detail
// endpoints of the fleetscan backend over JSON/HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ashureev/fleetscan/internal/workflow"
)

// maxResponseSize bounds how much of a response body is read.
const maxResponseSize = 1 << 20

var errMalformed = errors.New("malformed response")

// Config holds configuration for the backend client.
type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
	HTTPClient     *http.Client
	Logger         *slog.Logger
}

// DefaultConfig returns default configuration for the given base URL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:        baseURL,
		RequestTimeout: 10 * time.Second,
	}
}

// Backend implements the decode, record lookup and asset detail clients.
type Backend struct {
	baseURL *url.URL
	http    *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

var (
	_ workflow.DecodeClient       = (*Backend)(nil)
	_ workflow.RecordLookupClient = (*Backend)(nil)
	_ workflow.AssetDetailClient  = (*Backend)(nil)
)

// New creates a backend client.
func New(cfg Config) (*Backend, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("backend base URL is required")
	}
	u, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported backend URL scheme %q", u.Scheme)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Backend{
		baseURL: u,
		http:    httpClient,
		timeout: cfg.RequestTimeout,
		logger:  logger,
	}, nil
}

type decodeRequest struct {
	Image string `json:"image"`
}

type decodeResponse struct {
	Success *bool   `json:"success"`
	QRData  *string `json:"qr_data"`
}

// Decode sends frame to the decode endpoint. The image is sent as plain
// base64 with no data URI prefix.
func (b *Backend) Decode(ctx context.Context, frame workflow.CapturedFrame) (workflow.DecodeResult, error) {
	var resp decodeResponse
	req := decodeRequest{Image: base64.StdEncoding.EncodeToString(frame.Data)}
	if err := b.do(ctx, http.MethodPost, "/escaneo_qr", req, &resp, nil); err != nil {
		return workflow.DecodeResult{}, err
	}
	if resp.Success == nil {
		return workflow.DecodeResult{}, fmt.Errorf("%w: decode: %w: missing success", workflow.ErrTransport, errMalformed)
	}
	if !*resp.Success {
		return workflow.DecodeResult{Found: false}, nil
	}
	if resp.QRData == nil {
		return workflow.DecodeResult{}, fmt.Errorf("%w: decode: %w: missing qr_data", workflow.ErrTransport, errMalformed)
	}
	return workflow.DecodeResult{Found: true, Payload: *resp.QRData}, nil
}

type lookupRequest struct {
	QRData string `json:"qr_data"`
}

type lookupResponse struct {
	Exists              *bool  `json:"exists"`
	NombreTecnico       string `json:"nombre_tecnico"`
	UltimoMantenimiento string `json:"ultimo_mantenimiento"`
}

// LookupRecord asks whether a maintenance record exists for payload.
func (b *Backend) LookupRecord(ctx context.Context, payload string) (workflow.RecordLookupResult, error) {
	var resp lookupResponse
	if err := b.do(ctx, http.MethodPost, "/verificar_qr", lookupRequest{QRData: payload}, &resp, nil); err != nil {
		return workflow.RecordLookupResult{}, err
	}
	if resp.Exists == nil {
		return workflow.RecordLookupResult{}, fmt.Errorf("%w: record lookup: %w: missing exists", workflow.ErrTransport, errMalformed)
	}
	if !*resp.Exists {
		return workflow.RecordLookupResult{Exists: false}, nil
	}
	return workflow.RecordLookupResult{
		Exists: true,
		Fields: workflow.RecordFields{
			Technician:      resp.NombreTecnico,
			LastMaintenance: resp.UltimoMantenimiento,
		},
	}, nil
}

type assetResponse struct {
	Error               string     `json:"error"`
	Kilometraje         flexString `json:"kilometraje"`
	EstadoLlantas       flexString `json:"estado_llantas"`
	EstadoRines         flexString `json:"estado_rines"`
	DetallesRaspones    flexString `json:"detalles_raspones"`
	EstadoFaros         flexString `json:"estado_faros"`
	OtrosDetalles       flexString `json:"otros_detalles"`
	UltimaActualizacion flexString `json:"ultima_actualizacion"`
}

// AssetDetail fetches the checklist fields for identifier. A 404 (or a
// success body carrying an error) is reported as a missing asset.
func (b *Backend) AssetDetail(ctx context.Context, identifier string) (workflow.AssetDetailResult, error) {
	var resp assetResponse
	var missing *apiError
	err := b.do(ctx, http.MethodGet, "/get_car_details/"+url.PathEscape(identifier), nil, &resp, &missing)
	if err != nil {
		return workflow.AssetDetailResult{}, err
	}
	if missing != nil {
		return workflow.AssetDetailResult{Found: false, Reason: missing.Error}, nil
	}
	if resp.Error != "" {
		return workflow.AssetDetailResult{Found: false, Reason: resp.Error}, nil
	}
	return workflow.AssetDetailResult{
		Found: true,
		Fields: workflow.AssetFields{
			Mileage:            string(resp.Kilometraje),
			TireCondition:      string(resp.EstadoLlantas),
			RimCondition:       string(resp.EstadoRines),
			ScratchDetails:     string(resp.DetallesRaspones),
			HeadlightCondition: string(resp.EstadoFaros),
			OtherNotes:         string(resp.OtrosDetalles),
			LastUpdated:        string(resp.UltimaActualizacion),
		},
	}, nil
}

type apiError struct {
	Error string `json:"error"`
}

// do performs a JSON request. Any transport problem, non-2xx status or
// undecodable body is wrapped with workflow.ErrTransport. When notFound is
// non-nil, a 404 with an {error} body is decoded into it instead.
func (b *Backend) do(ctx context.Context, method, path string, body, out any, notFound **apiError) error {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", path, err)
		}
		reader = bytes.NewReader(data)
	}

	endpoint := b.baseURL.String() + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("%w: build request: %w", workflow.ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", workflow.ErrTransport, method, path, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			b.logger.Debug("failed to close response body", "path", path, "error", closeErr)
		}
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%w: read %s response: %w", workflow.ErrTransport, path, err)
	}

	if resp.StatusCode == http.StatusNotFound && notFound != nil {
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			*notFound = &apiErr
			return nil
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s %s: status %d: %s", workflow.ErrTransport, method, path, resp.StatusCode, errorMessage(data))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode %s response: %w", workflow.ErrTransport, path, err)
	}
	return nil
}

func errorMessage(data []byte) string {
	var apiErr apiError
	if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
		return apiErr.Error
	}
	return strings.TrimSpace(string(data))
}

// flexString decodes a JSON string, number or null into a string.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = flexString(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("expected string or number: %w", err)
	}
	*s = flexString(num.String())
	return nil
}
