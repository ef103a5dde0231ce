package kiosk

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/fleetscan/internal/workflow"
	"github.com/coder/websocket"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const writeTimeout = 5 * time.Second

// msgInvalidImage is shown when a scan carries an image that cannot be read.
const msgInvalidImage = "image could not be read, try again"

// Clients are the backend calls a kiosk session makes.
type Clients struct {
	Decode  workflow.DecodeClient
	Records workflow.RecordLookupClient
	Assets  workflow.AssetDetailClient
}

// Options configures a WebSocketHandler.
type Options struct {
	AllowedOrigin     string
	IsDev             bool
	ScanRatePerMinute int
	Logger            *slog.Logger
}

// WebSocketHandler handles kiosk websocket sessions.
type WebSocketHandler struct {
	clients       Clients
	reg           *Registry
	allowedOrigin string
	isDev         bool
	scanEvery     rate.Limit
	logger        *slog.Logger
}

// NewWebSocketHandler creates a new kiosk websocket handler.
func NewWebSocketHandler(clients Clients, reg *Registry, opts Options) *WebSocketHandler {
	perMinute := opts.ScanRatePerMinute
	if perMinute <= 0 {
		perMinute = 30
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{
		clients:       clients,
		reg:           reg,
		allowedOrigin: opts.AllowedOrigin,
		isDev:         opts.IsDev,
		scanEvery:     rate.Every(time.Minute / time.Duration(perMinute)),
		logger:        logger,
	}
}

// inMessage is a message from the kiosk page.
type inMessage struct {
	Type  string `json:"type"`
	Image string `json:"image,omitempty"`
	Value string `json:"value,omitempty"`
}

// outMessage is a message to the kiosk page.
type outMessage struct {
	Type   string            `json:"type"`
	Fields map[string]string `json:"fields,omitempty"`
}

// wsForm is the Form of a kiosk session. Patches are queued for the writer.
type wsForm struct {
	ctx context.Context
	out chan<- outMessage
}

func (f *wsForm) Apply(patch workflow.Patch) {
	fields := make(map[string]string, len(patch))
	for k, v := range patch {
		fields[string(k)] = v
	}
	select {
	case f.out <- outMessage{Type: "fields", Fields: fields}:
	case <-f.ctx.Done():
	}
}

// session is the per-connection state.
type session struct {
	still   *workflow.StillFrame
	scan    *workflow.ScanOrchestrator
	lookup  *workflow.LookupOrchestrator
	limiter *rate.Limiter
	out     chan outMessage
	logger  *slog.Logger
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := uuid.NewString()
	logger := h.logger.With("session_id", sessionID)
	logger.Info("Kiosk connection request", "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		logger.Error("Failed to accept WebSocket", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			logger.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	h.reg.Register(sessionID, ws)
	defer h.reg.Unregister(sessionID, ws)

	g, ctx := errgroup.WithContext(r.Context())

	out := make(chan outMessage, 16)
	form := &wsForm{ctx: ctx, out: out}
	still := &workflow.StillFrame{}
	s := &session{
		still:   still,
		scan:    workflow.NewScanOrchestrator(still, h.clients.Decode, h.clients.Records, form, logger),
		lookup:  workflow.NewLookupOrchestrator(h.clients.Assets, form, logger),
		limiter: rate.NewLimiter(h.scanEvery, 1),
		out:     out,
		logger:  logger,
	}

	g.Go(func() error { return h.readLoop(ctx, g, ws, s) })
	g.Go(func() error { return h.writeLoop(ctx, ws, out) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Debug("Kiosk session loop ended", "error", err)
	}
	logger.Info("Kiosk session ended")
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	h.logger.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

// readLoop dispatches inbound messages. Scans and lookups run on their own
// goroutines so a slow backend never blocks the connection.
func (h *WebSocketHandler) readLoop(ctx context.Context, g *errgroup.Group, ws *websocket.Conn, s *session) error {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				s.logger.Debug("WebSocket closed by client")
				return context.Canceled
			}
			return err
		}

		var msg inMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn("Ignoring malformed kiosk message", "error", err)
			continue
		}

		switch msg.Type {
		case "frame":
			s.setFrame(msg.Image)
		case "scan":
			if msg.Image != "" && !s.setFrame(msg.Image) {
				s.send(ctx, outMessage{Type: "fields", Fields: map[string]string{
					string(workflow.FieldMessage): msgInvalidImage,
				}})
				continue
			}
			if !s.limiter.Allow() {
				s.logger.Info("Scan rate limited")
				s.send(ctx, outMessage{Type: "busy"})
				continue
			}
			g.Go(func() error {
				if _, err := s.scan.RunScan(ctx); errors.Is(err, workflow.ErrScanInProgress) {
					s.send(ctx, outMessage{Type: "busy"})
				}
				return nil
			})
		case "identifier":
			value := msg.Value
			g.Go(func() error {
				_, _ = s.lookup.OnIdentifierChanged(ctx, value)
				return nil
			})
		case "ping":
			s.send(ctx, outMessage{Type: "pong"})
		default:
			s.logger.Debug("Unknown kiosk message type", "type", msg.Type)
		}
	}
}

func (h *WebSocketHandler) writeLoop(ctx context.Context, ws *websocket.Conn, out <-chan outMessage) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-out:
			data, err := json.Marshal(msg)
			if err != nil {
				return err
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = ws.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}

// setFrame stores a pushed still. Invalid payloads are logged and dropped.
func (s *session) setFrame(image string) bool {
	frame, err := workflow.FrameFromDataURI(strings.TrimSpace(image))
	if err != nil {
		s.logger.Warn("Ignoring invalid frame", "error", err)
		return false
	}
	s.still.Set(frame)
	return true
}

func (s *session) send(ctx context.Context, msg outMessage) {
	select {
	case s.out <- msg:
	case <-ctx.Done():
	}
}
