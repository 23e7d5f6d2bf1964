package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/ipcheck/ipcheck/pkg/defaults"
	"github.com/ipcheck/ipcheck/pkg/duration"
	"github.com/ipcheck/ipcheck/pkg/jsonutil"
)

// TabOpener opens a URL in a background browser tab.
type TabOpener interface {
	OpenBackgroundTab(ctx context.Context, url string) error
}

// jsonCodec frames messages as websocket text frames of JSON.
var jsonCodec = websocket.Codec{
	Marshal: func(v any) ([]byte, byte, error) {
		b, err := jsonutil.Marshal(v)
		return b, websocket.TextFrame, err
	},
	Unmarshal: func(data []byte, _ byte, v any) error {
		if err := jsonutil.UnmarshalLenient(data, v); err != nil {
			return fmt.Errorf("%w: %v", ErrBadMessage, err)
		}
		return nil
	},
}

// HandlerConfig configures the websocket endpoint.
type HandlerConfig struct {
	// AllowedOrigins restricts the Origin header. Empty allows any origin.
	AllowedOrigins []string

	// Opener serves OPEN_IN_BACKGROUND_TAB. Nil ignores those messages.
	Opener TabOpener

	Logger *slog.Logger
}

// Handler serves the bidirectional lookup stream. Every {ip} frame starts a
// lookup whose partial results are written back on the same connection.
// Lookups are not cancelled when the client goes away; each one runs until
// its scrapers finish so their windows are always released.
func Handler(svc *Service, cfg HandlerConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{svc: svc, cfg: cfg, logger: logger}
	return websocket.Server{
		Handshake: h.handshake,
		Handler:   h.serve,
	}
}

type handler struct {
	svc    *Service
	cfg    HandlerConfig
	logger *slog.Logger
}

func (h *handler) handshake(_ *websocket.Config, r *http.Request) error {
	if len(h.cfg.AllowedOrigins) == 0 {
		return nil
	}
	origin := r.Header.Get("Origin")
	if slices.Contains(h.cfg.AllowedOrigins, origin) {
		return nil
	}
	h.logger.Warn("stream origin refused", "origin", origin, "remote", r.RemoteAddr)
	return fmt.Errorf("stream: origin %q not allowed", origin)
}

// conn serializes writes from concurrent lookups.
type conn struct {
	ws     *websocket.Conn
	mu     sync.Mutex
	logger *slog.Logger
}

func (c *conn) send(m Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(duration.StreamWrite))
	if err := jsonCodec.Send(c.ws, m); err != nil {
		c.logger.Debug("stream send failed", "type", m.Type, "provider", m.Provider, "error", err)
	}
}

func (h *handler) serve(ws *websocket.Conn) {
	ws.MaxPayloadBytes = defaults.MaxRequestBody
	log := h.logger.With("remote", ws.Request().RemoteAddr)
	c := &conn{ws: ws, logger: log}
	ctx := context.WithoutCancel(ws.Request().Context())

	var inflight sync.WaitGroup
	defer inflight.Wait()

	log.Debug("stream connected")
	for {
		var req Request
		err := jsonCodec.Receive(ws, &req)
		if errors.Is(err, ErrBadMessage) {
			log.Warn("stream message ignored", "error", err)
			continue
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debug("stream closed", "error", err)
			}
			return
		}

		switch {
		case req.Type == TypeOpenTab:
			h.openTab(ctx, req.URL, log)
		case req.IP != "":
			inflight.Add(1)
			go func(ip string) {
				defer inflight.Done()
				h.svc.Lookup(ctx, ip, c.send)
			}(req.IP)
		default:
			log.Warn("stream message ignored", "type", req.Type)
		}
	}
}

// openTab is fire-and-forget: the sender expects no reply.
func (h *handler) openTab(ctx context.Context, rawURL string, log *slog.Logger) {
	if h.cfg.Opener == nil {
		log.Warn("background tab requested but no browser is attached")
		return
	}
	if err := ValidateTabURL(rawURL); err != nil {
		log.Warn("background tab refused", "error", err)
		return
	}
	go func() {
		tctx, cancel := context.WithTimeout(ctx, duration.TabAction)
		defer cancel()
		if err := h.cfg.Opener.OpenBackgroundTab(tctx, rawURL); err != nil {
			log.Warn("background tab failed", "url", rawURL, "error", err)
		}
	}()
}
