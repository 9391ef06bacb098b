package dispatcher

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"relaybot/internal/metrics"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const secretHeader = "X-Telegram-Bot-Api-Secret-Token"

// maxBody caps the webhook payload.
const maxBody = 1 << 20

// ServerConfig configures the webhook HTTP surface.
type ServerConfig struct {
	WebhookPath   string
	Secret        string
	HandleTimeout time.Duration
	// Ready reports backend readiness for /readyz. Nil means always ready.
	Ready func(ctx context.Context) error
}

// Server accepts webhook updates and hands them to the pool.
type Server struct {
	cfg        ServerConfig
	dispatcher *Dispatcher
	pool       *Pool
	base       context.Context
	logger     zerolog.Logger
}

// NewServer builds the webhook server. base bounds every handler run; it is
// the process lifetime context, not the request context.
func NewServer(base context.Context, cfg ServerConfig, d *Dispatcher, pool *Pool, logger zerolog.Logger) *Server {
	if cfg.WebhookPath == "" {
		cfg.WebhookPath = "/webhook"
	}
	if cfg.HandleTimeout <= 0 {
		cfg.HandleTimeout = 30 * time.Second
	}
	return &Server{
		cfg:        cfg,
		dispatcher: d,
		pool:       pool,
		base:       base,
		logger:     logger,
	}
}

// Handler returns the mux with the webhook, /healthz and /readyz routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.WebhookPath, s.webhook)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("running"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), time.Second)
			defer cancel()
			if err := s.cfg.Ready(ctx); err != nil {
				http.Error(w, "not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	return mux
}

func (s *Server) webhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.cfg.Secret != "" && r.Header.Get(secretHeader) != s.cfg.Secret {
		s.logger.Warn().Str("remote", r.RemoteAddr).Msg("webhook secret mismatch")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&update); err != nil {
		s.logger.Warn().Err(err).Msg("webhook payload unreadable")
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	ev := Classify(&update)
	requestID := uuid.New().String()
	lc := s.logger.With().
		Str("request_id", requestID).
		Int("update_id", update.UpdateID).
		Str("kind", ev.Kind())
	if sender, ok := eventSender(ev); ok {
		lc = lc.Int64("chat_id", sender.ChatID)
	}
	l := lc.Logger()

	if !s.pool.Submit(func() { s.run(l, ev) }) {
		metrics.IncEventDropped("busy")
		l.Warn().Msg("dispatcher busy, update dropped")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"ok":true}`))
}

func (s *Server) run(l zerolog.Logger, ev Event) {
	ctx, cancel := context.WithTimeout(s.base, s.cfg.HandleTimeout)
	defer cancel()
	ctx = l.WithContext(ctx)

	defer func() {
		if rec := recover(); rec != nil {
			l.Error().Interface("panic", rec).Msg("event handler panicked")
		}
	}()
	l.Debug().Msg("handling update")
	s.dispatcher.Handle(ctx, ev)
}
