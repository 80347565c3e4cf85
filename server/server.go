package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/Ashenafi-pixel/prize-draw-ledger/config"
	"github.com/Ashenafi-pixel/prize-draw-ledger/events"
	"github.com/Ashenafi-pixel/prize-draw-ledger/lottery"
	"github.com/Ashenafi-pixel/prize-draw-ledger/metrics"
	"github.com/Ashenafi-pixel/prize-draw-ledger/reconcile"
	"github.com/Ashenafi-pixel/prize-draw-ledger/token"
)

type Server struct {
	cfg      *config.Config
	svc      *lottery.Service
	bus      *events.Bus
	metrics  *metrics.Metrics
	recon    *reconcile.Reconciler
	issuer   token.Issuer
	auth     *Authenticator
	log      logrus.FieldLogger
	upgrader websocket.Upgrader
}

// New wires the HTTP API. bus, m and recon may be nil; the routes that
// need them then answer 503.
func New(cfg *config.Config, svc *lottery.Service, bus *events.Bus, m *metrics.Metrics, recon *reconcile.Reconciler, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{
		cfg:     cfg,
		svc:     svc,
		bus:     bus,
		metrics: m,
		recon:   recon,
		auth:    NewAuthenticator(cfg.JWTSecret),
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// WithTokenIssuer enables the /api/admin/token routes for a token hosted in
// this process.
func (s *Server) WithTokenIssuer(iss token.Issuer) *Server {
	s.issuer = iss
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.health)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /ws/events", s.handleEvents)

	mux.HandleFunc("GET /api/ledger", s.handleLedger)
	mux.HandleFunc("GET /api/prizes", s.handlePrizes)
	mux.HandleFunc("GET /api/prizes/{index}", s.handlePrize)
	mux.HandleFunc("POST /api/prizes", s.handleAddPrize)
	mux.HandleFunc("PUT /api/prizes/{index}", s.handleUpdatePrize)
	mux.HandleFunc("GET /api/players/{account}", s.handlePlayer)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /api/history/{index}", s.handleHistoryEntry)
	mux.HandleFunc("GET /api/simulate", s.handleSimulate)
	mux.HandleFunc("POST /api/tickets", s.handleBuyTickets)

	// Admin: the caller must be the configured admin identity.
	mux.HandleFunc("POST /api/admin/deposit", s.handleDeposit)
	mux.HandleFunc("POST /api/admin/withdraw", s.handleWithdraw)
	mux.HandleFunc("PUT /api/admin/price", s.handleSetPrice)
	mux.HandleFunc("GET /api/admin/reconcile", s.handleReconcile)
	mux.HandleFunc("POST /api/admin/token/approve", s.handleTokenApprove)
	mux.HandleFunc("POST /api/admin/token/mint", s.handleTokenMint)
	mux.HandleFunc("POST /api/admin/token/burn", s.handleTokenBurn)

	var h http.Handler = mux
	if s.metrics != nil {
		h = s.metrics.InstrumentHandler(h)
	}
	return cors(s.requestLogger(h))
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	port := s.cfg.Port
	if port <= 0 {
		port = 8081
	}
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.WithFields(logrus.Fields{"addr": srv.Addr, "admin": s.svc.Admin(), "account": s.svc.Account()}).Info("draw ledger listening")
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func cors(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// requestLogger logs method, path and latency for each request (no body or secrets).
func (s *Server) requestLogger(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		h.ServeHTTP(w, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).String(),
		}).Debug("request")
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "draw-ledger"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		writeError(w, http.StatusServiceUnavailable, "metrics disabled", "UNAVAILABLE")
		return
	}
	s.metrics.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
