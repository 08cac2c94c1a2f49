// Package dashboard serves the JSON API the grid frontend talks to: OAuth
// login, account listing, grouped position rows with exit reconciliation,
// and exit order placement.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/optlens/optlens/internal/auth"
	"github.com/optlens/optlens/internal/broker"
	"github.com/optlens/optlens/internal/engine"
	"github.com/optlens/optlens/internal/models"
)

// sessionHeader carries the session id issued during login.
const sessionHeader = "X-Session-Id"

// Server is the dashboard HTTP server.
type Server struct {
	router *chi.Mux
	server *http.Server
	auth   *auth.Manager
	engine engine.Config
	logger *logrus.Logger
	port   int
	now    func() time.Time
}

// Config holds the server tunables.
type Config struct {
	Port   int
	Engine engine.Config
}

// NewServer creates a dashboard server around the auth manager.
func NewServer(cfg Config, manager *auth.Manager, logger *logrus.Logger) *Server {
	s := &Server{
		router: chi.NewRouter(),
		auth:   manager,
		engine: cfg.Engine,
		logger: logger,
		port:   cfg.Port,
		now:    time.Now,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/auth/status", s.handleAuthStatus)
		r.Post("/auth/request-token", s.handleRequestToken)
		r.Post("/auth/access-token", s.handleAccessToken)
		r.Post("/auth/logout", s.handleLogout)

		r.Get("/accounts", s.handleAccounts)
		r.Route("/accounts/{accountIDKey}", func(r chi.Router) {
			r.Get("/positions", s.handlePositions)
			r.Get("/balance", s.handleBalance)
			r.Post("/orders", s.handlePlaceOrder)
			r.Delete("/orders/{orderID}", s.handleCancelOrder)
		})
	})
}

// Start runs the server until it is shut down.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.router,
	}

	s.logger.Infof("Starting dashboard server on port %d", s.port)
	return s.server.ListenAndServe()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// ============ Auth Handlers ============

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": s.now().Unix(),
	})
}

func (s *Server) handleAuthStatus(w http.ResponseWriter, _ *http.Request) {
	if sessionID, ok := s.auth.Restore(); ok {
		s.writeJSON(w, http.StatusOK, map[string]any{
			"authenticated": true,
			"sessionId":     sessionID,
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
}

func (s *Server) handleRequestToken(w http.ResponseWriter, _ *http.Request) {
	sessionID, authorizeURL, err := s.auth.RequestToken()
	if err != nil {
		s.logger.WithError(err).Error("Failed to start OAuth flow")
		s.writeError(w, http.StatusBadGateway, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"sessionId":    sessionID,
		"authorizeUrl": authorizeURL,
	})
}

func (s *Server) handleAccessToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SessionID    string `json:"sessionId"`
		VerifierCode string `json:"verifierCode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("request body required"))
		return
	}
	if body.SessionID == "" || body.VerifierCode == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("sessionId and verifierCode are required"))
		return
	}

	if err := s.auth.AccessToken(body.SessionID, strings.TrimSpace(body.VerifierCode)); err != nil {
		if errors.Is(err, auth.ErrUnknownSession) {
			s.writeError(w, http.StatusUnauthorized, err)
			return
		}
		s.logger.WithError(err).Error("Failed to exchange verifier")
		s.writeError(w, http.StatusBadGateway, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	if err := s.auth.Logout(); err != nil {
		s.logger.WithError(err).Error("Failed to clear auth cache")
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// ============ Account Handlers ============

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	b, ok := s.sessionBroker(w, r)
	if !ok {
		return
	}

	accounts, err := b.ListAccounts(r.Context())
	if err != nil {
		s.brokerError(w, "list accounts", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

// rowView is one grid row plus the exit prices offered for it.
type rowView struct {
	models.DisplayRow
	ExitSuggestions []engine.Suggestion `json:"exitSuggestions,omitempty"`
}

type positionsResponse struct {
	Rows      []rowView         `json:"rows"`
	OrderRows []models.OrderRow `json:"orderRows"`
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	b, ok := s.sessionBroker(w, r)
	if !ok {
		return
	}
	accountIDKey := chi.URLParam(r, "accountIDKey")

	var positions []models.Position
	var orders []models.Order

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		positions, err = b.GetPositions(ctx, accountIDKey)
		return err
	})
	g.Go(func() error {
		var err error
		orders, err = b.GetOpenOrders(ctx, accountIDKey)
		return err
	})
	if err := g.Wait(); err != nil {
		s.brokerError(w, "fetch positions", err)
		return
	}

	rows := engine.BuildRows(positions)
	annotated, unmatched := engine.Reconcile(rows, orders, s.now())

	views := make([]rowView, 0, len(annotated))
	for _, row := range annotated {
		view := rowView{DisplayRow: row}
		if row.HasOptionLegs() && row.TotalCost != 0 {
			view.ExitSuggestions = s.engine.ExitSuggestions(row.TotalCost, row.Quantity)
		}
		views = append(views, view)
	}

	s.writeJSON(w, http.StatusOK, positionsResponse{
		Rows:      views,
		OrderRows: engine.ExplodeUnmatched(unmatched),
	})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	b, ok := s.sessionBroker(w, r)
	if !ok {
		return
	}
	accountIDKey := chi.URLParam(r, "accountIDKey")

	balance, err := b.GetBalance(r.Context(), accountIDKey)
	if err != nil {
		s.brokerError(w, "fetch balance", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"balance": balance})
}

// ============ Order Handlers ============

// placeOrderRequest accepts both single-leg and spread exit orders: a body
// with legs places a spread, otherwise the single-leg fields apply.
type placeOrderRequest struct {
	Legs       []broker.SpreadLeg `json:"legs,omitempty"`
	PriceType  string             `json:"priceType,omitempty"`
	LimitPrice float64            `json:"limitPrice"`

	Symbol       string  `json:"symbol,omitempty"`
	SecurityType string  `json:"securityType,omitempty"`
	OrderAction  string  `json:"orderAction,omitempty"`
	Quantity     int     `json:"quantity,omitempty"`
	ExpiryDate   string  `json:"expiryDate,omitempty"`
	CallPut      string  `json:"callPut,omitempty"`
	StrikePrice  float64 `json:"strikePrice,omitempty"`
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	b, ok := s.sessionBroker(w, r)
	if !ok {
		return
	}
	accountIDKey := chi.URLParam(r, "accountIDKey")

	var body placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("request body required"))
		return
	}

	var confirmation *broker.OrderConfirmation
	var err error
	if len(body.Legs) > 0 {
		confirmation, err = b.PlaceSpreadExitOrder(r.Context(), accountIDKey, broker.SpreadOrderRequest{
			Legs:       body.Legs,
			LimitPrice: body.LimitPrice,
			PriceType:  body.PriceType,
		})
	} else {
		confirmation, err = b.PlaceExitOrder(r.Context(), accountIDKey, broker.ExitOrderRequest{
			Symbol:       body.Symbol,
			SecurityType: body.SecurityType,
			OrderAction:  body.OrderAction,
			Quantity:     body.Quantity,
			LimitPrice:   body.LimitPrice,
			ExpiryDate:   body.ExpiryDate,
			CallPut:      body.CallPut,
			StrikePrice:  body.StrikePrice,
		})
	}
	if err != nil {
		s.logger.WithError(err).Error("Failed to place order")
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, confirmation)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	b, ok := s.sessionBroker(w, r)
	if !ok {
		return
	}
	accountIDKey := chi.URLParam(r, "accountIDKey")

	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid order id: %w", err))
		return
	}

	if err := b.CancelOrder(r.Context(), accountIDKey, orderID); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "cancelled",
		"orderId": orderID,
	})
}

// ============ Helpers ============

// sessionBroker resolves the request's session header to a broker client.
// It writes the 401 response itself and reports false when the session is
// missing or unusable.
func (s *Server) sessionBroker(w http.ResponseWriter, r *http.Request) (broker.Broker, bool) {
	sessionID := r.Header.Get(sessionHeader)
	if sessionID == "" {
		s.writeError(w, http.StatusUnauthorized, errors.New("X-Session-Id header required"))
		return nil, false
	}

	b, err := s.auth.Broker(sessionID)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, err)
		return nil, false
	}
	return b, true
}

// brokerError maps a failed brokerage call to a response: a 401 from the
// brokerage means the tokens died, everything else is a bad gateway.
func (s *Server) brokerError(w http.ResponseWriter, action string, err error) {
	s.logger.WithError(err).Errorf("Failed to %s", action)

	var apiErr *broker.APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		s.writeError(w, http.StatusUnauthorized, err)
		return
	}
	s.writeError(w, http.StatusBadGateway, err)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]any{"error": err.Error()})
}
