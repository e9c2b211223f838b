// Package server exposes the lending engine over an authenticated HTTP API.
package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"lendex/core/audit"
	"lendex/native/lending"
	"lendex/observability"
	"lendex/services/lendingd/config"
)

// Config captures the dependencies required to construct the server.
type Config struct {
	Engine    *lending.Engine
	AuditLog  *audit.Log
	Logger    *slog.Logger
	Metrics   *observability.LendingMetrics
	Auth      config.AuthConfig
	RateLimit config.RateLimit
}

// Server routes HTTP requests into the lending engine.
type Server struct {
	engine   *lending.Engine
	auditLog *audit.Log
	logger   *slog.Logger
	metrics  *observability.LendingMetrics
	tokens   map[string]struct{}
	limit    config.RateLimit

	mu       sync.Mutex
	visitors map[string]*rate.Limiter

	router http.Handler
}

// New constructs a configured HTTP server over the engine.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tokens := make(map[string]struct{}, len(cfg.Auth.APITokens))
	for _, token := range cfg.Auth.APITokens {
		if trimmed := strings.TrimSpace(token); trimmed != "" {
			tokens[trimmed] = struct{}{}
		}
	}
	srv := &Server{
		engine:   cfg.Engine,
		auditLog: cfg.AuditLog,
		logger:   logger,
		metrics:  cfg.Metrics,
		tokens:   tokens,
		limit:    cfg.RateLimit,
		visitors: make(map[string]*rate.Limiter),
	}
	srv.router = srv.buildRouter()
	return srv
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1/lending", func(api chi.Router) {
		api.Use(s.authenticate)
		api.Use(s.throttle)

		api.Get("/markets", s.listMarkets)
		api.Get("/markets/{asset}", s.getMarket)
		api.Get("/positions/{account}", s.getPosition)
		api.Get("/audit", s.listAudit)

		api.Post("/collateral", s.postCollateral)
		api.Post("/collateral/withdraw", s.withdrawCollateral)
		api.Post("/borrow", s.borrow)
		api.Post("/repay", s.repay)
		api.Post("/repay-all", s.repayAll)
		api.Post("/liquidate", s.liquidate)
	})
	return r
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.tokens) == 0 {
			s.writeError(w, http.StatusForbidden, "authentication is not configured")
			return
		}
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			token = strings.TrimSpace(r.Header.Get("X-Api-Token"))
		}
		if _, ok := s.tokens[token]; !ok {
			s.writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func (s *Server) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.obtainLimiter(clientID(r)).Allow() {
			s.writeError(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) obtainLimiter(id string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limiter, ok := s.visitors[id]; ok {
		return limiter
	}
	perSecond := s.limit.RequestsPerMinute / 60.0
	if perSecond <= 0 {
		perSecond = 1
	}
	burst := s.limit.Burst
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
	s.visitors[id] = limiter
	return limiter
}

func clientID(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type amountRequest struct {
	Account string `json:"account"`
	Asset   string `json:"asset"`
	Amount  string `json:"amount"`
}

type liquidateRequest struct {
	Operator string `json:"operator"`
	Debtor   string `json:"debtor"`
	Asset    string `json:"asset"`
}

type marketResponse struct {
	Asset                   string `json:"asset"`
	PriceKind               string `json:"priceKind"`
	TransferMode            string `json:"transferMode"`
	MinCollateralizationBps uint64 `json:"minCollateralizationBps"`
	TotalReserve            string `json:"totalReserve"`
	TotalBorrow             string `json:"totalBorrow"`
	TotalShares             string `json:"totalShares"`
	BorrowRateWad           string `json:"borrowRateWad"`
	LastAccrual             int64  `json:"lastAccrual"`
}

type positionResponse struct {
	Account    string            `json:"account"`
	Collateral string            `json:"collateral"`
	Debts      map[string]string `json:"debts"`
}

func (s *Server) listMarkets(w http.ResponseWriter, r *http.Request) {
	assets, err := s.engine.ListAssets()
	if err != nil {
		s.fail(w, r, "list_markets", err)
		return
	}
	markets := make([]marketResponse, 0, len(assets))
	for _, asset := range assets {
		market, err := s.marketOf(asset)
		if err != nil {
			s.fail(w, r, "list_markets", err)
			return
		}
		markets = append(markets, market)
	}
	s.writeJSON(w, http.StatusOK, markets)
}

func (s *Server) getMarket(w http.ResponseWriter, r *http.Request) {
	market, err := s.marketOf(chi.URLParam(r, "asset"))
	if err != nil {
		s.fail(w, r, "get_market", err)
		return
	}
	s.writeJSON(w, http.StatusOK, market)
}

func (s *Server) marketOf(asset string) (marketResponse, error) {
	snapshot, err := s.engine.ReserveSnapshot(asset)
	if err != nil {
		return marketResponse{}, err
	}
	rateWad, err := s.engine.BorrowRate(asset)
	if err != nil {
		return marketResponse{}, err
	}
	return marketResponse{
		Asset:                   snapshot.Token,
		PriceKind:               string(snapshot.PriceKind),
		TransferMode:            string(snapshot.TransferMode),
		MinCollateralizationBps: snapshot.MinCollateralizationBps,
		TotalReserve:            snapshot.TotalReserve.String(),
		TotalBorrow:             snapshot.TotalBorrow.String(),
		TotalShares:             snapshot.TotalShares.String(),
		BorrowRateWad:           rateWad.String(),
		LastAccrual:             snapshot.LastAccrual,
	}, nil
}

func (s *Server) getPosition(w http.ResponseWriter, r *http.Request) {
	account, err := parseAccount(chi.URLParam(r, "account"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	collateral, err := s.engine.CollateralOf(account)
	if err != nil {
		s.fail(w, r, "get_position", err)
		return
	}
	owed, err := s.engine.TotalOwed(account)
	if err != nil {
		s.fail(w, r, "get_position", err)
		return
	}
	debts := make(map[string]string, len(owed))
	for asset, amount := range owed {
		debts[asset] = amount.String()
	}
	s.writeJSON(w, http.StatusOK, positionResponse{
		Account:    account.Hex(),
		Collateral: collateral.String(),
		Debts:      debts,
	})
}

func (s *Server) listAudit(w http.ResponseWriter, r *http.Request) {
	if s.auditLog == nil {
		s.writeError(w, http.StatusNotFound, "audit log is not enabled")
		return
	}
	from, _ := strconv.ParseUint(r.URL.Query().Get("from"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	records, err := s.auditLog.Records(from, limit)
	if err != nil {
		s.fail(w, r, "list_audit", err)
		return
	}
	s.writeJSON(w, http.StatusOK, records)
}

func (s *Server) postCollateral(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, "post_collateral", func(req amountRequest, account common.Address, amount *big.Int) error {
		return s.engine.PostCollateral(account, amount)
	})
}

func (s *Server) withdrawCollateral(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, "withdraw_collateral", func(req amountRequest, account common.Address, amount *big.Int) error {
		return s.engine.WithdrawCollateral(account, amount)
	})
}

func (s *Server) borrow(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, "borrow", func(req amountRequest, account common.Address, amount *big.Int) error {
		return s.engine.Borrow(account, req.Asset, amount)
	})
}

func (s *Server) repay(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, "repay", func(req amountRequest, account common.Address, amount *big.Int) error {
		return s.engine.Repay(account, req.Asset, amount)
	})
}

// mutate decodes the shared account/amount payload and runs one engine call,
// recording the outcome.
func (s *Server) mutate(w http.ResponseWriter, r *http.Request, operation string, call func(amountRequest, common.Address, *big.Int) error) {
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	account, err := parseAccount(req.Account)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	start := time.Now()
	err = call(req, account, amount)
	s.metrics.Observe(operation, errorKind(err), time.Since(start))
	if err != nil {
		s.fail(w, r, operation, err)
		return
	}
	s.logger.Info("ledger operation applied", "operation", operation, "account", account.Hex(), "asset", req.Asset)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) repayAll(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	account, err := parseAccount(req.Account)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	start := time.Now()
	err = s.engine.RepayAll(account)
	s.metrics.Observe("repay_all", errorKind(err), time.Since(start))
	if err != nil {
		s.fail(w, r, "repay_all", err)
		return
	}
	s.logger.Info("ledger operation applied", "operation", "repay_all", "account", account.Hex())
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) liquidate(w http.ResponseWriter, r *http.Request) {
	var req liquidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	operator, err := parseAccount(req.Operator)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	debtor, err := parseAccount(req.Debtor)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	start := time.Now()
	err = s.engine.Liquidate(operator, debtor, req.Asset)
	s.metrics.Observe("liquidate", errorKind(err), time.Since(start))
	if err != nil {
		s.fail(w, r, "liquidate", err)
		return
	}
	s.logger.Info("position liquidated", "operator", operator.Hex(), "debtor", debtor.Hex(), "asset", req.Asset)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func parseAccount(raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("invalid account address %q", raw)
	}
	return common.HexToAddress(trimmed), nil
}

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return amount, nil
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status := httpStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("ledger operation failed", "operation", operation, "path", r.URL.Path, "err", err)
	}
	s.writeError(w, status, err.Error())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("encode response failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
