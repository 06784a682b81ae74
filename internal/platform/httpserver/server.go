package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	disbursementservice "tokendrip/contexts/treasury/disbursement-service"
	disbursementerrors "tokendrip/contexts/treasury/disbursement-service/domain/errors"
	disbursementhttp "tokendrip/contexts/treasury/disbursement-service/transport/http"
	"tokendrip/internal/platform/httpserver/docs"

	httpSwagger "github.com/swaggo/http-swagger"
)

const maxRequestBody = 1 << 20

type Server struct {
	mux          *http.ServeMux
	logger       *slog.Logger
	addr         string
	auth         *Authenticator
	adminRole    string
	disbursement disbursementservice.Module
	loginLimiter *clientLimiter
	srv          *http.Server
}

func New(
	disbursement disbursementservice.Module,
	auth *Authenticator,
	adminRole string,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}
	if adminRole == "" {
		adminRole = "admin"
	}

	s := &Server{
		mux:          http.NewServeMux(),
		logger:       logger,
		addr:         addr,
		auth:         auth,
		adminRole:    adminRole,
		disbursement: disbursement,
		loginLimiter: newClientLimiter(loginAttempts, loginWindow),
	}
	s.registerRoutes()
	s.srv = &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start blocks until the server stops. A graceful Shutdown is not an error.
func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /api/auth/login", s.loginLimiter.middleware(s.handleLogin))

	s.mux.HandleFunc("GET /api/admin/config", s.admin(s.handleGetConfig))
	s.mux.HandleFunc("POST /api/admin/config", s.admin(s.handleUpdateConfig))
	s.mux.HandleFunc("GET /api/admin/status", s.admin(s.handleStatus))
	s.mux.HandleFunc("POST /api/admin/start", s.admin(s.handleStart))
	s.mux.HandleFunc("POST /api/admin/stop", s.admin(s.handleStop))
	s.mux.HandleFunc("POST /api/admin/reset", s.admin(s.handleReset))
	s.mux.HandleFunc("POST /api/admin/schedule/run", s.admin(s.handleRunSchedule))
	s.mux.HandleFunc("POST /api/admin/settle/run", s.admin(s.handleRunSettlement))
	s.mux.HandleFunc("GET /api/admin/wallets/export", s.admin(s.handleExportIdentities))
	s.mux.HandleFunc("GET /api/wallets/summary", s.admin(s.handleIdentitySummary))
	s.mux.HandleFunc("GET /api/distributions/recent", s.admin(s.handleRecent))
}

func (s *Server) admin(next http.HandlerFunc) http.HandlerFunc {
	if s.auth == nil {
		return func(w http.ResponseWriter, _ *http.Request) {
			writeError(w, http.StatusServiceUnavailable, "auth_unavailable", "admin authentication is not configured")
		}
	}
	return s.auth.RequireRole(s.adminRole, next)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": docs.SwaggerInfo.Version})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil {
		writeError(w, http.StatusServiceUnavailable, "auth_unavailable", "admin authentication is not configured")
		return
	}
	var req disbursementhttp.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	token, expiresAt, err := s.auth.Login(req.UserID, req.Password)
	if err != nil {
		s.logger.Warn("admin login rejected",
			"event", "http_admin_login_rejected",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"user_id", req.UserID,
		)
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, disbursementhttp.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	resp, err := s.disbursement.Handler.GetSettingsHandler(r.Context())
	if err != nil {
		writeDisbursementDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req disbursementhttp.UpdateSettingsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.disbursement.Handler.UpdateSettingsHandler(r.Context(), req)
	if err != nil {
		writeDisbursementDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := s.disbursement.Handler.StatusHandler(r.Context())
	if err != nil {
		writeDisbursementDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleIdentitySummary(w http.ResponseWriter, r *http.Request) {
	resp, err := s.disbursement.Handler.IdentitySummaryHandler(r.Context())
	if err != nil {
		writeDisbursementDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	resp, err := s.disbursement.Handler.StartHandler(r.Context())
	if err != nil {
		writeDisbursementDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	resp, err := s.disbursement.Handler.StopHandler(r.Context())
	if err != nil {
		writeDisbursementDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	resp, err := s.disbursement.Handler.ResetHandler(r.Context())
	if err != nil {
		writeDisbursementDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRunSchedule(w http.ResponseWriter, r *http.Request) {
	resp, err := s.disbursement.Handler.RunScheduleHandler(r.Context())
	if err != nil {
		writeDisbursementDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRunSettlement(w http.ResponseWriter, r *http.Request) {
	resp, err := s.disbursement.Handler.RunSettlementHandler(r.Context())
	if err != nil {
		writeDisbursementDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExportIdentities(w http.ResponseWriter, r *http.Request) {
	filename := "wallets-" + time.Now().UTC().Format("20060102T150405Z") + ".csv"
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	// Headers may already be flushed by the time an error surfaces, so it is only logged.
	if err := s.disbursement.Handler.ExportIdentitiesHandler(r.Context(), w); err != nil {
		s.logger.Error("identity export failed",
			"event", "http_identity_export_failed",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"error", err.Error(),
		)
	}
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}
	resp, err := s.disbursement.Handler.RecentHandler(r.Context(), limit)
	if err != nil {
		writeDisbursementDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeDisbursementDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, disbursementerrors.ErrInvalidSettings):
		writeError(w, http.StatusBadRequest, "invalid_settings", err.Error())
	case errors.Is(err, disbursementerrors.ErrIdentityNotFound),
		errors.Is(err, disbursementerrors.ErrDisbursementNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, disbursementerrors.ErrIdentityAlreadyClaimed),
		errors.Is(err, disbursementerrors.ErrInvalidStateTransition):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, disbursementerrors.ErrRuntimeUnavailable):
		writeError(w, http.StatusServiceUnavailable, "runtime_unavailable", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, disbursementhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
