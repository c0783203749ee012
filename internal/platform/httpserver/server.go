package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	weightedvoting "concord/contexts/governance/weighted-voting"
	governanceerrors "concord/contexts/governance/weighted-voting/domain/errors"
	governancehttp "concord/contexts/governance/weighted-voting/transport/http"

	httpSwagger "github.com/swaggo/http-swagger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	_ "concord/internal/platform/httpserver/docs"
)

const tracerName = "concord/internal/platform/httpserver"

type Server struct {
	mux        *http.ServeMux
	logger     *slog.Logger
	addr       string
	governance weightedvoting.Module
	tracer     trace.Tracer
	httpServer *http.Server
}

func New(
	governance weightedvoting.Module,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:        http.NewServeMux(),
		logger:     logger,
		addr:       addr,
		governance: governance,
		tracer:     otel.Tracer(tracerName),
	}
	s.registerRoutes()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server stopping",
		"event", "http_server_stopping",
		"module", "internal/platform/httpserver",
		"layer", "platform",
	)
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.route("POST /api/governance/v1/proposals/{proposal_id}/votes", s.handleSubmitVote)
	s.route("GET /api/governance/v1/proposals/{proposal_id}/votes", s.handleListVotes)
	s.route("DELETE /api/governance/v1/proposals/{proposal_id}/votes/{voter_id}", s.handleRetractVote)
	s.route("GET /api/governance/v1/proposals/{proposal_id}/tally", s.handleTally)
	s.route("POST /api/governance/v1/proposals/{proposal_id}/decision", s.handleDecide)
	s.route("GET /api/governance/v1/proposals/{proposal_id}/decision", s.handleGetDecision)
	s.route("GET /api/governance/v1/thresholds", s.handleThresholds)
	s.route("GET /api/governance/v1/weights", s.handleWeights)
}

// route registers handler under pattern and wraps it in a server span named
// after the pattern.
func (s *Server) route(pattern string, handler http.HandlerFunc) {
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := s.tracer.Start(ctx, pattern,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("http.route", pattern),
			),
		)
		defer span.End()
		if proposalID := r.PathValue("proposal_id"); proposalID != "" {
			span.SetAttributes(attribute.String("governance.proposal_id", proposalID))
		}

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		handler(recorder, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.response.status_code", recorder.status))
		if recorder.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(recorder.status))
		}
	})
}

func (s *Server) handleSubmitVote(w http.ResponseWriter, r *http.Request) {
	var req governancehttp.SubmitVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGovernanceError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	voterID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if voterID == "" && strings.TrimSpace(req.VoterID) == "" {
		writeGovernanceError(w, http.StatusUnauthorized, "missing_user", "voter_id or X-User-Id header is required")
		return
	}

	resp, err := s.governance.Handler.SubmitVoteHandler(r.Context(), r.PathValue("proposal_id"), voterID, req)
	if err != nil {
		s.writeGovernanceDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListVotes(w http.ResponseWriter, r *http.Request) {
	resp, err := s.governance.Handler.ListVotesHandler(r.Context(), r.PathValue("proposal_id"))
	if err != nil {
		s.writeGovernanceDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRetractVote(w http.ResponseWriter, r *http.Request) {
	actorID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if actorID == "" {
		writeGovernanceError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}
	err := s.governance.Handler.RetractVoteHandler(r.Context(), r.PathValue("proposal_id"), r.PathValue("voter_id"), actorID)
	if err != nil {
		s.writeGovernanceDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTally(w http.ResponseWriter, r *http.Request) {
	resp, err := s.governance.Handler.TallyHandler(r.Context(), r.PathValue("proposal_id"))
	if err != nil {
		s.writeGovernanceDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDecide(w http.ResponseWriter, r *http.Request) {
	var req governancehttp.DecideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeGovernanceError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	if strings.TrimSpace(req.Level) == "" {
		req.Level = r.URL.Query().Get("level")
	}

	resp, err := s.governance.Handler.DecideHandler(r.Context(), r.PathValue("proposal_id"), req)
	if err != nil {
		s.writeGovernanceDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetDecision(w http.ResponseWriter, r *http.Request) {
	resp, err := s.governance.Handler.GetDecisionHandler(r.Context(), r.PathValue("proposal_id"))
	if err != nil {
		s.writeGovernanceDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleThresholds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.governance.Handler.ThresholdsHandler(r.Context()))
}

func (s *Server) handleWeights(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.governance.Handler.WeightsHandler(r.Context()))
}

func (s *Server) writeGovernanceDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, governanceerrors.ErrInvalidClass):
		writeGovernanceError(w, http.StatusUnprocessableEntity, "invalid_class", err.Error())
	case errors.Is(err, governanceerrors.ErrInvalidLevel):
		writeGovernanceError(w, http.StatusUnprocessableEntity, "invalid_level", err.Error())
	case errors.Is(err, governanceerrors.ErrInvalidChoice):
		writeGovernanceError(w, http.StatusUnprocessableEntity, "invalid_choice", err.Error())
	case errors.Is(err, governanceerrors.ErrInvalidVoteInput):
		writeGovernanceError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, governanceerrors.ErrProposalNotFound):
		writeGovernanceError(w, http.StatusNotFound, "proposal_not_found", err.Error())
	case errors.Is(err, governanceerrors.ErrVoteNotFound):
		writeGovernanceError(w, http.StatusNotFound, "vote_not_found", err.Error())
	case errors.Is(err, governanceerrors.ErrVoteNotOwned):
		writeGovernanceError(w, http.StatusForbidden, "vote_not_owned", err.Error())
	case errors.Is(err, governanceerrors.ErrDecisionNotFound):
		writeGovernanceError(w, http.StatusNotFound, "decision_not_found", err.Error())
	case errors.Is(err, governanceerrors.ErrConflict),
		errors.Is(err, governanceerrors.ErrIdempotencyConflict):
		writeGovernanceError(w, http.StatusConflict, "conflict", err.Error())
	default:
		trace.SpanFromContext(r.Context()).RecordError(err)
		s.logger.Error("governance request failed",
			"event", "http_governance_request_failed",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err.Error(),
		)
		writeGovernanceError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeGovernanceError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, governancehttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
