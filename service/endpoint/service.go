// Package endpoint exposes the intake webhook, the reviewer decision links
// and operator inspection over HTTP.
package endpoint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/viant/intake/model/field"
	"github.com/viant/intake/model/submission"
	model "github.com/viant/intake/model/workflow"
	"github.com/viant/intake/service/normalizer"
	"golang.org/x/time/rate"
)

// DefaultMaxBodySize bounds a webhook delivery.
const DefaultMaxBodySize = 1 << 20

const challengeMember = "challenge"

// Engine is the workflow surface used by the handlers.
type Engine interface {
	Start(ctx context.Context, s *submission.Submission) (*model.Instance, bool, error)
	Redeem(ctx context.Context, value string, decision model.Decision) (*model.Instance, error)
	Instance(ctx context.Context, id string) (*model.Instance, error)
	Cancel(ctx context.Context, id, reason string) (*model.Instance, error)
}

// Service serves the intake HTTP API.
type Service struct {
	engine         Engine
	normalizer     *normalizer.Service
	schema         *jsonschema.Schema
	schemaDocument []byte
	limiter        *rate.Limiter
	maxBodySize    int64
	logger         *slog.Logger
}

// New creates the HTTP service.
func New(engine Engine, norm *normalizer.Service, options ...Option) (*Service, error) {
	if engine == nil || norm == nil {
		return nil, fmt.Errorf("endpoint: engine and normalizer are required")
	}
	ret := &Service{
		engine:         engine,
		normalizer:     norm,
		schemaDocument: webhookSchema,
		maxBodySize:    DefaultMaxBodySize,
		logger:         slog.Default().With("component", "endpoint"),
	}
	for _, option := range options {
		option(ret)
	}
	var err error
	if ret.schema, err = compileSchema(ret.schemaDocument); err != nil {
		return nil, err
	}
	return ret, nil
}

// Handler returns the routed HTTP handler.
func (s *Service) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.recoverer)
	r.Use(s.requestLogger)
	r.Use(traced)

	r.With(s.rateLimited).Post("/", s.intake)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeText(w, http.StatusOK, "ok")
	})
	for _, decision := range []model.Decision{model.DecisionApprove, model.DecisionWaitlist} {
		handler := s.redeem(decision)
		r.Get("/"+string(decision), handler)
		r.Post("/"+string(decision), handler)
	}
	r.Route("/instances/{id}", func(r chi.Router) {
		r.Get("/", s.instance)
		r.Post("/cancel", s.cancel)
	})
	return r
}

// intakeResponse is returned by the webhook.
type intakeResponse struct {
	ID       string      `json:"id"`
	Identity string      `json:"identity"`
	State    model.State `json:"state"`
	Created  bool        `json:"created"`
	Reason   string      `json:"reason,omitempty"`
}

func (s *Service) intake(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	raw, err := decodeBody(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if err = s.schema.Validate(raw); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid payload: %v", err))
		return
	}
	if members, ok := raw.(map[string]interface{}); ok {
		if challenge, ok := members[challengeMember]; ok && challenge != nil {
			writeJSON(w, http.StatusOK, map[string]interface{}{challengeMember: challenge})
			return
		}
	}
	node, err := field.FromValue(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sub, err := s.normalizer.Normalize(node)
	if err != nil {
		writeError(w, statusOf(err), err.Error())
		return
	}
	instance, created, err := s.engine.Start(r.Context(), sub)
	if instance == nil {
		if err == nil {
			err = fmt.Errorf("no instance created")
		}
		s.logger.Error("intake failed", "error", err)
		writeError(w, statusOf(err), err.Error())
		return
	}
	if err != nil {
		// the submission was accepted and the failure is recorded on the instance;
		// a redelivery of the same content returns this instance unchanged
		s.logger.Warn("intake accepted with downstream failure", "id", instance.ID, "error", err)
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, &intakeResponse{
		ID:       instance.ID,
		Identity: instance.Identity.String(),
		State:    instance.State,
		Created:  created,
		Reason:   instance.Reason,
	})
}

var decisionMessages = map[model.Decision]string{
	model.DecisionApprove:  "Thank you, the submission has been approved.",
	model.DecisionWaitlist: "Thank you, the submission has been waitlisted.",
}

func (s *Service) redeem(decision model.Decision) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		value := r.FormValue("token")
		if value == "" {
			writeText(w, http.StatusBadRequest, "missing token")
			return
		}
		instance, err := s.engine.Redeem(r.Context(), value, decision)
		if err != nil {
			status := statusOf(err)
			if status >= http.StatusInternalServerError {
				s.logger.Error("redemption failed", "decision", decision, "error", err)
			} else {
				s.logger.Info("redemption rejected", "decision", decision, "status", status, "error", err)
			}
			writeText(w, status, messageOf(status, err))
			return
		}
		s.logger.Info("decision applied", "id", instance.ID, "decision", decision, "state", instance.State)
		writeText(w, http.StatusOK, decisionMessages[decision])
	}
}

func (s *Service) instance(w http.ResponseWriter, r *http.Request) {
	instance, err := s.engine.Instance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusOf(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, instance)
}

func (s *Service) cancel(w http.ResponseWriter, r *http.Request) {
	instance, err := s.engine.Cancel(r.Context(), chi.URLParam(r, "id"), r.FormValue("reason"))
	if err != nil {
		writeError(w, statusOf(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, instance)
}
