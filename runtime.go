package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/viant/intake/model/submission"
	model "github.com/viant/intake/model/workflow"
	"github.com/viant/intake/service/dao"
	"github.com/viant/intake/service/endpoint"
	"github.com/viant/intake/service/event"
	"github.com/viant/intake/service/normalizer"
	"github.com/viant/intake/service/scoring"
	"github.com/viant/intake/service/sweeper"
	"github.com/viant/intake/service/workflow"
)

const shutdownTimeout = 10 * time.Second

// Runtime represents the running intake components.
type Runtime struct {
	engine          *workflow.Engine
	normalizer      *normalizer.Service
	scorer          *scoring.Service
	store           dao.Store
	events          *event.Service
	sweeper         *sweeper.Service
	http            *endpoint.Service
	addr            string
	recover         bool
	shutdownTracing func(context.Context) error
	logger          *slog.Logger
}

// Engine returns the workflow engine.
func (r *Runtime) Engine() *workflow.Engine { return r.engine }

// Normalizer returns the field normalizer.
func (r *Runtime) Normalizer() *normalizer.Service { return r.normalizer }

// Scorer returns the scoring engine.
func (r *Runtime) Scorer() *scoring.Service { return r.scorer }

// Handler returns the HTTP handler serving webhook and decision endpoints.
func (r *Runtime) Handler() http.Handler { return r.http.Handler() }

// Submit normalizes a raw webhook payload and starts its workflow.
func (r *Runtime) Submit(ctx context.Context, payload []byte) (*model.Instance, bool, error) {
	s, err := r.normalizer.NormalizeJSON(payload)
	if err != nil {
		return nil, false, err
	}
	return r.engine.Start(ctx, s)
}

// Score normalizes and scores payload without starting a workflow.
func (r *Runtime) Score(payload []byte) (*submission.Submission, *scoring.Result, error) {
	s, err := r.normalizer.NormalizeJSON(payload)
	if err != nil {
		return nil, nil, err
	}
	result, err := r.scorer.Score(s)
	if err != nil {
		return s, nil, err
	}
	return s, result, nil
}

// Redeem applies a reviewer decision carried by a continuation token.
func (r *Runtime) Redeem(ctx context.Context, token string, decision model.Decision) (*model.Instance, error) {
	return r.engine.Redeem(ctx, token, decision)
}

// Instance returns an instance by id.
func (r *Runtime) Instance(ctx context.Context, id string) (*model.Instance, error) {
	return r.engine.Instance(ctx, id)
}

// Instances lists instances matching parameters.
func (r *Runtime) Instances(ctx context.Context, parameters ...*dao.Parameter) ([]*model.Instance, error) {
	return r.engine.Instances(ctx, parameters...)
}

// Cancel fails a non-terminal instance.
func (r *Runtime) Cancel(ctx context.Context, id, reason string) (*model.Instance, error) {
	return r.engine.Cancel(ctx, id, reason)
}

// ExpireOverdue fails instances past their decision deadline.
func (r *Runtime) ExpireOverdue(ctx context.Context) (int, error) {
	return r.engine.ExpireOverdue(ctx)
}

// Start recovers interrupted instances and starts the expiry sweeper.
func (r *Runtime) Start(ctx context.Context) error {
	if r.recover {
		count, err := r.engine.Recover(ctx)
		if err != nil {
			return fmt.Errorf("failed to recover instances: %w", err)
		}
		if count > 0 {
			r.logger.Info("recovered instances", "count", count)
		}
	}
	go func() {
		if err := r.sweeper.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error("sweeper stopped", "error", err)
		}
	}()
	return nil
}

// Serve starts the runtime and serves HTTP until ctx is done.
func (r *Runtime) Serve(ctx context.Context) error {
	if err := r.Start(ctx); err != nil {
		return err
	}
	server := &http.Server{Addr: r.addr, Handler: r.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		r.logger.Info("listening", "addr", r.addr)
		errCh <- server.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return r.Shutdown(shutdownCtx)
}

// Shutdown stops background loops and releases the store.
func (r *Runtime) Shutdown(ctx context.Context) error {
	return r.close(ctx)
}

func (r *Runtime) close(ctx context.Context) error {
	if r.sweeper != nil {
		r.sweeper.Shutdown()
	}
	if r.events != nil {
		r.events.Shutdown()
	}
	var errs []error
	if r.store != nil {
		errs = append(errs, r.store.Close())
	}
	if r.shutdownTracing != nil {
		errs = append(errs, r.shutdownTracing(ctx))
	}
	return errors.Join(errs...)
}
