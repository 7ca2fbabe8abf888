// Package intake accepts project submissions from a webhook, scores them
// against a weighted rubric and holds each one in a durable workflow until a
// reviewer approves or waitlists it through a single-use link.
//
// The engine is built from pluggable service layers:
//
//   - normalizer – flattens webhook payloads into canonical fields
//   - scoring    – weighted rubric evaluation
//   - workflow   – the persisted intake state machine
//   - dao        – memory, fs, sql and redis stores
//   - endpoint   – webhook, decision links and operator inspection
//
// Intake is designed to be embedded in host applications or run with the
// cmd/intake binary:
//
//	srv, _ := intake.New(ctx, intake.WithConfig(cfg))
//	rt := srv.Runtime()
//	inst, created, _ := rt.Submit(ctx, payload)
//	_ = rt.Serve(ctx)
package intake
