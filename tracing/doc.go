// Package tracing wraps OpenTelemetry so the workflow engine and the HTTP
// endpoint can open spans without importing the SDK directly. Without Init
// the global provider is a no-op.
package tracing
