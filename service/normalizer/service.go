// Package normalizer flattens nested webhook payloads into canonical
// submission fields. A malformed field never aborts intake: it becomes Empty.
package normalizer

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/viant/intake/internal/clock"
	"github.com/viant/intake/model/field"
	"github.com/viant/intake/model/submission"
	"golang.org/x/text/unicode/norm"
)

// ErrValidation is returned when the payload as a whole has an unusable shape.
var ErrValidation = errors.New("validation error")

// Preferred extraction keys, highest priority first.
const (
	KeyValue       = "value"
	KeyText        = "text"
	KeyDate        = "date"
	KeyCountryName = "country_name"
	KeyChecked     = "checked"
)

// DefaultPreference is the ordered list of keys searched inside a field payload.
var DefaultPreference = []string{KeyValue, KeyText, KeyDate, KeyCountryName, KeyChecked}

// Reserved top-level members that never become fields.
const (
	memberData      = "data"
	memberChallenge = "challenge"
)

// Service maps raw payloads onto canonical submissions.
type Service struct {
	fields     map[string]string
	preference []string
	logger     *slog.Logger
}

// New creates a normalizer using the raw id -> canonical name lookup.
func New(fields map[string]string, options ...Option) *Service {
	lookup := make(map[string]string, len(fields))
	for k, v := range fields {
		lookup[k] = v
	}
	ret := &Service{
		fields:     lookup,
		preference: DefaultPreference,
		logger:     slog.Default().With("component", "normalizer"),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Canonical returns the canonical name for a raw field identifier.
func (s *Service) Canonical(raw string) string {
	if name, ok := s.fields[raw]; ok && name != "" {
		return name
	}
	return raw
}

// NormalizeJSON parses data and normalizes it.
func (s *Service) NormalizeJSON(data []byte) (*submission.Submission, error) {
	node, err := field.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return s.Normalize(node)
}

// Normalize flattens payload into a Submission. The payload must be an object;
// when it carries a "data" object that object holds the fields.
func (s *Service) Normalize(payload *field.Node) (*submission.Submission, error) {
	if payload == nil || payload.Kind != field.KindObject {
		return nil, fmt.Errorf("%w: payload must be an object", ErrValidation)
	}
	fields := payload
	if data := payload.Member(memberData); data != nil {
		if data.Kind != field.KindObject {
			return nil, fmt.Errorf("%w: data must be an object, got %v", ErrValidation, data.Kind)
		}
		fields = data
	}
	result := make(map[string]field.Value, len(fields.Members))
	source := make(map[string]string, len(fields.Members))
	for _, raw := range fields.Keys() {
		if fields == payload && (raw == memberChallenge || raw == memberData) {
			continue
		}
		name := s.Canonical(raw)
		if prev, ok := source[name]; ok {
			// keys are sorted, so the first raw id seen is the smaller one
			s.logger.Debug("duplicate canonical field ignored", "field", name, "kept", prev, "dropped", raw)
			continue
		}
		source[name] = raw
		result[name] = s.Extract(fields.Members[raw])
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("%w: payload carries no fields", ErrValidation)
	}
	return submission.New(result, clock.Now()), nil
}

// Extract returns the scalar carried by a single field payload.
func (s *Service) Extract(payload *field.Node) field.Value {
	if payload == nil {
		return field.Empty()
	}
	if payload.IsScalar() {
		return toValue(payload, false)
	}
	for _, key := range s.preference {
		if node := findKey(payload, key); node != nil {
			return toValue(node, key == KeyDate)
		}
	}
	return field.Empty()
}

// findKey walks node depth-first and returns the first scalar stored under key.
func findKey(node *field.Node, key string) *field.Node {
	switch node.Kind {
	case field.KindObject:
		if candidate := node.Members[key]; candidate.IsScalar() {
			return candidate
		}
		for _, k := range node.Keys() {
			if found := findKey(node.Members[k], key); found != nil {
				return found
			}
		}
	case field.KindArray:
		for _, item := range node.Items {
			if found := findKey(item, key); found != nil {
				return found
			}
		}
	}
	return nil
}

func toValue(node *field.Node, asDate bool) field.Value {
	switch node.Kind {
	case field.KindString:
		text := norm.NFC.String(strings.TrimSpace(node.Text))
		if asDate {
			if t, ok := parseDate(text); ok {
				return field.Date(t)
			}
		}
		return field.String(text)
	case field.KindNumber:
		f, err := node.Number.Float64()
		if err != nil {
			return field.Empty()
		}
		return field.Number(f)
	case field.KindBool:
		return field.Bool(node.Bool)
	}
	return field.Empty()
}

func parseDate(text string) (time.Time, bool) {
	for _, layout := range []string{field.DateLayout, time.RFC3339, time.RFC3339Nano} {
		if t, err := time.Parse(layout, text); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
