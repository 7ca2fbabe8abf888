// Package scoring evaluates normalized submissions against a rubric.
//
// Scoring uses two levels of weighting: questions within a dimension, and
// dimensions within the total. The engine is pure; an answer outside a
// question's choices scores zero and is reported as a Diagnostic.
package scoring

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/viant/intake/model/rubric"
	"github.com/viant/intake/model/submission"
)

// ErrUnscorableAnswer is returned only in strict mode.
var ErrUnscorableAnswer = errors.New("unscorable answer")

// Diagnostic describes an answer that could not be scored.
type Diagnostic struct {
	QuestionID string `json:"questionId"`
	Field      string `json:"field"`
	Answer     string `json:"answer"`
	Reason     string `json:"reason"`
}

// Diagnostic reasons.
const (
	ReasonMissing   = "missing"
	ReasonUnmatched = "not-a-choice"
)

// Result holds per-dimension percentages and the weighted total.
type Result struct {
	Dimensions  map[string]float64 `json:"dimensions"`
	Total       float64            `json:"total"`
	Diagnostics []Diagnostic       `json:"diagnostics,omitempty"`
}

// Service scores submissions.
type Service struct {
	rubric *rubric.Rubric
	strict bool
	logger *slog.Logger
}

// New creates a scoring service for r.
func New(r *rubric.Rubric, options ...Option) *Service {
	ret := &Service{rubric: r, logger: slog.Default().With("component", "scoring")}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Rubric returns the rubric in use.
func (s *Service) Rubric() *rubric.Rubric { return s.rubric }

// Score evaluates s. It never fails in lenient mode.
func (s *Service) Score(sub *submission.Submission) (*Result, error) {
	result := &Result{Dimensions: make(map[string]float64)}
	var totalScore, totalMax float64
	for _, dimension := range s.rubric.Dimensions() {
		var sum, max float64
		for _, q := range s.rubric.Questions(dimension) {
			answer := sub.Get(q.Field)
			points, ok := q.Choices[answer.String()]
			if !ok || answer.IsEmpty() {
				diagnostic := Diagnostic{QuestionID: q.ID, Field: q.Field, Answer: answer.String(), Reason: ReasonUnmatched}
				if answer.IsEmpty() {
					diagnostic.Reason = ReasonMissing
				}
				if s.strict {
					return nil, fmt.Errorf("%w: question %v answer %q", ErrUnscorableAnswer, q.ID, diagnostic.Answer)
				}
				s.logger.Warn("unscorable answer", "question", q.ID, "field", q.Field, "answer", diagnostic.Answer, "reason", diagnostic.Reason)
				result.Diagnostics = append(result.Diagnostics, diagnostic)
				points = 0
			}
			sum += math.Round(points * q.Weight)
			max += math.Round(q.MaxPoints() * q.Weight)
		}
		result.Dimensions[dimension] = percentage(sum, max)
		weight := s.rubric.DimensionWeight(dimension)
		totalScore += sum * weight
		totalMax += max * weight
	}
	result.Total = math.Round(percentage(totalScore, totalMax))
	return result, nil
}

func percentage(value, max float64) float64 {
	if max <= 0 {
		// rejected at rubric load; only reachable when every weighted max rounds to zero
		return 0
	}
	ret := 100 * value / max
	if ret < 0 {
		return 0
	}
	if ret > 100 {
		return 100
	}
	return ret
}
