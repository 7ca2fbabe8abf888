// Package rubric defines the static weighted scoring rubric.
//
// A Rubric is built once, validated, and then only read. Every accessor
// returns copies so callers cannot mutate the loaded configuration.
package rubric

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ConfigurationError reports an inconsistent rubric. It is fatal at load time.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return "rubric configuration error: " + strings.Join(e.Problems, "; ")
}

// IsConfigurationError reports whether err is a rubric ConfigurationError.
func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// Question binds a submission field to a dimension with scored choices.
type Question struct {
	ID        string             `json:"id" yaml:"id" validate:"required"`
	Field     string             `json:"field" yaml:"field" validate:"required"`
	Dimension string             `json:"dimension" yaml:"dimension" validate:"required"`
	Weight    float64            `json:"weight" yaml:"weight" validate:"gt=0"`
	Choices   map[string]float64 `json:"choices" yaml:"choices" validate:"min=1,dive,gte=0"`
}

// MaxPoints returns the highest point value among the choices.
func (q Question) MaxPoints() float64 {
	var ret float64
	for _, points := range q.Choices {
		if points > ret {
			ret = points
		}
	}
	return ret
}

// Definition is the serialisable form of a rubric.
type Definition struct {
	Dimensions map[string]float64 `json:"dimensions" yaml:"dimensions" validate:"min=1,dive,keys,required,endkeys,gt=0"`
	Questions  []Question         `json:"questions" yaml:"questions" validate:"min=1,dive"`
}

// Rubric is the validated, immutable rubric.
type Rubric struct {
	dimensions map[string]float64
	questions  []Question
	byDim      map[string][]int
	names      []string
}

var validate = validator.New()

// New validates def and returns an immutable Rubric.
func New(def *Definition) (*Rubric, error) {
	if def == nil {
		return nil, &ConfigurationError{Problems: []string{"rubric is not defined"}}
	}
	var problems []string
	if err := validate.Struct(def); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			for _, fieldErr := range validationErrors {
				problems = append(problems, fmt.Sprintf("%s failed %q", fieldErr.Namespace(), fieldErr.Tag()))
			}
		} else {
			problems = append(problems, err.Error())
		}
	}
	ret := &Rubric{
		dimensions: make(map[string]float64, len(def.Dimensions)),
		byDim:      make(map[string][]int),
	}
	for name, weight := range def.Dimensions {
		ret.dimensions[name] = weight
		ret.names = append(ret.names, name)
	}
	sort.Strings(ret.names)

	ids := map[string]bool{}
	fields := map[string]bool{}
	for _, q := range def.Questions {
		if ids[q.ID] {
			problems = append(problems, fmt.Sprintf("question %q declared more than once", q.ID))
		}
		ids[q.ID] = true
		if fields[q.Field] {
			problems = append(problems, fmt.Sprintf("field %q scored by more than one question", q.Field))
		}
		fields[q.Field] = true
		if _, ok := def.Dimensions[q.Dimension]; !ok {
			problems = append(problems, fmt.Sprintf("question %q references unknown dimension %q", q.ID, q.Dimension))
			continue
		}
		if q.MaxPoints() <= 0 {
			problems = append(problems, fmt.Sprintf("question %q has no positively scored answer", q.ID))
		}
		choices := make(map[string]float64, len(q.Choices))
		for k, v := range q.Choices {
			choices[k] = v
		}
		q.Choices = choices
		ret.byDim[q.Dimension] = append(ret.byDim[q.Dimension], len(ret.questions))
		ret.questions = append(ret.questions, q)
	}
	for _, name := range ret.names {
		if len(ret.byDim[name]) == 0 {
			problems = append(problems, fmt.Sprintf("dimension %q has no questions", name))
			continue
		}
		// scoring rounds each weighted maximum, so small choices and weights can vanish
		var max float64
		for _, i := range ret.byDim[name] {
			max += math.Round(ret.questions[i].MaxPoints() * ret.questions[i].Weight)
		}
		if max <= 0 {
			problems = append(problems, fmt.Sprintf("dimension %q has zero maximum weighted score", name))
		}
	}
	if len(problems) > 0 {
		return nil, &ConfigurationError{Problems: problems}
	}
	return ret, nil
}

// Dimensions returns dimension names in sorted order.
func (r *Rubric) Dimensions() []string {
	return append([]string(nil), r.names...)
}

// DimensionWeight returns the relative weight of a dimension.
func (r *Rubric) DimensionWeight(name string) float64 {
	return r.dimensions[name]
}

// Questions returns copies of the questions bound to dimension, in declaration order.
func (r *Rubric) Questions(dimension string) []Question {
	indexes := r.byDim[dimension]
	ret := make([]Question, 0, len(indexes))
	for _, i := range indexes {
		ret = append(ret, r.questions[i].clone())
	}
	return ret
}

// AllQuestions returns copies of every question in declaration order.
func (r *Rubric) AllQuestions() []Question {
	ret := make([]Question, 0, len(r.questions))
	for _, q := range r.questions {
		ret = append(ret, q.clone())
	}
	return ret
}

// Definition returns a serialisable copy of the rubric.
func (r *Rubric) Definition() *Definition {
	dims := make(map[string]float64, len(r.dimensions))
	for k, v := range r.dimensions {
		dims[k] = v
	}
	return &Definition{Dimensions: dims, Questions: r.AllQuestions()}
}

func (q Question) clone() Question {
	choices := make(map[string]float64, len(q.Choices))
	for k, v := range q.Choices {
		choices[k] = v
	}
	q.Choices = choices
	return q
}
