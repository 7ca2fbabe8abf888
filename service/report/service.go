// Package report renders scored submissions into byte artifacts.
//
// All renderers are pure: they return bytes and leave storage to the caller.
package report

import (
	"bytes"
	"embed"
	"encoding/csv"
	"fmt"
	"html/template"
	"math"
	texttemplate "text/template"

	"github.com/viant/intake/model/submission"
	"github.com/viant/intake/service/scoring"
)

// Artifact names used by the workflow.
const (
	ExportName   = "submission.csv"
	SummaryName  = "summary.html"
	FollowUpName = "followup.md"
)

// Tier is the severity band of a dimension percentage.
type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

// Tier thresholds in percent.
const (
	LowThreshold  = 30.0
	HighThreshold = 70.0
)

// TierOf returns the band of pct: below 30 is low, above 70 is high.
func TierOf(pct float64) Tier {
	switch {
	case pct < LowThreshold:
		return TierLow
	case pct > HighThreshold:
		return TierHigh
	}
	return TierMedium
}

//go:embed template/*
var templates embed.FS

var (
	summaryTemplate  = template.Must(template.ParseFS(templates, "template/summary.html"))
	followUpTemplate = texttemplate.Must(texttemplate.ParseFS(templates, "template/followup.md"))
)

// Row is one rendered dimension.
type Row struct {
	Dimension string
	Percent   float64
	Tier      Tier
}

// View is the data passed to document templates.
type View struct {
	Project      string
	Organization string
	Rows         []Row
	Total        float64
	TotalTier    Tier
	Diagnostics  []scoring.Diagnostic
}

// NewView builds the template view of a scored submission. Rows follow
// sorted dimension order.
func NewView(s *submission.Submission, r *scoring.Result) *View {
	ret := &View{Project: s.ProjectName(), Organization: s.OrganizationName()}
	if r == nil {
		return ret
	}
	for _, name := range sortedKeys(r.Dimensions) {
		pct := r.Dimensions[name]
		ret.Rows = append(ret.Rows, Row{Dimension: name, Percent: math.Round(pct), Tier: TierOf(pct)})
	}
	ret.Total = r.Total
	ret.TotalTier = TierOf(r.Total)
	ret.Diagnostics = r.Diagnostics
	return ret
}

// Export renders every normalized field as a two column CSV sorted by field name.
func Export(s *submission.Submission) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write([]string{"field", "value"}); err != nil {
		return nil, err
	}
	for _, name := range s.Names() {
		if err := writer.Write([]string{name, s.Get(name).String()}); err != nil {
			return nil, fmt.Errorf("failed to export field %v: %w", name, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Summary renders the scored HTML summary document.
func Summary(s *submission.Submission, r *scoring.Result) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := summaryTemplate.Execute(buf, NewView(s, r)); err != nil {
		return nil, fmt.Errorf("failed to render summary: %w", err)
	}
	return buf.Bytes(), nil
}

// FollowUp renders the follow-up draft produced for approved submissions.
func FollowUp(s *submission.Submission, r *scoring.Result) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := followUpTemplate.Execute(buf, NewView(s, r)); err != nil {
		return nil, fmt.Errorf("failed to render follow-up: %w", err)
	}
	return buf.Bytes(), nil
}
