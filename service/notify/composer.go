package notify

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"text/template"
	"time"

	"github.com/viant/intake/model/workflow"
	"github.com/viant/intake/service/report"
)

var reviewerTemplate = template.Must(template.New("reviewer").Parse(`A new submission is waiting for your decision.

Project:      {{.Project}}
Organization: {{.Organization}}
Score:        {{printf "%.0f" .Total}} ({{.Tier}})
{{range .Rows}}  {{.Dimension}}: {{printf "%.0f" .Percent}}% ({{.Tier}})
{{end}}
Approve:  {{.ApproveURL}}
Waitlist: {{.WaitlistURL}}

Each link works once. The request expires on {{.Deadline}}.
`))

var applicantTemplates = map[workflow.Decision]*template.Template{
	workflow.DecisionApprove: template.Must(template.New("approve").Parse(`Hello {{.Organization}},

Your submission "{{.Project}}" has been approved. We will contact you shortly to arrange next steps.
`)),
	workflow.DecisionWaitlist: template.Must(template.New("waitlist").Parse(`Hello {{.Organization}},

Thank you for submitting "{{.Project}}". We are not able to take it on right now and have placed it on our waitlist.
We will reach out if capacity opens up.
`)),
}

// Composer builds workflow messages.
type Composer struct {
	baseURL   string
	reviewers []string
}

// NewComposer creates a composer; baseURL is the public root of the decision endpoints.
func NewComposer(baseURL string, reviewers []string) *Composer {
	return &Composer{baseURL: strings.TrimRight(baseURL, "/"), reviewers: reviewers}
}

// DecisionURL returns the redemption link for decision.
func (c *Composer) DecisionURL(decision workflow.Decision, token string) string {
	return c.baseURL + "/" + string(decision) + "?token=" + url.QueryEscape(token)
}

// Reviewer builds the decision request carrying both redemption links.
func (c *Composer) Reviewer(instance *workflow.Instance, token string) (*Message, error) {
	view := report.NewView(instance.Submission, instance.Score)
	data := struct {
		*report.View
		Tier        report.Tier
		ApproveURL  string
		WaitlistURL string
		Deadline    string
	}{
		View:        view,
		Tier:        view.TotalTier,
		ApproveURL:  c.DecisionURL(workflow.DecisionApprove, token),
		WaitlistURL: c.DecisionURL(workflow.DecisionWaitlist, token),
	}
	if instance.DeadlineAt != nil {
		data.Deadline = instance.DeadlineAt.UTC().Format(time.RFC1123)
	}
	body := &bytes.Buffer{}
	if err := reviewerTemplate.Execute(body, data); err != nil {
		return nil, fmt.Errorf("failed to compose reviewer message: %w", err)
	}
	return &Message{
		To:      append([]string(nil), c.reviewers...),
		Subject: fmt.Sprintf("Decision needed: %v", oneLine(view.Project)),
		Body:    body.String(),
	}, nil
}

// Applicant builds the outcome message; it returns ErrNoRecipient when the
// submission carries no contact email.
func (c *Composer) Applicant(instance *workflow.Instance, decision workflow.Decision) (*Message, error) {
	contact := instance.Submission.ContactEmail()
	if contact == "" {
		return nil, ErrNoRecipient
	}
	tmpl, ok := applicantTemplates[decision]
	if !ok {
		return nil, fmt.Errorf("unsupported decision: %v", decision)
	}
	view := report.NewView(instance.Submission, instance.Score)
	body := &bytes.Buffer{}
	if err := tmpl.Execute(body, view); err != nil {
		return nil, fmt.Errorf("failed to compose applicant message: %w", err)
	}
	subject := "Your submission has been approved"
	if decision == workflow.DecisionWaitlist {
		subject = "Your submission has been waitlisted"
	}
	return &Message{To: []string{contact}, Subject: subject + ": " + oneLine(view.Project), Body: body.String()}, nil
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
