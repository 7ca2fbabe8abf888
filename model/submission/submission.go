// Package submission defines the normalized, immutable submission record.
package submission

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/viant/intake/model/field"
)

// Canonical field names the workflow reads directly.
const (
	FieldOrganizationName = "organization_name"
	FieldProjectName      = "project_name"
	FieldContactEmail     = "contact_email"
)

// Submission is a flat mapping of canonical field name to scalar value.
// It is created by the normalizer and never mutated afterwards.
type Submission struct {
	fields     map[string]field.Value
	receivedAt time.Time
}

// New copies fields into a new Submission.
func New(fields map[string]field.Value, receivedAt time.Time) *Submission {
	copied := make(map[string]field.Value, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return &Submission{fields: copied, receivedAt: receivedAt}
}

// Get returns the value stored under name; missing fields read as Empty.
func (s *Submission) Get(name string) field.Value {
	if s == nil {
		return field.Empty()
	}
	if v, ok := s.fields[name]; ok {
		return v
	}
	return field.Empty()
}

// Has reports whether name was present in the payload.
func (s *Submission) Has(name string) bool {
	if s == nil {
		return false
	}
	_, ok := s.fields[name]
	return ok
}

// Fields returns a copy of the field map.
func (s *Submission) Fields() map[string]field.Value {
	ret := make(map[string]field.Value, len(s.fields))
	for k, v := range s.fields {
		ret[k] = v
	}
	return ret
}

// Names returns field names in sorted order.
func (s *Submission) Names() []string {
	ret := make([]string, 0, len(s.fields))
	for k := range s.fields {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}

// Len returns the number of fields.
func (s *Submission) Len() int { return len(s.fields) }

// ReceivedAt returns the intake timestamp. It is not part of the identity.
func (s *Submission) ReceivedAt() time.Time { return s.receivedAt }

// OrganizationName returns the organization name answer.
func (s *Submission) OrganizationName() string {
	return s.Get(FieldOrganizationName).String()
}

// ProjectName returns the project name answer.
func (s *Submission) ProjectName() string {
	return s.Get(FieldProjectName).String()
}

// ContactEmail returns the applicant contact address, if any.
func (s *Submission) ContactEmail() string {
	return s.Get(FieldContactEmail).String()
}

type submissionJSON struct {
	Fields     map[string]field.Value `json:"fields"`
	ReceivedAt time.Time              `json:"receivedAt"`
}

// MarshalJSON implements json.Marshaler.
func (s *Submission) MarshalJSON() ([]byte, error) {
	return json.Marshal(submissionJSON{Fields: s.fields, ReceivedAt: s.receivedAt})
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Submission) UnmarshalJSON(data []byte) error {
	var aux submissionJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Fields == nil {
		aux.Fields = map[string]field.Value{}
	}
	s.fields = aux.Fields
	s.receivedAt = aux.ReceivedAt
	return nil
}
