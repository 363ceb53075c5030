package alerting

import (
	"bytes"
	"errors"
	"text/template"
)

const DefaultTemplate = `[Stream Runway {{.HealthLabel}}]
Stream: {{.StreamID}}
Tenant: {{.TenantID}}
Sender: {{.SenderAccountID}}
Runway: {{.Runway}}
Available Funding: {{.FundedRemaining}}
Flow Rate (monthly): {{.FlowRatePerMonth}}
Suggestion: top up the stream before funding is exhausted`

// TemplateData provides fields for rendering alert content.
type TemplateData struct {
	StreamID         string
	TenantID         string
	SenderAccountID  string
	Health           string
	HealthLabel      string
	Runway           string
	FundedRemaining  string
	FlowRatePerMonth string
}

// Template renders alert content.
type Template struct {
	tpl *template.Template
}

// NewTemplate parses an alert template, falling back to DefaultTemplate.
func NewTemplate(tpl string) (*Template, error) {
	if tpl == "" {
		tpl = DefaultTemplate
	}
	parsed, err := template.New("runway-alert").Parse(tpl)
	if err != nil {
		return nil, err
	}
	return &Template{tpl: parsed}, nil
}

// Render applies the template to data.
func (t *Template) Render(data TemplateData) (string, error) {
	if t == nil || t.tpl == nil {
		return "", errors.New("alert template: nil")
	}
	var buf bytes.Buffer
	if err := t.tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
