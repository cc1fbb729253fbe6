package notification

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/frahmantamala/leave-management/internal/core/events"
)

type Kind string

const (
	KindNewRequestToManager Kind = "new_request_manager"
	KindManagerDecision     Kind = "manager_decision"
	KindNewRequestToHR      Kind = "new_request_hr"
	KindHRDecision          Kind = "hr_decision"
	KindDeptHeadDecision    Kind = "dept_head_decision"
	KindExecDecision        Kind = "exec_decision"
)

// decisionKinds maps a stage name to the email the requester receives.
var decisionKinds = map[string]Kind{
	"manager":   KindManagerDecision,
	"hr":        KindHRDecision,
	"dept-head": KindDeptHeadDecision,
	"exec":      KindExecDecision,
}

func DecisionKind(stage string) (Kind, bool) {
	k, ok := decisionKinds[stage]
	return k, ok
}

// TemplateData is what every template renders from.
type TemplateData struct {
	RecipientName string
	Leave         events.LeaveSummary
	Decision      string
	Comment       string
	DecidedBy     string
}

type mailTemplate struct {
	title   string
	subject *template.Template
	body    *template.Template
}

var funcs = template.FuncMap{
	"date": func(t time.Time) string { return t.Format("2006-01-02") },
	"verb": decisionVerb,
}

func decisionVerb(decision string) string {
	if decision == "NEEDS_MORE_INFO" {
		return "returned for more information"
	}
	return strings.ToLower(decision)
}

func mustTemplate(kind Kind, title, subject, body string) mailTemplate {
	return mailTemplate{
		title:   title,
		subject: template.Must(template.New(string(kind) + "_subject").Funcs(funcs).Parse(subject)),
		body:    template.Must(template.New(string(kind) + "_body").Funcs(funcs).Parse(body)),
	}
}

const decisionBody = `Hello {{.Leave.EmployeeName}},

Your {{.Leave.LeaveType}} request from {{date .Leave.StartDate}} to {{date .Leave.EndDate}} was {{verb .Decision}} by {{.DecidedBy}}.
{{if .Comment}}
Comment: {{.Comment}}
{{end}}`

var templates = map[Kind]mailTemplate{
	KindNewRequestToManager: mustTemplate(KindNewRequestToManager,
		"New leave request",
		`New leave request from {{.Leave.EmployeeName}}`,
		`Hello {{.RecipientName}},

{{.Leave.EmployeeName}} submitted a {{.Leave.LeaveType}} request from {{date .Leave.StartDate}} to {{date .Leave.EndDate}} ({{.Leave.Days}} days).
{{if .Leave.Reason}}
Reason: {{.Leave.Reason}}
{{end}}
Please review it.
`),
	KindNewRequestToHR: mustTemplate(KindNewRequestToHR,
		"Leave request awaiting HR",
		`Leave request awaiting HR review: {{.Leave.EmployeeName}}`,
		`Hello {{.RecipientName}},

The {{.Leave.LeaveType}} request of {{.Leave.EmployeeName}} from {{date .Leave.StartDate}} to {{date .Leave.EndDate}} was approved by the manager and is waiting for your review.
`),
	KindManagerDecision:  mustTemplate(KindManagerDecision, "Manager decision", `Manager decision on your leave request`, decisionBody),
	KindHRDecision:       mustTemplate(KindHRDecision, "HR decision", `HR decision on your leave request`, decisionBody),
	KindDeptHeadDecision: mustTemplate(KindDeptHeadDecision, "Department head decision", `Department head decision on your leave request`, decisionBody),
	KindExecDecision:     mustTemplate(KindExecDecision, "Executive decision", `Executive decision on your leave request`, decisionBody),
}

// Rendered is a message ready for both the mailbox and the in-app feed.
type Rendered struct {
	Title   string
	Subject string
	Body    string
}

func Render(kind Kind, data TemplateData) (*Rendered, error) {
	t, ok := templates[kind]
	if !ok {
		return nil, fmt.Errorf("unknown notification kind %q", kind)
	}

	var subject, body bytes.Buffer
	if err := t.subject.Execute(&subject, data); err != nil {
		return nil, fmt.Errorf("failed to render %s subject: %w", kind, err)
	}
	if err := t.body.Execute(&body, data); err != nil {
		return nil, fmt.Errorf("failed to render %s body: %w", kind, err)
	}

	return &Rendered{
		Title:   t.title,
		Subject: subject.String(),
		Body:    strings.TrimSpace(body.String()),
	}, nil
}
