package activity

import (
	"slices"
	"time"
)

// Attachment is a diagnostic record contributed to a phase by whichever
// observer noticed a problem.
type Attachment struct {
	Status Status    `json:"status"`
	Title  string    `json:"title"`
	Cause  string    `json:"cause,omitempty"`
	Time   time.Time `json:"time"`
}

// NewAttachment creates an attachment without an underlying error.
func NewAttachment(status Status, title string) Attachment {
	return Attachment{
		Status: status,
		Title:  title,
	}
}

// ErrorAttachment captures err under the given title. A nil err yields an
// attachment with no cause.
//
//	a.Attach(activity.PhaseProvisioning, now,
//	    activity.ErrorAttachment(activity.StatusFail, "Provisioning failed", err))
func ErrorAttachment(status Status, title string, err error) Attachment {
	att := NewAttachment(status, title)
	if err != nil {
		att.Cause = err.Error()
	}
	return att
}

// PhaseExecution records one occurrence of a phase within an activity.
type PhaseExecution struct {
	Phase       Phase        `json:"phase"`
	StartedAt   time.Time    `json:"started_at"`
	Status      Status       `json:"status"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// attach appends att, raising the execution's status to at least att.Status.
func (p *PhaseExecution) attach(att Attachment) {
	p.Attachments = append(p.Attachments, att)
	p.Status = p.Status.Worse(att.Status)
}

func (p *PhaseExecution) clone() PhaseExecution {
	c := *p
	c.Attachments = slices.Clone(p.Attachments)
	return c
}
