package models

import "time"

type IssueStatus string

const (
	IssuePending  IssueStatus = "pending"
	IssueResolved IssueStatus = "resolved"
	IssueClosed   IssueStatus = "closed"
)

func (s IssueStatus) Valid() bool {
	switch s {
	case IssuePending, IssueResolved, IssueClosed:
		return true
	}
	return false
}

// Terminal reports whether the status stamps a resolver.
func (s IssueStatus) Terminal() bool {
	return s == IssueResolved || s == IssueClosed
}

type Issue struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Email      string      `json:"email"`
	Subject    string      `json:"subject"`
	Message    string      `json:"message"`
	Status     IssueStatus `json:"status"`
	AdminNotes *string     `json:"adminNotes,omitempty"`
	ResolvedBy *string     `json:"resolvedBy,omitempty"`
	ResolvedAt *time.Time  `json:"resolvedAt,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}
