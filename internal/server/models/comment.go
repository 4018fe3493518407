package models

import "time"

type CommentStatus string

const (
	CommentPending  CommentStatus = "pending"
	CommentApproved CommentStatus = "approved"
	CommentFlagged  CommentStatus = "flagged"
	CommentRejected CommentStatus = "rejected"
)

func (s CommentStatus) Valid() bool {
	switch s {
	case CommentPending, CommentApproved, CommentFlagged, CommentRejected:
		return true
	}
	return false
}

type Comment struct {
	ID              string        `json:"id"`
	PostID          string        `json:"postId"`
	AuthorName      string        `json:"authorName"`
	UserID          *string       `json:"userId,omitempty"`
	Email           *string       `json:"email,omitempty"`
	Content         string        `json:"content"`
	Status          CommentStatus `json:"status"`
	FlagReason      *string       `json:"flagReason,omitempty"`
	ModerationNotes *string       `json:"moderationNotes,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}
