package models

import "time"

type Subscriber struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Active           bool      `json:"active"`
	UnsubscribeToken string    `json:"-"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}
