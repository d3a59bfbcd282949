package model

import "time"

// OpRecord is one line of the administrative operations log.
type OpRecord struct {
	ID         int64     `json:"id"`
	OccurredAt time.Time `json:"occurred_at"`
	Username   string    `json:"username"`
	Action     string    `json:"action"`
	Path       string    `json:"path,omitempty"`
	Status     string    `json:"status"`
	Detail     string    `json:"detail,omitempty"`
}
