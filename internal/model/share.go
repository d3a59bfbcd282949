package model

import "time"

// ShareRecord grants public, token-addressed read access to a single file.
// Path is the actual storage path; downloads run under Owner's identity.
type ShareRecord struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	Path      string    `json:"-"`
	Name      string    `json:"name"`
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
