package model

import "time"

// TrashItem is the caller-facing view of a soft-deleted path. Path is the
// virtual path as seen by the requesting principal; OriginalPath is the
// actual storage path recorded in the ledger.
type TrashItem struct {
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	Type         string    `json:"type"`
	OriginalPath string    `json:"original_path"`
	Size         int64     `json:"size,omitempty"`
	ModifiedAt   time.Time `json:"modified_at,omitzero"`
	DeletedAt    time.Time `json:"deleted_at"`
	ExpireAt     time.Time `json:"expire_at"`
}
