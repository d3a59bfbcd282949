package model

import "time"

type FileItem struct {
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	Type       string    `json:"type"`
	Size       int64     `json:"size"`
	SizeHuman  string    `json:"size_human,omitempty"`
	Extension  string    `json:"extension,omitempty"`
	ModifiedAt time.Time `json:"modified_at"`
}

type ListData struct {
	Path  string     `json:"path"`
	Items []FileItem `json:"items"`
}

type DirectoryCreateData struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

type UploadItem struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}
