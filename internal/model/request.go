package model

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type CreateDirectoryRequest struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

type SaveFileRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type MoveCopyRequest struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

type MoveCopyResponse struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type RestoreRequest struct {
	Path string `json:"path"`
}

type RestoreBatchRequest struct {
	Paths []string `json:"paths"`
}

type RestoreBatchResponse struct {
	Results map[string]bool `json:"results"`
}

type DeleteResponse struct {
	Path      string `json:"path"`
	Permanent bool   `json:"permanent"`
}

type PurgeResponse struct {
	Purged []string `json:"purged"`
}

type CreateShareRequest struct {
	Path      string `json:"path"`
	ExpiresIn string `json:"expires_in,omitempty"`
}
