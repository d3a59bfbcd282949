package model

// Principal is the explicit identity every drive operation runs under.
// Name is the storage-level username; Admin marks the single administrative
// identity that sees the raw tree and is allowed outside the users area.
type Principal struct {
	Name  string `json:"name"`
	Admin bool   `json:"admin"`
}

func (p Principal) Authenticated() bool {
	return p.Name != ""
}
