// Package vfs maps the virtual paths callers see onto storage paths and
// carries out mutations under the right identity, escalating to the admin
// identity when a tenant's first attempt fails.
package vfs

import (
	"fmt"
	"path"
	"strings"

	"hdfs-drive/internal/model"
)

const (
	// TypePrefix marks virtual paths that address a type-class view rather
	// than a directory, e.g. /.type/images.
	TypePrefix = "/.type/"

	// TrashPrefix marks the virtual trash view.
	TrashPrefix = "/.trash"
)

// Resolver translates between virtual paths and storage paths. Every tenant
// lives under usersRoot/<username>; admins address the store directly.
type Resolver struct {
	usersRoot string
}

func NewResolver(usersRoot string) *Resolver {
	return &Resolver{usersRoot: path.Clean("/" + strings.Trim(usersRoot, "/"))}
}

func (r *Resolver) UsersRoot() string {
	return r.usersRoot
}

// TenantRoot is the storage directory owned by the given tenant.
func (r *Resolver) TenantRoot(username string) string {
	return r.usersRoot + "/" + username
}

// RootFor is the storage path a principal's virtual "/" maps to.
func (r *Resolver) RootFor(p model.Principal) string {
	if p.Admin {
		return "/"
	}

	return r.TenantRoot(p.Name)
}

// IsReserved reports whether the virtual path addresses one of the synthetic
// views instead of a real directory.
func IsReserved(virtualPath string) bool {
	return strings.HasPrefix(virtualPath, TypePrefix) || strings.HasPrefix(virtualPath, TrashPrefix)
}

// Resolve maps a virtual path to the storage path the principal may act on.
// Reserved view prefixes pass through untouched; the caller dispatches them
// before touching storage. A tenant handing in a storage path below another
// tenant's root gets model.ErrAccessDenied.
func (r *Resolver) Resolve(p model.Principal, virtualPath string) (string, error) {
	if !p.Authenticated() {
		return "", model.ErrUnauthenticated
	}

	if virtualPath == "" {
		virtualPath = "/"
	}
	if IsReserved(virtualPath) {
		return virtualPath, nil
	}

	cleaned := path.Clean("/" + virtualPath)

	if p.Admin {
		return cleaned, nil
	}

	root := r.TenantRoot(p.Name)
	if cleaned == "/" {
		return root, nil
	}

	// A path already below usersRoot is accepted only when it stays inside
	// the caller's own root. Anything else is a cross-tenant reference.
	if cleaned == r.usersRoot || strings.HasPrefix(cleaned, r.usersRoot+"/") {
		if cleaned == root || strings.HasPrefix(cleaned, root+"/") {
			return cleaned, nil
		}

		return "", fmt.Errorf("path %q: %w", virtualPath, model.ErrAccessDenied)
	}

	return root + cleaned, nil
}

// ToVirtual maps a storage path back to the principal's virtual view. Paths
// outside the principal's root pass through unchanged.
func (r *Resolver) ToVirtual(p model.Principal, actualPath string) string {
	if p.Admin {
		return actualPath
	}

	root := r.TenantRoot(p.Name)
	switch {
	case actualPath == root:
		return "/"
	case strings.HasPrefix(actualPath, root+"/"):
		return actualPath[len(root):]
	default:
		return actualPath
	}
}

// Owns reports whether a storage path falls inside the principal's tenant
// root. Admin principals own everything.
func (r *Resolver) Owns(p model.Principal, actualPath string) bool {
	if p.Admin {
		return true
	}

	root := r.TenantRoot(p.Name)

	return actualPath == root || strings.HasPrefix(actualPath, root+"/")
}
