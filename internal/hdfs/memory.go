package hdfs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Memory is an in-memory Connector that enforces a POSIX-like owner/mode
// model, enough to reproduce the permission failures the escalation
// protocol exists to repair. The admin identity bypasses every check, like
// the HDFS superuser.
type Memory struct {
	mu    sync.Mutex
	root  *memNode
	admin string
}

type memNode struct {
	name     string
	dir      bool
	owner    string
	mode     uint32
	data     []byte
	modified time.Time
	children map[string]*memNode
}

func NewMemory(admin string) *Memory {
	return &Memory{
		root: &memNode{
			name:     "/",
			dir:      true,
			owner:    admin,
			mode:     0o755,
			modified: time.Now().UTC(),
			children: map[string]*memNode{},
		},
		admin: admin,
	}
}

func (m *Memory) As(user string) Client {
	return &memClient{store: m, user: user}
}

// Owner reports the recorded owner of a path. Test helper.
func (m *Memory) Owner(p string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	node := m.lookup(p)
	if node == nil {
		return "", false
	}

	return node.owner, true
}

// Mode reports the recorded octal mode of a path. Test helper.
func (m *Memory) Mode(p string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	node := m.lookup(p)
	if node == nil {
		return "", false
	}

	return fmt.Sprintf("%03o", node.mode), true
}

func splitPath(p string) []string {
	trimmed := strings.Trim(path.Clean("/"+p), "/")
	if trimmed == "" {
		return nil
	}

	return strings.Split(trimmed, "/")
}

func (m *Memory) lookup(p string) *memNode {
	node := m.root
	for _, segment := range splitPath(p) {
		if !node.dir {
			return nil
		}
		child, ok := node.children[segment]
		if !ok {
			return nil
		}
		node = child
	}

	return node
}

type memClient struct {
	store *Memory
	user  string
}

func (c *memClient) canRead(n *memNode) bool {
	return c.user == c.store.admin || n.owner == c.user || n.mode&0o004 != 0
}

func (c *memClient) canWrite(n *memNode) bool {
	return c.user == c.store.admin || (n.owner == c.user && n.mode&0o200 != 0) || n.mode&0o002 != 0
}

func (n *memNode) entry(fullPath string) Entry {
	size := int64(0)
	if !n.dir {
		size = int64(len(n.data))
	}

	return Entry{
		Path:        fullPath,
		IsDirectory: n.dir,
		Size:        size,
		ModifiedAt:  n.modified,
	}
}

func (c *memClient) Exists(_ context.Context, p string) (bool, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	return c.store.lookup(p) != nil, nil
}

func (c *memClient) Stat(_ context.Context, p string) (Entry, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	node := c.store.lookup(p)
	if node == nil {
		return Entry{}, fmt.Errorf("stat %q: %w", p, fs.ErrNotExist)
	}

	return node.entry(path.Clean("/" + p)), nil
}

func (c *memClient) ListDir(_ context.Context, dir string) ([]Entry, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	node := c.store.lookup(dir)
	if node == nil {
		return nil, fmt.Errorf("list %q: %w", dir, fs.ErrNotExist)
	}
	if !node.dir {
		return nil, fmt.Errorf("list %q: not a directory", dir)
	}
	if !c.canRead(node) {
		return nil, fmt.Errorf("list %q as %s: %w", dir, c.user, fs.ErrPermission)
	}

	base := path.Clean("/" + dir)
	names := make([]string, 0, len(node.children))
	for name := range node.children {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		entries = append(entries, node.children[name].entry(path.Join(base, name)))
	}

	return entries, nil
}

func (c *memClient) ListRecursive(ctx context.Context, dir string) ([]Entry, error) {
	out := make([]Entry, 0)
	queue := []string{dir}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		children, err := c.ListDir(ctx, current)
		if err != nil {
			return nil, err
		}

		for _, child := range children {
			out = append(out, child)
			if child.IsDirectory {
				queue = append(queue, child.Path)
			}
		}
	}

	return out, nil
}

func (c *memClient) Mkdir(_ context.Context, p string) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	_, err := c.mkdirsLocked(p)

	return err
}

// mkdirsLocked creates every missing directory on the path, like the
// store's MKDIRS. Creating the first missing segment requires write access
// to the deepest existing ancestor. Callers hold the store lock.
func (c *memClient) mkdirsLocked(p string) (*memNode, error) {
	node := c.store.root
	segments := splitPath(p)

	for i, segment := range segments {
		child, ok := node.children[segment]
		if ok {
			if !child.dir {
				return nil, fmt.Errorf("mkdir %q: %w", p, fs.ErrExist)
			}
			node = child
			continue
		}

		if !c.canWrite(node) {
			return nil, fmt.Errorf("mkdir %q as %s: %w", strings.Join(segments[:i+1], "/"), c.user, fs.ErrPermission)
		}

		created := &memNode{
			name:     segment,
			dir:      true,
			owner:    c.user,
			mode:     0o755,
			modified: time.Now().UTC(),
			children: map[string]*memNode{},
		}
		node.children[segment] = created
		node = created
	}

	return node, nil
}

func (c *memClient) Open(_ context.Context, p string) (io.ReadCloser, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	node := c.store.lookup(p)
	if node == nil {
		return nil, fmt.Errorf("open %q: %w", p, fs.ErrNotExist)
	}
	if node.dir {
		return nil, fmt.Errorf("open %q: is a directory", p)
	}
	if !c.canRead(node) {
		return nil, fmt.Errorf("open %q as %s: %w", p, c.user, fs.ErrPermission)
	}

	return io.NopCloser(bytes.NewReader(append([]byte(nil), node.data...))), nil
}

func (c *memClient) Create(_ context.Context, p string, overwrite bool) (io.WriteCloser, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	dir, name := path.Split(path.Clean("/" + p))

	// Creating a file brings its missing ancestors into existence, as the
	// store's CREATE does.
	parent, err := c.mkdirsLocked(dir)
	if err != nil {
		return nil, err
	}

	existing, exists := parent.children[name]
	if exists {
		if existing.dir {
			return nil, fmt.Errorf("create %q: is a directory", p)
		}
		if !overwrite {
			return nil, fmt.Errorf("create %q: %w", p, fs.ErrExist)
		}
		if !c.canWrite(existing) {
			return nil, fmt.Errorf("create %q as %s: %w", p, c.user, fs.ErrPermission)
		}
	} else if !c.canWrite(parent) {
		return nil, fmt.Errorf("create %q as %s: %w", p, c.user, fs.ErrPermission)
	}

	return &memWriter{store: c.store, parent: parent, name: name, owner: c.user}, nil
}

type memWriter struct {
	store  *Memory
	parent *memNode
	name   string
	owner  string
	buf    bytes.Buffer
}

func (w *memWriter) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *memWriter) Close() error {
	w.store.mu.Lock()
	defer w.store.mu.Unlock()

	node, ok := w.parent.children[w.name]
	if !ok {
		node = &memNode{name: w.name, owner: w.owner, mode: 0o644}
		w.parent.children[w.name] = node
	}
	node.data = w.buf.Bytes()
	node.modified = time.Now().UTC()

	return nil
}

func (c *memClient) Delete(_ context.Context, p string, recursive bool) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	dir, name := path.Split(path.Clean("/" + p))
	parent := c.store.lookup(dir)
	if parent == nil || !parent.dir {
		return fmt.Errorf("delete %q: %w", p, fs.ErrNotExist)
	}

	node, ok := parent.children[name]
	if !ok {
		return fmt.Errorf("delete %q: %w", p, fs.ErrNotExist)
	}
	if node.dir && len(node.children) > 0 && !recursive {
		return fmt.Errorf("delete %q: directory not empty", p)
	}
	if !c.canWrite(parent) && !c.canWrite(node) {
		return fmt.Errorf("delete %q as %s: %w", p, c.user, fs.ErrPermission)
	}

	delete(parent.children, name)
	return nil
}

func (c *memClient) Rename(_ context.Context, src string, dst string) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	srcDir, srcName := path.Split(path.Clean("/" + src))
	srcParent := c.store.lookup(srcDir)
	if srcParent == nil || !srcParent.dir {
		return fmt.Errorf("rename %q: %w", src, fs.ErrNotExist)
	}
	node, ok := srcParent.children[srcName]
	if !ok {
		return fmt.Errorf("rename %q: %w", src, fs.ErrNotExist)
	}
	if !c.canWrite(srcParent) && !c.canWrite(node) {
		return fmt.Errorf("rename %q as %s: %w", src, c.user, fs.ErrPermission)
	}

	dstDir, dstName := path.Split(path.Clean("/" + dst))
	dstParent := c.store.lookup(dstDir)
	if dstParent == nil || !dstParent.dir {
		return fmt.Errorf("rename to %q: parent: %w", dst, fs.ErrNotExist)
	}
	if !c.canWrite(dstParent) {
		return fmt.Errorf("rename to %q as %s: %w", dst, c.user, fs.ErrPermission)
	}
	if _, exists := dstParent.children[dstName]; exists {
		return fmt.Errorf("rename to %q: %w", dst, fs.ErrExist)
	}

	delete(srcParent.children, srcName)
	node.name = dstName
	node.modified = time.Now().UTC()
	dstParent.children[dstName] = node

	return nil
}

func (c *memClient) SetOwner(_ context.Context, p string, owner string, _ string) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	// Only the superuser may change ownership, as in HDFS.
	if c.user != c.store.admin {
		return fmt.Errorf("chown %q as %s: %w", p, c.user, fs.ErrPermission)
	}

	node := c.store.lookup(p)
	if node == nil {
		return fmt.Errorf("chown %q: %w", p, fs.ErrNotExist)
	}
	if owner != "" {
		node.owner = owner
	}

	return nil
}

func (c *memClient) SetPermission(_ context.Context, p string, octal string) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	node := c.store.lookup(p)
	if node == nil {
		return fmt.Errorf("chmod %q: %w", p, fs.ErrNotExist)
	}
	if c.user != c.store.admin && node.owner != c.user {
		return fmt.Errorf("chmod %q as %s: %w", p, c.user, fs.ErrPermission)
	}

	mode, err := strconv.ParseUint(octal, 8, 32)
	if err != nil {
		return fmt.Errorf("chmod %q: bad mode %q", p, octal)
	}
	node.mode = uint32(mode)

	return nil
}
