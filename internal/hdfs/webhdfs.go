package hdfs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// WebHDFS talks to the namenode's REST gateway. Authentication is simple
// (user.name query parameter); the cluster's own permission model decides
// what each identity may do.
type WebHDFS struct {
	base       string
	client     *http.Client
	noRedirect *http.Client
}

func NewWebHDFS(namenodeURL string) *WebHDFS {
	base := strings.TrimRight(namenodeURL, "/") + "/webhdfs/v1"

	return &WebHDFS{
		base:   base,
		client: &http.Client{Timeout: 5 * time.Minute},
		noRedirect: &http.Client{
			Timeout: 5 * time.Minute,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (g *WebHDFS) As(user string) Client {
	return &webhdfsClient{gw: g, user: user}
}

type webhdfsClient struct {
	gw   *WebHDFS
	user string
}

type fileStatus struct {
	PathSuffix       string `json:"pathSuffix"`
	Type             string `json:"type"`
	Length           int64  `json:"length"`
	ModificationTime int64  `json:"modificationTime"`
}

func (s fileStatus) toEntry(base string) Entry {
	p := base
	if s.PathSuffix != "" {
		p = strings.TrimRight(base, "/") + "/" + s.PathSuffix
	}

	return Entry{
		Path:        p,
		IsDirectory: s.Type == "DIRECTORY",
		Size:        s.Length,
		ModifiedAt:  time.UnixMilli(s.ModificationTime).UTC(),
	}
}

func (c *webhdfsClient) endpoint(hdfsPath string, op string, params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	params.Set("op", op)
	params.Set("user.name", c.user)

	return c.gw.base + escapePath(hdfsPath) + "?" + params.Encode()
}

func escapePath(hdfsPath string) string {
	if !strings.HasPrefix(hdfsPath, "/") {
		hdfsPath = "/" + hdfsPath
	}

	segments := strings.Split(hdfsPath, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}

	return strings.Join(segments, "/")
}

func (c *webhdfsClient) Exists(ctx context.Context, path string) (bool, error) {
	_, err := c.Stat(ctx, path)
	if err == nil {
		return true, nil
	}
	if isNotExist(err) {
		return false, nil
	}

	return false, err
}

func (c *webhdfsClient) Stat(ctx context.Context, path string) (Entry, error) {
	var payload struct {
		FileStatus fileStatus `json:"FileStatus"`
	}

	if err := c.doJSON(ctx, http.MethodGet, c.endpoint(path, "GETFILESTATUS", nil), &payload); err != nil {
		return Entry{}, err
	}

	return payload.FileStatus.toEntry(path), nil
}

func (c *webhdfsClient) ListDir(ctx context.Context, dir string) ([]Entry, error) {
	var payload struct {
		FileStatuses struct {
			FileStatus []fileStatus `json:"FileStatus"`
		} `json:"FileStatuses"`
	}

	if err := c.doJSON(ctx, http.MethodGet, c.endpoint(dir, "LISTSTATUS", nil), &payload); err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(payload.FileStatuses.FileStatus))
	for _, status := range payload.FileStatuses.FileStatus {
		entries = append(entries, status.toEntry(dir))
	}

	return entries, nil
}

func (c *webhdfsClient) ListRecursive(ctx context.Context, dir string) ([]Entry, error) {
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

func (c *webhdfsClient) Mkdir(ctx context.Context, path string) error {
	params := url.Values{"permission": []string{"755"}}

	var payload struct {
		Boolean bool `json:"boolean"`
	}
	if err := c.doJSON(ctx, http.MethodPut, c.endpoint(path, "MKDIRS", params), &payload); err != nil {
		return err
	}
	if !payload.Boolean {
		return fmt.Errorf("mkdir %q: namenode refused", path)
	}

	return nil
}

func (c *webhdfsClient) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path, "OPEN", nil), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.gw.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, c.remoteError(resp)
	}

	return resp.Body, nil
}

func (c *webhdfsClient) Create(ctx context.Context, path string, overwrite bool) (io.WriteCloser, error) {
	params := url.Values{"overwrite": []string{fmt.Sprintf("%t", overwrite)}}

	// Two-step create: the namenode answers with a redirect to a datanode,
	// then the data is streamed there.
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.endpoint(path, "CREATE", params), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.gw.noRedirect.Do(req)
	if err != nil {
		return nil, fmt.Errorf("create %q: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusTemporaryRedirect && resp.StatusCode != http.StatusCreated {
		return nil, c.remoteError(resp)
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return nil, fmt.Errorf("create %q: namenode returned no datanode location", path)
	}

	pr, pw := io.Pipe()
	writer := &createWriter{pw: pw, done: make(chan error, 1)}

	go func() {
		dataReq, reqErr := http.NewRequestWithContext(ctx, http.MethodPut, location, pr)
		if reqErr != nil {
			pr.CloseWithError(reqErr)
			writer.done <- reqErr
			return
		}
		dataReq.Header.Set("Content-Type", "application/octet-stream")

		dataResp, doErr := c.gw.client.Do(dataReq)
		if doErr != nil {
			pr.CloseWithError(doErr)
			writer.done <- fmt.Errorf("write %q: %w", path, doErr)
			return
		}
		defer dataResp.Body.Close()

		if dataResp.StatusCode != http.StatusCreated {
			err := c.remoteError(dataResp)
			pr.CloseWithError(err)
			writer.done <- err
			return
		}

		writer.done <- nil
	}()

	return writer, nil
}

type createWriter struct {
	pw   *io.PipeWriter
	done chan error
}

func (w *createWriter) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

func (w *createWriter) Close() error {
	if err := w.pw.Close(); err != nil {
		return err
	}

	return <-w.done
}

func (c *webhdfsClient) Delete(ctx context.Context, path string, recursive bool) error {
	params := url.Values{"recursive": []string{fmt.Sprintf("%t", recursive)}}

	var payload struct {
		Boolean bool `json:"boolean"`
	}
	if err := c.doJSON(ctx, http.MethodDelete, c.endpoint(path, "DELETE", params), &payload); err != nil {
		return err
	}
	if !payload.Boolean {
		// HDFS reports false when the target never existed.
		return fmt.Errorf("delete %q: %w", path, fs.ErrNotExist)
	}

	return nil
}

func (c *webhdfsClient) Rename(ctx context.Context, src string, dst string) error {
	params := url.Values{"destination": []string{dst}}

	var payload struct {
		Boolean bool `json:"boolean"`
	}
	if err := c.doJSON(ctx, http.MethodPut, c.endpoint(src, "RENAME", params), &payload); err != nil {
		return err
	}
	if !payload.Boolean {
		return fmt.Errorf("rename %q to %q: namenode refused", src, dst)
	}

	return nil
}

func (c *webhdfsClient) SetOwner(ctx context.Context, path string, owner string, group string) error {
	params := url.Values{}
	if owner != "" {
		params.Set("owner", owner)
	}
	if group != "" {
		params.Set("group", group)
	}

	return c.doJSON(ctx, http.MethodPut, c.endpoint(path, "SETOWNER", params), nil)
}

func (c *webhdfsClient) SetPermission(ctx context.Context, path string, octal string) error {
	params := url.Values{"permission": []string{octal}}

	return c.doJSON(ctx, http.MethodPut, c.endpoint(path, "SETPERMISSION", params), nil)
}

func (c *webhdfsClient) doJSON(ctx context.Context, method string, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return err
	}

	resp, err := c.gw.client.Do(req)
	if err != nil {
		return fmt.Errorf("namenode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.remoteError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode namenode response: %w", err)
	}

	return nil
}

// remoteError converts a WebHDFS RemoteException into an error the rest of
// the system can classify with errors.Is.
func (c *webhdfsClient) remoteError(resp *http.Response) error {
	var payload struct {
		RemoteException struct {
			Exception string `json:"exception"`
			Message   string `json:"message"`
		} `json:"RemoteException"`
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	_ = json.Unmarshal(body, &payload)

	exception := payload.RemoteException.Exception
	message := payload.RemoteException.Message
	if message == "" {
		message = strings.TrimSpace(string(body))
	}

	switch {
	case exception == "FileNotFoundException" || resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", firstLine(message), fs.ErrNotExist)
	case exception == "AccessControlException" || resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%s: %w", firstLine(message), fs.ErrPermission)
	case exception == "FileAlreadyExistsException":
		return fmt.Errorf("%s: %w", firstLine(message), fs.ErrExist)
	default:
		return fmt.Errorf("webhdfs %d %s: %s", resp.StatusCode, exception, firstLine(message))
	}
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}

	return s
}

func isNotExist(err error) bool {
	return err != nil && errors.Is(err, fs.ErrNotExist)
}
