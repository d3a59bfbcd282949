package hdfs

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWebHDFSStat(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/webhdfs/v1/users/alice/notes.txt", r.URL.Path)
		require.Equal(t, "GETFILESTATUS", r.URL.Query().Get("op"))
		require.Equal(t, "alice", r.URL.Query().Get("user.name"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"FileStatus":{"pathSuffix":"","type":"FILE","length":42,"modificationTime":1700000000000}}`)
	}))
	defer srv.Close()

	client := NewWebHDFS(srv.URL).As("alice")

	entry, err := client.Stat(context.Background(), "/users/alice/notes.txt")
	require.NoError(t, err)
	require.Equal(t, "/users/alice/notes.txt", entry.Path)
	require.False(t, entry.IsDirectory)
	require.Equal(t, int64(42), entry.Size)
	require.Equal(t, int64(1700000000000), entry.ModifiedAt.UnixMilli())
}

func TestWebHDFSListDirJoinsChildPaths(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "LISTSTATUS", r.URL.Query().Get("op"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"FileStatuses":{"FileStatus":[
			{"pathSuffix":"docs","type":"DIRECTORY","length":0,"modificationTime":0},
			{"pathSuffix":"a.txt","type":"FILE","length":5,"modificationTime":0}
		]}}`)
	}))
	defer srv.Close()

	client := NewWebHDFS(srv.URL).As("alice")

	entries, err := client.ListDir(context.Background(), "/users/alice")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "/users/alice/docs", entries[0].Path)
	require.True(t, entries[0].IsDirectory)
	require.Equal(t, "/users/alice/a.txt", entries[1].Path)
}

func TestWebHDFSRemoteExceptionMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		status    int
		exception string
		want      error
	}{
		{"not found", http.StatusNotFound, "FileNotFoundException", fs.ErrNotExist},
		{"access denied", http.StatusForbidden, "AccessControlException", fs.ErrPermission},
		{"already exists", http.StatusForbidden, "FileAlreadyExistsException", fs.ErrExist},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, `{"RemoteException":{"exception":"`+tc.exception+`","message":"nope"}}`)
			}))
			defer srv.Close()

			client := NewWebHDFS(srv.URL).As("alice")

			_, err := client.Stat(context.Background(), "/users/bob/x")
			require.Error(t, err)
			require.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestWebHDFSExistsSwallowsNotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"RemoteException":{"exception":"FileNotFoundException","message":"gone"}}`)
	}))
	defer srv.Close()

	client := NewWebHDFS(srv.URL).As("alice")

	ok, err := client.Exists(context.Background(), "/users/alice/missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestWebHDFSCreateFollowsDatanodeRedirect(t *testing.T) {
	t.Parallel()

	var written []byte

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/webhdfs/v1/users/alice/new.txt", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "CREATE", r.URL.Query().Get("op"))
		require.Equal(t, "true", r.URL.Query().Get("overwrite"))

		w.Header().Set("Location", srv.URL+"/datanode/users/alice/new.txt?op=CREATE")
		w.WriteHeader(http.StatusTemporaryRedirect)
	})
	mux.HandleFunc("/datanode/users/alice/new.txt", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		written = body
		w.WriteHeader(http.StatusCreated)
	})

	client := NewWebHDFS(srv.URL).As("alice")

	w, err := client.Create(context.Background(), "/users/alice/new.txt", true)
	require.NoError(t, err)
	_, err = io.Copy(w, strings.NewReader("payload"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.Equal(t, "payload", string(written))
}

func TestWebHDFSDeleteFalseMeansMissing(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "DELETE", r.URL.Query().Get("op"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"boolean":false}`)
	}))
	defer srv.Close()

	client := NewWebHDFS(srv.URL).As("alice")

	err := client.Delete(context.Background(), "/users/alice/gone", false)
	require.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestWebHDFSEscapesPathSegments(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/webhdfs/v1/users/alice/my report.txt", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"FileStatus":{"pathSuffix":"","type":"FILE","length":1,"modificationTime":0}}`)
	}))
	defer srv.Close()

	client := NewWebHDFS(srv.URL).As("alice")

	_, err := client.Stat(context.Background(), "/users/alice/my report.txt")
	require.NoError(t, err)
}
