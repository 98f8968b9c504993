package dirops_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	netstorage "github.com/akamai/netstorage-go"
	"github.com/akamai/netstorage-go/dirops"
)

type fakeServer struct {
	mu       sync.Mutex
	dirs     map[string]string // path -> <directory>... xml body
	uploaded map[string][]byte
	calls    []string // action+":"+path, in request order
}

func newFakeServer(dirs map[string]string) *fakeServer {
	return &fakeServer{dirs: dirs, uploaded: map[string][]byte{}}
}

func (s *fakeServer) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		action := r.URL.Query().Get("action")

		s.mu.Lock()
		s.calls = append(s.calls, action+":"+r.URL.Path)
		s.mu.Unlock()

		switch action {
		case "dir", "stat":
			body, ok := s.dirs[r.URL.Path]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}

			w.WriteHeader(http.StatusOK)
			w.Write([]byte(body)) //nolint:errcheck
		case "upload":
			buf := new(bytes.Buffer)
			buf.ReadFrom(r.Body) //nolint:errcheck

			s.mu.Lock()
			s.uploaded[r.URL.Path] = buf.Bytes()
			s.mu.Unlock()

			w.WriteHeader(http.StatusOK)
		case "download":
			s.mu.Lock()
			body, ok := s.uploaded[r.URL.Path]
			s.mu.Unlock()

			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}

			w.WriteHeader(http.StatusOK)
			w.Write(body) //nolint:errcheck
		case "delete", "rmdir":
			w.WriteHeader(http.StatusOK)
		default:
			t.Fatalf("unexpected action %q for %q", action, r.URL.Path)
		}
	}
}

func (s *fakeServer) callOrder() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.calls...)
}

func newTestConfig(t *testing.T, s *fakeServer) *netstorage.ClientConfig {
	t.Helper()

	srv := httptest.NewServer(s.handler(t))
	t.Cleanup(srv.Close)

	cfg, err := netstorage.NewClientConfig("secret", "alice", srv.URL[len("http://"):])
	require.NoError(t, err)

	return cfg
}

func TestUploadDirectoryUploadsEveryLocalFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "top.txt"), []byte("top"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "nested.txt"), []byte("nested"), 0o644))

	s := newFakeServer(map[string]string{})
	cfg := newTestConfig(t, s)

	records, err := dirops.UploadDirectory(context.Background(), cfg, root, "/remote", dirops.UploadDirectoryOptions{})
	require.NoError(t, err)
	require.Len(t, records, 2)

	s.mu.Lock()
	require.Equal(t, []byte("top"), s.uploaded["/remote/top.txt"])
	require.Equal(t, []byte("nested"), s.uploaded["/remote/sub/nested.txt"])
	s.mu.Unlock()
}

func TestUploadDirectorySkipsFilteredFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "keep.txt"), []byte("k"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "skip.txt"), []byte("s"), 0o644))

	s := newFakeServer(map[string]string{})
	cfg := newTestConfig(t, s)

	var skipped []dirops.SkipEvent

	records, err := dirops.UploadDirectory(context.Background(), cfg, root, "/remote", dirops.UploadDirectoryOptions{
		ShouldUpload: func(localPath, relativePath string) bool { return relativePath != "skip.txt" },
		OnSkip:       func(ev dirops.SkipEvent) { skipped = append(skipped, ev) },
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "keep.txt", records[0].RelativePath)
	require.Len(t, skipped, 1)
	require.Equal(t, dirops.ReasonFiltered, skipped[0].Reason)
}

func TestDownloadDirectoryMirrorsRemoteTree(t *testing.T) {
	s := newFakeServer(map[string]string{
		"/remote": `<?xml version="1.0"?><directory name="remote">
			<file name="a.txt" type="file" size="5"/>
		</directory>`,
	})
	s.uploaded["/remote/a.txt"] = []byte("hello")

	cfg := newTestConfig(t, s)

	localRoot := t.TempDir()

	records, err := dirops.DownloadDirectory(context.Background(), cfg, "/remote", localRoot, dirops.DownloadDirectoryOptions{})
	require.NoError(t, err)
	require.Len(t, records, 1)

	content, err := os.ReadFile(filepath.Join(localRoot, "a.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(content))
}

func TestRemoveDirectoryRemovesChildrenBeforeParents(t *testing.T) {
	s := newFakeServer(map[string]string{
		"/remote": `<?xml version="1.0"?><directory name="remote">
			<file name="sub" type="dir"/>
		</directory>`,
		"/remote/sub": `<?xml version="1.0"?><directory name="sub">
			<file name="leaf.txt" type="file" size="1"/>
		</directory>`,
	})

	cfg := newTestConfig(t, s)

	err := dirops.RemoveDirectory(context.Background(), cfg, "/remote", dirops.RemoveDirectoryOptions{})
	require.NoError(t, err)

	calls := s.callOrder()

	var rmLeaf, rmdirSub int

	for i, c := range calls {
		if c == "delete:/remote/sub/leaf.txt" {
			rmLeaf = i
		}

		if c == "rmdir:/remote/sub" {
			rmdirSub = i
		}
	}

	require.Less(t, rmLeaf, rmdirSub, "leaf file must be removed before its containing directory")
}

func TestDownloadDirectoryDryRunSkipsWrites(t *testing.T) {
	s := newFakeServer(map[string]string{
		"/remote": `<?xml version="1.0"?><directory name="remote">
			<file name="a.txt" type="file" size="5"/>
		</directory>`,
	})
	s.uploaded["/remote/a.txt"] = []byte("hello")

	cfg := newTestConfig(t, s)
	localRoot := t.TempDir()

	var skipped []dirops.SkipEvent

	records, err := dirops.DownloadDirectory(context.Background(), cfg, "/remote", localRoot, dirops.DownloadDirectoryOptions{
		DryRun: true,
		OnSkip: func(ev dirops.SkipEvent) { skipped = append(skipped, ev) },
	})
	require.NoError(t, err)
	require.Empty(t, records)
	require.Len(t, skipped, 1)
	require.Equal(t, dirops.ReasonDryRun, skipped[0].Reason)

	entries, err := os.ReadDir(localRoot)
	require.NoError(t, err)
	require.Empty(t, entries)
}
