package nssync_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	netstorage "github.com/akamai/netstorage-go"
	"github.com/akamai/netstorage-go/nssync"
)

type fakeServer struct {
	mu       sync.Mutex
	dirs     map[string]string
	uploaded map[string][]byte
	deleted  []string
}

func newFakeServer(dirs map[string]string) *fakeServer {
	return &fakeServer{dirs: dirs, uploaded: map[string][]byte{}}
}

func (s *fakeServer) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		action := r.URL.Query().Get("action")

		switch action {
		case "dir", "stat":
			s.mu.Lock()
			body, ok := s.dirs[r.URL.Path]
			s.mu.Unlock()

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
			s.mu.Lock()
			s.deleted = append(s.deleted, r.URL.Path)
			s.mu.Unlock()

			w.WriteHeader(http.StatusOK)
		default:
			t.Fatalf("unexpected action %q for %q", action, r.URL.Path)
		}
	}
}

func newTestConfig(t *testing.T, s *fakeServer) *netstorage.ClientConfig {
	t.Helper()

	srv := httptest.NewServer(s.handler(t))
	t.Cleanup(srv.Close)

	cfg, err := netstorage.NewClientConfig("secret", "alice", srv.URL[len("http://"):])
	require.NoError(t, err)

	return cfg
}

func TestSyncUploadDirectionOnlyPushesLocalOnlyFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "new.txt"), []byte("fresh"), 0o644))

	s := newFakeServer(map[string]string{
		"/remote": `<?xml version="1.0"?><directory name="remote"></directory>`,
	})
	cfg := newTestConfig(t, s)

	result, err := nssync.SyncDirectory(context.Background(), cfg, root, "/remote", nssync.Options{
		Direction: nssync.DirectionUpload,
	})
	require.NoError(t, err)
	require.Len(t, result.Transferred, 1)
	require.Equal(t, "new.txt", result.Transferred[0].RelativePath)
	require.Equal(t, nssync.DirectionUpload, result.Transferred[0].Direction)

	s.mu.Lock()
	require.Equal(t, []byte("fresh"), s.uploaded["/remote/new.txt"])
	s.mu.Unlock()
}

func TestSyncDownloadDirectionOnlyPullsRemoteOnlyFiles(t *testing.T) {
	root := t.TempDir()

	s := newFakeServer(map[string]string{
		"/remote": `<?xml version="1.0"?><directory name="remote">
			<file name="only-remote.txt" type="file" size="4"/>
		</directory>`,
	})
	s.uploaded["/remote/only-remote.txt"] = []byte("data")

	cfg := newTestConfig(t, s)

	result, err := nssync.SyncDirectory(context.Background(), cfg, root, "/remote", nssync.Options{
		Direction: nssync.DirectionDownload,
	})
	require.NoError(t, err)
	require.Len(t, result.Transferred, 1)
	require.Equal(t, nssync.DirectionDownload, result.Transferred[0].Direction)

	content, err := os.ReadFile(filepath.Join(root, "only-remote.txt"))
	require.NoError(t, err)
	require.Equal(t, "data", string(content))
}

func TestSyncExistsStrategySkipsFilesPresentOnBothSides(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "both.txt"), []byte("same"), 0o644))

	s := newFakeServer(map[string]string{
		"/remote": `<?xml version="1.0"?><directory name="remote">
			<file name="both.txt" type="file" size="4"/>
		</directory>`,
	})
	s.uploaded["/remote/both.txt"] = []byte("diff")

	cfg := newTestConfig(t, s)

	var skipped []nssync.SkipEvent

	result, err := nssync.SyncDirectory(context.Background(), cfg, root, "/remote", nssync.Options{
		Direction:       nssync.DirectionBoth,
		CompareStrategy: nssync.CompareExists,
		OnSkip:          func(ev nssync.SkipEvent) { skipped = append(skipped, ev) },
	})
	require.NoError(t, err)
	require.Empty(t, result.Transferred)
	require.Len(t, skipped, 1)
	require.Equal(t, nssync.ReasonInSync, skipped[0].Reason)
}

func TestSyncSizeStrategyTransfersOnMismatchAndResolvesByConflictPreference(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "differs.txt"), []byte("localbytes"), 0o644))

	s := newFakeServer(map[string]string{
		"/remote": `<?xml version="1.0"?><directory name="remote">
			<file name="differs.txt" type="file" size="3"/>
		</directory>`,
	})
	s.uploaded["/remote/differs.txt"] = []byte("old")

	cfg := newTestConfig(t, s)

	result, err := nssync.SyncDirectory(context.Background(), cfg, root, "/remote", nssync.Options{
		Direction:          nssync.DirectionBoth,
		CompareStrategy:    nssync.CompareSize,
		ConflictResolution: nssync.PreferLocal,
	})
	require.NoError(t, err)
	require.Len(t, result.Transferred, 1)
	require.Equal(t, nssync.DirectionUpload, result.Transferred[0].Direction)

	s.mu.Lock()
	require.Equal(t, []byte("localbytes"), s.uploaded["/remote/differs.txt"])
	s.mu.Unlock()
}

func TestSyncManualConflictResolutionSkipsAmbiguousPaths(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "differs.txt"), []byte("localbytes"), 0o644))

	s := newFakeServer(map[string]string{
		"/remote": `<?xml version="1.0"?><directory name="remote">
			<file name="differs.txt" type="file" size="3"/>
		</directory>`,
	})
	s.uploaded["/remote/differs.txt"] = []byte("old")

	cfg := newTestConfig(t, s)

	var skipped []nssync.SkipEvent

	result, err := nssync.SyncDirectory(context.Background(), cfg, root, "/remote", nssync.Options{
		Direction:          nssync.DirectionBoth,
		CompareStrategy:    nssync.CompareSize,
		ConflictResolution: nssync.Manual,
		OnSkip:             func(ev nssync.SkipEvent) { skipped = append(skipped, ev) },
	})
	require.NoError(t, err)
	require.Empty(t, result.Transferred)
	require.Len(t, skipped, 1)
	require.Equal(t, nssync.ReasonConflictManual, skipped[0].Reason)
}

func TestSyncConflictRuleOverridesCompareStrategy(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "force.txt"), []byte("localbytes"), 0o644))

	s := newFakeServer(map[string]string{
		"/remote": `<?xml version="1.0"?><directory name="remote">
			<file name="force.txt" type="file" size="10"/>
		</directory>`,
	})
	s.uploaded["/remote/force.txt"] = []byte("remotebyte")

	cfg := newTestConfig(t, s)

	result, err := nssync.SyncDirectory(context.Background(), cfg, root, "/remote", nssync.Options{
		Direction:          nssync.DirectionBoth,
		CompareStrategy:    nssync.CompareSize,
		ConflictResolution: nssync.PreferLocal,
		ConflictRules: []nssync.ConflictRule{
			{Pattern: "force.txt", Action: nssync.RuleDownload},
		},
	})
	require.NoError(t, err)
	require.Len(t, result.Transferred, 1)
	require.Equal(t, nssync.DirectionDownload, result.Transferred[0].Direction)
}

func TestSyncDeleteExtraneousLocalRemovesFilesAbsentRemotely(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "stale.txt"), []byte("old"), 0o644))

	s := newFakeServer(map[string]string{
		"/remote": `<?xml version="1.0"?><directory name="remote"></directory>`,
	})
	cfg := newTestConfig(t, s)

	_, err := nssync.SyncDirectory(context.Background(), cfg, root, "/remote", nssync.Options{
		Direction:        nssync.DirectionUpload,
		DeleteExtraneous: nssync.DeleteLocal,
	})
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(root, "stale.txt"))
	require.True(t, os.IsNotExist(statErr))
}

func TestSyncDeleteExtraneousRemoteRemovesFilesAbsentLocally(t *testing.T) {
	root := t.TempDir()

	s := newFakeServer(map[string]string{
		"/remote": `<?xml version="1.0"?><directory name="remote">
			<file name="stale.txt" type="file" size="3"/>
		</directory>`,
	})
	s.uploaded["/remote/stale.txt"] = []byte("old")

	cfg := newTestConfig(t, s)

	_, err := nssync.SyncDirectory(context.Background(), cfg, root, "/remote", nssync.Options{
		Direction:        nssync.DirectionDownload,
		DeleteExtraneous: nssync.DeleteRemote,
	})
	require.NoError(t, err)

	s.mu.Lock()
	require.Contains(t, s.deleted, "/remote/stale.txt")
	s.mu.Unlock()
}

func TestSyncDryRunMakesNoChanges(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "new.txt"), []byte("fresh"), 0o644))

	s := newFakeServer(map[string]string{
		"/remote": `<?xml version="1.0"?><directory name="remote"></directory>`,
	})
	cfg := newTestConfig(t, s)

	var skipped []nssync.SkipEvent

	result, err := nssync.SyncDirectory(context.Background(), cfg, root, "/remote", nssync.Options{
		Direction: nssync.DirectionUpload,
		DryRun:    true,
		OnSkip:    func(ev nssync.SkipEvent) { skipped = append(skipped, ev) },
	})
	require.NoError(t, err)
	require.Empty(t, result.Transferred)
	require.Len(t, skipped, 1)
	require.Equal(t, nssync.ReasonDryRun, skipped[0].Reason)

	s.mu.Lock()
	require.Empty(t, s.uploaded)
	s.mu.Unlock()
}

func TestSyncMtimeStrategyPrefersNewerSide(t *testing.T) {
	root := t.TempDir()
	localPath := filepath.Join(root, "f.txt")
	require.NoError(t, os.WriteFile(localPath, []byte("newer-local"), 0o644))

	future := time.Now().Add(1 * time.Hour)
	require.NoError(t, os.Chtimes(localPath, future, future))

	s := newFakeServer(map[string]string{
		"/remote": `<?xml version="1.0"?><directory name="remote">
			<file name="f.txt" type="file" size="3" mtime="1"/>
		</directory>`,
	})
	s.uploaded["/remote/f.txt"] = []byte("old")

	cfg := newTestConfig(t, s)

	result, err := nssync.SyncDirectory(context.Background(), cfg, root, "/remote", nssync.Options{
		Direction:       nssync.DirectionBoth,
		CompareStrategy: nssync.CompareMtime,
	})
	require.NoError(t, err)
	require.Len(t, result.Transferred, 1)
	require.Equal(t, nssync.DirectionUpload, result.Transferred[0].Direction)
}
