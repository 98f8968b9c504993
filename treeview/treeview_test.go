package treeview_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	netstorage "github.com/akamai/netstorage-go"
	"github.com/akamai/netstorage-go/adjacency"
	"github.com/akamai/netstorage-go/treeview"
	"github.com/akamai/netstorage-go/walk"
)

func newTestConfig(t *testing.T, listings map[string]string) *netstorage.ClientConfig {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := listings[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(body)) //nolint:errcheck
	}))
	t.Cleanup(srv.Close)

	cfg, err := netstorage.NewClientConfig("secret", "alice", srv.URL[len("http://"):])
	require.NoError(t, err)

	return cfg
}

func TestRenderOrdersDirectoriesBeforeFilesThenByName(t *testing.T) {
	cfg := newTestConfig(t, map[string]string{
		"/r": `<?xml version="1.0"?><directory name="r">
			<file name="zeta.txt" type="file" size="1"/>
			<file name="beta" type="dir"/>
			<file name="alpha.txt" type="file" size="2"/>
		</directory>`,
		"/r/beta": `<?xml version="1.0"?><directory name="beta"></directory>`,
	})

	result, err := adjacency.BuildAdjacencyList(context.Background(), cfg, "/r", walk.Options{})
	require.NoError(t, err)

	out := treeview.Render(result, treeview.Options{})

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)
	require.Contains(t, lines[0], "beta")
	require.Contains(t, lines[1], "alpha.txt")
	require.Contains(t, lines[2], "zeta.txt")
}

func TestRenderAppendsSizeColumn(t *testing.T) {
	cfg := newTestConfig(t, map[string]string{
		"/r": `<?xml version="1.0"?><directory name="r">
			<file name="a.txt" type="file" size="42"/>
		</directory>`,
	})

	result, err := adjacency.BuildAdjacencyList(context.Background(), cfg, "/r", walk.Options{})
	require.NoError(t, err)

	out := treeview.Render(result, treeview.Options{Columns: []treeview.Column{treeview.ColumnSize}})
	require.Contains(t, out, "a.txt (42)")
}
