package adjacency_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	netstorage "github.com/akamai/netstorage-go"
	"github.com/akamai/netstorage-go/adjacency"
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

func TestBuildGroupsByDepthAndSumsSize(t *testing.T) {
	cfg := newTestConfig(t, map[string]string{
		"/r": `<?xml version="1.0"?><directory name="r">
			<file name="a" type="dir"/>
			<file name="x.txt" type="file" size="10"/>
		</directory>`,
		"/r/a": `<?xml version="1.0"?><directory name="a">
			<file name="y.txt" type="file" size="5"/>
		</directory>`,
	})

	result, err := adjacency.BuildAdjacencyList(context.Background(), cfg, "/r", walk.Options{})
	require.NoError(t, err)
	require.Equal(t, int64(15), result.TotalSize)
	require.Len(t, result.DepthBuckets, 2)
	require.Equal(t, uint32(0), result.DepthBuckets[0].Depth)
	require.Len(t, result.DepthBuckets[0].Entries, 2)
	require.Equal(t, uint32(1), result.DepthBuckets[1].Depth)
	require.Len(t, result.DepthBuckets[1].Entries, 1)
}

func TestAggregateDirectorySizesRollsUpSubtreeTotals(t *testing.T) {
	cfg := newTestConfig(t, map[string]string{
		"/r": `<?xml version="1.0"?><directory name="r">
			<file name="a" type="dir"/>
			<file name="top.txt" type="file" size="100"/>
		</directory>`,
		"/r/a": `<?xml version="1.0"?><directory name="a">
			<file name="b" type="dir"/>
			<file name="mid.txt" type="file" size="10"/>
		</directory>`,
		"/r/a/b": `<?xml version="1.0"?><directory name="b">
			<file name="leaf.txt" type="file" size="1"/>
		</directory>`,
	})

	result, err := adjacency.BuildAdjacencyList(context.Background(), cfg, "/r", walk.Options{})
	require.NoError(t, err)

	sizes := result.AggregateDirectorySizes()
	want := map[string]int64{"/r/a/b": 1, "/r/a": 11, "/r": 111}

	if diff := cmp.Diff(want, sizes); diff != "" {
		t.Errorf("aggregate sizes mismatch (-want +got):\n%s", diff)
	}
}
