package rpc

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/fsxd/fsxd/cas"
	"github.com/fsxd/fsxd/refcount"
	"github.com/fsxd/fsxd/tier"
	"github.com/fsxd/fsxd/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*Router, *vfs.InodeGraph) {
	t.Helper()
	idx := tier.NewIndex(tier.NewMemoryMetadataStore(), 256)
	placement := tier.New(idx, tier.NewMemoryBlobTier(), tier.NewMemoryBlobTier(), tier.NewMemoryBlobTier(), tier.Options{
		HotMaxSize: 1 << 20, WarmMaxSize: 1 << 30,
	})
	store := cas.New(placement, refcount.New())
	g := vfs.New("/", store)
	r := NewRouter()
	RegisterVFSMethods(r, g)
	return r, g
}

func TestNotificationProducesNoResponse(t *testing.T) {
	r, _ := newTestRouter(t)
	body := []byte(`{"jsonrpc":"2.0","method":"mkdir","params":{"path":"/d"}}`)
	resp, status := r.HandleRaw(context.Background(), body)
	assert.Nil(t, resp)
	assert.Equal(t, 204, status)
}

func TestSingleRequestJSONRPCMode(t *testing.T) {
	r, _ := newTestRouter(t)
	body := []byte(`{"jsonrpc":"2.0","id":1,"method":"writeFile","params":{"path":"/a","data":"hi"}}`)
	resp, status := r.HandleRaw(context.Background(), body)
	require.Equal(t, 200, status)
	out, err := json.Marshal(resp)
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, "2.0", decoded["jsonrpc"])
	assert.Equal(t, float64(1), decoded["id"])
	assert.NotNil(t, decoded["result"])
}

func TestCompatibilityModeOmitsEnvelope(t *testing.T) {
	r, _ := newTestRouter(t)
	body := []byte(`{"id":1,"method":"mkdir","params":{"path":"/d"}}`)
	resp, status := r.HandleRaw(context.Background(), body)
	require.Equal(t, 200, status)
	out, err := json.Marshal(resp)
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &decoded))
	_, hasEnvelope := decoded["jsonrpc"]
	assert.False(t, hasEnvelope)
}

func TestMalformedBodyReturnsParseError(t *testing.T) {
	r, _ := newTestRouter(t)
	resp, status := r.HandleRaw(context.Background(), []byte(`not valid json {`))
	require.Equal(t, 400, status)
	out, _ := json.Marshal(resp)
	assert.Contains(t, string(out), "PARSE_ERROR")
}

func TestEmptyBatchIsInvalidRequest(t *testing.T) {
	r, _ := newTestRouter(t)
	resp, status := r.HandleRaw(context.Background(), []byte(`[]`))
	require.Equal(t, 400, status)
	out, _ := json.Marshal(resp)
	assert.Contains(t, string(out), "INVALID_REQUEST")
}

func TestUnknownMethodIs404(t *testing.T) {
	r, _ := newTestRouter(t)
	resp, status := r.HandleRaw(context.Background(), []byte(`{"id":1,"method":"bogus"}`))
	require.Equal(t, 404, status)
	out, _ := json.Marshal(resp)
	assert.Contains(t, string(out), "METHOD_NOT_FOUND")
}

func TestVFSErrorMapsTo400(t *testing.T) {
	r, _ := newTestRouter(t)
	resp, status := r.HandleRaw(context.Background(), []byte(`{"id":1,"method":"readFile","params":{"path":"/missing"}}`))
	require.Equal(t, 400, status)
	out, _ := json.Marshal(resp)
	assert.Contains(t, string(out), "ENOENT")
}

// TestBatchOrdering is P10.
func TestBatchOrdering(t *testing.T) {
	r, _ := newTestRouter(t)
	body := []byte(`[
		{"jsonrpc":"2.0","id":1,"method":"writeFile","params":{"path":"/a","data":"1"}},
		{"jsonrpc":"2.0","id":2,"method":"writeFile","params":{"path":"/b","data":"2"}},
		{"jsonrpc":"2.0","id":3,"method":"writeFile","params":{"path":"/c","data":"3"}}
	]`)
	resp, status := r.HandleRaw(context.Background(), body)
	require.Equal(t, 200, status)
	items, ok := resp.([]interface{})
	require.True(t, ok)
	require.Len(t, items, 3)
	for i, item := range items {
		out, err := json.Marshal(item)
		require.NoError(t, err)
		var decoded map[string]interface{}
		require.NoError(t, json.Unmarshal(out, &decoded))
		assert.Equal(t, float64(i+1), decoded["id"])
	}
}

// realpath must normalize against the graph's configured tenant root,
// not a root of its own.
func TestRealpathHonorsTenantRoot(t *testing.T) {
	idx := tier.NewIndex(tier.NewMemoryMetadataStore(), 256)
	placement := tier.New(idx, tier.NewMemoryBlobTier(), tier.NewMemoryBlobTier(), tier.NewMemoryBlobTier(), tier.Options{
		HotMaxSize: 1 << 20, WarmMaxSize: 1 << 30,
	})
	store := cas.New(placement, refcount.New())
	g := vfs.New("/tenant", store)
	r := NewRouter()
	RegisterVFSMethods(r, g)

	resp, status := r.HandleRaw(context.Background(), []byte(`{"id":1,"method":"realpath","params":{"path":"/a/../b"}}`))
	require.Equal(t, 200, status)
	out, _ := json.Marshal(resp)
	assert.Contains(t, string(out), `"/tenant/b"`)

	_, status = r.HandleRaw(context.Background(), []byte(`{"id":1,"method":"realpath","params":{"path":"/../escape"}}`))
	assert.Equal(t, 403, status)
}

func TestExpiredDeadlineMapsToTimeout(t *testing.T) {
	r, _ := newTestRouter(t)
	r.Register("slow", func(ctx context.Context, _ json.RawMessage) (interface{}, error) {
		return nil, ctx.Err()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	resp, status := r.HandleRaw(ctx, []byte(`{"id":1,"method":"slow"}`))
	require.Equal(t, 408, status)
	out, _ := json.Marshal(resp)
	assert.Contains(t, string(out), "TIMEOUT")
}

func TestBatchDropsNotificationsButPreservesOrder(t *testing.T) {
	r, _ := newTestRouter(t)
	body := []byte(`[
		{"id":1,"method":"mkdir","params":{"path":"/x"}},
		{"method":"mkdir","params":{"path":"/y"}},
		{"id":2,"method":"mkdir","params":{"path":"/z"}}
	]`)
	resp, status := r.HandleRaw(context.Background(), body)
	require.Equal(t, 200, status)
	items := resp.([]interface{})
	require.Len(t, items, 2)
}
