package tools

import (
	"context"
	"testing"

	"github.com/fsxd/fsxd/cas"
	"github.com/fsxd/fsxd/refcount"
	"github.com/fsxd/fsxd/tier"
	"github.com/fsxd/fsxd/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFS(t *testing.T) *vfs.InodeGraph {
	t.Helper()
	idx := tier.NewIndex(tier.NewMemoryMetadataStore(), 256)
	placement := tier.New(idx, tier.NewMemoryBlobTier(), tier.NewMemoryBlobTier(), tier.NewMemoryBlobTier(), tier.Options{
		HotMaxSize: 1 << 20, WarmMaxSize: 1 << 30,
	})
	store := cas.New(placement, refcount.New())
	return vfs.New("/", store)
}

func adminAuth() AuthContext {
	return AuthContext{Authenticated: true, Scopes: []string{"admin"}}
}

func TestRegisterValidatesName(t *testing.T) {
	r := NewRegistry(newTestFS(t), Config{})
	err := r.Register(&Tool{Name: "bad name!", RequiredScope: ScopeRead, Handler: func(context.Context, map[string]interface{}, FsCapability) (Content, error) {
		return Content{}, nil
	}})
	assert.Error(t, err)
}

func TestRegisterRejectsDuplicateUnlessUnregistered(t *testing.T) {
	r := NewRegistry(newTestFS(t), Config{})
	tool := &Tool{Name: "custom", RequiredScope: ScopeRead, Handler: func(context.Context, map[string]interface{}, FsCapability) (Content, error) {
		return Content{}, nil
	}}
	require.NoError(t, r.Register(tool))
	assert.Error(t, r.Register(tool))

	r.Unregister("custom")
	assert.NoError(t, r.Register(tool))
}

func TestClearPreservesBuiltins(t *testing.T) {
	r := NewRegistry(newTestFS(t), Config{})
	require.NoError(t, r.Register(&Tool{Name: "custom", RequiredScope: ScopeRead, Handler: func(context.Context, map[string]interface{}, FsCapability) (Content, error) {
		return Content{}, nil
	}}))
	r.Clear()

	_, ok := r.Get("custom")
	assert.False(t, ok)
	for _, name := range []string{"search", "fetch", "do"} {
		_, ok := r.Get(name)
		assert.True(t, ok, name)
	}
}

func TestAnonymousReadAllowedWhenConfigured(t *testing.T) {
	r := NewRegistry(newTestFS(t), Config{AllowAnonymousRead: true})
	require.NoError(t, r.fs.WriteFile("/a", []byte("hi"), 0))

	auth := AuthContext{Authenticated: false, AnonymousAllowed: true}
	content, err := r.Invoke(context.Background(), "search", map[string]interface{}{"query": "*"}, auth)
	require.NoError(t, err)
	assert.True(t, content.Success)
}

func TestAnonymousReadDeniedWhenConfigDisallows(t *testing.T) {
	r := NewRegistry(newTestFS(t), Config{AllowAnonymousRead: false})
	auth := AuthContext{Authenticated: false, AnonymousAllowed: true}
	_, err := r.Invoke(context.Background(), "search", map[string]interface{}{"query": "*"}, auth)
	require.Error(t, err)
	assert.Equal(t, "AUTH_REQUIRED", err.(*AuthError).Code)
}

func TestWriteToolRequiresAuthentication(t *testing.T) {
	r := NewRegistry(newTestFS(t), Config{})
	require.NoError(t, r.Register(&Tool{Name: "writey", RequiredScope: ScopeWrite, Handler: func(context.Context, map[string]interface{}, FsCapability) (Content, error) {
		return Content{}, nil
	}}))
	_, err := r.Invoke(context.Background(), "writey", map[string]interface{}{}, AuthContext{})
	require.Error(t, err)
	assert.Equal(t, "AUTH_REQUIRED", err.(*AuthError).Code)
}

func TestWriteScopeSatisfiesReadRequirement(t *testing.T) {
	r := NewRegistry(newTestFS(t), Config{})
	auth := AuthContext{Authenticated: true, Scopes: []string{"files:write"}}
	content, err := r.Invoke(context.Background(), "search", map[string]interface{}{"query": "*"}, auth)
	require.NoError(t, err)
	assert.True(t, content.Success)
}

func TestDoRequiresAdminScope(t *testing.T) {
	r := NewRegistry(newTestFS(t), Config{})
	auth := AuthContext{Authenticated: true, Scopes: []string{"write"}}
	_, err := r.Invoke(context.Background(), "do", map[string]interface{}{"code": `{"op":"readFile","args":{"path":"/a"}}`}, auth)
	require.Error(t, err)
	assert.Equal(t, "PERMISSION_DENIED", err.(*AuthError).Code)
}

func TestSearchGrepPrefixDoesContentSearch(t *testing.T) {
	fs := newTestFS(t)
	require.NoError(t, fs.WriteFile("/a.txt", []byte("needle in haystack"), 0))
	r := NewRegistry(fs, Config{})
	content, err := r.Invoke(context.Background(), "search", map[string]interface{}{"query": "grep:needle"}, adminAuth())
	require.NoError(t, err)
	text := content.Value.(string)
	assert.Contains(t, text, "/a.txt")
	assert.Contains(t, text, "found 1 matches")
}

func TestFetchPrettyPrintsJSON(t *testing.T) {
	fs := newTestFS(t)
	require.NoError(t, fs.WriteFile("/a.json", []byte(`{"a":1}`), 0))
	r := NewRegistry(fs, Config{})
	content, err := r.Invoke(context.Background(), "fetch", map[string]interface{}{"resource": "/a.json"}, adminAuth())
	require.NoError(t, err)
	m := content.Value.(map[string]interface{})
	assert.Contains(t, m["content"], "\n")
}

func TestFetchDirectoryReturnsTree(t *testing.T) {
	fs := newTestFS(t)
	require.NoError(t, fs.Mkdir("/d", vfs.MkdirOptions{}))
	r := NewRegistry(fs, Config{})
	content, err := r.Invoke(context.Background(), "fetch", map[string]interface{}{"resource": "/d"}, adminAuth())
	require.NoError(t, err)
	assert.IsType(t, "", content.Value)
}

func TestDoWriteFileThenReadFile(t *testing.T) {
	fs := newTestFS(t)
	r := NewRegistry(fs, Config{})
	_, err := r.Invoke(context.Background(), "do", map[string]interface{}{
		"code": `{"op":"writeFile","args":{"path":"/x","data":"hello"}}`,
	}, adminAuth())
	require.NoError(t, err)

	content, err := r.Invoke(context.Background(), "do", map[string]interface{}{
		"code": `{"op":"readFile","args":{"path":"/x"}}`,
	}, adminAuth())
	require.NoError(t, err)
	assert.Equal(t, "hello", content.Value)
}

func TestDoMoveCopyAndListOps(t *testing.T) {
	fs := newTestFS(t)
	require.NoError(t, fs.Mkdir("/d", vfs.MkdirOptions{}))
	require.NoError(t, fs.WriteFile("/d/a.txt", []byte("payload"), 0))
	r := NewRegistry(fs, Config{})

	invoke := func(code string) Content {
		t.Helper()
		content, err := r.Invoke(context.Background(), "do", map[string]interface{}{"code": code}, adminAuth())
		require.NoError(t, err)
		return content
	}

	content := invoke(`{"op":"copyFile","args":{"path":"/d/a.txt","dst":"/d/b.txt"}}`)
	require.True(t, content.Success, content.Error)

	content = invoke(`{"op":"rename","args":{"path":"/d/b.txt","newPath":"/d/c.txt"}}`)
	require.True(t, content.Success, content.Error)
	assert.False(t, fs.Exists("/d/b.txt", vfs.ExistsOptions{}).Exists)

	content = invoke(`{"op":"appendFile","args":{"path":"/d/c.txt","data":"+more"}}`)
	require.True(t, content.Success, content.Error)
	data, err := fs.ReadFile("/d/c.txt")
	require.NoError(t, err)
	assert.Equal(t, "payload+more", string(data))

	content = invoke(`{"op":"truncate","args":{"path":"/d/c.txt","length":7}}`)
	require.True(t, content.Success, content.Error)

	content = invoke(`{"op":"tree","args":{"path":"/d"}}`)
	require.True(t, content.Success, content.Error)
	assert.Contains(t, content.Value.(string), "c.txt")

	content = invoke(`{"op":"listDir","args":{"path":"/d","pattern":"*.txt"}}`)
	require.True(t, content.Success, content.Error)
	assert.ElementsMatch(t, []string{"a.txt", "c.txt"}, content.Value.([]string))

	content = invoke(`{"op":"search","args":{"path":"/d","pattern":"*.txt"}}`)
	require.True(t, content.Success, content.Error)
	assert.Contains(t, content.Value.([]string), "/d/a.txt")

	content = invoke(`{"op":"chmod","args":{"path":"/d/c.txt","mode":384}}`)
	require.True(t, content.Success, content.Error)
	st, err := fs.Stat("/d/c.txt")
	require.NoError(t, err)
	assert.Equal(t, uint32(0o600), st.Mode)

	content = invoke(`{"op":"symlink","args":{"target":"/d/a.txt","path":"/d/ln"}}`)
	require.True(t, content.Success, content.Error)
	content = invoke(`{"op":"readlink","args":{"path":"/d/ln"}}`)
	require.True(t, content.Success, content.Error)
	assert.Equal(t, "/d/a.txt", content.Value)

	content = invoke(`{"op":"link","args":{"path":"/d/a.txt","newPath":"/d/hard"}}`)
	require.True(t, content.Success, content.Error)
	st, err = fs.Stat("/d/a.txt")
	require.NoError(t, err)
	assert.Equal(t, uint32(2), st.Nlink)
}

func TestDoRenameChecksDestinationScope(t *testing.T) {
	fs := newTestFS(t)
	require.NoError(t, fs.Mkdir("/ok", vfs.MkdirOptions{}))
	require.NoError(t, fs.WriteFile("/ok/f", []byte("x"), 0))
	r := NewRegistry(fs, Config{})

	content, err := r.Invoke(context.Background(), "do", map[string]interface{}{
		"code":  `{"op":"rename","args":{"path":"/ok/f","newPath":"/elsewhere"}}`,
		"scope": map[string]interface{}{"allowedPaths": []interface{}{"/ok"}},
	}, adminAuth())
	require.NoError(t, err)
	assert.False(t, content.Success)
	assert.Contains(t, content.Error, "permission denied")
	assert.True(t, fs.Exists("/ok/f", vfs.ExistsOptions{}).Exists)
}

func TestDoDeniesWriteWhenScopeDisallows(t *testing.T) {
	fs := newTestFS(t)
	r := NewRegistry(fs, Config{})
	content, err := r.Invoke(context.Background(), "do", map[string]interface{}{
		"code":  `{"op":"writeFile","args":{"path":"/x","data":"hello"}}`,
		"scope": map[string]interface{}{"allowWrite": false},
	}, adminAuth())
	require.NoError(t, err)
	assert.False(t, content.Success)
	assert.Contains(t, content.Error, "permission denied")
}

func TestUnknownToolRequiresAdminScope(t *testing.T) {
	r := NewRegistry(newTestFS(t), Config{})

	_, err := r.Invoke(context.Background(), "nonesuch", nil, AuthContext{Authenticated: true, Scopes: []string{"read"}})
	require.Error(t, err)
	assert.Equal(t, "PERMISSION_DENIED", err.(*AuthError).Code)

	_, err = r.Invoke(context.Background(), "nonesuch", nil, adminAuth())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown tool")
}

func TestDoAllowedPathsArePrefixes(t *testing.T) {
	fs := newTestFS(t)
	require.NoError(t, fs.Mkdir("/ok", vfs.MkdirOptions{}))
	r := NewRegistry(fs, Config{})

	content, err := r.Invoke(context.Background(), "do", map[string]interface{}{
		"code":  `{"op":"writeFile","args":{"path":"/ok/file","data":"yes"}}`,
		"scope": map[string]interface{}{"allowedPaths": []interface{}{"/ok"}},
	}, adminAuth())
	require.NoError(t, err)
	assert.True(t, content.Success)

	content, err = r.Invoke(context.Background(), "do", map[string]interface{}{
		"code":  `{"op":"writeFile","args":{"path":"/elsewhere","data":"no"}}`,
		"scope": map[string]interface{}{"allowedPaths": []interface{}{"/ok"}},
	}, adminAuth())
	require.NoError(t, err)
	assert.False(t, content.Success)
	assert.Contains(t, content.Error, "permission denied")
}

func TestMissingRequiredParamFails(t *testing.T) {
	r := NewRegistry(newTestFS(t), Config{})
	content, err := r.Invoke(context.Background(), "fetch", map[string]interface{}{}, adminAuth())
	require.NoError(t, err)
	assert.False(t, content.Success)
}

func TestStrictModeValidatesParameterTypes(t *testing.T) {
	r := NewRegistry(newTestFS(t), Config{Strict: true})
	content, err := r.Invoke(context.Background(), "search", map[string]interface{}{"query": 42}, adminAuth())
	require.NoError(t, err)
	assert.False(t, content.Success)
	assert.Contains(t, content.Error, "must be string")

	// non-strict registries accept it and let the handler coerce
	lax := NewRegistry(newTestFS(t), Config{})
	content, err = lax.Invoke(context.Background(), "search", map[string]interface{}{"query": 42}, adminAuth())
	require.NoError(t, err)
	assert.True(t, content.Success)
}
