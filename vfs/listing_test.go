package vfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedListingDir(t *testing.T) *InodeGraph {
	t.Helper()
	g := newTestGraph(t)
	require.NoError(t, g.Mkdir("/d/sub", MkdirOptions{Recursive: true}))
	require.NoError(t, g.WriteFile("/d/big.bin", make([]byte, 300), 0))
	require.NoError(t, g.WriteFile("/d/small.txt", []byte("hi"), 0))
	require.NoError(t, g.WriteFile("/d/.hidden", []byte("x"), 0))
	return g
}

func TestListDirHidesDotfilesByDefault(t *testing.T) {
	g := seedListingDir(t)
	res, err := g.ListDir("/d", ListDirOptions{})
	require.NoError(t, err)
	for _, e := range res.Entries {
		assert.NotEqual(t, ".hidden", e.Name)
	}

	res, err = g.ListDir("/d", ListDirOptions{ShowHidden: true})
	require.NoError(t, err)
	names := make([]string, 0, len(res.Entries))
	for _, e := range res.Entries {
		names = append(names, e.Name)
	}
	assert.Contains(t, names, ".hidden")
}

func TestListDirPatternFilter(t *testing.T) {
	g := seedListingDir(t)
	res, err := g.ListDir("/d", ListDirOptions{Pattern: "*.txt"})
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, "small.txt", res.Entries[0].Name)
}

func TestListDirSortBySizeDesc(t *testing.T) {
	g := seedListingDir(t)
	res, err := g.ListDir("/d", ListDirOptions{Sort: "size", Order: "desc"})
	require.NoError(t, err)
	require.NotEmpty(t, res.Entries)
	for i := 1; i < len(res.Entries); i++ {
		assert.GreaterOrEqual(t, res.Entries[i-1].Size, res.Entries[i].Size)
	}
}

func TestListDirPagingReportsMore(t *testing.T) {
	g := seedListingDir(t)
	res, err := g.ListDir("/d", ListDirOptions{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, res.Entries, 1)
	assert.Equal(t, 2, res.More)

	res, err = g.ListDir("/d", ListDirOptions{Limit: 1, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, res.Entries, 1)
	assert.Equal(t, 0, res.More)
}

func TestListDirGroupDirectoriesFirst(t *testing.T) {
	g := seedListingDir(t)
	res, err := g.ListDir("/d", ListDirOptions{GroupDirectories: true})
	require.NoError(t, err)
	require.NotEmpty(t, res.Entries)
	assert.Equal(t, "directory", res.Entries[0].Type)
}

func TestListDirOnFileFailsENOTDIR(t *testing.T) {
	g := seedListingDir(t)
	_, err := g.ListDir("/d/small.txt", ListDirOptions{})
	assert.True(t, Is(err, ENOTDIR))
}

func TestTreeMaxDepthAndExclude(t *testing.T) {
	g := newTestGraph(t)
	require.NoError(t, g.Mkdir("/r/a/b", MkdirOptions{Recursive: true}))
	require.NoError(t, g.WriteFile("/r/a/b/deep.txt", []byte("x"), 0))
	require.NoError(t, g.WriteFile("/r/skip.log", []byte("x"), 0))

	ascii, _, err := g.Tree("/r", TreeOptions{MaxDepth: 1, Format: "ascii"})
	require.NoError(t, err)
	assert.Contains(t, ascii, "a")
	assert.NotContains(t, ascii, "deep.txt")

	ascii, _, err = g.Tree("/r", TreeOptions{Exclude: []string{"*.log"}, Format: "ascii"})
	require.NoError(t, err)
	assert.NotContains(t, ascii, "skip.log")
}

func TestExistsTypeFilter(t *testing.T) {
	g := newTestGraph(t)
	require.NoError(t, g.Mkdir("/d", MkdirOptions{}))
	require.NoError(t, g.WriteFile("/f", []byte("x"), 0))

	assert.True(t, g.Exists("/d", ExistsOptions{Type: "directory"}).Exists)
	assert.False(t, g.Exists("/d", ExistsOptions{Type: "file"}).Exists)
	assert.True(t, g.Exists("/f", ExistsOptions{Type: "file"}).Exists)
	assert.False(t, g.Exists("/missing", ExistsOptions{}).Exists)
}

func TestSearchExcludeAndLimit(t *testing.T) {
	g := newTestGraph(t)
	require.NoError(t, g.Mkdir("/s/vendor", MkdirOptions{Recursive: true}))
	require.NoError(t, g.WriteFile("/s/main.go", []byte("package main"), 0))
	require.NoError(t, g.WriteFile("/s/vendor/dep.go", []byte("package dep"), 0))

	matches, err := g.Search("/s", "**/*.go", SearchOptions{Exclude: []string{"vendor"}, CaseSensitive: true})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "/s/main.go", matches[0].Path)

	require.NoError(t, g.WriteFile("/s/extra.go", []byte("package extra"), 0))
	matches, err = g.Search("/s", "**/*.go", SearchOptions{Exclude: []string{"vendor"}, Limit: 1, CaseSensitive: true})
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}
