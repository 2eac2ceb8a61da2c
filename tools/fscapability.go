package tools

import (
	"strings"

	"github.com/fsxd/fsxd/vfs"
)

// FsCapability is the surface the "do" tool's operations are sandboxed
// against, and the surface search/fetch use internally.
type FsCapability interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte, mode uint32) error
	AppendFile(path string, data []byte) error
	Unlink(path string) error
	Mkdir(path string, opts vfs.MkdirOptions) error
	Rmdir(path string, opts vfs.RmdirOptions) error
	Readdir(path string, withFileTypes bool) ([]string, []vfs.DirEntry, error)
	Rename(oldPath, newPath string) error
	CopyFile(src, dst string) error
	Link(existing, newPath string) error
	Symlink(target, linkPath string) error
	Readlink(path string) (string, error)
	Chmod(path string, mode uint32) error
	Chown(path string, uid, gid uint32) error
	Utimes(path string, atimeMs, mtimeMs int64) error
	Stat(path string) (*vfs.Stat, error)
	Lstat(path string) (*vfs.Stat, error)
	Truncate(path string, length int64) error
	Exists(path string, opts vfs.ExistsOptions) vfs.ExistsResult
	Tree(path string, opts vfs.TreeOptions) (string, *vfs.TreeNode, error)
	ListDir(path string, opts vfs.ListDirOptions) (*vfs.ListDirResult, error)
	Search(root, pattern string, opts vfs.SearchOptions) ([]vfs.SearchMatch, error)
}

// FsScope bounds what the "do" tool may perform against FsCapability.
type FsScope struct {
	AllowWrite   bool
	AllowDelete  bool
	AllowedPaths []string // empty means unrestricted
}

// DefaultFsScope permits writes and deletes with no path restriction.
func DefaultFsScope() FsScope {
	return FsScope{AllowWrite: true, AllowDelete: true}
}

// pathAllowed reports whether path falls under one of the scope's allowed
// path prefixes. An empty AllowedPaths list permits everything.
func (s FsScope) pathAllowed(path string) bool {
	if len(s.AllowedPaths) == 0 {
		return true
	}
	for _, p := range s.AllowedPaths {
		if p == path || p == "/" {
			return true
		}
		if strings.HasPrefix(path, strings.TrimSuffix(p, "/")+"/") {
			return true
		}
	}
	return false
}
