package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fsxd/fsxd/vfs"
	"github.com/pkg/errors"
)

// searchHandler implements the "search" built-in: a query prefixed with
// "grep:" is a content substring search, otherwise a glob.
func searchHandler(_ context.Context, params map[string]interface{}, fs FsCapability) (Content, error) {
	query, _ := params["query"].(string)
	path, _ := params["path"].(string)
	if path == "" {
		path = "/"
	}
	limit := 0
	if l, ok := params["limit"].(float64); ok {
		limit = int(l)
	}

	opts := vfs.SearchOptions{Limit: limit, CaseSensitive: true}
	pattern := query
	if strings.HasPrefix(query, "grep:") {
		opts.ContentSearch = strings.TrimPrefix(query, "grep:")
		pattern = "*"
	}

	matches, err := fs.Search(path, pattern, opts)
	if err != nil {
		return Content{}, err
	}

	var b strings.Builder
	total := 0
	for _, m := range matches {
		b.WriteString(m.Path)
		b.WriteByte('\n')
		total += max(m.Matches, 1)
	}
	b.WriteString(fmt.Sprintf("found %d matches", total))
	return Content{Value: b.String()}, nil
}

// fetchHandler implements the "fetch" built-in: a file resource returns
// its (pretty-printed, if JSON) content plus a metadata block; a
// directory resource returns a tree view.
func fetchHandler(_ context.Context, params map[string]interface{}, fs FsCapability) (Content, error) {
	resource, _ := params["resource"].(string)

	st, err := fs.Stat(resource)
	if err != nil {
		return Content{}, err
	}

	if st.IsDir {
		tree, _, err := fs.Tree(resource, vfs.TreeOptions{Format: "ascii"})
		if err != nil {
			return Content{}, err
		}
		return Content{Value: tree}, nil
	}

	data, err := fs.ReadFile(resource)
	if err != nil {
		return Content{}, err
	}

	text := string(data)
	if looksLikeJSON(data) {
		var v interface{}
		if json.Unmarshal(data, &v) == nil {
			if pretty, err := json.MarshalIndent(v, "", "  "); err == nil {
				text = string(pretty)
			}
		}
	}

	return Content{Value: map[string]interface{}{
		"content": text,
		"metadata": map[string]interface{}{
			"path": resource, "size": st.Size, "mtimeMs": st.MtimeMs,
		},
	}}, nil
}

func looksLikeJSON(data []byte) bool {
	trimmed := strings.TrimSpace(string(data))
	return strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")
}

// doOperation is the structured shape "code" must decode to: one named
// FsCapability call plus its arguments, rather than an arbitrary
// expression string (see DESIGN.md for the rationale).
type doOperation struct {
	Op   string                 `json:"op"`
	Args map[string]interface{} `json:"args"`
}

// doHandler implements the "do" built-in under an FsScope policy.
func doHandler(_ context.Context, params map[string]interface{}, fs FsCapability) (Content, error) {
	codeRaw, _ := params["code"].(string)
	scope := DefaultFsScope()
	if sc, ok := params["scope"].(map[string]interface{}); ok {
		if aw, ok := sc["allowWrite"].(bool); ok {
			scope.AllowWrite = aw
		}
		if ad, ok := sc["allowDelete"].(bool); ok {
			scope.AllowDelete = ad
		}
		if ap, ok := sc["allowedPaths"].([]interface{}); ok {
			for _, p := range ap {
				if s, ok := p.(string); ok {
					scope.AllowedPaths = append(scope.AllowedPaths, s)
				}
			}
		}
	}

	var op doOperation
	if err := json.Unmarshal([]byte(codeRaw), &op); err != nil {
		return Content{}, errors.Wrap(err, "do: code must be a JSON {op, args} operation")
	}

	path, _ := op.Args["path"].(string)
	if !scope.pathAllowed(path) {
		return Content{}, errors.New("permission denied")
	}

	var logs []string
	value, err := runOperation(op, fs, scope, &logs)
	return Content{Value: value, Logs: logs}, err
}

func runOperation(op doOperation, fs FsCapability, scope FsScope, logs *[]string) (interface{}, error) {
	*logs = append(*logs, "do: "+op.Op)
	isWrite := map[string]bool{
		"writeFile": true, "mkdir": true, "rename": true, "copyFile": true,
		"link": true, "symlink": true, "chmod": true, "chown": true,
		"utimes": true, "truncate": true, "appendFile": true,
	}
	isDelete := map[string]bool{"unlink": true, "rmdir": true}

	if isWrite[op.Op] && !scope.AllowWrite {
		return nil, errors.New("permission denied")
	}
	if isDelete[op.Op] && !scope.AllowDelete {
		return nil, errors.New("permission denied")
	}

	path, _ := op.Args["path"].(string)
	switch op.Op {
	case "readFile":
		data, err := fs.ReadFile(path)
		return string(data), err
	case "stat":
		return fs.Stat(path)
	case "lstat":
		return fs.Lstat(path)
	case "exists":
		return fs.Exists(path, vfs.ExistsOptions{}), nil
	case "readdir":
		names, _, err := fs.Readdir(path, false)
		return names, err
	case "readlink":
		return fs.Readlink(path)
	case "writeFile":
		data, _ := op.Args["data"].(string)
		return nil, fs.WriteFile(path, []byte(data), 0)
	case "appendFile":
		data, _ := op.Args["data"].(string)
		return nil, fs.AppendFile(path, []byte(data))
	case "unlink":
		return nil, fs.Unlink(path)
	case "mkdir":
		recursive, _ := op.Args["recursive"].(bool)
		return nil, fs.Mkdir(path, vfs.MkdirOptions{Recursive: recursive})
	case "rmdir":
		recursive, _ := op.Args["recursive"].(bool)
		return nil, fs.Rmdir(path, vfs.RmdirOptions{Recursive: recursive})
	case "rename":
		newPath, _ := op.Args["newPath"].(string)
		if !scope.pathAllowed(newPath) {
			return nil, errors.New("permission denied")
		}
		return nil, fs.Rename(path, newPath)
	case "copyFile":
		dst, _ := op.Args["dst"].(string)
		if !scope.pathAllowed(dst) {
			return nil, errors.New("permission denied")
		}
		return nil, fs.CopyFile(path, dst)
	case "link":
		newPath, _ := op.Args["newPath"].(string)
		if !scope.pathAllowed(newPath) {
			return nil, errors.New("permission denied")
		}
		return nil, fs.Link(path, newPath)
	case "symlink":
		target, _ := op.Args["target"].(string)
		return nil, fs.Symlink(target, path)
	case "chmod":
		mode, _ := op.Args["mode"].(float64)
		return nil, fs.Chmod(path, uint32(mode))
	case "chown":
		uid, _ := op.Args["uid"].(float64)
		gid, _ := op.Args["gid"].(float64)
		return nil, fs.Chown(path, uint32(uid), uint32(gid))
	case "utimes":
		atime, _ := op.Args["atime"].(float64)
		mtime, _ := op.Args["mtime"].(float64)
		return nil, fs.Utimes(path, int64(atime), int64(mtime))
	case "truncate":
		length, _ := op.Args["length"].(float64)
		return nil, fs.Truncate(path, int64(length))
	case "tree":
		ascii, _, err := fs.Tree(path, vfs.TreeOptions{Format: "ascii"})
		return ascii, err
	case "listDir":
		pattern, _ := op.Args["pattern"].(string)
		res, err := fs.ListDir(path, vfs.ListDirOptions{Pattern: pattern})
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(res.Entries))
		for _, e := range res.Entries {
			names = append(names, e.Name)
		}
		return names, nil
	case "search":
		pattern, _ := op.Args["pattern"].(string)
		matches, err := fs.Search(path, pattern, vfs.SearchOptions{CaseSensitive: true})
		if err != nil {
			return nil, err
		}
		paths := make([]string, 0, len(matches))
		for _, m := range matches {
			paths = append(paths, m.Path)
		}
		return paths, nil
	default:
		return nil, errors.Errorf("do: unsupported op %q", op.Op)
	}
}
