package rpc

import (
	"context"
	"encoding/json"

	"github.com/fsxd/fsxd/tools"
	"github.com/fsxd/fsxd/vfs"
)

// decodeParams unmarshals raw into v, treating an empty/absent params
// member as "no arguments" rather than a parse error.
func decodeParams(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return newError(CodeInvalidRequest, "invalid params: "+err.Error())
	}
	return nil
}

// RegisterVFSMethods binds the stable filesystem method set to g.
func RegisterVFSMethods(r *Router, g *vfs.InodeGraph) {
	r.Register("readFile", func(_ context.Context, raw json.RawMessage) (interface{}, error) {
		var p struct {
			Path string `json:"path"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		data, err := g.ReadFile(p.Path)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"data": string(data), "size": len(data)}, nil
	})

	r.Register("writeFile", func(_ context.Context, raw json.RawMessage) (interface{}, error) {
		var p struct {
			Path string `json:"path"`
			Data string `json:"data"`
			Mode uint32 `json:"mode"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		if err := g.WriteFile(p.Path, []byte(p.Data), p.Mode); err != nil {
			return nil, err
		}
		return map[string]interface{}{}, nil
	})

	r.Register("mkdir", func(_ context.Context, raw json.RawMessage) (interface{}, error) {
		var p struct {
			Path      string `json:"path"`
			Recursive bool   `json:"recursive"`
			Mode      uint32 `json:"mode"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		return nil, g.Mkdir(p.Path, vfs.MkdirOptions{Recursive: p.Recursive, Mode: p.Mode})
	})

	r.Register("rmdir", func(_ context.Context, raw json.RawMessage) (interface{}, error) {
		var p struct {
			Path      string `json:"path"`
			Recursive bool   `json:"recursive"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		return nil, g.Rmdir(p.Path, vfs.RmdirOptions{Recursive: p.Recursive})
	})

	r.Register("readdir", func(_ context.Context, raw json.RawMessage) (interface{}, error) {
		var p struct {
			Path          string `json:"path"`
			WithFileTypes bool   `json:"withFileTypes"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		names, entries, err := g.Readdir(p.Path, p.WithFileTypes)
		if err != nil {
			return nil, err
		}
		if p.WithFileTypes {
			return entries, nil
		}
		return names, nil
	})

	r.Register("stat", func(_ context.Context, raw json.RawMessage) (interface{}, error) {
		var p struct {
			Path string `json:"path"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		return g.Stat(p.Path)
	})

	r.Register("lstat", func(_ context.Context, raw json.RawMessage) (interface{}, error) {
		var p struct {
			Path string `json:"path"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		return g.Lstat(p.Path)
	})

	r.Register("unlink", func(_ context.Context, raw json.RawMessage) (interface{}, error) {
		var p struct {
			Path string `json:"path"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		return nil, g.Unlink(p.Path)
	})

	r.Register("rename", func(_ context.Context, raw json.RawMessage) (interface{}, error) {
		var p struct {
			Old string `json:"old"`
			New string `json:"new"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		return nil, g.Rename(p.Old, p.New)
	})

	r.Register("copyFile", func(_ context.Context, raw json.RawMessage) (interface{}, error) {
		var p struct {
			Src string `json:"src"`
			Dst string `json:"dst"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		return nil, g.CopyFile(p.Src, p.Dst)
	})

	r.Register("chmod", func(_ context.Context, raw json.RawMessage) (interface{}, error) {
		var p struct {
			Path string `json:"path"`
			Mode uint32 `json:"mode"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		return nil, g.Chmod(p.Path, p.Mode)
	})

	r.Register("chown", func(_ context.Context, raw json.RawMessage) (interface{}, error) {
		var p struct {
			Path string `json:"path"`
			UID  uint32 `json:"uid"`
			GID  uint32 `json:"gid"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		return nil, g.Chown(p.Path, p.UID, p.GID)
	})

	r.Register("utimes", func(_ context.Context, raw json.RawMessage) (interface{}, error) {
		var p struct {
			Path  string `json:"path"`
			Atime int64  `json:"atime"`
			Mtime int64  `json:"mtime"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		return nil, g.Utimes(p.Path, p.Atime, p.Mtime)
	})

	r.Register("symlink", func(_ context.Context, raw json.RawMessage) (interface{}, error) {
		var p struct {
			Target   string `json:"target"`
			LinkPath string `json:"linkPath"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		return nil, g.Symlink(p.Target, p.LinkPath)
	})

	r.Register("readlink", func(_ context.Context, raw json.RawMessage) (interface{}, error) {
		var p struct {
			Path string `json:"path"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		return g.Readlink(p.Path)
	})

	r.Register("truncate", func(_ context.Context, raw json.RawMessage) (interface{}, error) {
		var p struct {
			Path   string `json:"path"`
			Length int64  `json:"length"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		return nil, g.Truncate(p.Path, p.Length)
	})

	r.Register("access", func(_ context.Context, raw json.RawMessage) (interface{}, error) {
		var p struct {
			Path           string `json:"path"`
			Type           string `json:"type"`
			FollowSymlinks *bool  `json:"followSymlinks"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		opts := vfs.ExistsOptions{Type: p.Type}
		if p.FollowSymlinks != nil {
			opts.FollowSymlinksSet = true
			opts.FollowSymlinks = *p.FollowSymlinks
		}
		return g.Exists(p.Path, opts), nil
	})

	r.Register("realpath", func(_ context.Context, raw json.RawMessage) (interface{}, error) {
		var p struct {
			Path string `json:"path"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		norm, err := g.Normalize(p.Path)
		if err != nil {
			return nil, err
		}
		return map[string]string{"path": norm}, nil
	})

	r.Register("rm", func(_ context.Context, raw json.RawMessage) (interface{}, error) {
		var p struct {
			Path      string `json:"path"`
			Recursive bool   `json:"recursive"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		st, err := g.Lstat(p.Path)
		if err != nil {
			return nil, err
		}
		if st.IsDir {
			if !p.Recursive {
				return nil, vfs.NewError(vfs.EISDIR, p.Path)
			}
			return nil, g.Rmdir(p.Path, vfs.RmdirOptions{Recursive: true})
		}
		return nil, g.Unlink(p.Path)
	})

	r.Register("link", func(_ context.Context, raw json.RawMessage) (interface{}, error) {
		var p struct {
			Existing string `json:"existing"`
			New      string `json:"new"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		return nil, g.Link(p.Existing, p.New)
	})
}

// RegisterToolMethods exposes the high-level tools (search, fetch, do) as
// RPC methods too.
func RegisterToolMethods(r *Router, registry *tools.Registry) {
	for _, name := range []string{"search", "fetch", "do"} {
		name := name
		r.Register(name, func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
			var params map[string]interface{}
			if err := decodeParams(raw, &params); err != nil {
				return nil, err
			}
			authCtx, _ := ctx.Value(tools.AuthContextKey).(tools.AuthContext)
			result, err := registry.Invoke(ctx, name, params, authCtx)
			if err != nil {
				return nil, err
			}
			return result, nil
		})
	}
}
