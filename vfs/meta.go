package vfs

// Chmod updates an inode's permission bits and ctime.
func (g *InodeGraph) Chmod(path string, mode uint32) error {
	path, err := g.normalize(path)
	if err != nil {
		return err
	}
	n, err := g.resolveFollowingTerminal(path)
	if err != nil {
		return err
	}
	n.Lock()
	n.Mode = mode & 0o777
	n.CtimeMs = g.nowMs()
	n.Unlock()
	g.emit(Event{Kind: EventModify, Path: path})
	return nil
}

// Chown updates an inode's uid/gid and ctime.
func (g *InodeGraph) Chown(path string, uid, gid uint32) error {
	path, err := g.normalize(path)
	if err != nil {
		return err
	}
	n, err := g.resolveFollowingTerminal(path)
	if err != nil {
		return err
	}
	n.Lock()
	n.UID = uid
	n.GID = gid
	n.CtimeMs = g.nowMs()
	n.Unlock()
	g.emit(Event{Kind: EventModify, Path: path})
	return nil
}

// Utimes updates an inode's atime/mtime and ctime. A negative value
// leaves the corresponding field unchanged.
func (g *InodeGraph) Utimes(path string, atimeMs, mtimeMs int64) error {
	path, err := g.normalize(path)
	if err != nil {
		return err
	}
	n, err := g.resolveFollowingTerminal(path)
	if err != nil {
		return err
	}
	n.Lock()
	if atimeMs >= 0 {
		n.AtimeMs = atimeMs
	}
	if mtimeMs >= 0 {
		n.MtimeMs = mtimeMs
	}
	n.CtimeMs = g.nowMs()
	n.Unlock()
	g.emit(Event{Kind: EventModify, Path: path})
	return nil
}

// Stat follows symlinks and returns the composite stat structure.
func (g *InodeGraph) Stat(path string) (*Stat, error) {
	path, err := g.normalize(path)
	if err != nil {
		return nil, err
	}
	n, err := g.resolveFollowingTerminal(path)
	if err != nil {
		return nil, err
	}
	n.RLock()
	defer n.RUnlock()
	st := n.toStat()
	return &st, nil
}

// Lstat is like Stat but never follows the terminal symlink.
func (g *InodeGraph) Lstat(path string) (*Stat, error) {
	path, err := g.normalize(path)
	if err != nil {
		return nil, err
	}
	res, err := g.lookup(path)
	if err != nil {
		return nil, err
	}
	res.inode.RLock()
	defer res.inode.RUnlock()
	st := res.inode.toStat()
	return &st, nil
}

// ExistsOptions configures Exists.
type ExistsOptions struct {
	Type            string // "" | "file" | "directory" | "symlink"
	FollowSymlinks  bool
	FollowSymlinksSet bool // true once the caller has set FollowSymlinks explicitly
}

// ExistsResult is the {exists, type} pair Exists returns.
type ExistsResult struct {
	Exists bool
	Type   string // "file" | "directory" | "symlink" | ""
}

// Exists reports whether path exists and its kind. With
// FollowSymlinks=false, a symlink whose target is missing still reports
// {true, "symlink"}. A Type filter that doesn't match reports {false, ""}.
func (g *InodeGraph) Exists(path string, opts ExistsOptions) ExistsResult {
	path, err := g.normalize(path)
	if err != nil {
		return ExistsResult{}
	}
	follow := opts.FollowSymlinks
	if !opts.FollowSymlinksSet {
		follow = true
	}

	res, err := g.lookup(path)
	if err != nil {
		return ExistsResult{}
	}
	n := res.inode
	if n.Kind == KindSymlink && follow {
		resolved, ferr := g.resolveFollowingTerminal(path)
		if ferr != nil {
			return ExistsResult{}
		}
		n = resolved
	}
	kind := n.Kind.String()
	if opts.Type != "" && opts.Type != kind {
		return ExistsResult{}
	}
	return ExistsResult{Exists: true, Type: kind}
}
