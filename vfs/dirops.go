package vfs

import "strings"

// MkdirOptions configures Mkdir.
type MkdirOptions struct {
	Recursive bool
	Mode      uint32
}

// Mkdir creates a directory. Non-recursive fails EEXIST when the target
// exists; recursive succeeds idempotently when the target is already a
// directory and fails ENOTDIR if any existing intermediate component is
// not a directory.
func (g *InodeGraph) Mkdir(path string, opts MkdirOptions) error {
	path, err := g.normalize(path)
	if err != nil {
		return err
	}
	mode := opts.Mode
	if mode == 0 {
		mode = DefaultDirMode
	}
	if !opts.Recursive {
		return g.mkdirOne(path, mode)
	}

	segs := strings.Split(strings.TrimPrefix(path, "/"), "/")
	cur := "/"
	for _, seg := range segs {
		if seg == "" {
			continue
		}
		if cur == "/" {
			cur = "/" + seg
		} else {
			cur = cur + "/" + seg
		}
		err := g.mkdirOne(cur, mode)
		if err != nil {
			if Is(err, EEXIST) {
				res, lerr := g.lookup(cur)
				if lerr != nil {
					return lerr
				}
				if res.inode.Kind != KindDirectory {
					return NewError(ENOTDIR, cur)
				}
				continue
			}
			return err
		}
	}
	return nil
}

func (g *InodeGraph) mkdirOne(path string, mode uint32) error {
	parent, name, err := g.resolveParent(path)
	if err != nil {
		return err
	}
	now := g.nowMs()
	n := &Inode{
		ID: g.allocID(), Kind: KindDirectory, Mode: mode & 0o777, Nlink: 2,
		AtimeMs: now, MtimeMs: now, CtimeMs: now, BirthMs: now,
	}
	g.putInode(n)
	dir := g.getDir(parent.ID)
	if _, inserted := dir.setIfAbsent(name, n.ID); !inserted {
		g.dropInode(n.ID)
		return NewError(EEXIST, path)
	}
	parent.Lock()
	parent.MtimeMs = now
	parent.Nlink++ // the new subdirectory's ".." contributes to the parent's link count
	parent.Unlock()
	g.emit(Event{Kind: EventCreate, Path: path})
	return nil
}

// RmdirOptions configures Rmdir.
type RmdirOptions struct {
	Recursive bool
}

// Rmdir removes a directory. Non-empty, non-recursive fails ENOTEMPTY;
// recursive removes deepest-first.
func (g *InodeGraph) Rmdir(path string, opts RmdirOptions) error {
	path, err := g.normalize(path)
	if err != nil {
		return err
	}
	res, err := g.lookup(path)
	if err != nil {
		return err
	}
	if res.inode.Kind != KindDirectory {
		return NewError(ENOTDIR, path)
	}
	if res.parent == nil {
		return NewError(EACCES, path) // can't remove the tenant root
	}
	dir := g.getDir(res.inode.ID)
	if !opts.Recursive && !dir.isEmpty() {
		return NewError(ENOTEMPTY, path)
	}
	if opts.Recursive {
		for _, name := range dir.names() {
			childPath := joinChild(path, name)
			childID, _ := dir.get(name)
			child := g.getInode(childID)
			if child == nil {
				continue
			}
			if child.Kind == KindDirectory {
				if err := g.Rmdir(childPath, RmdirOptions{Recursive: true}); err != nil {
					return err
				}
			} else {
				if err := g.Unlink(childPath); err != nil {
					return err
				}
			}
		}
	}
	return g.removeEmptyDir(res.parent, res.name, res.inode)
}

func (g *InodeGraph) removeEmptyDir(parent *Inode, name string, n *Inode) error {
	parentDir := g.getDir(parent.ID)
	parentDir.delete(name)
	now := g.nowMs()
	parent.Lock()
	parent.MtimeMs = now
	parent.Nlink--
	parent.Unlock()
	g.dropInode(n.ID)
	return nil
}

func joinChild(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}

// DirEntry is one entry returned by Readdir with withFileTypes=true.
type DirEntry struct {
	Name string
	Type string // "file" | "directory" | "symlink"
}

// Readdir lists a directory's immediate children, sorted ascending by
// name.
func (g *InodeGraph) Readdir(path string, withFileTypes bool) ([]string, []DirEntry, error) {
	path, err := g.normalize(path)
	if err != nil {
		return nil, nil, err
	}
	n, err := g.resolveFollowingTerminal(path)
	if err != nil {
		return nil, nil, err
	}
	if n.Kind != KindDirectory {
		return nil, nil, NewError(ENOTDIR, path)
	}
	dir := g.getDir(n.ID)
	names := sortedNames(dir.names())
	if !withFileTypes {
		return names, nil, nil
	}
	entries := make([]DirEntry, 0, len(names))
	for _, name := range names {
		childID, _ := dir.get(name)
		child := g.getInode(childID)
		entries = append(entries, DirEntry{Name: name, Type: child.Kind.String()})
	}
	return nil, entries, nil
}

// Rename atomically moves the directory entry at oldPath to newPath.
// Overwrite rules: empty-dir-by-dir and file-by-file are permitted; a
// non-empty target directory fails EEXIST (see DESIGN.md).
func (g *InodeGraph) Rename(oldPath, newPath string) error {
	oldPath, err := g.normalize(oldPath)
	if err != nil {
		return err
	}
	newPath, err = g.normalize(newPath)
	if err != nil {
		return err
	}
	if oldPath == newPath {
		return nil
	}
	if strings.HasPrefix(newPath+"/", oldPath+"/") && oldPath != "/" {
		return NewError(EINVAL, newPath)
	}

	oldParent, oldName, err := g.resolveParent(oldPath)
	if err != nil {
		return err
	}
	oldDir := g.getDir(oldParent.ID)
	srcID, ok := oldDir.get(oldName)
	if !ok {
		return NewError(ENOENT, oldPath)
	}
	src := g.getInode(srcID)

	newParent, newName, err := g.resolveParent(newPath)
	if err != nil {
		return err
	}
	newDir := g.getDir(newParent.ID)

	if dstID, exists := newDir.get(newName); exists {
		dst := g.getInode(dstID)
		if src.Kind == KindDirectory {
			if dst.Kind != KindDirectory {
				return NewError(EEXIST, newPath)
			}
			if !g.getDir(dst.ID).isEmpty() {
				return NewError(EEXIST, newPath)
			}
			g.dropInode(dst.ID)
		} else {
			if dst.Kind == KindDirectory {
				return NewError(EISDIR, newPath)
			}
			dst.Lock()
			dst.Nlink--
			nlink := dst.Nlink
			hash := dst.ContentHash
			dst.Unlock()
			if nlink == 0 {
				g.dropInode(dst.ID)
				if hash != "" {
					_ = g.store.Release(hash)
				}
			}
		}
	}

	oldDir.delete(oldName)
	newDir.set(newName, srcID)
	if src.Kind == KindDirectory {
		g.mu.Lock()
		if d, ok := g.dirs[srcID]; ok {
			d.parent = newParent.ID
		}
		g.mu.Unlock()
	}

	now := g.nowMs()
	oldParent.Lock()
	oldParent.MtimeMs = now
	oldParent.Unlock()
	newParent.Lock()
	newParent.MtimeMs = now
	newParent.Unlock()
	src.Lock()
	src.CtimeMs = now
	src.Unlock()

	g.emit(Event{Kind: EventRename, Path: newPath, OldPath: oldPath})
	return nil
}

// CopyFile is CAS-aware: the destination inode shares the source's
// content hash via an added reference, never duplicating bytes.
func (g *InodeGraph) CopyFile(src, dst string) error {
	src, err := g.normalize(src)
	if err != nil {
		return err
	}
	dst, err = g.normalize(dst)
	if err != nil {
		return err
	}
	srcInode, err := g.resolveFollowingTerminal(src)
	if err != nil {
		return err
	}
	if srcInode.Kind != KindRegular {
		return NewError(EISDIR, src)
	}
	srcInode.RLock()
	hash := srcInode.ContentHash
	size := srcInode.Size
	mode := srcInode.Mode
	srcInode.RUnlock()

	if hash != "" {
		if err := g.store.AddRef(hash); err != nil {
			return err
		}
	}

	parent, name, err := g.resolveParent(dst)
	if err != nil {
		if hash != "" {
			_ = g.store.Release(hash)
		}
		return err
	}
	now := g.nowMs()
	n := &Inode{
		ID: g.allocID(), Kind: KindRegular, Mode: mode, Nlink: 1,
		ContentHash: hash, Size: size,
		AtimeMs: now, MtimeMs: now, CtimeMs: now, BirthMs: now,
	}
	g.putInode(n)
	dir := g.getDir(parent.ID)
	if winnerID, inserted := dir.setIfAbsent(name, n.ID); !inserted {
		// destination already exists (or a concurrent creator won):
		// overwrite it in place
		g.dropInode(n.ID)
		existing := g.getInode(winnerID)
		if existing == nil || existing.Kind == KindDirectory {
			if hash != "" {
				_ = g.store.Release(hash)
			}
			return NewError(EISDIR, dst)
		}
		existing.Lock()
		oldHash := existing.ContentHash
		existing.ContentHash = hash
		existing.Size = size
		existing.Mode = mode
		existing.MtimeMs = now
		existing.CtimeMs = now
		existing.Unlock()
		if oldHash != "" {
			_ = g.store.Release(oldHash)
		}
		g.emit(Event{Kind: EventModify, Path: dst})
		return nil
	}
	parent.Lock()
	parent.MtimeMs = now
	parent.Unlock()
	g.emit(Event{Kind: EventCreate, Path: dst})
	return nil
}

// Link creates a hard link. Regular files only; EPERM on a directory.
func (g *InodeGraph) Link(existing, newPath string) error {
	existing, err := g.normalize(existing)
	if err != nil {
		return err
	}
	newPath, err = g.normalize(newPath)
	if err != nil {
		return err
	}
	res, err := g.lookup(existing)
	if err != nil {
		return err
	}
	if res.inode.Kind == KindDirectory {
		return NewError(EPERM, existing)
	}
	parent, name, err := g.resolveParent(newPath)
	if err != nil {
		return err
	}
	dir := g.getDir(parent.ID)
	if _, inserted := dir.setIfAbsent(name, res.inode.ID); !inserted {
		return NewError(EEXIST, newPath)
	}
	now := g.nowMs()
	res.inode.Lock()
	res.inode.Nlink++
	res.inode.CtimeMs = now
	res.inode.Unlock()
	parent.Lock()
	parent.MtimeMs = now
	parent.Unlock()
	g.emit(Event{Kind: EventCreate, Path: newPath})
	return nil
}

// Symlink creates a symlink inode storing target verbatim. It does not
// validate target existence but rejects an escaping target.
func (g *InodeGraph) Symlink(target, linkPath string) error {
	linkPath, err := g.normalize(linkPath)
	if err != nil {
		return err
	}
	if g.validator.IsSymlinkEscape(target, linkPath) {
		return NewError(EACCES, linkPath)
	}
	parent, name, err := g.resolveParent(linkPath)
	if err != nil {
		return err
	}
	now := g.nowMs()
	n := &Inode{
		ID: g.allocID(), Kind: KindSymlink, Mode: 0o777, Nlink: 1,
		LinkTarget: target,
		AtimeMs:    now, MtimeMs: now, CtimeMs: now, BirthMs: now,
	}
	g.putInode(n)
	dir := g.getDir(parent.ID)
	if _, inserted := dir.setIfAbsent(name, n.ID); !inserted {
		g.dropInode(n.ID)
		return NewError(EEXIST, linkPath)
	}
	parent.Lock()
	parent.MtimeMs = now
	parent.Unlock()
	g.emit(Event{Kind: EventCreate, Path: linkPath})
	return nil
}

// Readlink returns a symlink's verbatim target. EINVAL if path is not a
// symlink.
func (g *InodeGraph) Readlink(path string) (string, error) {
	path, err := g.normalize(path)
	if err != nil {
		return "", err
	}
	res, err := g.lookup(path)
	if err != nil {
		return "", err
	}
	if res.inode.Kind != KindSymlink {
		return "", NewError(EINVAL, path)
	}
	res.inode.RLock()
	defer res.inode.RUnlock()
	return res.inode.LinkTarget, nil
}
