package vfs

// OpenFlags mirrors the subset of POSIX open(2) flags the core
// understands for Open.
type OpenFlags struct {
	Create bool
	Excl   bool // with Create: fail EEXIST if the target already exists
}

// Open resolves path, optionally creating a zero-length regular file when
// flags.Create is set. The parent directory must already exist.
func (g *InodeGraph) Open(path string, flags OpenFlags, mode uint32) (*Stat, error) {
	path, err := g.normalize(path)
	if err != nil {
		return nil, err
	}
	res, err := g.lookup(path)
	if err == nil {
		if flags.Create && flags.Excl {
			return nil, NewError(EEXIST, path)
		}
		st := res.inode.toStat()
		return &st, nil
	}
	if !Is(err, ENOENT) || !flags.Create {
		return nil, err
	}
	parent, name, perr := g.resolveParent(path)
	if perr != nil {
		return nil, perr
	}
	if mode == 0 {
		mode = DefaultFileMode
	}
	n, created := g.createRegular(parent, name, mode)
	if !created {
		// lost a race to a concurrent creator of the same name
		if flags.Excl {
			return nil, NewError(EEXIST, path)
		}
		n.RLock()
		st := n.toStat()
		n.RUnlock()
		return &st, nil
	}
	g.emit(Event{Kind: EventCreate, Path: path})
	st := n.toStat()
	return &st, nil
}

// createRegular allocates a zero-length regular inode and atomically
// inserts it under parent. When name is already taken it discards the new
// inode and returns the winning inode with created=false.
func (g *InodeGraph) createRegular(parent *Inode, name string, mode uint32) (*Inode, bool) {
	now := g.nowMs()
	n := &Inode{
		ID: g.allocID(), Kind: KindRegular, Mode: mode & 0o777, Nlink: 1,
		AtimeMs: now, MtimeMs: now, CtimeMs: now, BirthMs: now,
	}
	g.putInode(n)
	dir := g.getDir(parent.ID)
	winnerID, inserted := dir.setIfAbsent(name, n.ID)
	if !inserted {
		g.dropInode(n.ID)
		return g.getInode(winnerID), false
	}
	parent.Lock()
	parent.MtimeMs = now
	parent.CtimeMs = now
	parent.Unlock()
	return n, true
}

// ReadFile follows symlinks and returns the regular file's bytes.
func (g *InodeGraph) ReadFile(path string) ([]byte, error) {
	path, err := g.normalize(path)
	if err != nil {
		return nil, err
	}
	n, err := g.resolveFollowingTerminal(path)
	if err != nil {
		return nil, err
	}
	if n.Kind == KindDirectory {
		return nil, NewError(EISDIR, path)
	}
	n.RLock()
	hash := n.ContentHash
	n.RUnlock()
	if hash == "" {
		return []byte{}, nil
	}
	data, err := g.store.ReadAll(hash)
	if err != nil {
		return nil, err
	}
	now := g.nowMs()
	n.Lock()
	n.AtimeMs = now
	n.Unlock()
	return data, nil
}

// WriteFile creates parent-missing -> ENOENT; overwrites an existing
// regular file; releases the previous content hash's reference.
func (g *InodeGraph) WriteFile(path string, data []byte, mode uint32) error {
	path, err := g.normalize(path)
	if err != nil {
		return err
	}
	hash, size, err := g.store.Put(data)
	if err != nil {
		return err
	}

	res, lookupErr := g.lookup(path)
	now := g.nowMs()
	if lookupErr == nil {
		n := res.inode
		if n.Kind == KindDirectory {
			_ = g.store.Release(hash)
			return NewError(EISDIR, path)
		}
		if n.Kind == KindSymlink {
			target, err := g.resolveFollowingTerminal(path)
			if err != nil {
				_ = g.store.Release(hash)
				return err
			}
			n = target
		}
		n.Lock()
		oldHash := n.ContentHash
		n.ContentHash = hash
		n.Size = size
		n.MtimeMs = now
		n.CtimeMs = now
		if mode != 0 {
			n.Mode = mode & 0o777
		}
		n.Unlock()
		if oldHash != "" && oldHash != hash {
			_ = g.store.Release(oldHash)
		} else if oldHash == hash {
			// identical content replaced with itself: the Put above already
			// added a reference that isn't needed twice.
			_ = g.store.Release(hash)
		}
		g.emit(Event{Kind: EventModify, Path: path})
		return nil
	}
	if !Is(lookupErr, ENOENT) {
		_ = g.store.Release(hash)
		return lookupErr
	}

	parent, name, perr := g.resolveParent(path)
	if perr != nil {
		_ = g.store.Release(hash)
		return perr
	}
	if mode == 0 {
		mode = DefaultFileMode
	}
	n := &Inode{
		ID: g.allocID(), Kind: KindRegular, Mode: mode & 0o777, Nlink: 1,
		ContentHash: hash, Size: size,
		AtimeMs: now, MtimeMs: now, CtimeMs: now, BirthMs: now,
	}
	g.putInode(n)
	dir := g.getDir(parent.ID)
	if winnerID, inserted := dir.setIfAbsent(name, n.ID); !inserted {
		// lost a race to a concurrent creator: overwrite the winner the
		// same way an existing file would be overwritten
		g.dropInode(n.ID)
		winner := g.getInode(winnerID)
		if winner == nil || winner.Kind == KindDirectory {
			_ = g.store.Release(hash)
			return NewError(EISDIR, path)
		}
		winner.Lock()
		oldHash := winner.ContentHash
		winner.ContentHash = hash
		winner.Size = size
		winner.MtimeMs = now
		winner.CtimeMs = now
		winner.Mode = mode & 0o777
		winner.Unlock()
		if oldHash != "" && oldHash != hash {
			_ = g.store.Release(oldHash)
		} else if oldHash == hash {
			_ = g.store.Release(hash)
		}
		g.emit(Event{Kind: EventModify, Path: path})
		return nil
	}
	parent.Lock()
	parent.MtimeMs = now
	parent.CtimeMs = now
	parent.Unlock()
	g.emit(Event{Kind: EventCreate, Path: path})
	return nil
}

// AppendFile is read-modify-write with concatenation semantics.
func (g *InodeGraph) AppendFile(path string, data []byte) error {
	path, err := g.normalize(path)
	if err != nil {
		return err
	}
	existing, err := g.ReadFile(path)
	if err != nil && !Is(err, ENOENT) {
		return err
	}
	combined := append(append([]byte{}, existing...), data...)
	return g.WriteFile(path, combined, 0)
}

// Unlink removes a regular file's directory entry and decrements nlink,
// releasing the content hash when nlink reaches 0.
func (g *InodeGraph) Unlink(path string) error {
	path, err := g.normalize(path)
	if err != nil {
		return err
	}
	parent, name, err := g.resolveParent(path)
	if err != nil {
		return err
	}
	dir := g.getDir(parent.ID)
	childID, ok := dir.get(name)
	if !ok {
		return NewError(ENOENT, path)
	}
	child := g.getInode(childID)
	if child.Kind == KindDirectory {
		return NewError(EISDIR, path)
	}
	dir.delete(name)
	now := g.nowMs()
	parent.Lock()
	parent.MtimeMs = now
	parent.CtimeMs = now
	parent.Unlock()

	child.Lock()
	child.Nlink--
	nlink := child.Nlink
	hash := child.ContentHash
	child.CtimeMs = now
	child.Unlock()

	if nlink == 0 {
		g.dropInode(child.ID)
		if hash != "" {
			_ = g.store.Release(hash)
		}
	}
	g.emit(Event{Kind: EventDelete, Path: path})
	return nil
}

// Truncate extends a file with zero bytes or shrinks it by slicing.
func (g *InodeGraph) Truncate(path string, length int64) error {
	if length < 0 {
		return NewError(EINVAL, path)
	}
	data, err := g.ReadFile(path)
	if err != nil {
		return err
	}
	out := make([]byte, length)
	copy(out, data)
	return g.WriteFile(path, out, 0)
}
