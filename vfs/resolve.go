package vfs

import "strings"

// lookupResult is the outcome of resolving a normalized path to an inode,
// without following a terminal symlink.
type lookupResult struct {
	inode  *Inode
	parent *Inode // nil only for the root
	name   string // basename, "" for the root
}

// lookup walks path component by component from the root, following
// intermediate symlinks (but never the terminal component), and fails
// ENOENT/ENOTDIR/ELOOP as appropriate.
func (g *InodeGraph) lookup(path string) (*lookupResult, error) {
	if path == "/" {
		root := g.getInode(g.root)
		return &lookupResult{inode: root}, nil
	}

	segs := strings.Split(strings.TrimPrefix(path, "/"), "/")
	cur := g.getInode(g.root)
	curPath := "/"
	var parent *Inode
	loopCount := 0

	for i, seg := range segs {
		if cur.Kind == KindSymlink {
			resolved, err := g.followSymlink(cur, curPath, &loopCount)
			if err != nil {
				return nil, err
			}
			cur = resolved
		}
		if cur.Kind != KindDirectory {
			return nil, NewError(ENOTDIR, path)
		}
		dir := g.getDir(cur.ID)
		childID, ok := dir.get(seg)
		if !ok {
			return nil, NewError(ENOENT, path)
		}
		child := g.getInode(childID)
		if child == nil {
			return nil, NewError(ENOENT, path)
		}
		parent = cur
		cur = child
		if curPath == "/" {
			curPath = "/" + seg
		} else {
			curPath = curPath + "/" + seg
		}
		_ = i
	}
	return &lookupResult{inode: cur, parent: parent, name: segs[len(segs)-1]}, nil
}

// resolveFollowingTerminal behaves like lookup but also follows a terminal
// symlink, failing ELOOP past symlinkLoopBound hops.
func (g *InodeGraph) resolveFollowingTerminal(path string) (*Inode, error) {
	res, err := g.lookup(path)
	if err != nil {
		return nil, err
	}
	loopCount := 0
	cur := res.inode
	curPath := path
	for cur.Kind == KindSymlink {
		resolved, err := g.followSymlink(cur, curPath, &loopCount)
		if err != nil {
			return nil, err
		}
		cur = resolved
	}
	return cur, nil
}

func (g *InodeGraph) followSymlink(link *Inode, linkPath string, loopCount *int) (*Inode, error) {
	*loopCount++
	if *loopCount > symlinkLoopBound {
		return nil, NewError(ELOOP, linkPath)
	}
	link.RLock()
	target := link.LinkTarget
	link.RUnlock()

	resolvedPath := target
	if !strings.HasPrefix(target, "/") {
		resolvedPath = joinPath(Dirname(linkPath), target)
	}
	normalized, err := g.normalize(resolvedPath)
	if err != nil {
		return nil, err
	}
	res, err := g.lookup(normalized)
	if err != nil {
		return nil, err
	}
	if res.inode.Kind == KindSymlink {
		return g.followSymlink(res.inode, normalized, loopCount)
	}
	return res.inode, nil
}

func joinPath(dir, rel string) string {
	if dir == "/" {
		return "/" + rel
	}
	return dir + "/" + rel
}

// resolveParent resolves the parent directory of path and validates the
// basename, without requiring the child to exist. Used by create-style
// operations.
func (g *InodeGraph) resolveParent(path string) (parent *Inode, name string, err error) {
	dir := Dirname(path)
	name = Basename(path)
	if name == "" || name == "/" {
		return nil, "", NewError(EINVAL, path)
	}
	parentRes, err := g.lookup(dir)
	if err != nil {
		return nil, "", err
	}
	parentInode := parentRes.inode
	loopCount := 0
	for parentInode.Kind == KindSymlink {
		resolved, err := g.followSymlink(parentInode, dir, &loopCount)
		if err != nil {
			return nil, "", err
		}
		parentInode = resolved
	}
	if parentInode.Kind != KindDirectory {
		return nil, "", NewError(ENOTDIR, path)
	}
	return parentInode, name, nil
}
