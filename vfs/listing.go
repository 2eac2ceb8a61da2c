package vfs

import (
	"fmt"
	"sort"
	"strings"
)

// TreeOptions configures Tree.
type TreeOptions struct {
	MaxDepth   int // 0 means unlimited
	ShowHidden bool
	Exclude    []string
	Include    []string
	ShowSize   bool
	DirsFirst  bool
	Format     string // "ascii" | "json"
}

// TreeNode is the JSON-format node shape for Tree.
type TreeNode struct {
	Name     string     `json:"name"`
	Type     string     `json:"type"`
	Size     int64      `json:"size,omitempty"`
	Children []TreeNode `json:"children,omitempty"`
}

type treeChild struct {
	name string
	n    *Inode
}

func (g *InodeGraph) listChildren(dirInode *Inode, opts TreeOptions) []treeChild {
	dir := g.getDir(dirInode.ID)
	names := sortedNames(dir.names())
	out := make([]treeChild, 0, len(names))
	for _, name := range names {
		if !opts.ShowHidden && strings.HasPrefix(name, ".") {
			continue
		}
		if len(opts.Exclude) > 0 && matchesAny(opts.Exclude, name) {
			continue
		}
		if len(opts.Include) > 0 && !matchesAny(opts.Include, name) {
			continue
		}
		id, _ := dir.get(name)
		child := g.getInode(id)
		if child == nil {
			continue
		}
		out = append(out, treeChild{name: name, n: child})
	}
	if opts.DirsFirst {
		sort.SliceStable(out, func(i, j int) bool {
			di, dj := out[i].n.Kind == KindDirectory, out[j].n.Kind == KindDirectory
			if di == dj {
				return false
			}
			return di
		})
	}
	return out
}

func matchesAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if matchGlob(p, name, true) {
			return true
		}
	}
	return false
}

// Tree renders a depth-limited directory traversal in ascii or json
// format.
func (g *InodeGraph) Tree(path string, opts TreeOptions) (string, *TreeNode, error) {
	path, err := g.normalize(path)
	if err != nil {
		return "", nil, err
	}
	root, err := g.resolveFollowingTerminal(path)
	if err != nil {
		return "", nil, err
	}
	if root.Kind != KindDirectory {
		return "", nil, NewError(ENOTDIR, path)
	}
	if opts.Format == "json" {
		node := g.buildTreeNode(Basename(path), root, opts, 1)
		return "", &node, nil
	}
	var b strings.Builder
	b.WriteString(Basename(path))
	b.WriteByte('\n')
	g.renderASCII(&b, root, opts, 1, "")
	return b.String(), nil, nil
}

func (g *InodeGraph) buildTreeNode(name string, n *Inode, opts TreeOptions, depth int) TreeNode {
	node := TreeNode{Name: name, Type: n.Kind.String()}
	if opts.ShowSize && n.Kind == KindRegular {
		node.Size = n.Size
	}
	if n.Kind != KindDirectory {
		return node
	}
	if opts.MaxDepth > 0 && depth > opts.MaxDepth {
		return node
	}
	for _, c := range g.listChildren(n, opts) {
		node.Children = append(node.Children, g.buildTreeNode(c.name, c.n, opts, depth+1))
	}
	return node
}

func (g *InodeGraph) renderASCII(b *strings.Builder, n *Inode, opts TreeOptions, depth int, prefix string) {
	if opts.MaxDepth > 0 && depth > opts.MaxDepth {
		return
	}
	children := g.listChildren(n, opts)
	for i, c := range children {
		last := i == len(children)-1
		connector := "├── "
		nextPrefix := prefix + "│   "
		if last {
			connector = "└── "
			nextPrefix = prefix + "    "
		}
		label := c.name
		if opts.ShowSize && c.n.Kind == KindRegular {
			label = fmt.Sprintf("%s (%d)", c.name, c.n.Size)
		}
		b.WriteString(prefix + connector + label + "\n")
		if c.n.Kind == KindDirectory {
			g.renderASCII(b, c.n, opts, depth+1, nextPrefix)
		}
	}
}

// ListDirOptions configures ListDir.
type ListDirOptions struct {
	Pattern          string
	ShowHidden       bool
	WithDetails      bool
	Sort             string // "name" | "size" | "date"
	Order            string // "asc" | "desc"
	Limit            int
	Offset           int
	GroupDirectories bool
}

// ListEntry is one row from ListDir with details.
type ListEntry struct {
	Name    string
	Type    string
	Size    int64
	MtimeMs int64
}

// ListDirResult carries the page of entries plus a "more" indicator.
type ListDirResult struct {
	Entries []ListEntry
	More    int // number of additional entries beyond what was returned
}

// ListDir lists a directory like Readdir but with glob filtering, sort,
// paging, and directory-grouping.
func (g *InodeGraph) ListDir(path string, opts ListDirOptions) (*ListDirResult, error) {
	path, err := g.normalize(path)
	if err != nil {
		return nil, err
	}
	n, err := g.resolveFollowingTerminal(path)
	if err != nil {
		return nil, err
	}
	if n.Kind != KindDirectory {
		return nil, NewError(ENOTDIR, path)
	}
	dir := g.getDir(n.ID)
	names := dir.names()

	entries := make([]ListEntry, 0, len(names))
	for _, name := range names {
		if !opts.ShowHidden && strings.HasPrefix(name, ".") {
			continue
		}
		if opts.Pattern != "" && !matchGlob(opts.Pattern, name, true) {
			continue
		}
		id, _ := dir.get(name)
		child := g.getInode(id)
		if child == nil {
			continue
		}
		entries = append(entries, ListEntry{
			Name: name, Type: child.Kind.String(), Size: child.Size, MtimeMs: child.MtimeMs,
		})
	}

	sortEntries(entries, opts.Sort, opts.Order, opts.GroupDirectories)

	total := len(entries)
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if opts.Limit > 0 && offset+opts.Limit < total {
		end = offset + opts.Limit
	}
	page := entries[offset:end]
	return &ListDirResult{Entries: page, More: total - end}, nil
}

func sortEntries(entries []ListEntry, by, order string, groupDirs bool) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if groupDirs {
			ai, bi := a.Type == "directory", b.Type == "directory"
			if ai != bi {
				return ai
			}
		}
		cmp := 0
		switch by {
		case "size":
			switch {
			case a.Size < b.Size:
				cmp = -1
			case a.Size > b.Size:
				cmp = 1
			}
		case "date":
			switch {
			case a.MtimeMs < b.MtimeMs:
				cmp = -1
			case a.MtimeMs > b.MtimeMs:
				cmp = 1
			}
		}
		if cmp == 0 {
			switch {
			case a.Name < b.Name:
				cmp = -1
			case a.Name > b.Name:
				cmp = 1
			}
		}
		if order == "desc" {
			return cmp > 0
		}
		return cmp < 0
	})
}

// SearchOptions configures Search.
type SearchOptions struct {
	Exclude       []string
	MaxDepth      int
	ShowHidden    bool
	Limit         int
	ContentSearch string
	CaseSensitive bool
}

// SearchMatch is one hit from Search.
type SearchMatch struct {
	Path    string
	Matches int // content-search match count; 0 for glob-only matches
}

// Search walks root matching pattern as a glob (or, with ContentSearch
// set, a substring search over file bytes).
func (g *InodeGraph) Search(root, pattern string, opts SearchOptions) ([]SearchMatch, error) {
	root, err := g.normalize(root)
	if err != nil {
		return nil, err
	}
	rootInode, err := g.resolveFollowingTerminal(root)
	if err != nil {
		return nil, err
	}
	var results []SearchMatch
	var walk func(n *Inode, path string, rel string, depth int) error
	walk = func(n *Inode, path, rel string, depth int) error {
		if opts.Limit > 0 && len(results) >= opts.Limit {
			return nil
		}
		if n.Kind != KindDirectory {
			return nil
		}
		dir := g.getDir(n.ID)
		for _, name := range sortedNames(dir.names()) {
			if opts.Limit > 0 && len(results) >= opts.Limit {
				return nil
			}
			if !opts.ShowHidden && strings.HasPrefix(name, ".") {
				continue
			}
			childID, _ := dir.get(name)
			child := g.getInode(childID)
			if child == nil {
				continue
			}
			childPath := joinChild(path, name)
			childRel := name
			if rel != "" {
				childRel = rel + "/" + name
			}
			if len(opts.Exclude) > 0 && matchesAny(opts.Exclude, childRel) {
				continue
			}
			if pattern == "" || matchGlob(pattern, childRel, opts.CaseSensitive) || matchGlob(pattern, name, opts.CaseSensitive) {
				if opts.ContentSearch != "" {
					if child.Kind == KindRegular {
						count := g.countContentMatches(child, opts.ContentSearch, opts.CaseSensitive)
						if count > 0 {
							results = append(results, SearchMatch{Path: childPath, Matches: count})
						}
					}
				} else {
					results = append(results, SearchMatch{Path: childPath})
				}
			}
			if child.Kind == KindDirectory {
				if opts.MaxDepth == 0 || depth < opts.MaxDepth {
					if err := walk(child, childPath, childRel, depth+1); err != nil {
						return err
					}
				}
			}
		}
		return nil
	}
	if err := walk(rootInode, root, "", 1); err != nil {
		return nil, err
	}
	return results, nil
}

func (g *InodeGraph) countContentMatches(n *Inode, needle string, caseSensitive bool) int {
	n.RLock()
	hash := n.ContentHash
	n.RUnlock()
	if hash == "" {
		return 0
	}
	data, err := g.store.ReadAll(hash)
	if err != nil {
		return 0
	}
	haystack := string(data)
	if !caseSensitive {
		haystack = strings.ToLower(haystack)
		needle = strings.ToLower(needle)
	}
	if needle == "" {
		return 0
	}
	count := 0
	idx := 0
	for {
		pos := strings.Index(haystack[idx:], needle)
		if pos < 0 {
			break
		}
		count++
		idx += pos + len(needle)
	}
	return count
}
