// Package ctl implements the CTL configuration tree: a registry of
// dot-separated paths, each bound to a typed leaf with parse/read/write
// handlers, covering the concrete paths BuildDefault wires up
// (tx.debug.*, tx.cache.size, heap.alloc_class.*, heap.size.*,
// heap.narenas.*, stats.*, debug.heap.alloc_pattern). Each leaf's
// Write/Run handler is a named operation translating a Go value into a
// concrete runtime effect, addressed through an open path registry
// rather than a fixed command set.
package ctl

import (
	"fmt"
	"strconv"
	"strings"
)

// Leaf is one bound configuration node. A leaf may support any subset
// of Read/Write/Run depending on its nature (stats.heap.curr_allocated
// is read-only; tx.cache.size is read-write; heap.alloc_class.new.desc
// is run-only, and its Run always returns an error because custom
// allocation classes are not implemented).
type Leaf struct {
	Read  func() (string, error)
	Write func(value string) error
	Run   func(arg string) (string, error)
}

// indexedLeaf is registered under a path containing one "#" wildcard
// segment (e.g. "heap.alloc_class.#.desc"); factory is invoked with the
// concrete segment value each time a matching path is looked up.
type indexedLeaf struct {
	pattern []string
	factory func(id string) *Leaf
}

// Registry holds every bound CTL path.
type Registry struct {
	exact   map[string]*Leaf
	indexed []indexedLeaf
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{exact: make(map[string]*Leaf)}
}

// Register binds an exact (non-wildcard) path to a leaf.
func (r *Registry) Register(path string, leaf *Leaf) {
	r.exact[path] = leaf
}

// RegisterIndexed binds a path pattern containing exactly one "#"
// wildcard segment; factory builds the concrete leaf for whatever value
// matched that segment (e.g. the alloc-class id, parsed as needed by
// the factory itself).
func (r *Registry) RegisterIndexed(pattern string, factory func(id string) *Leaf) {
	r.indexed = append(r.indexed, indexedLeaf{pattern: strings.Split(pattern, "."), factory: factory})
}

// resolve finds the leaf bound to path, expanding any matching indexed
// pattern.
func (r *Registry) resolve(path string) (*Leaf, error) {
	if l, ok := r.exact[path]; ok {
		return l, nil
	}
	segs := strings.Split(path, ".")
	for _, il := range r.indexed {
		if len(il.pattern) != len(segs) {
			continue
		}
		var id string
		match := true
		for i, p := range il.pattern {
			if p == "#" {
				id = segs[i]
				continue
			}
			if p != segs[i] {
				match = false
				break
			}
		}
		if match {
			return il.factory(id), nil
		}
	}
	return nil, fmt.Errorf("ctl: unknown path %q", path)
}

// Get reads the value at path.
func (r *Registry) Get(path string) (string, error) {
	l, err := r.resolve(path)
	if err != nil {
		return "", err
	}
	if l.Read == nil {
		return "", fmt.Errorf("ctl: %q is not readable", path)
	}
	return l.Read()
}

// Set writes value to path.
func (r *Registry) Set(path, value string) error {
	l, err := r.resolve(path)
	if err != nil {
		return err
	}
	if l.Write == nil {
		return fmt.Errorf("ctl: %q is not writable", path)
	}
	return l.Write(value)
}

// Exec runs the runnable leaf at path with arg.
func (r *Registry) Exec(path, arg string) (string, error) {
	l, err := r.resolve(path)
	if err != nil {
		return "", err
	}
	if l.Run == nil {
		return "", fmt.Errorf("ctl: %q is not runnable", path)
	}
	return l.Run(arg)
}

// ParseBool parses the CTL grammar's boolean literals ("0"/"1",
// "true"/"false", "y"/"n").
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "true", "y", "yes":
		return true, nil
	case "0", "false", "n", "no":
		return false, nil
	default:
		return false, fmt.Errorf("ctl: %q is not a valid boolean", s)
	}
}

// ParseUint parses an unsigned integer leaf value.
func ParseUint(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}
