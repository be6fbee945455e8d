// Package walker enumerates the leaf paths of a hierarchical secret namespace.
package walker

import (
	"context"
	"fmt"
	"iter"
	"strings"

	berrors "github.com/atinyakov/vaultkeeper/internal/errors"
)

// Separator delimits path segments; a listed child ending in it is a folder.
const Separator = "/"

// Lister returns the child names of one folder. Folder children carry a
// trailing Separator, leaves do not.
type Lister interface {
	List(ctx context.Context, path string) ([]string, error)
}

// Walker performs a depth-first walk over a Lister.
//
// The store must present a strict tree. There is no visited set, so a store
// that returns a cycle makes Enumerate run forever.
type Walker struct {
	lister Lister
}

// New returns a Walker over l.
func New(l Lister) *Walker {
	return &Walker{lister: l}
}

type frame struct {
	folder   string
	children []string
	next     int
}

// Enumerate yields every leaf path under root, in the order a recursive
// depth-first walk would produce them. Each call queries the store afresh.
//
// A failed listing yields ("", err) wrapping ErrEnumerationFailed and the
// walk continues with the folder's siblings. A cancelled context yields
// ctx.Err() once and stops.
func (w *Walker) Enumerate(ctx context.Context, root string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		var stack []*frame

		open := func(folder string) bool {
			children, err := w.lister.List(ctx, QueryPath(folder))
			if err != nil {
				return yield("", fmt.Errorf("list %q: %w: %w", QueryPath(folder), berrors.ErrEnumerationFailed, err))
			}
			stack = append(stack, &frame{folder: folder, children: children})
			return true
		}

		if !open(root) {
			return
		}
		for len(stack) > 0 {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}

			top := stack[len(stack)-1]
			if top.next >= len(top.children) {
				stack = stack[:len(stack)-1]
				continue
			}
			child := top.children[top.next]
			top.next++

			if child == "" || child == Separator {
				continue
			}
			p := Join(top.folder, child)
			if IsFolder(child) {
				if !open(p) {
					return
				}
				continue
			}
			if !yield(p, nil) {
				return
			}
		}
	}
}

// Collect drains Enumerate into a slice of leaves and one of listing errors.
func (w *Walker) Collect(ctx context.Context, root string) ([]string, []error) {
	var (
		leaves []string
		errs   []error
	)
	for p, err := range w.Enumerate(ctx, root) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		leaves = append(leaves, p)
	}
	return leaves, errs
}

// IsFolder reports whether a listed name denotes a folder.
func IsFolder(name string) bool {
	return strings.HasSuffix(name, Separator)
}

// QueryPath is the form of a folder path sent to List: exactly one trailing
// separator, or "" for the mount root.
func QueryPath(folder string) string {
	f := strings.TrimRight(folder, Separator)
	if f == "" {
		return ""
	}
	return f + Separator
}

// Join appends a child name to a folder path, keeping the child's own
// trailing separator.
func Join(folder, child string) string {
	f := strings.TrimRight(folder, Separator)
	child = strings.TrimLeft(child, Separator)
	if f == "" {
		return child
	}
	return f + Separator + child
}
