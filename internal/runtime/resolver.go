package runtime

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/easel/pkg/domain"
)

// Resolver looks elements up in the current cycle's cache first and falls
// back to the live state. Nothing read from the live state is cached.
type Resolver struct {
	live        LiveState
	cache       func(id string) (domain.Element, bool)
	defaultRoot string
}

// NewResolver creates a resolver without a cycle cache.
func NewResolver(live LiveState, defaultRoot string) *Resolver {
	return &Resolver{live: live, defaultRoot: defaultRoot}
}

// GetByID returns one element.
func (r *Resolver) GetByID(_ context.Context, id string) (domain.Element, error) {
	if r.cache != nil {
		if el, ok := r.cache(id); ok {
			return el, nil
		}
	}
	if el, ok := r.live.Element(id); ok {
		return el, nil
	}
	return domain.Element{}, &domain.ElementNotFoundError{ID: id}
}

// RootID returns the id a tree lookup starts from when none is given.
func (r *Resolver) RootID() string {
	if id := r.live.RootElement(); id != "" {
		return id
	}
	return r.defaultRoot
}

type treeFrame struct {
	node     *domain.ElementTree
	children []string
}

// GetTree materialises the subtree under rootID, children in list order.
// An empty rootID means the current root element.
//
// Traversal uses an explicit stack so depth is bounded by memory, not by
// the goroutine stack. An element listed among its own ancestors fails
// with domain.ErrCyclicTree.
func (r *Resolver) GetTree(ctx context.Context, rootID string) (*domain.ElementTree, error) {
	if rootID == "" {
		rootID = r.RootID()
	}

	rootEl, err := r.GetByID(ctx, rootID)
	if err != nil {
		return nil, err
	}
	root := newTreeNode(rootEl, nil)
	stack := []treeFrame{{node: root, children: rootEl.Elements}}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		childPath := append(slices.Clone(frame.node.Path), frame.node.ID)
		for _, childID := range frame.children {
			if slices.Contains(childPath, childID) {
				return nil, fmt.Errorf("%w: %s -> %s", domain.ErrCyclicTree, strings.Join(childPath, " -> "), childID)
			}
			childEl, err := r.GetByID(ctx, childID)
			if err != nil {
				return nil, err
			}
			child := newTreeNode(childEl, slices.Clone(childPath))
			frame.node.Elements = append(frame.node.Elements, child)
			stack = append(stack, treeFrame{node: child, children: childEl.Elements})
		}
	}

	return root, nil
}

func newTreeNode(el domain.Element, path []string) *domain.ElementTree {
	if path == nil {
		path = []string{}
	}
	return &domain.ElementTree{
		ID:       el.ID,
		Type:     el.Type,
		Data:     el.Data,
		Elements: []*domain.ElementTree{},
		Path:     path,
	}
}
