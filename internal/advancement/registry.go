package advancement

import (
	"log"
	"sort"
	"sync/atomic"

	"opalcraft.gg/internal/resource"
)

// Registry is the process-wide store of loaded definitions. It is built once
// per load and never mutated afterwards (apart from the display positioning
// pass run before the registry is published); readers share it freely.
type Registry struct {
	byID     map[resource.ID]*Advancement
	children map[resource.ID][]resource.ID
	roots    []resource.ID
}

// NewRegistry indexes the loaded definitions and builds the parent->child
// forest. A parent id that resolves to no loaded definition is logged and the
// child is treated as a root for traversal.
func NewRegistry(entries []Loaded, logger *log.Logger) *Registry {
	r := &Registry{
		byID:     make(map[resource.ID]*Advancement, len(entries)),
		children: make(map[resource.ID][]resource.ID),
	}
	for _, e := range entries {
		r.byID[e.ID] = e.Advancement
	}
	for _, e := range entries {
		adv := e.Advancement
		if adv.Parent == nil {
			r.roots = append(r.roots, e.ID)
			continue
		}
		if _, ok := r.byID[*adv.Parent]; !ok {
			logger.Printf("advancement %s: dangling parent %s, treating as root", e.ID, *adv.Parent)
			r.roots = append(r.roots, e.ID)
			continue
		}
		r.children[*adv.Parent] = append(r.children[*adv.Parent], e.ID)
	}
	sort.Slice(r.roots, func(i, j int) bool { return r.roots[i].Less(r.roots[j]) })
	for _, kids := range r.children {
		sort.Slice(kids, func(i, j int) bool { return kids[i].Less(kids[j]) })
	}
	return r
}

func (r *Registry) Get(id resource.ID) (*Advancement, bool) {
	adv, ok := r.byID[id]
	return adv, ok
}

// Each visits every definition in unspecified order.
func (r *Registry) Each(fn func(resource.ID, *Advancement)) {
	for id, adv := range r.byID {
		fn(id, adv)
	}
}

// AllIDs returns every loaded id, sorted.
func (r *Registry) AllIDs() []resource.ID {
	out := make([]resource.ID, 0, len(r.byID))
	for id := range r.byID {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

func (r *Registry) Len() int {
	return len(r.byID)
}

// Children returns the sorted child ids of id.
func (r *Registry) Children(id resource.ID) []resource.ID {
	return r.children[id]
}

// Roots returns every id without a resolvable parent, sorted.
func (r *Registry) Roots() []resource.ID {
	return r.roots
}

// AssignPositions lays out each tree: x is the node's depth, y a running row
// per tree assigned in depth-first sibling order. Run before publishing the
// registry.
func (r *Registry) AssignPositions() {
	for _, root := range r.roots {
		row := float32(0)
		r.position(root, 0, &row)
	}
}

func (r *Registry) position(id resource.ID, depth float32, row *float32) {
	adv := r.byID[id]
	if adv.Display != nil {
		adv.Display.X = depth
		adv.Display.Y = *row
	}
	kids := r.children[id]
	if len(kids) == 0 {
		*row++
		return
	}
	for _, kid := range kids {
		r.position(kid, depth+1, row)
	}
}

// Handle publishes a registry to the rest of the server. Hot reload swaps
// the snapshot atomically; readers never block.
type Handle struct {
	p atomic.Pointer[Registry]
}

func NewHandle(r *Registry) *Handle {
	h := &Handle{}
	h.p.Store(r)
	return h
}

// Snapshot returns the current registry view.
func (h *Handle) Snapshot() *Registry {
	return h.p.Load()
}

// Swap installs a reloaded registry and returns the previous one.
func (h *Handle) Swap(r *Registry) *Registry {
	return h.p.Swap(r)
}
