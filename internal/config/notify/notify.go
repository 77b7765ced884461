// Package notify delivers configuration reloads to interested components.
//
// Components subscribe either to every reload (the keymap registry, which
// rebuilds its project bindings from scratch) or to a settings path (an
// indent consumer subscribing to "indent"). Path observers receive one
// Change per changed leaf at or below their path. Delivery is synchronous
// and in subscription order.
package notify

import (
	"sort"
	"sync"

	"github.com/dshills/projconf/internal/config"
	"github.com/dshills/projconf/internal/config/layer"
)

// ChangeType represents the type of configuration change.
type ChangeType int

const (
	// ChangeAdded indicates a setting that was not set before.
	ChangeAdded ChangeType = iota

	// ChangeModified indicates a setting whose value changed.
	ChangeModified

	// ChangeRemoved indicates a setting that is no longer set.
	ChangeRemoved
)

// String returns the change type name.
func (c ChangeType) String() string {
	switch c {
	case ChangeAdded:
		return "added"
	case ChangeModified:
		return "modified"
	case ChangeRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Change represents a single changed setting.
type Change struct {
	// Path is the dot-separated path to the changed setting.
	Path string

	// Type is the type of change.
	Type ChangeType

	// OldValue is the previous value (nil for additions).
	OldValue any

	// NewValue is the new value (nil for removals).
	NewValue any

	// Source identifies what triggered the reload.
	Source string
}

// Reload describes one completed configuration load.
type Reload struct {
	// Old is the previous configuration, nil on the first load.
	Old *config.Config

	// New is the configuration now in effect.
	New *config.Config

	// Source identifies what triggered the reload (e.g. "BufEnter").
	Source string

	// Changes lists every changed leaf setting, sorted by path.
	Changes []Change
}

// ReloadObserver is called after every reload.
type ReloadObserver func(Reload)

// Observer is called for a changed setting.
type Observer func(Change)

// Subscription represents an active observer subscription.
type Subscription struct {
	id       uint64
	notifier *Notifier
}

// Unsubscribe removes this subscription.
func (s *Subscription) Unsubscribe() {
	if s.notifier != nil {
		s.notifier.unsubscribe(s.id)
	}
}

type pathObserver struct {
	path     string
	observer Observer
}

// Notifier manages configuration change subscriptions.
type Notifier struct {
	mu sync.RWMutex

	reloadObservers map[uint64]ReloadObserver
	pathObservers   map[uint64]pathObserver

	nextID uint64
}

// New creates a new Notifier.
func New() *Notifier {
	return &Notifier{
		reloadObservers: make(map[uint64]ReloadObserver),
		pathObservers:   make(map[uint64]pathObserver),
	}
}

// Subscribe registers an observer for every reload.
func (n *Notifier) Subscribe(observer ReloadObserver) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	n.reloadObservers[id] = observer

	return &Subscription{id: id, notifier: n}
}

// SubscribePath registers an observer for changes at or below path.
// For example, subscribing to "indent" receives changes to "indent.tabstop".
func (n *Notifier) SubscribePath(path string, observer Observer) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	n.pathObservers[id] = pathObserver{path: path, observer: observer}

	return &Subscription{id: id, notifier: n}
}

// NotifyReload computes the changes between old and new and delivers them.
// old may be nil for the first load.
func (n *Notifier) NotifyReload(old, new *config.Config, source string) Reload {
	r := Reload{
		Old:     old,
		New:     new,
		Source:  source,
		Changes: Diff(old, new, source),
	}
	n.Deliver(r)
	return r
}

// Deliver sends a reload to reload observers, then each change to the
// matching path observers.
func (n *Notifier) Deliver(r Reload) {
	n.mu.RLock()
	reloadIDs := sortedIDs(n.reloadObservers)
	reloads := make([]ReloadObserver, len(reloadIDs))
	for i, id := range reloadIDs {
		reloads[i] = n.reloadObservers[id]
	}
	pathIDs := sortedIDs(n.pathObservers)
	paths := make([]pathObserver, len(pathIDs))
	for i, id := range pathIDs {
		paths[i] = n.pathObservers[id]
	}
	n.mu.RUnlock()

	for _, obs := range reloads {
		obs(r)
	}
	for _, po := range paths {
		for _, c := range r.Changes {
			if po.path == c.Path || isParentPath(po.path, c.Path) {
				po.observer(c)
			}
		}
	}
}

// Diff lists the leaf settings that differ between two configurations,
// sorted by path.
func Diff(old, new *config.Config, source string) []Change {
	var oldRaw, newRaw map[string]any
	if old != nil {
		oldRaw = old.Raw()
	}
	if new != nil {
		newRaw = new.Raw()
	}

	added, modified, removed := layer.DiffMaps(oldRaw, newRaw)
	oldFlat := layer.FlattenMap(oldRaw)
	newFlat := layer.FlattenMap(newRaw)

	changes := make([]Change, 0, len(added)+len(modified)+len(removed))
	for _, p := range added {
		changes = append(changes, Change{Path: p, Type: ChangeAdded, NewValue: newFlat[p], Source: source})
	}
	for _, p := range modified {
		changes = append(changes, Change{Path: p, Type: ChangeModified, OldValue: oldFlat[p], NewValue: newFlat[p], Source: source})
	}
	for _, p := range removed {
		changes = append(changes, Change{Path: p, Type: ChangeRemoved, OldValue: oldFlat[p], Source: source})
	}
	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Path < changes[j].Path
	})
	return changes
}

// unsubscribe removes an observer by ID.
func (n *Notifier) unsubscribe(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	delete(n.reloadObservers, id)
	delete(n.pathObservers, id)
}

func sortedIDs[V any](m map[uint64]V) []uint64 {
	ids := make([]uint64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// isParentPath checks if parent is a parent path of child.
// e.g., "indent" is parent of "indent.tabstop".
func isParentPath(parent, child string) bool {
	if parent == "" {
		return true
	}
	return len(child) > len(parent) && child[:len(parent)] == parent && child[len(parent)] == '.'
}
