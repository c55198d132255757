// Package btree is the top-level orchestration spec §4.4 describes: it
// owns a Store and drives Leaf/Node descent, split propagation on Add,
// merge propagation on Remove, full-tree iteration, bulk load, and the
// process-wide instance cache. It is grounded on the teacher's
// dbms/index/btree/btree.go Insert/Delete/Get/Range — the same recursive
// descent-with-propagation shape, generalized from btree.go's single
// hardcoded page format to the Leaf/Node pair this repo factors the page
// format into.
package btree

import (
	"log"
	"sync"
	"time"

	"github.com/kvindex/btreekv/errs"
	"github.com/kvindex/btreekv/kvcodec"
	"github.com/kvindex/btreekv/leaf"
	"github.com/kvindex/btreekv/metrics"
	"github.com/kvindex/btreekv/node"
	"github.com/kvindex/btreekv/pagefmt"
	"github.com/kvindex/btreekv/params"
	"github.com/kvindex/btreekv/store"
)

// Btree is a handle on one on-disk tree.
type Btree struct {
	s     *store.Store
	codec kvcodec.Codec
	stats metrics.StatsSink

	// path is the root directory the tree was opened from; the instance
	// cache below keys on it so repeated opens of the same tree share one
	// Store and Btree instead of racing two independent page caches
	// against the same file (spec §5, "Process-wide handle sharing").
	path string
}

// Option configures Open/Init.
type Option func(*Btree)

// WithStats attaches a StatsSink; every Add/Remove/Find/Iter records
// through it.
func WithStats(sink metrics.StatsSink) Option {
	return func(t *Btree) { t.stats = sink }
}

var (
	instancesMu sync.Mutex
	instances   = map[string]*instanceEntry{}
)

type instanceEntry struct {
	tree     *Btree
	refcount int
}

// Open returns a handle on the tree rooted at rootDir, creating it if
// absent. Repeated Open calls for the same rootDir (resolved by the
// caller to a canonical path) return the same *Btree and bump a
// refcount; Close decrements it and only actually closes the Store once
// the count reaches zero (spec §5's instance-sharing requirement).
func Open(rootDir string, p *params.Params, codec kvcodec.Codec, cacheCapacity int, opts ...Option) (*Btree, error) {
	instancesMu.Lock()
	defer instancesMu.Unlock()

	if e, ok := instances[rootDir]; ok {
		e.refcount++
		return e.tree, nil
	}

	s, err := store.Init(rootDir, p, cacheCapacity)
	if err != nil {
		return nil, err
	}
	t := &Btree{s: s, codec: codec, path: rootDir}
	for _, o := range opts {
		o(t)
	}
	instances[rootDir] = &instanceEntry{tree: t, refcount: 1}
	return t, nil
}

// Close releases this handle. The backing Store is flushed and closed
// only when the last outstanding handle for this tree's path is closed.
func (t *Btree) Close() error {
	instancesMu.Lock()
	defer instancesMu.Unlock()

	e, ok := instances[t.path]
	if !ok {
		return errs.ProgrammerError("Close called on a tree not tracked by the instance cache")
	}
	e.refcount--
	if e.refcount > 0 {
		return nil
	}
	delete(instances, t.path)
	return t.s.Close()
}

func (t *Btree) debugf(format string, args ...interface{}) {
	if t.s.Params().Debug {
		log.Printf("btree: "+format, args...)
	}
}

func (t *Btree) record(op string, start time.Time) {
	if t.stats == nil {
		return
	}
	t.stats.IncOp(op)
	t.stats.ObserveLatencySeconds(op, time.Since(start).Seconds())
	t.stats.SetPageCount(t.s.PageCount())
	t.stats.SetCacheResident(t.s.CacheResident())
}

func (t *Btree) rootDepth() (int, error) {
	buf, err := t.s.Load(t.s.Root())
	if err != nil {
		return 0, err
	}
	kind, err := pagefmt.ReadKind(buf)
	t.s.ReleaseRO()
	if err != nil {
		return 0, err
	}
	return kind.Depth(), nil
}

// Find returns the value bound to k, or errs.ErrNotFound.
func (t *Btree) Find(k kvcodec.Key) (kvcodec.Value, error) {
	start := time.Now()
	defer t.record("find", start)
	defer t.s.ReleaseRO()

	lf, err := t.leafFor(k)
	if err != nil {
		return nil, err
	}
	return lf.Find(k)
}

// Mem reports whether k is present.
func (t *Btree) Mem(k kvcodec.Key) (bool, error) {
	start := time.Now()
	defer t.record("mem", start)
	defer t.s.ReleaseRO()

	lf, err := t.leafFor(k)
	if err != nil {
		return false, err
	}
	return lf.Mem(k), nil
}

func (t *Btree) leafFor(k kvcodec.Key) (*leaf.Leaf, error) {
	depth, err := t.rootDepth()
	if err != nil {
		return nil, err
	}
	addr := t.s.Root()
	for depth > 0 {
		nd, err := node.Load(t.s, addr, t.codec)
		if err != nil {
			return nil, err
		}
		addr = nd.Find(k)
		depth--
	}
	return leaf.Load(t.s, addr, t.codec)
}

// Add inserts or replaces the binding for k, splitting and growing the
// root as needed (spec §4.4 insert-with-propagation).
func (t *Btree) Add(k kvcodec.Key, v kvcodec.Value) error {
	start := time.Now()
	defer t.record("add", start)
	defer t.s.Release()

	depth, err := t.rootDepth()
	if err != nil {
		return err
	}
	promoted, newAddr, hasNew, err := t.insert(t.s.Root(), depth, k, v)
	if err != nil {
		return err
	}
	if hasNew {
		newRoot, err := node.Create(t.s, t.codec, depth+1)
		if err != nil {
			return err
		}
		newRoot.Add(t.codec.MinKey(), t.s.Root())
		newRoot.Add(promoted, newAddr)
		t.s.Reroot(newRoot.SelfAddress())
		t.debugf("root grew to depth %d", depth+1)
	}
	return nil
}

func (t *Btree) insert(addr pagefmt.Address, depth int, k kvcodec.Key, v kvcodec.Value) (promoted kvcodec.Key, newAddr pagefmt.Address, hasNew bool, err error) {
	if depth == 0 {
		lf, err := leaf.Load(t.s, addr, t.codec)
		if err != nil {
			return nil, 0, false, err
		}
		lf.Add(k, v)
		if !lf.Overflow() {
			return nil, 0, false, nil
		}
		promoted, newLeaf, err := lf.Split()
		if err != nil {
			return nil, 0, false, err
		}
		if t.stats != nil {
			t.stats.IncSplit("leaf")
		}
		return promoted, newLeaf.SelfAddress(), true, nil
	}

	nd, err := node.Load(t.s, addr, t.codec)
	if err != nil {
		return nil, 0, false, err
	}
	childAddr := nd.Find(k)
	childPromoted, childNewAddr, childHasNew, err := t.insert(childAddr, depth-1, k, v)
	if err != nil {
		return nil, 0, false, err
	}
	if !childHasNew {
		return nil, 0, false, nil
	}
	nd.Add(childPromoted, childNewAddr)
	if !nd.Overflow() {
		return nil, 0, false, nil
	}
	promoted, newNode, err := nd.Split()
	if err != nil {
		return nil, 0, false, err
	}
	if t.stats != nil {
		t.stats.IncSplit("node")
	}
	return promoted, newNode.SelfAddress(), true, nil
}

// Remove deletes k if present; a no-op otherwise (spec §4.4
// remove-with-propagation, root shrink when the root node decays to a
// single child).
func (t *Btree) Remove(k kvcodec.Key) error {
	start := time.Now()
	defer t.record("remove", start)
	defer t.s.Release()

	depth, err := t.rootDepth()
	if err != nil {
		return err
	}
	if _, err := t.remove(t.s.Root(), depth, k); err != nil {
		return err
	}
	if depth == 0 {
		return nil
	}
	nd, err := node.Load(t.s, t.s.Root(), t.codec)
	if err != nil {
		return err
	}
	if nd.Length() == 1 {
		_, childAddr := nd.First()
		t.s.Reroot(childAddr)
		if err := t.s.Free(nd.SelfAddress()); err != nil {
			return err
		}
		t.debugf("root shrank to depth %d", depth-1)
	}
	return nil
}

func (t *Btree) remove(addr pagefmt.Address, depth int, k kvcodec.Key) (underflowed bool, err error) {
	if depth == 0 {
		lf, err := leaf.Load(t.s, addr, t.codec)
		if err != nil {
			return false, err
		}
		lf.Remove(k)
		return lf.Underflow(), nil
	}

	nd, err := node.Load(t.s, addr, t.codec)
	if err != nil {
		return false, err
	}
	res := nd.FindWithNeighbour(k)
	childUnderflowed, err := t.remove(res.MainAddr, depth-1, k)
	if err != nil {
		return false, err
	}
	if !childUnderflowed || !res.HasNeighbour {
		return nd.Underflow(), nil
	}

	var leftAddr, rightAddr pagefmt.Address
	var rightOldKey kvcodec.Key
	if res.Order == node.Higher {
		leftAddr, rightAddr = res.MainAddr, res.NeighbourAddr
		rightOldKey = res.NeighbourKey
	} else {
		leftAddr, rightAddr = res.NeighbourAddr, res.MainAddr
		rightOldKey = res.MainKey
	}

	total, newRightLeftmost, kind, err := t.mergeChildren(depth-1, leftAddr, rightAddr, rightOldKey)
	if err != nil {
		return false, err
	}
	if t.stats != nil {
		t.stats.IncMerge(kind, !total)
	}
	if total {
		nd.Remove(rightOldKey)
	} else if err := nd.Replace(rightOldKey, newRightLeftmost); err != nil {
		return false, err
	}
	return nd.Underflow(), nil
}

// mergeChildren merges the page at rightAddr into leftAddr, both at the
// given depth (0 = leaf). rightLeftmost is the parent's current separator
// for rightAddr — the only source of rightAddr's real leftmost key once
// depth > 0, since a node's own slot 0 always holds the min_key sentinel
// (spec §3/§8), not its real leftmost. It reports whether the right page
// was fully absorbed (kind "leaf"/"node" tells the caller which Free
// already ran).
func (t *Btree) mergeChildren(depth int, leftAddr, rightAddr pagefmt.Address, rightLeftmost kvcodec.Key) (total bool, newRightLeftmost kvcodec.Key, kind string, err error) {
	if depth == 0 {
		left, err := leaf.Load(t.s, leftAddr, t.codec)
		if err != nil {
			return false, nil, "leaf", err
		}
		right, err := leaf.Load(t.s, rightAddr, t.codec)
		if err != nil {
			return false, nil, "leaf", err
		}
		outcome, err := left.Merge(right)
		if err != nil {
			return false, nil, "leaf", err
		}
		if outcome == leaf.Total {
			return true, nil, "leaf", nil
		}
		return false, right.Leftmost(), "leaf", nil
	}

	left, err := node.Load(t.s, leftAddr, t.codec)
	if err != nil {
		return false, nil, "node", err
	}
	right, err := node.Load(t.s, rightAddr, t.codec)
	if err != nil {
		return false, nil, "node", err
	}
	outcome, newLeftmost, err := left.Merge(right, rightLeftmost)
	if err != nil {
		return false, nil, "node", err
	}
	if outcome == node.Total {
		return true, nil, "node", nil
	}
	return false, newLeftmost, "node", nil
}

// Iter invokes f on every (key,value) binding in ascending key order.
func (t *Btree) Iter(f func(kvcodec.Key, kvcodec.Value) error) error {
	start := time.Now()
	defer t.record("iter", start)
	defer t.s.ReleaseRO()

	depth, err := t.rootDepth()
	if err != nil {
		return err
	}
	return t.iter(t.s.Root(), depth, f)
}

func (t *Btree) iter(addr pagefmt.Address, depth int, f func(kvcodec.Key, kvcodec.Value) error) error {
	if depth == 0 {
		lf, err := leaf.Load(t.s, addr, t.codec)
		if err != nil {
			return err
		}
		return lf.Iter(f)
	}
	nd, err := node.Load(t.s, addr, t.codec)
	if err != nil {
		return err
	}
	return nd.Iter(func(_ kvcodec.Key, childAddr pagefmt.Address) error {
		return t.iter(childAddr, depth-1, f)
	})
}

// Iteri is Iter with a 1-based incrementing counter threaded alongside
// each binding (spec §4.5).
func (t *Btree) Iteri(f func(i int, k kvcodec.Key, v kvcodec.Value) error) error {
	i := 1
	return t.Iter(func(k kvcodec.Key, v kvcodec.Value) error {
		if err := f(i, k, v); err != nil {
			return err
		}
		i++
		return nil
	})
}

// Length walks the whole tree and returns the total number of bindings.
func (t *Btree) Length() (int, error) {
	n := 0
	err := t.Iter(func(kvcodec.Key, kvcodec.Value) error {
		n++
		return nil
	})
	return n, err
}

// Flush persists every pending mutation to disk (spec §4.1/§5).
func (t *Btree) Flush() error { return t.s.Flush() }

// Clear resets the tree to an empty leaf root, discarding every binding
// (spec §4.1 Store.clear / §6 API surface). A subsequent Flush persists
// the reset.
func (t *Btree) Clear() error { return t.s.Clear() }

// Params returns the tree's configuration.
func (t *Btree) Params() *params.Params { return t.s.Params() }
