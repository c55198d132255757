// Bulk load (spec §4.6): build a balanced tree bottom-up from a sorted
// Source instead of Fanout-at-a-time inserts, writing every page through
// the Store's sequential migration path. Grounded on the shape of the
// recursive depth-first subtree construction the design notes describe
// (nvertices(d) = fanout^d, sequentiate splits a flat run into per-level
// batches); the teacher has no bulk-load path to adapt directly, so the
// level-by-level construction here instead generalizes the two-phase
// "build leaves, then build each parent level over the addresses of the
// level below" technique common to the pack's LSM/ingest code
// (dbms/index/lsm/lsm.go ingests pre-sorted batches the same
// sequential-write way, just without a multi-level index to build on
// top).
package btree

import (
	"github.com/kvindex/btreekv/bulkload"
	"github.com/kvindex/btreekv/kvcodec"
	"github.com/kvindex/btreekv/pagefmt"
	"github.com/kvindex/btreekv/params"
	"github.com/kvindex/btreekv/store"
)

// Init builds a new tree at rootDir from src, which must yield pairs in
// ascending key order. Any existing content at rootDir is discarded.
func Init(rootDir string, p *params.Params, codec kvcodec.Codec, src bulkload.Source, cacheCapacity int, opts ...Option) (*Btree, error) {
	s, err := store.Init(rootDir, p, cacheCapacity)
	if err != nil {
		return nil, err
	}
	if err := s.ResetForBulkLoad(); err != nil {
		return nil, err
	}

	var keys, values [][]byte
	for {
		k, v, ok, err := src.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		keys = append(keys, k)
		values = append(values, v)
	}

	root, err := buildTree(s, p, codec, keys, values)
	if err != nil {
		return nil, err
	}
	if err := s.EndMigration(s.MigrationNext(), root); err != nil {
		return nil, err
	}

	t := &Btree{s: s, codec: codec, path: rootDir}
	for _, o := range opts {
		o(t)
	}

	instancesMu.Lock()
	instances[rootDir] = &instanceEntry{tree: t, refcount: 1}
	instancesMu.Unlock()

	return t, nil
}

// buildTree writes the leaf level and then each parent level in turn,
// returning the final root address. An empty input produces a single
// empty leaf root.
func buildTree(s *store.Store, p *params.Params, codec kvcodec.Codec, keys, values [][]byte) (pagefmt.Address, error) {
	if len(keys) == 0 {
		return s.Write(buildLeafPage(p, nil, nil))
	}

	type level struct {
		key  []byte
		addr pagefmt.Address
	}

	sizes := chunkSizes(len(keys), p.Fanout)
	cur := make([]level, 0, len(sizes))
	idx := 0
	for _, sz := range sizes {
		addr, err := s.Write(buildLeafPage(p, keys[idx:idx+sz], values[idx:idx+sz]))
		if err != nil {
			return 0, err
		}
		cur = append(cur, level{key: keys[idx], addr: addr})
		idx += sz
	}

	depth := 1
	for len(cur) > 1 {
		sizes := chunkSizes(len(cur), p.Fanout)
		next := make([]level, 0, len(sizes))
		idx := 0
		for _, sz := range sizes {
			group := cur[idx : idx+sz]
			nodeKeys := make([][]byte, sz)
			nodeAddrs := make([]pagefmt.Address, sz)
			for i, e := range group {
				nodeKeys[i] = e.key
				nodeAddrs[i] = e.addr
			}
			// The real leftmost key of this chunk is promoted upward as the
			// separator the parent level uses to route into this node; the
			// node's own slot 0 is then overwritten with the literal MinKey
			// sentinel, since every non-leaf page's leftmost key is min_key
			// (spec §3/§8), not just those on the tree's leftmost spine.
			realLeftmost := nodeKeys[0]
			nodeKeys[0] = codec.MinKey().Bytes()
			addr, err := s.Write(buildNodePage(p, depth, nodeKeys, nodeAddrs))
			if err != nil {
				return 0, err
			}
			next = append(next, level{key: realLeftmost, addr: addr})
			idx += sz
		}
		cur = next
		depth++
	}

	return cur[0].addr, nil
}

// chunkSizes splits n items into balanced groups, none exceeding fanout.
func chunkSizes(n, fanout int) []int {
	if n == 0 {
		return nil
	}
	numChunks := (n + fanout - 1) / fanout
	base := n / numChunks
	rem := n % numChunks
	sizes := make([]int, numChunks)
	for i := range sizes {
		sizes[i] = base
		if i < rem {
			sizes[i]++
		}
	}
	return sizes
}

func buildLeafPage(p *params.Params, keys, values [][]byte) []byte {
	buf := make([]byte, p.PageSize)
	pagefmt.WriteKind(buf, pagefmt.KindLeaf)
	pagefmt.WriteCount(buf, len(keys))
	slot := p.LeafSlotSize()
	for i := range keys {
		off := pagefmt.SlotOffset(i, slot)
		copy(buf[off:off+p.KeySize], keys[i])
		copy(buf[off+p.KeySize:off+p.KeySize+p.ValueSize], values[i])
	}
	return buf
}

func buildNodePage(p *params.Params, depth int, keys [][]byte, addrs []pagefmt.Address) []byte {
	buf := make([]byte, p.PageSize)
	pagefmt.WriteKind(buf, pagefmt.NodeKind(depth))
	pagefmt.WriteCount(buf, len(keys))
	slot := p.NodeSlotSize()
	for i := range keys {
		off := pagefmt.SlotOffset(i, slot)
		copy(buf[off:off+p.KeySize], keys[i])
		pagefmt.PutAddress(buf[off+p.KeySize:], addrs[i])
	}
	return buf
}
