// Snapshot is the diagnostic pretty-printer spec §4.7 calls for: one
// ANSI-colored dump per live page plus a header summary, for debugging a
// tree by eye without a debugger attached to the process. It replaces
// the teacher's shared/tree.go Print/ExportDOT, which shells out to
// `dot` to render a Graphviz PNG — there is no Graphviz dependency
// anywhere in the retrieved pack, so this reimplements the same "walk
// every page, render its entries" idea as plain ANSI-escaped text files
// instead of spawning an external renderer.
package btree

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kvindex/btreekv/kvcodec"
	"github.com/kvindex/btreekv/leaf"
	"github.com/kvindex/btreekv/node"
	"github.com/kvindex/btreekv/pagefmt"
)

const (
	ansiReset  = "\x1b[0m"
	ansiLeaf   = "\x1b[36m"   // cyan
	ansiNode   = "\x1b[33m"   // yellow
	ansiDim    = "\x1b[2m"    // dim, for addresses
	ansiBold   = "\x1b[1m"    // bold, for the root marker
)

// Snapshot writes pp_header.ansi and one pp_page_<addr>.ansi per live
// page into dir, creating it if necessary. Pages whose depth is less than
// depthThreshold are skipped (spec §4.7's snapshot(depth=0) default: pass
// 0 to dump every page).
func (t *Btree) Snapshot(dir string, depthThreshold int) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	depth, err := t.rootDepth()
	if err != nil {
		return err
	}
	n, err := t.Length()
	if err != nil {
		return err
	}
	p := t.s.Params()
	header := fmt.Sprintf(
		"%sbtreekv snapshot%s\nroot       = %s\ndepth      = %d\nentries    = %d\nkey_sz     = %d\nvalue_sz   = %d\npage_sz    = %d\nfanout     = %d\nmin_fanout = %d\n",
		ansiBold, ansiReset, t.s.Root(), depth, n, p.KeySize, p.ValueSize, p.PageSize, p.Fanout, p.MinFanout(),
	)
	if err := os.WriteFile(filepath.Join(dir, "pp_header.ansi"), []byte(header), 0o644); err != nil {
		return err
	}

	root := t.s.Root()
	return t.s.Iter(func(addr pagefmt.Address, buf []byte) error {
		kind, err := pagefmt.ReadKind(buf)
		if err != nil {
			return err
		}
		if kind.Depth() < depthThreshold {
			return nil
		}

		var sb strings.Builder
		marker := ""
		if addr == root {
			marker = ansiBold + " [root]" + ansiReset
		}

		if kind.IsLeaf() {
			lf, err := leaf.Load(t.s, addr, t.codec)
			if err != nil {
				return err
			}
			fmt.Fprintf(&sb, "%sleaf%s %s(page %s, %d entries)%s%s\n", ansiLeaf, ansiReset, ansiDim, addr, lf.Length(), ansiReset, marker)
			if err := lf.Iter(func(k kvcodec.Key, v kvcodec.Value) error {
				fmt.Fprintf(&sb, "  %v -> %v\n", k, v)
				return nil
			}); err != nil {
				return err
			}
		} else {
			nd, err := node.Load(t.s, addr, t.codec)
			if err != nil {
				return err
			}
			fmt.Fprintf(&sb, "%snode d%d%s %s(page %s, %d entries)%s%s\n", ansiNode, kind.Depth(), ansiReset, ansiDim, addr, nd.Length(), ansiReset, marker)
			if err := nd.Iter(func(k kvcodec.Key, a pagefmt.Address) error {
				fmt.Fprintf(&sb, "  %v -> page %s\n", k, a)
				return nil
			}); err != nil {
				return err
			}
		}

		return os.WriteFile(filepath.Join(dir, fmt.Sprintf("pp_page_%s.ansi", addr)), []byte(sb.String()), 0o644)
	})
}
