package btree

import (
	"github.com/kvindex/btreekv/diag"
	"github.com/kvindex/btreekv/pagefmt"
)

// UtilizationChart walks every live page and renders diag's
// entries/fanout bar chart to path.
func (t *Btree) UtilizationChart(path string) error {
	var samples []diag.PageSample
	err := t.s.Iter(func(addr pagefmt.Address, buf []byte) error {
		kind, err := pagefmt.ReadKind(buf)
		if err != nil {
			return err
		}
		samples = append(samples, diag.PageSample{
			Addr:    addr,
			IsLeaf:  kind.IsLeaf(),
			Entries: pagefmt.ReadCount(buf),
			Fanout:  t.s.Params().Fanout,
		})
		return nil
	})
	if err != nil {
		return err
	}
	return diag.UtilizationChart(samples, t.s.Params().Fanout, path)
}
