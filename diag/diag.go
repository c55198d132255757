// Package diag renders a page-utilization chart for a tree: one bar per
// live page showing entries/fanout, leaves and nodes in different
// colors. It is the gonum/plot counterpart to btree.Snapshot's text
// dump — grounded on the teacher's go.mod, which already requires
// gonum.org/v1/plot directly (the teacher's own benchmark.go uses it,
// just for throughput-over-time line charts rather than a structural
// view of the tree).
package diag

import (
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/kvindex/btreekv/pagefmt"
)

// PageSample is one page's utilization, as reported by a tree walk.
type PageSample struct {
	Addr    pagefmt.Address
	IsLeaf  bool
	Entries int
	Fanout  int
}

// UtilizationChart renders samples as a bar chart of entries/fanout
// (0..1) per page, ordered by address, and writes it to path. The
// extension of path (".png", ".svg", ...) selects the output format, per
// gonum/plot's own convention.
func UtilizationChart(samples []PageSample, fanout int, path string) error {
	p := plot.New()
	p.Title.Text = "page utilization"
	p.Y.Label.Text = "entries / fanout"
	p.Y.Min = 0
	p.Y.Max = 1

	leafVals := make(plotter.Values, 0, len(samples))
	nodeVals := make(plotter.Values, 0, len(samples))
	for _, s := range samples {
		util := float64(s.Entries) / float64(fanout)
		if s.IsLeaf {
			leafVals = append(leafVals, util)
		} else {
			nodeVals = append(nodeVals, util)
		}
	}

	if len(leafVals) > 0 {
		bars, err := plotter.NewBarChart(leafVals, vg.Points(4))
		if err != nil {
			return err
		}
		bars.Color = color.RGBA{R: 0x2b, G: 0x8c, B: 0xbe, A: 0xff}
		p.Add(bars)
		p.Legend.Add("leaves", bars)
	}
	if len(nodeVals) > 0 {
		bars, err := plotter.NewBarChart(nodeVals, vg.Points(4))
		if err != nil {
			return err
		}
		bars.Color = color.RGBA{R: 0xe6, G: 0x9f, B: 0x00, A: 0xff}
		p.Add(bars)
		p.Legend.Add("nodes", bars)
	}

	return p.Save(8*vg.Inch, 4*vg.Inch, path)
}
