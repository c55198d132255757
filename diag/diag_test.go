package diag

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kvindex/btreekv/pagefmt"
)

func TestUtilizationChartWritesFile(t *testing.T) {
	samples := []PageSample{
		{Addr: 0, IsLeaf: true, Entries: 3, Fanout: 4},
		{Addr: 1, IsLeaf: true, Entries: 4, Fanout: 4},
		{Addr: 2, IsLeaf: false, Entries: 2, Fanout: 4},
	}
	path := filepath.Join(t.TempDir(), "chart.png")
	if err := UtilizationChart(samples, 4, path); err != nil {
		t.Fatalf("UtilizationChart: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat chart output: %v", err)
	}
	if info.Size() == 0 {
		t.Error("chart output file is empty")
	}
}

func TestUtilizationChartHandlesAllLeavesOrAllNodes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leaves_only.png")
	samples := []PageSample{{Addr: pagefmt.Address(0), IsLeaf: true, Entries: 2, Fanout: 4}}
	if err := UtilizationChart(samples, 4, path); err != nil {
		t.Fatalf("UtilizationChart (leaves only): %v", err)
	}
}
