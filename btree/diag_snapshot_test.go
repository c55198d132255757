package btree_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kvindex/btreekv/kvcodec"
)

func TestSnapshotWritesHeaderAndPageDumps(t *testing.T) {
	p, codec := fanout4(t)
	tr := openTree(t, p, codec)
	for k := int64(1); k <= 9; k++ {
		if err := tr.Add(kvcodec.Int64Key(k), val(t, codec, "v")); err != nil {
			t.Fatalf("Add(%d): %v", k, err)
		}
	}

	dir := t.TempDir()
	if err := tr.Snapshot(dir, 0); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "pp_header.ansi")); err != nil {
		t.Errorf("pp_header.ansi missing: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) < 2 {
		t.Errorf("Snapshot produced %d files, want at least a header plus one page dump", len(entries))
	}
}

func TestUtilizationChartOverTree(t *testing.T) {
	p, codec := fanout4(t)
	tr := openTree(t, p, codec)
	for k := int64(1); k <= 17; k++ {
		if err := tr.Add(kvcodec.Int64Key(k), val(t, codec, "v")); err != nil {
			t.Fatalf("Add(%d): %v", k, err)
		}
	}

	path := filepath.Join(t.TempDir(), "util.png")
	if err := tr.UtilizationChart(path); err != nil {
		t.Fatalf("UtilizationChart: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() == 0 {
		t.Error("chart output is empty")
	}
}
