package prize

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultTable(t *testing.T) {
	tbl := DefaultTable()
	if tbl.Len() != 5 {
		t.Fatalf("expected 5 prizes, got %d", tbl.Len())
	}
	first, _ := tbl.Get(0)
	if first.PayoutAmount != 100 || first.Weight != 1000 || !first.Active {
		t.Errorf("prize 0: %+v", first)
	}
	last, _ := tbl.Get(4)
	if last.PayoutAmount != 10000 || last.Weight != 1 || !last.Active {
		t.Errorf("prize 4: %+v", last)
	}
	if got := tbl.MaxActivePayout(); got != 10000 {
		t.Errorf("MaxActivePayout = %d want 10000", got)
	}
	if got := tbl.ActiveWeight(); got != 1411 {
		t.Errorf("ActiveWeight = %d want 1411", got)
	}
}

func TestAddAppendsActiveRecord(t *testing.T) {
	tbl := NewTable(nil)
	if idx := tbl.Add(2000, 25); idx != 0 {
		t.Fatalf("first add returned index %d", idx)
	}
	if idx := tbl.Add(300, 20000); idx != 1 {
		t.Fatalf("second add returned index %d", idx)
	}
	r, err := tbl.Get(1)
	if err != nil {
		t.Fatal(err)
	}
	// Weights above the draw scale are accepted at write time.
	if r.Weight != 20000 || !r.Active {
		t.Errorf("got %+v", r)
	}
}

func TestUpdateInPlace(t *testing.T) {
	tbl := DefaultTable()
	if err := tbl.Update(0, 150, 800, false); err != nil {
		t.Fatal(err)
	}
	r, _ := tbl.Get(0)
	if r.PayoutAmount != 150 || r.Weight != 800 || r.Active {
		t.Errorf("got %+v", r)
	}
	if tbl.Len() != 5 {
		t.Errorf("update changed table length to %d", tbl.Len())
	}
	if got := tbl.MaxActivePayout(); got != 10000 {
		t.Errorf("MaxActivePayout = %d", got)
	}
}

func TestIndexOutOfRange(t *testing.T) {
	tbl := DefaultTable()
	if _, err := tbl.Get(5); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("Get(5) err = %v", err)
	}
	if _, err := tbl.Get(-1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("Get(-1) err = %v", err)
	}
	if err := tbl.Update(10, 1, 1, true); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("Update(10) err = %v", err)
	}
}

func TestRecordsIsACopy(t *testing.T) {
	tbl := DefaultTable()
	recs := tbl.Records()
	recs[0].PayoutAmount = 1
	r, _ := tbl.Get(0)
	if r.PayoutAmount != 100 {
		t.Error("mutating Records() result changed the table")
	}
	clone := tbl.Clone()
	clone.Add(1, 1)
	if tbl.Len() != 5 {
		t.Error("mutating a clone changed the table")
	}
}

func TestMaxActivePayoutIgnoresInactive(t *testing.T) {
	tbl := NewTable([]Record{
		{PayoutAmount: 50, Weight: 10, Active: true},
		{PayoutAmount: 900, Weight: 10, Active: false},
	})
	if got := tbl.MaxActivePayout(); got != 50 {
		t.Errorf("MaxActivePayout = %d want 50", got)
	}
	if got := tbl.ActiveWeight(); got != 10 {
		t.Errorf("ActiveWeight = %d want 10", got)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prizes.yaml")
	data := []byte(`prizes:
  - payout: 100
    weight: 1000
  - payout: 7000
    weight: 5
    active: false
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	tbl, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Len() != 2 {
		t.Fatalf("loaded %d prizes", tbl.Len())
	}
	first, _ := tbl.Get(0)
	second, _ := tbl.Get(1)
	if !first.Active || second.Active {
		t.Errorf("active flags: %+v %+v", first, second)
	}
	if second.PayoutAmount != 7000 || second.Weight != 5 {
		t.Errorf("second: %+v", second)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
