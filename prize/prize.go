package prize

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DrawScale is the probability scale prize weights are expressed in.
// Any mass left over after the active weights is the "no win" outcome.
const DrawScale = 10000

var ErrIndexOutOfRange = errors.New("index out of range")

// Record is one entry of the prize table.
type Record struct {
	PayoutAmount uint64 `json:"payoutAmount" yaml:"payout"`
	Weight       uint64 `json:"weight" yaml:"weight"`
	Active       bool   `json:"active" yaml:"active"`
}

// Table is the ordered prize table. Index order is draw priority order.
// Writes are lenient: the weight sum is not checked here, the draw walk copes
// with sums above or below DrawScale. Table is not safe for concurrent use;
// the owner serializes access.
type Table struct {
	records []Record
}

// NewTable returns a table holding a copy of records.
func NewTable(records []Record) *Table {
	t := &Table{records: make([]Record, len(records))}
	copy(t.records, records)
	return t
}

// DefaultTable returns the five-prize table new ledgers start with.
func DefaultTable() *Table {
	return NewTable([]Record{
		{PayoutAmount: 100, Weight: 1000, Active: true},
		{PayoutAmount: 500, Weight: 300, Active: true},
		{PayoutAmount: 1000, Weight: 100, Active: true},
		{PayoutAmount: 5000, Weight: 10, Active: true},
		{PayoutAmount: 10000, Weight: 1, Active: true},
	})
}

// Add appends an active record and returns its index.
func (t *Table) Add(payout, weight uint64) int {
	t.records = append(t.records, Record{PayoutAmount: payout, Weight: weight, Active: true})
	return len(t.records) - 1
}

// Update replaces the record at index in place.
func (t *Table) Update(index int, payout, weight uint64, active bool) error {
	if index < 0 || index >= len(t.records) {
		return fmt.Errorf("prize %d: %w", index, ErrIndexOutOfRange)
	}
	t.records[index] = Record{PayoutAmount: payout, Weight: weight, Active: active}
	return nil
}

// Get returns the record at index by value.
func (t *Table) Get(index int) (Record, error) {
	if index < 0 || index >= len(t.records) {
		return Record{}, fmt.Errorf("prize %d: %w", index, ErrIndexOutOfRange)
	}
	return t.records[index], nil
}

func (t *Table) Len() int {
	return len(t.records)
}

// Records returns a copy of the table contents.
func (t *Table) Records() []Record {
	out := make([]Record, len(t.records))
	copy(out, t.records)
	return out
}

// Clone returns an independent copy of the table.
func (t *Table) Clone() *Table {
	return NewTable(t.records)
}

// MaxActivePayout returns the largest payout any active record can produce.
func (t *Table) MaxActivePayout() uint64 {
	var max uint64
	for _, r := range t.records {
		if r.Active && r.PayoutAmount > max {
			max = r.PayoutAmount
		}
	}
	return max
}

// ActiveWeight sums the weights of active records. The result may exceed DrawScale.
func (t *Table) ActiveWeight() uint64 {
	var sum uint64
	for _, r := range t.records {
		if r.Active {
			sum += r.Weight
		}
	}
	return sum
}

// seedFile is the YAML layout accepted by LoadFile.
//
//	prizes:
//	  - payout: 100
//	    weight: 1000
//	    active: true
type seedFile struct {
	Prizes []struct {
		Payout uint64 `yaml:"payout"`
		Weight uint64 `yaml:"weight"`
		Active *bool  `yaml:"active"`
	} `yaml:"prizes"`
}

// LoadFile reads a seed prize table from a YAML file. Records without an
// explicit active flag are active.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	t := &Table{}
	for _, p := range f.Prizes {
		active := true
		if p.Active != nil {
			active = *p.Active
		}
		t.records = append(t.records, Record{PayoutAmount: p.Payout, Weight: p.Weight, Active: active})
	}
	return t, nil
}
