package model

import (
	"fmt"
	"math"
	"strings"
)

// Epsilon is the tolerance used to match mining table coordinates.
const Epsilon = 1e-5

// Row is one entry of the mining table. Numeric columns set to Undefined are
// not populated for that row.
type Row struct {
	Time      float64 `yaml:"time"`
	X         float64 `yaml:"x"`
	Y         float64 `yaml:"y"`
	Z         float64 `yaml:"z"`
	Property  string  `yaml:"property"`
	Reservoir string  `yaml:"reservoir,omitempty"`
	Value     float64 `yaml:"value"`
}

// Query selects a row. Undefined coordinates and empty strings match anything.
type Query struct {
	Time      float64
	X, Y, Z   float64
	Property  string
	Reservoir string
}

func (q Query) key() string {
	return fmt.Sprintf("%g|%g|%g|%g|%s|%s", q.Time, q.X, q.Y, q.Z, q.Property, q.Reservoir)
}

func closeEnough(want, got float64) bool {
	if IsUndefined(want) {
		return true
	}
	if IsUndefined(got) {
		return false
	}
	return math.Abs(want-got) < Epsilon
}

func (q Query) matches(r Row) bool {
	if q.Property != "" && !strings.EqualFold(q.Property, r.Property) {
		return false
	}
	if q.Reservoir != "" && q.Reservoir != r.Reservoir {
		return false
	}
	return closeEnough(q.Time, r.Time) &&
		closeEnough(q.X, r.X) &&
		closeEnough(q.Y, r.Y) &&
		closeEnough(q.Z, r.Z)
}

// MiningTable is the generic request/response table shared with the simulator.
// Rows are requested before a run with a placeholder value and filled in by the
// simulator. Lookups cache the matched row index per query.
type MiningTable struct {
	rows  []Row
	index map[string]int
}

// NewMiningTable returns an empty table.
func NewMiningTable() *MiningTable {
	return &MiningTable{index: make(map[string]int)}
}

// Len returns the number of rows.
func (t *MiningTable) Len() int { return len(t.rows) }

// Rows returns a copy of the table rows.
func (t *MiningTable) Rows() []Row {
	out := make([]Row, len(t.rows))
	copy(out, t.rows)
	return out
}

// Append adds a row and returns its index.
func (t *MiningTable) Append(r Row) int {
	t.rows = append(t.rows, r)
	return len(t.rows) - 1
}

// Request adds a row for q unless a matching row already exists, and returns
// the row index. New rows carry placeholder as value.
func (t *MiningTable) Request(q Query, placeholder float64) int {
	if i, ok := t.Find(q); ok {
		return i
	}
	return t.Append(Row{
		Time:      q.Time,
		X:         q.X,
		Y:         q.Y,
		Z:         q.Z,
		Property:  q.Property,
		Reservoir: q.Reservoir,
		Value:     placeholder,
	})
}

// Find returns the index of the first row matching q. A hit is cached so later
// reads of the same query skip the scan.
func (t *MiningTable) Find(q Query) (int, bool) {
	if t.index == nil {
		t.index = make(map[string]int)
	}
	k := q.key()
	if i, ok := t.index[k]; ok && i < len(t.rows) && q.matches(t.rows[i]) {
		return i, true
	}
	for i, r := range t.rows {
		if q.matches(r) {
			t.index[k] = i
			return i, true
		}
	}
	return -1, false
}

// Value reads the value of row i.
func (t *MiningTable) Value(i int) (float64, bool) {
	if i < 0 || i >= len(t.rows) {
		return 0, false
	}
	return t.rows[i].Value, true
}

// SetValue writes the value of row i.
func (t *MiningTable) SetValue(i int, v float64) bool {
	if i < 0 || i >= len(t.rows) {
		return false
	}
	t.rows[i].Value = v
	return true
}

// Cached reports whether q has a cached row index.
func (t *MiningTable) Cached(q Query) bool {
	_, ok := t.index[q.key()]
	return ok
}

func (t *MiningTable) clone() *MiningTable {
	c := NewMiningTable()
	c.rows = t.Rows()
	return c
}
