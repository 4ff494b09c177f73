package model

import "testing"

func TestMiningTableApproximateMatch(t *testing.T) {
	tbl := NewMiningTable()
	tbl.Append(Row{Time: 0, X: 100, Y: 200, Z: 1500, Property: "Temperature", Value: 65})
	tbl.Append(Row{Time: 0, X: 100, Y: 200, Z: Undefined, Property: "Pressure", Reservoir: "Res1", Value: 21})

	tests := []struct {
		name    string
		q       Query
		want    int
		wantHit bool
	}{
		{"exact", Query{Time: 0, X: 100, Y: 200, Z: 1500, Property: "Temperature"}, 0, true},
		{"within epsilon", Query{Time: 0, X: 100 + Epsilon/2, Y: 200, Z: 1500, Property: "temperature"}, 0, true},
		{"outside epsilon", Query{Time: 0, X: 100.1, Y: 200, Z: 1500, Property: "Temperature"}, -1, false},
		{"undefined column ignored", Query{Time: 0, X: 100, Y: 200, Z: Undefined, Property: "Pressure", Reservoir: "Res1"}, 1, true},
		{"discriminator mismatch", Query{Time: 0, X: 100, Y: 200, Z: Undefined, Property: "Pressure", Reservoir: "Res2"}, -1, false},
		{"row column undefined", Query{Time: 0, X: 100, Y: 200, Z: 10, Property: "Pressure"}, -1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tbl.Find(tt.q)
			if ok != tt.wantHit || got != tt.want {
				t.Fatalf("Find() = %d, %v; want %d, %v", got, ok, tt.want, tt.wantHit)
			}
		})
	}
}

func TestMiningTableCachesRowIndex(t *testing.T) {
	tbl := NewMiningTable()
	q := Query{Time: 0, X: 1, Y: 2, Z: 3, Property: "Vr"}
	if tbl.Cached(q) {
		t.Fatalf("fresh table should have no cache")
	}
	i := tbl.Request(q, -1)
	if j := tbl.Request(q, -1); j != i {
		t.Fatalf("second request added a row: %d != %d", j, i)
	}
	if !tbl.Cached(q) {
		t.Fatalf("row index not cached after lookup")
	}
	tbl.SetValue(i, 0.7)
	if v, ok := tbl.Value(i); !ok || v != 0.7 {
		t.Fatalf("Value() = %v, %v", v, ok)
	}
	if tbl.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", tbl.Len())
	}
}

func TestDomainContains(t *testing.T) {
	d := Domain{XMin: 0, XMax: 10, YMin: 0, YMax: 10, ZMin: 0, ZMax: 5000, AgeMax: 100}
	if !d.Contains(5, 5, 100) {
		t.Errorf("point inside reported outside")
	}
	if d.Contains(11, 5, 100) {
		t.Errorf("point outside reported inside")
	}
	if d.ContainsAge(-1) || !d.ContainsAge(50) {
		t.Errorf("age range check wrong")
	}
}
