package dbtypes

import "testing"

func TestStringListScan(t *testing.T) {
	cases := []struct {
		name string
		src  any
		want int
	}{
		{name: "nil", src: nil, want: 0},
		{name: "empty string", src: "", want: 0},
		{name: "json string", src: `["a.jpg","b.jpg"]`, want: 2},
		{name: "json bytes", src: []byte(`["a.jpg"]`), want: 1},
		{name: "json null", src: "null", want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var l StringList
			if err := l.Scan(tc.src); err != nil {
				t.Fatalf("scan: %v", err)
			}
			if l == nil || len(l) != tc.want {
				t.Fatalf("expected %d items, got %#v", tc.want, l)
			}
		})
	}
}

func TestStringListScanRejectsUnknownType(t *testing.T) {
	var l StringList
	if err := l.Scan(42); err == nil {
		t.Fatal("expected error for int source")
	}
}

func TestStringListValue(t *testing.T) {
	v, err := StringList(nil).Value()
	if err != nil || v != "[]" {
		t.Fatalf("expected empty array literal, got %v (%v)", v, err)
	}
	v, err = StringList{"x"}.Value()
	if err != nil || v != `["x"]` {
		t.Fatalf("unexpected value %v (%v)", v, err)
	}
}
