package geo

import "testing"

func TestInterleaveRoundTrip(t *testing.T) {
	cases := []struct{ x, y uint32 }{
		{0, 0}, {1, 0}, {0, 1}, {7, 7}, {255, 128}, {65535, 1},
	}
	for _, c := range cases {
		code := Interleave(c.x, c.y)
		x, y := Uninterleave(code)
		if x != c.x || y != c.y {
			t.Errorf("Interleave/Uninterleave(%d,%d) round-trip got (%d,%d)", c.x, c.y, x, y)
		}
	}
}

func TestMetaOffset(t *testing.T) {
	if off := MetaOffset(8, 8, 8); off != 0 {
		t.Errorf("expected anchor offset 0, got %d", off)
	}
	if off := MetaOffset(15, 15, 8); off != 63 {
		t.Errorf("expected last offset 63, got %d", off)
	}
}
