package domain

import "testing"

func TestJobValidate(t *testing.T) {
	cases := []struct {
		name    string
		job     Job
		wantErr bool
	}{
		{"valid anchor", Job{X: 8, Y: 16, Z: 5}, false},
		{"negative zoom", Job{X: 0, Y: 0, Z: -1}, true},
		{"out of range", Job{X: 999, Y: 0, Z: 2}, true},
		{"not an anchor", Job{X: 3, Y: 0, Z: 5}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.job.Validate(8, 8)
			if c.wantErr && err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !c.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestFormatBits(t *testing.T) {
	f := FormatPNG | FormatJPEG
	bits := f.Bits()
	if len(bits) != 2 {
		t.Fatalf("expected 2 bits, got %d", len(bits))
	}
	if !f.Has(FormatPNG) || !f.Has(FormatJPEG) || f.Has(FormatGIF) {
		t.Fatalf("unexpected Has() results for %v", f)
	}
}
