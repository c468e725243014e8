package fancontrol

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseTempC(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"52345\n", 52.345},
		{"52", 52},
		{" 41000 ", 41},
	}
	for _, tc := range cases {
		got, err := parseTempC(tc.in)
		if err != nil {
			t.Fatalf("parseTempC(%q): %v", tc.in, err)
		}
		if got < tc.want-0.001 || got > tc.want+0.001 {
			t.Fatalf("parseTempC(%q)=%v want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseTempC_Errors(t *testing.T) {
	for _, in := range []string{"\n", "warm"} {
		if _, err := parseTempC(in); err == nil {
			t.Fatalf("parseTempC(%q): expected error", in)
		}
	}
}

func TestReadTempC(t *testing.T) {
	p := filepath.Join(t.TempDir(), "temp")
	if err := os.WriteFile(p, []byte("42000\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	v, err := ReadTempC(p)
	if err != nil {
		t.Fatalf("ReadTempC: %v", err)
	}
	if v != 42.0 {
		t.Fatalf("v=%v want 42", v)
	}
	if _, err := ReadTempC(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
