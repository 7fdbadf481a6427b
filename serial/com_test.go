package serial

import (
	"testing"
)

func TestGetCommandFraming(t *testing.T) {
	cmd := GetCommand(7, []byte("A"))
	if string(cmd) != "@07A\r" {
		t.Fatalf("got %q", string(cmd))
	}
	cmd = GetCommand(42, []byte("V"))
	if string(cmd) != "@42V\r" {
		t.Fatalf("got %q", string(cmd))
	}
}

func TestParseCountsSingle(t *testing.T) {
	counts, err := parseCounts("A00123456|")
	if err != nil {
		t.Fatal(err)
	}
	if len(counts) != 1 || counts[0] != 123456 {
		t.Fatalf("got %v", counts)
	}
}

func TestParseCountsMultiChannel(t *testing.T) {
	counts, err := parseCounts("A00000100|00000250|00000075|")
	if err != nil {
		t.Fatal(err)
	}
	if len(counts) != 3 || counts[1] != 250 {
		t.Fatalf("got %v", counts)
	}
}

func TestParseCountsBare(t *testing.T) {
	counts, err := parseCounts("00000042")
	if err != nil {
		t.Fatal(err)
	}
	if len(counts) != 1 || counts[0] != 42 {
		t.Fatalf("got %v", counts)
	}
}

func TestParseCountsGarbage(t *testing.T) {
	if _, err := parseCounts(""); err == nil {
		t.Fatal("empty reply should fail")
	}
	if _, err := parseCounts("Axx|yy|"); err == nil {
		t.Fatal("non-numeric reply should fail")
	}
}
