package modern

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/CK6170/Locrunrilla-go/models"
)

const sampleConfig = `{
  "SERIAL": { "PORT": "/dev/ttyUSB0", "BAUDRATE": 115200, "COMMAND": "A" },
  "SITES": [
    { "ID": 1, "X": 0, "Y": 0 },
    { "ID": 2, "X": 100, "Y": 0 },
    { "ID": 3, "X": 50, "Y": 100 }
  ],
  "AVG": 10,
  "GUESS": { "X": 50, "Y": 30 },
  "DEBUG": false
}`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadParametersDefaults(t *testing.T) {
	p, err := LoadParameters(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatal(err)
	}
	if p.IGNORE != p.AVG {
		t.Fatalf("IGNORE should default to AVG, got %d", p.IGNORE)
	}
	if p.SCALE != models.DefaultScale {
		t.Fatalf("SCALE should default to %g, got %g", models.DefaultScale, p.SCALE)
	}
	if len(p.SITES) != 3 {
		t.Fatalf("got %d sites", len(p.SITES))
	}
}

func TestLoadParametersRejectsBadConfig(t *testing.T) {
	cases := map[string]string{
		"no serial": `{"SITES":[{"ID":1},{"ID":2}],"GUESS":{"X":0,"Y":0}}`,
		"one site":  `{"SERIAL":{"PORT":"x","BAUDRATE":9600},"SITES":[{"ID":1}],"GUESS":{"X":0,"Y":0}}`,
		"dup ids":   `{"SERIAL":{"PORT":"x","BAUDRATE":9600},"SITES":[{"ID":1},{"ID":1}],"GUESS":{"X":0,"Y":0}}`,
		"no guess":  `{"SERIAL":{"PORT":"x","BAUDRATE":9600},"SITES":[{"ID":1},{"ID":2}]}`,
		"not json":  `SERIAL=COM3`,
	}
	for name, body := range cases {
		if _, err := LoadParameters(writeConfig(t, body)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestPersistParametersRoundTrip(t *testing.T) {
	p, err := LoadParameters(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(t.TempDir(), "saved.json")
	if err := PersistParameters(out, p); err != nil {
		t.Fatal(err)
	}
	q, err := LoadParameters(out)
	if err != nil {
		t.Fatal(err)
	}
	if q.SERIAL.PORT != p.SERIAL.PORT || len(q.SITES) != len(p.SITES) || q.GUESS.X != p.GUESS.X {
		t.Fatalf("round trip mismatch: %+v vs %+v", q, p)
	}
}

func TestLocatedPath(t *testing.T) {
	cases := map[string]string{
		"config.json":       "config_located.json",
		"site_located.json": "site_located.json",
		"parameters":        "parameters_located.json",
	}
	for in, want := range cases {
		if got := LocatedPath(in); got != want {
			t.Errorf("LocatedPath(%q) = %q, want %q", in, got, want)
		}
	}
}
