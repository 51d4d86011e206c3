package logfields

import (
	"errors"
	"log/slog"
	"testing"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    slog.Attr
	}{
		{"Module", KeyModule, "src/a.css", Module("src/a.css")},
		{"RunID", KeyRunID, "r1", RunID("r1")},
		{"Stage", KeyStage, "banner", Stage("banner")},
		{"Phase", KeyPhase, "pitch", Phase("pitch")},
		{"Hash", KeyHash, "abc", Hash("abc")},
		{"Path", KeyPath, "images/x.png", Path("images/x.png")},
	}
	for _, c := range cases {
		if c.attr.Key != c.attrKey {
			t.Fatalf("%s: key mismatch got %s want %s", c.name, c.attr.Key, c.attrKey)
		}
		if c.attr.Value.String() != c.attrVal {
			t.Fatalf("%s: value mismatch got %s want %s", c.name, c.attr.Value.String(), c.attrVal)
		}
	}
}

func TestNumericHelpers(t *testing.T) {
	if a := Index(3); a.Key != KeyIndex || a.Value.Int64() != 3 {
		t.Fatalf("unexpected index attr: %v", a)
	}
	if a := Bytes(8192); a.Key != KeyBytes || a.Value.Int64() != 8192 {
		t.Fatalf("unexpected bytes attr: %v", a)
	}
	if a := DurationMS(1.5); a.Key != KeyDurationMS || a.Value.Float64() != 1.5 {
		t.Fatalf("unexpected duration attr: %v", a)
	}
}

func TestErrorHelper(t *testing.T) {
	if a := Error(nil); a.Value.String() != "" {
		t.Fatalf("nil error should produce empty value, got %q", a.Value.String())
	}
	if a := Error(errors.New("boom")); a.Key != KeyError || a.Value.String() != "boom" {
		t.Fatalf("unexpected error attr: %v", a)
	}
}
