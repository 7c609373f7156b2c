package keys

import (
	"regexp"
	"strings"
	"testing"
)

var keyShape = regexp.MustCompile(`^digipin:[a-z0-9_.]+:[A-Z0-9_.]*:v=[A-Za-z0-9_.]+:h=[0-9a-f]{16}$`)

func TestKey_SpellingsOfSameCodeShareKey(t *testing.T) {
	k1 := Key("cell", "4P3-JM8-K4L6", "1")
	k2 := Key(" CELL ", "4p3jm8k4l6", "1")
	if k1 != k2 {
		t.Fatalf("keys differ:\n k1=%s\n k2=%s", k1, k2)
	}
	if !keyShape.MatchString(k1) {
		t.Fatalf("unexpected key shape: %s", k1)
	}
	if !strings.HasPrefix(k1, "digipin:cell:4P3JM8K4L6:v=1:") {
		t.Fatalf("unexpected key: %s", k1)
	}
}

func TestKey_VersionAndKindSeparateEntries(t *testing.T) {
	base := Key("cell", "4P3JM8K4L6", "1")
	if Key("cell", "4P3JM8K4L6", "2") == base {
		t.Fatal("version must change key")
	}
	if Key("h3", "4P3JM8K4L6", "1") == base {
		t.Fatal("kind must change key")
	}
	if Key("cell", "4P3JM8K4L7", "1") == base {
		t.Fatal("code must change key")
	}
}

func TestKey_SanitizesHostileInput(t *testing.T) {
	k := Key("cell kind", "4P3 JM8\nK4L6*", "")
	if !keyShape.MatchString(k) {
		t.Fatalf("unsafe key: %q", k)
	}
	if !strings.Contains(k, ":v=0:") {
		t.Fatalf("empty version should default to 0: %s", k)
	}
}
