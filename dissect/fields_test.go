package dissect

import "testing"

func TestFieldTablesWellFormed(t *testing.T) {
	seen := map[string]bool{}
	for _, f := range playerFields {
		if seen[f.name] {
			t.Fatalf("duplicate player field %q", f.name)
		}
		seen[f.name] = true
		if f.bits < 1 || f.bits > 32 {
			t.Fatalf("player field %q has bit width %d", f.name, f.bits)
		}
		if f.get == nil || f.set == nil {
			t.Fatalf("player field %q missing accessors", f.name)
		}
	}
	seen = map[string]bool{}
	for _, f := range entityFields {
		if seen[f.name] {
			t.Fatalf("duplicate entity field %q", f.name)
		}
		seen[f.name] = true
		if f.bits < 1 || f.bits > 32 {
			t.Fatalf("entity field %q has bit width %d", f.name, f.bits)
		}
	}
}

func TestFieldAccessorsCoverEveryField(t *testing.T) {
	// setting through each accessor must be observable through its getter
	for i := range playerFields {
		var ps PlayerState
		f := &playerFields[i]
		f.set(&ps, 7)
		if f.get(&ps) != 7 {
			t.Fatalf("player field %q accessor mismatch", f.name)
		}
	}
	for i := range entityFields {
		var es EntityState
		f := &entityFields[i]
		f.set(&es, 7)
		if f.get(&es) != 7 {
			t.Fatalf("entity field %q accessor mismatch", f.name)
		}
	}
}

func TestEntityTableExpandsTrajectories(t *testing.T) {
	want := []string{
		"pos.trTime", "pos.trType", "pos.trDuration",
		"pos.trBase[0]", "pos.trBase[1]", "pos.trBase[2]",
		"pos.trDelta[0]", "pos.trDelta[1]", "pos.trDelta[2]",
	}
	for i, name := range want {
		if entityFields[i].name != name {
			t.Fatalf("entity field %d = %q, want %q", i, entityFields[i].name, name)
		}
	}
}
