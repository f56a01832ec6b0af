package featureflags

import "testing"

func TestEnabled_BooleanValues(t *testing.T) {
	m := NewManager("a=on,b=off,c=true,d=false,e=1,f=0")

	if !m.Enabled("a", -100123) || !m.Enabled("c", -100123) || !m.Enabled("e", -100123) {
		t.Fatal("expected enabled boolean values to evaluate true")
	}
	if m.Enabled("b", -100123) || m.Enabled("d", -100123) || m.Enabled("f", -100123) {
		t.Fatal("expected disabled boolean values to evaluate false")
	}
	if m.Enabled("missing", -100123) {
		t.Fatal("unknown flags must be disabled")
	}
}

func TestEnabled_PercentageValues(t *testing.T) {
	m := NewManager("always=100%,never=0%,canary=25%,broken=x%")

	if !m.Enabled("always", -1) {
		t.Fatal("100% rollout should always be enabled")
	}
	if m.Enabled("never", -1) {
		t.Fatal("0% rollout should always be disabled")
	}
	if m.Enabled("broken", -1) {
		t.Fatal("unparseable percentage should be disabled")
	}

	first := m.Enabled("canary", -100500)
	for i := 0; i < 5; i++ {
		if got := m.Enabled("canary", -100500); got != first {
			t.Fatal("rollout evaluation must be deterministic per chat")
		}
	}

	if m.Enabled("canary", 0) {
		t.Fatal("percentage rollout requires a non-zero chat id")
	}
}

func TestEnabled_RolloutSpreadsAcrossChats(t *testing.T) {
	m := NewManager("canary=50%")
	on := 0
	for id := int64(-1000); id < 0; id++ {
		if m.Enabled("canary", id) {
			on++
		}
	}
	if on == 0 || on == 1000 {
		t.Fatalf("expected a partial rollout, got %d of 1000 chats", on)
	}
}

func TestNilManager(t *testing.T) {
	var m *Manager
	if m.Enabled(DeleteNotice, 1) {
		t.Fatal("nil manager must report every flag disabled")
	}
	if len(m.Raw()) != 0 || len(m.Names()) != 0 {
		t.Fatal("nil manager has no flags")
	}
	if m.Raw() == nil {
		t.Fatal("nil manager must return an empty, non-nil raw map")
	}
	if len(m.Snapshot(1)) != 0 {
		t.Fatal("nil manager snapshot must be empty")
	}
}

func TestParseAndSnapshot(t *testing.T) {
	m := NewManager(" bad ,x=on, y = 20% ,Z=off ")

	raw := m.Raw()
	if len(raw) != 3 {
		t.Fatalf("expected 3 parsed flags, got %d", len(raw))
	}
	if raw["x"] != "on" || raw["y"] != "20%" || raw["z"] != "off" {
		t.Fatalf("unexpected raw flags: %#v", raw)
	}

	names := m.Names()
	if len(names) != 3 || names[0] != "x" || names[2] != "z" {
		t.Fatalf("unexpected names: %v", names)
	}

	snap := m.Snapshot(123)
	if len(snap) != 3 || !snap["x"] || snap["z"] {
		t.Fatalf("unexpected snapshot: %#v", snap)
	}
}
