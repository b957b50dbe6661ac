package domain

import (
	"testing"
	"time"
)

func TestRemoveExpired(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)
	future := now.Add(time.Hour)

	tests := []struct {
		name     string
		stored   *StatModifier
		source   string
		want     bool
		wantLeft int
	}{
		{name: "missing", source: "potion", want: false},
		{name: "expired", stored: &StatModifier{StatID: "strength", SourceID: "potion", ExpireAt: &past}, source: "potion", want: true},
		{name: "replaced by fresh", stored: &StatModifier{StatID: "strength", SourceID: "potion", ExpireAt: &future}, source: "potion", want: false, wantLeft: 1},
		{name: "replaced by permanent", stored: &StatModifier{StatID: "strength", SourceID: "potion"}, source: "potion", want: false, wantLeft: 1},
		{name: "other source", stored: &StatModifier{StatID: "strength", SourceID: "other", ExpireAt: &past}, source: "potion", want: false, wantLeft: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := NewPlayerStatState()
			if tt.stored != nil {
				st.PutModifier(*tt.stored)
			}
			if got := st.RemoveExpired("strength", tt.source, now); got != tt.want {
				t.Fatalf("RemoveExpired = %v, want %v", got, tt.want)
			}
			if left := len(st.Modifiers("strength")); left != tt.wantLeft {
				t.Fatalf("%d modifiers left, want %d", left, tt.wantLeft)
			}
		})
	}
}

func TestRemoveExpiredKeepsReplacementFromSnapshot(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	st := NewPlayerStatState()
	st.PutModifier(StatModifier{StatID: "strength", SourceID: "potion", Value: 1, ExpireAt: &past})
	snapshot := st.Modifiers("strength")
	st.PutModifier(StatModifier{StatID: "strength", SourceID: "potion", Value: 5, ExpireAt: &future})

	for _, m := range snapshot {
		if m.Expired(now) && st.RemoveExpired("strength", m.SourceID, now) {
			t.Fatalf("evicted the fresh modifier")
		}
	}
	mods := st.Modifiers("strength")
	if len(mods) != 1 || mods[0].Value != 5 {
		t.Fatalf("modifiers = %+v, want the fresh one", mods)
	}
}
