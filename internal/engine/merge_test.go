package engine

import (
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/abhishekshukla9956/chatclient/internal/model"
)

func msg(id int64, text string) model.Message {
	return model.Message{ID: id, Text: text}
}

func pend(text string) *model.PendingMessage {
	return &model.PendingMessage{LocalKey: uuid.Must(uuid.NewV4()), Text: text}
}

func TestMerge_ServerOrderPreserved(t *testing.T) {
	t.Parallel()
	out := merge([]model.Message{msg(3, "a"), msg(1, "b"), msg(7, "c")}, nil, nil)
	if len(out) != 3 {
		t.Fatalf("want 3 entries, got %d", len(out))
	}
	for i, want := range []int64{3, 1, 7} {
		if out[i].Msg == nil || out[i].Msg.ID != want {
			t.Fatalf("entry %d: want id %d, got %+v", i, want, out[i])
		}
	}
}

func TestMerge_DeduplicatesByID(t *testing.T) {
	t.Parallel()
	out := merge([]model.Message{msg(1, "a"), msg(2, "b"), msg(1, "dup")}, nil, nil)
	if len(out) != 2 {
		t.Fatalf("want dedupe to 2 entries, got %d", len(out))
	}
	if out[0].Msg.Text != "a" {
		t.Fatalf("first occurrence must win, got %q", out[0].Msg.Text)
	}
}

func TestMerge_ShadowedDropped(t *testing.T) {
	t.Parallel()
	shadowed := func(id int64) bool { return id == 2 }
	out := merge([]model.Message{msg(1, "a"), msg(2, "b"), msg(3, "c")}, nil, shadowed)
	if len(out) != 2 {
		t.Fatalf("want 2 entries after shadow drop, got %d", len(out))
	}
	for _, e := range out {
		if e.Msg.ID == 2 {
			t.Fatalf("shadow-deleted id must not appear")
		}
	}
}

func TestMerge_PendingAppendedInCreationOrder(t *testing.T) {
	t.Parallel()
	p1, p2 := pend("first"), pend("second")
	out := merge([]model.Message{msg(1, "a")}, []*model.PendingMessage{p1, p2}, nil)
	if len(out) != 3 {
		t.Fatalf("want 3 entries, got %d", len(out))
	}
	if !out[0].Confirmed() {
		t.Fatalf("confirmed messages must precede pending sends")
	}
	if out[1].Pending != p1 || out[2].Pending != p2 {
		t.Fatalf("pending order not preserved: %+v", out[1:])
	}
}

func TestMerge_EmptyInputs(t *testing.T) {
	t.Parallel()
	if out := merge(nil, nil, nil); len(out) != 0 {
		t.Fatalf("want empty merge, got %d entries", len(out))
	}
}

func TestShadowSet_Expiry(t *testing.T) {
	t.Parallel()
	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }
	s := newShadowSet(6*time.Second, clock)

	s.add(42)
	if !s.contains(42) {
		t.Fatalf("id must be shadowed right after add")
	}

	now = now.Add(5 * time.Second)
	if !s.contains(42) {
		t.Fatalf("id must survive at least one full poll cycle")
	}

	now = now.Add(2 * time.Second)
	if s.contains(42) {
		t.Fatalf("id must expire after the retention window")
	}
	if _, ok := s.entries[42]; ok {
		t.Fatalf("expired entry must be pruned")
	}
}

func TestShadowSet_Reset(t *testing.T) {
	t.Parallel()
	s := newShadowSet(time.Minute, nil)
	s.add(1)
	s.reset()
	if s.contains(1) {
		t.Fatalf("reset must drop all entries")
	}
}
