package conversation

import (
	"testing"

	"github.com/kissan-ai/kissan/pkg/providers"
)

func TestStore_AppendAssignsUniqueIDsInOrder(t *testing.T) {
	s := NewStore()

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := s.Append(NewUserMessage("hello", ""))
		if id == "" {
			t.Fatal("Expected non-empty ID")
		}
		if seen[id] {
			t.Fatalf("Duplicate ID %s after %d appends", id, i)
		}
		seen[id] = true
	}
	if s.Len() != 1000 {
		t.Errorf("Expected 1000 messages, got %d", s.Len())
	}
}

func TestStore_OrderIsAppendOrder(t *testing.T) {
	s := NewStore()
	userID := s.Append(NewUserMessage("my wheat leaves are yellow", ""))
	botID := s.Append(NewPlaceholder())

	msgs := s.Messages()
	if len(msgs) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].ID != userID || msgs[0].Role != RoleUser {
		t.Errorf("Expected user message first, got %+v", msgs[0])
	}
	if msgs[1].ID != botID || msgs[1].Role != RoleAssistant || !msgs[1].Pending {
		t.Errorf("Expected pending assistant second, got %+v", msgs[1])
	}
	if msgs[0].CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be set")
	}
}

func TestStore_UpdateByIDUnknownIsNoop(t *testing.T) {
	s := NewStore()
	s.Append(NewUserMessage("a", ""))
	before := s.Messages()

	called := false
	if s.UpdateByID("does-not-exist", func(m *Message) { called = true }) {
		t.Error("Expected UpdateByID to report false for unknown ID")
	}
	if called {
		t.Error("Mutator must not run for unknown ID")
	}

	after := s.Messages()
	if len(after) != len(before) || after[0].Content.Text != before[0].Content.Text {
		t.Errorf("Store changed on stale update: %+v", after)
	}
}

func TestStore_UpdateByIDOnlyTouchesTarget(t *testing.T) {
	s := NewStore()
	firstID := s.Append(NewPlaceholder())
	secondID := s.Append(NewPlaceholder())

	snapshot := s.Messages()

	ok := s.UpdateByID(secondID, func(m *Message) {
		m.Content = TextContent("resolved")
		m.Pending = false
		m.ID = "hijacked"
		m.Role = RoleUser
	})
	if !ok {
		t.Fatal("Expected update to succeed")
	}

	first, _ := s.Get(firstID)
	if !first.Pending {
		t.Error("Sibling message was mutated")
	}
	second, found := s.Get(secondID)
	if !found {
		t.Fatal("ID must be immutable")
	}
	if second.Pending || second.Content.Text != "resolved" || second.Role != RoleAssistant {
		t.Errorf("Unexpected updated message %+v", second)
	}

	if !snapshot[1].Pending {
		t.Error("Earlier snapshot observed the mutation")
	}
}

func TestStore_SnapshotsDoNotShareSlices(t *testing.T) {
	s := NewStore()
	id := s.Append(NewPlaceholder())
	s.UpdateByID(id, func(m *Message) {
		m.Content = AdvisoryContent(providers.Advisory{Finding: "x", Steps: []string{"one", "two"}})
		m.Citations = []providers.Citation{{Title: "t", URL: "u"}}
	})

	snap := s.Messages()
	snap[0].Content.Advisory.Steps[0] = "tampered"
	snap[0].Citations[0].URL = "tampered"

	again, _ := s.Get(id)
	if again.Content.Advisory.Steps[0] != "one" || again.Citations[0].URL != "u" {
		t.Errorf("Snapshot mutation leaked into store: %+v", again)
	}
}

func TestStore_OnChange(t *testing.T) {
	s := NewStore()
	var events []Message
	s.OnChange(func(m Message) { events = append(events, m) })

	id := s.Append(NewPlaceholder())
	s.UpdateByID(id, func(m *Message) { m.Pending = false })
	s.UpdateByID("missing", func(m *Message) {})

	if len(events) != 2 {
		t.Fatalf("Expected 2 change events, got %d", len(events))
	}
	if !events[0].Pending || events[1].Pending {
		t.Errorf("Unexpected change sequence %+v", events)
	}
}

func TestStore_Counters(t *testing.T) {
	s := NewStore()
	s.Append(NewUserMessage("q", ""))
	id := s.Append(NewPlaceholder())

	if s.PendingCount() != 1 {
		t.Errorf("Expected 1 pending, got %d", s.PendingCount())
	}
	s.UpdateByID(id, func(m *Message) { m.Pending = false })
	if s.PendingCount() != 0 {
		t.Errorf("Expected 0 pending, got %d", s.PendingCount())
	}
	if s.CountByRole(RoleUser) != 1 || s.CountByRole(RoleAssistant) != 1 {
		t.Error("Expected one message per role")
	}
}

func TestContent_Union(t *testing.T) {
	text := TextContent("error text")
	if text.IsAdvisory() {
		t.Error("Text content must not be an advisory")
	}

	steps := []string{"Apply urea"}
	adv := AdvisoryContent(providers.Advisory{Finding: "f", Steps: steps})
	if !adv.IsAdvisory() || adv.Text != "" {
		t.Errorf("Unexpected advisory content %+v", adv)
	}
	steps[0] = "changed"
	if adv.Advisory.Steps[0] != "Apply urea" {
		t.Error("AdvisoryContent must copy steps")
	}
}
