package domain

import (
	"testing"
	"time"
)

func TestApplyTransitionSetsAndClearsCompletedAt(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	todo := Todo{Title: "write report", Priority: PriorityMedium, Category: DefaultCategory}

	done := true
	updated := ApplyTransition(todo, TodoChanges{Completed: &done}, now)
	if !updated.Completed {
		t.Fatal("expected completed")
	}
	if updated.CompletedAt == nil || !updated.CompletedAt.Equal(now) {
		t.Fatalf("completedAt = %v, want %v", updated.CompletedAt, now)
	}
	if !updated.UpdatedAt.Equal(now) {
		t.Fatalf("updatedAt = %v, want %v", updated.UpdatedAt, now)
	}

	later := now.Add(time.Hour)
	undone := false
	reverted := ApplyTransition(updated, TodoChanges{Completed: &undone}, later)
	if reverted.Completed || reverted.CompletedAt != nil {
		t.Fatalf("expected cleared completion, got %v %v", reverted.Completed, reverted.CompletedAt)
	}
}

func TestApplyTransitionCompletedNoopKeepsTimestamp(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	stamp := now.Add(-time.Hour)
	todo := Todo{Title: "x", Completed: true, CompletedAt: &stamp}

	done := true
	updated := ApplyTransition(todo, TodoChanges{Completed: &done}, now)
	if updated.CompletedAt == nil || !updated.CompletedAt.Equal(stamp) {
		t.Fatalf("completedAt changed on no-op transition: %v", updated.CompletedAt)
	}
}

func TestApplyTransitionArchive(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	todo := Todo{Title: "x"}

	archived := true
	updated := ApplyTransition(todo, TodoChanges{Archived: &archived}, now)
	if !updated.Archived || updated.ArchivedAt == nil || !updated.ArchivedAt.Equal(now) {
		t.Fatalf("archive transition failed: %+v", updated)
	}

	restored := false
	back := ApplyTransition(updated, TodoChanges{Archived: &restored}, now.Add(time.Minute))
	if back.Archived || back.ArchivedAt != nil {
		t.Fatalf("unarchive transition failed: %+v", back)
	}
}

func TestApplyTransitionEmptyCategoryFallsBack(t *testing.T) {
	now := time.Now()
	todo := Todo{Title: "x", Category: "work"}
	empty := "  "
	updated := ApplyTransition(todo, TodoChanges{Category: &empty}, now)
	if updated.Category != DefaultCategory {
		t.Fatalf("category = %q, want %q", updated.Category, DefaultCategory)
	}
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{" Work ", "home", "WORK", "", "urgent"})
	want := []string{"work", "home", "urgent"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if NormalizeTags(nil) != nil {
		t.Fatal("expected nil for empty input")
	}
}

func TestValidPriority(t *testing.T) {
	for _, p := range []string{PriorityLow, PriorityMedium, PriorityHigh} {
		if !ValidPriority(p) {
			t.Fatalf("%q rejected", p)
		}
	}
	if ValidPriority("urgent") || ValidPriority("") {
		t.Fatal("invalid priority accepted")
	}
}
