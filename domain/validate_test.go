package domain

import (
	"strings"
	"testing"
	"time"
)

func TestValidateRegistration(t *testing.T) {
	tests := []struct {
		name     string
		username string
		email    string
		password string
		wantErr  bool
	}{
		{"valid", "alice_01", "alice@example.com", "supersecret", false},
		{"short username", "ab", "alice@example.com", "supersecret", true},
		{"username with space", "alice smith", "alice@example.com", "supersecret", true},
		{"bad email", "alice", "not-an-email", "supersecret", true},
		{"email without tld", "alice", "alice@localhost", "supersecret", true},
		{"short password", "alice", "alice@example.com", "12345", true},
		{"password exactly 8", "alice", "alice@example.com", "12345678", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRegistration(tt.username, tt.email, tt.password)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && KindOf(err) != KindValidation {
				t.Fatalf("kind = %v, want validation", KindOf(err))
			}
		})
	}
}

func TestValidateTodo(t *testing.T) {
	base := func() Todo {
		return Todo{Title: "buy milk", Priority: PriorityLow, Category: DefaultCategory}
	}

	if err := ValidateTodo(base()); err != nil {
		t.Fatalf("valid todo rejected: %v", err)
	}

	blank := base()
	blank.Title = "   "
	if err := ValidateTodo(blank); err == nil {
		t.Fatal("blank title accepted")
	}

	long := base()
	long.Title = strings.Repeat("a", 201)
	if err := ValidateTodo(long); err == nil {
		t.Fatal("201-char title accepted")
	}

	// Limits count runes, not bytes.
	multibyte := base()
	multibyte.Title = strings.Repeat("ü", 150)
	if err := ValidateTodo(multibyte); err != nil {
		t.Fatalf("150-rune title rejected: %v", err)
	}
	multibyte.Title = strings.Repeat("ü", 201)
	if err := ValidateTodo(multibyte); err == nil {
		t.Fatal("201-rune title accepted")
	}

	badPriority := base()
	badPriority.Priority = "critical"
	if err := ValidateTodo(badPriority); err == nil {
		t.Fatal("unknown priority accepted")
	}

	manyTags := base()
	for i := 0; i < 21; i++ {
		manyTags.Tags = append(manyTags.Tags, "t")
	}
	if err := ValidateTodo(manyTags); err == nil {
		t.Fatal("21 tags accepted")
	}
}

func TestValidateTodoReminderAfterDue(t *testing.T) {
	due := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	reminder := due.Add(time.Hour)
	todo := Todo{Title: "x", Priority: PriorityLow, DueDate: &due, ReminderDate: &reminder}
	if err := ValidateTodo(todo); err == nil {
		t.Fatal("reminder after due accepted")
	}

	ok := due.Add(-time.Hour)
	todo.ReminderDate = &ok
	if err := ValidateTodo(todo); err != nil {
		t.Fatalf("reminder before due rejected: %v", err)
	}

	todo.DueDate = nil
	todo.ReminderDate = &reminder
	if err := ValidateTodo(todo); err != nil {
		t.Fatalf("reminder without due rejected: %v", err)
	}
}
