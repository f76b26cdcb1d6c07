package domain

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	minPasswordLen    = 8
	maxTitleLen       = 200
	maxDescriptionLen = 1000
	maxCategoryLen    = 50
	maxTagLen         = 30
	maxTags           = 20
)

var (
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)
	emailRe    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// ValidateUsername checks the username format.
func ValidateUsername(username string) error {
	if !usernameRe.MatchString(username) {
		return ValidationError("username must be 3-30 characters of letters, digits or underscore")
	}
	return nil
}

// ValidateEmail checks the email format.
func ValidateEmail(email string) error {
	if !emailRe.MatchString(email) {
		return ValidationError("invalid email address")
	}
	return nil
}

// ValidateRegistration checks the registration input. Business rules live
// here rather than on the storage schema so every caller hits the same
// checks before anything is persisted.
func ValidateRegistration(username, email, password string) error {
	if err := ValidateUsername(username); err != nil {
		return err
	}
	if err := ValidateEmail(email); err != nil {
		return err
	}
	if utf8.RuneCountInString(password) < minPasswordLen {
		return ValidationError("password must be at least 8 characters")
	}
	return nil
}

// ValidateTodo checks the invariants of a fully-merged todo before it is
// written, including the reminder-before-due rule.
func ValidateTodo(t Todo) error {
	title := strings.TrimSpace(t.Title)
	if title == "" {
		return ValidationError("title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return ValidationError("title must be at most 200 characters")
	}
	if utf8.RuneCountInString(t.Description) > maxDescriptionLen {
		return ValidationError("description must be at most 1000 characters")
	}
	if !ValidPriority(t.Priority) {
		return ValidationError("priority must be low, medium or high")
	}
	if utf8.RuneCountInString(t.Category) > maxCategoryLen {
		return ValidationError("category must be at most 50 characters")
	}
	if len(t.Tags) > maxTags {
		return ValidationError("at most 20 tags allowed")
	}
	for _, tag := range t.Tags {
		if utf8.RuneCountInString(tag) > maxTagLen {
			return ValidationError("tags must be at most 30 characters")
		}
	}
	if err := validateReminder(t.ReminderDate, t.DueDate); err != nil {
		return err
	}
	return nil
}

// ValidateSubtaskTitle checks a subtask title.
func ValidateSubtaskTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ValidationError("subtask title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return ValidationError("subtask title must be at most 200 characters")
	}
	return nil
}

func validateReminder(reminder, due *time.Time) error {
	if reminder == nil || due == nil {
		return nil
	}
	if reminder.After(*due) {
		return ValidationError("reminder date must not be after due date")
	}
	return nil
}
