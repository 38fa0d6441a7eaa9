// Package assignment defines the payload handed from producer to consumer.
//
// The coordination code treats an Assignment as opaque: it is created once,
// stored, removed and printed, but its due date and priority never influence
// ordering.
package assignment

import (
	"fmt"
	"strings"
	"time"
)

// Priority is the urgency level of an assignment.
type Priority int

const (
	Low Priority = iota
	Medium
	High
)

// String returns the upper-case priority name.
func (p Priority) String() string {
	switch p {
	case Low:
		return "LOW"
	case Medium:
		return "MEDIUM"
	case High:
		return "HIGH"
	default:
		return fmt.Sprintf("Priority(%d)", int(p))
	}
}

// ParsePriority parses LOW, MEDIUM or HIGH, case-insensitively.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOW":
		return Low, nil
	case "MEDIUM":
		return Medium, nil
	case "HIGH":
		return High, nil
	default:
		return Low, fmt.Errorf("unknown priority %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Priority) MarshalText() ([]byte, error) {
	switch p {
	case Low, Medium, High:
		return []byte(p.String()), nil
	default:
		return nil, fmt.Errorf("invalid priority %d", int(p))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Priority) UnmarshalText(text []byte) error {
	parsed, err := ParsePriority(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Assignment is a unit of work: what to do, by when, and how urgently.
type Assignment struct {
	Description string    `json:"description"`
	Due         time.Time `json:"due"`
	Priority    Priority  `json:"priority"`
}

// New builds an assignment due the given number of days after now.
func New(description string, now time.Time, daysFromNow int, priority Priority) Assignment {
	return Assignment{
		Description: description,
		Due:         DaysFrom(now, daysFromNow),
		Priority:    priority,
	}
}

// DaysFrom returns now shifted by whole 24-hour days.
func DaysFrom(now time.Time, days int) time.Time {
	return now.Add(time.Duration(days) * 24 * time.Hour)
}

// String formats the assignment for log narration.
func (a Assignment) String() string {
	return fmt.Sprintf("%s (due %s, %s)", a.Description, a.Due.Format("2006-01-02"), a.Priority)
}
