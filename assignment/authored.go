package assignment

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Authored returns the six built-in assignments in authoring order.
// The order deliberately ignores due date and priority.
func Authored(now time.Time) []Assignment {
	return []Assignment{
		New("Buy milk and eggs", now, 2, Medium),
		New("Find new show on Netflix", now, 6, Low),
		New("Continue Udemy course", now, 5, Medium),
		New("Finish work assignment #1", now, 4, High),
		New("Finish work assignment #2", now, 2, High),
		New("Check out new restaurant", now, 13, Low),
	}
}

// fileEntry is one [[assignment]] table in a fixture file.
// Every field is required.
type fileEntry struct {
	Description string    `toml:"description"`
	DueInDays   *int      `toml:"due_in_days"`
	Priority    *Priority `toml:"priority"`
}

type fixtureFile struct {
	Assignments []fileEntry `toml:"assignment"`
}

// LoadFile reads assignments from a TOML fixture file, keeping file order:
//
//	[[assignment]]
//	description = "Buy milk and eggs"
//	due_in_days = 2
//	priority = "MEDIUM"
func LoadFile(path string, now time.Time) ([]Assignment, error) {
	var f fixtureFile
	meta, err := toml.DecodeFile(path, &f)
	return fromFixture(path, f, meta, err, now)
}

// Parse reads assignments from TOML text. See LoadFile for the format.
func Parse(content string, now time.Time) ([]Assignment, error) {
	var f fixtureFile
	meta, err := toml.Decode(content, &f)
	return fromFixture("fixture", f, meta, err, now)
}

func fromFixture(source string, f fixtureFile, meta toml.MetaData, err error, now time.Time) ([]Assignment, error) {
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", source, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("decode %s: unknown field %s", source, undecoded[0])
	}
	if len(f.Assignments) == 0 {
		return nil, fmt.Errorf("%s: no assignments", source)
	}
	out := make([]Assignment, 0, len(f.Assignments))
	for i, e := range f.Assignments {
		switch {
		case e.Description == "":
			return nil, fmt.Errorf("%s: assignment %d has no description", source, i+1)
		case e.DueInDays == nil:
			return nil, fmt.Errorf("%s: assignment %d has no due_in_days", source, i+1)
		case e.Priority == nil:
			return nil, fmt.Errorf("%s: assignment %d has no priority", source, i+1)
		}
		out = append(out, New(e.Description, now, *e.DueInDays, *e.Priority))
	}
	return out, nil
}
