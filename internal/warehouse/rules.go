package warehouse

import (
	"errors"
	"slices"
	"strings"
	"time"

	"courier/internal/config"
)

// ErrConfig marks a missing or malformed warehouse file. Load still returns a
// usable snapshot alongside it.
var ErrConfig = errors.New("warehouse config error")

// Rule is the delivery rule for one warehouse.
type Rule struct {
	Code         string
	DaysOffset   int
	FridayOffset int
	Recipient    string
}

// Active reports whether the rule has a recipient. Rules without one are inert.
func (r Rule) Active() bool {
	return strings.TrimSpace(r.Recipient) != ""
}

// Snapshot is an immutable view of the warehouse file taken at one moment.
type Snapshot struct {
	Folder        string
	Sender        string
	ScheduleTimes []string
	// Warnings lists entries that were ignored while reading the file.
	Warnings []string
	// Source is the file the snapshot was read from; empty for defaults.
	Source string

	rules []Rule
}

// NewSnapshot builds a snapshot from rules in the given order.
func NewSnapshot(folder, sender string, rules []Rule) Snapshot {
	return Snapshot{Folder: folder, Sender: sender, rules: slices.Clone(rules)}
}

// Rules returns every rule in file order, including inert ones.
func (s Snapshot) Rules() []Rule {
	return slices.Clone(s.rules)
}

// Active returns the rules that have a recipient, in file order.
func (s Snapshot) Active() []Rule {
	active := make([]Rule, 0, len(s.rules))
	for _, rule := range s.rules {
		if rule.Active() {
			active = append(active, rule)
		}
	}
	return active
}

// Rule looks up a rule by warehouse code.
func (s Snapshot) Rule(code string) (Rule, bool) {
	idx := s.index(code)
	if idx < 0 {
		return Rule{}, false
	}
	return s.rules[idx], true
}

// ResolvedFolder returns the watched folder with ~ expanded.
func (s Snapshot) ResolvedFolder() string {
	expanded, err := config.ExpandPath(strings.TrimSpace(s.Folder))
	if err != nil {
		return s.Folder
	}
	return expanded
}

// ScheduleOpen reports whether dispatch may run at now. With no schedule
// times configured the gate is always open; otherwise it opens at the
// earliest configured time of day.
func (s Snapshot) ScheduleOpen(now time.Time) bool {
	earliest, ok := s.Earliest()
	if !ok {
		return true
	}
	minutes := now.Hour()*60 + now.Minute()
	return minutes >= earliest
}

// Earliest returns the earliest schedule time as minutes after midnight.
func (s Snapshot) Earliest() (int, bool) {
	best := -1
	for _, value := range s.ScheduleTimes {
		minutes, err := parseClock(value)
		if err != nil {
			continue
		}
		if best < 0 || minutes < best {
			best = minutes
		}
	}
	return best, best >= 0
}

func (s Snapshot) index(code string) int {
	return slices.IndexFunc(s.rules, func(r Rule) bool { return r.Code == code })
}

func parseClock(value string) (int, error) {
	parsed, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return 0, err
	}
	return parsed.Hour()*60 + parsed.Minute(), nil
}
