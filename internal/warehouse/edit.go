package warehouse

import (
	"errors"
	"fmt"
	"net/mail"
	"slices"
	"strings"
)

// SetRecipient assigns the recipient for code, creating a rule with zero
// offsets when the warehouse is new.
func (s *Snapshot) SetRecipient(code, address string) error {
	code, err := validateCode(code)
	if err != nil {
		return err
	}
	address, err = validateAddress(address)
	if err != nil {
		return err
	}
	if address == "" {
		return errors.New("recipient address is required")
	}
	s.rules = slices.Clone(s.rules)
	if idx := s.index(code); idx >= 0 {
		s.rules[idx].Recipient = address
		return nil
	}
	s.rules = append(s.rules, Rule{Code: code, Recipient: address})
	return nil
}

// RemoveRecipient clears the recipient for code, leaving its offsets in place.
func (s *Snapshot) RemoveRecipient(code string) bool {
	idx := s.index(strings.TrimSpace(code))
	if idx < 0 || !s.rules[idx].Active() {
		return false
	}
	s.rules = slices.Clone(s.rules)
	s.rules[idx].Recipient = ""
	return true
}

// SetOffsets updates the date offsets for code, creating the rule if needed.
func (s *Snapshot) SetOffsets(code string, days, friday int) error {
	code, err := validateCode(code)
	if err != nil {
		return err
	}
	s.rules = slices.Clone(s.rules)
	if idx := s.index(code); idx >= 0 {
		s.rules[idx].DaysOffset = days
		s.rules[idx].FridayOffset = friday
		return nil
	}
	s.rules = append(s.rules, Rule{Code: code, DaysOffset: days, FridayOffset: friday})
	return nil
}

// RemoveRule drops the warehouse entirely.
func (s *Snapshot) RemoveRule(code string) bool {
	idx := s.index(strings.TrimSpace(code))
	if idx < 0 {
		return false
	}
	s.rules = slices.Delete(slices.Clone(s.rules), idx, idx+1)
	return true
}

// SetFolder changes the watched folder.
func (s *Snapshot) SetFolder(folder string) error {
	folder = strings.TrimSpace(folder)
	if folder == "" {
		return errors.New("folder path is required")
	}
	s.Folder = folder
	return nil
}

// SetSender changes the From address. An empty value clears it.
func (s *Snapshot) SetSender(address string) error {
	address, err := validateAddress(address)
	if err != nil {
		return err
	}
	s.Sender = address
	return nil
}

// SetScheduleTimes replaces the schedule. Every entry must be HH:MM.
func (s *Snapshot) SetScheduleTimes(times []string) error {
	normalized := make([]string, 0, len(times))
	for _, value := range times {
		minutes, err := parseClock(value)
		if err != nil {
			return fmt.Errorf("invalid time %q, use HH:MM", value)
		}
		clock := formatClock(minutes)
		if !slices.Contains(normalized, clock) {
			normalized = append(normalized, clock)
		}
	}
	slices.Sort(normalized)
	s.ScheduleTimes = normalized
	return nil
}

func validateCode(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", errors.New("warehouse code is required")
	}
	if strings.ContainsAny(code, " \t/\\") {
		return "", fmt.Errorf("warehouse code %q must not contain spaces or path separators", code)
	}
	return code, nil
}

func validateAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", nil
	}
	parsed, err := mail.ParseAddress(address)
	if err != nil {
		return "", fmt.Errorf("invalid email address %q: %w", address, err)
	}
	return parsed.Address, nil
}
