package warehouse

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"courier/internal/fileutil"
)

const (
	defaultFolder = "~/reports"

	keyFolder        = "folder_path"
	keySchedule      = "schedule_times"
	keySender        = "sender_email"
	keyEmails        = "email_config"
	keyDates         = "date_config"
	keyDaysOffset    = "days_offset"
	keyFridayOffset  = "send_on_friday"
	fileMode         = 0o644
	sampleSenderAddr = "reports@example.com"
)

// Defaults returns the built-in rules used when the file is missing, broken,
// or lacks a key. No warehouse has a recipient, so the defaults never send.
func Defaults() Snapshot {
	return Snapshot{
		Folder: defaultFolder,
		rules:  defaultRules(),
	}
}

// Sample returns the snapshot written by `warehouse init`.
func Sample() Snapshot {
	rules := defaultRules()
	for i := range rules {
		rules[i].Recipient = "warehouse-" + rules[i].Code + "@example.com"
	}
	return Snapshot{
		Folder:        defaultFolder,
		Sender:        sampleSenderAddr,
		ScheduleTimes: []string{"16:00"},
		rules:         rules,
	}
}

func defaultRules() []Rule {
	return []Rule{
		{Code: "7210", DaysOffset: 1, FridayOffset: 3},
		{Code: "7220", DaysOffset: 2, FridayOffset: 4},
		{Code: "7230", DaysOffset: 2, FridayOffset: 4},
	}
}

// Load reads the warehouse file. It always returns a usable snapshot; when
// the error is non-nil it wraps ErrConfig and the snapshot holds defaults.
func Load(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Defaults(), fmt.Errorf("%w: read %s: %w", ErrConfig, path, err)
	}
	snapshot, err := Parse(data)
	if err != nil {
		return Defaults(), fmt.Errorf("%w: parse %s: %w", ErrConfig, path, err)
	}
	snapshot.Source = path
	return snapshot, nil
}

// Loader returns a function that re-reads path on every call.
func Loader(path string) func() (Snapshot, error) {
	return func() (Snapshot, error) {
		return Load(path)
	}
}

type document struct {
	FolderPath    *string         `json:"folder_path"`
	ScheduleTimes json.RawMessage `json:"schedule_times"`
	SenderEmail   *string         `json:"sender_email"`
	EmailConfig   *orderedObject  `json:"email_config"`
	DateConfig    *orderedObject  `json:"date_config"`
}

// Parse decodes a warehouse document. Absent keys take their default value;
// entries of the wrong shape are skipped and reported in Warnings.
func Parse(data []byte) (Snapshot, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Snapshot{}, err
	}

	snapshot := Defaults()
	if doc.FolderPath != nil && strings.TrimSpace(*doc.FolderPath) != "" {
		snapshot.Folder = strings.TrimSpace(*doc.FolderPath)
	}
	if doc.SenderEmail != nil {
		snapshot.Sender = strings.TrimSpace(*doc.SenderEmail)
	}
	snapshot.ScheduleTimes = parseSchedule(doc.ScheduleTimes, &snapshot.Warnings)

	emails, emailOrder := parseEmails(doc.EmailConfig, &snapshot.Warnings)

	rules := defaultRules()
	if doc.DateConfig != nil {
		rules = make([]Rule, 0, len(doc.DateConfig.keys))
		for _, code := range doc.DateConfig.keys {
			if strings.TrimSpace(code) == "" {
				snapshot.Warnings = append(snapshot.Warnings, "date_config: empty warehouse code ignored")
				continue
			}
			rules = append(rules, parseRule(code, doc.DateConfig.values[code], &snapshot.Warnings))
		}
	}

	known := make(map[string]struct{}, len(rules))
	for i := range rules {
		rules[i].Recipient = emails[rules[i].Code]
		known[rules[i].Code] = struct{}{}
	}
	for _, code := range emailOrder {
		if _, ok := known[code]; ok {
			continue
		}
		rules = append(rules, Rule{Code: code, Recipient: emails[code]})
	}

	snapshot.rules = rules
	return snapshot, nil
}

func parseSchedule(raw json.RawMessage, warnings *[]string) []string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var values []any
	if err := json.Unmarshal(raw, &values); err != nil {
		*warnings = append(*warnings, "schedule_times must be a list of HH:MM strings")
		return nil
	}
	times := make([]string, 0, len(values))
	for _, value := range values {
		text, ok := value.(string)
		if !ok {
			*warnings = append(*warnings, fmt.Sprintf("schedule_times: invalid entry %v ignored, use HH:MM", value))
			continue
		}
		minutes, err := parseClock(text)
		if err != nil {
			*warnings = append(*warnings, fmt.Sprintf("schedule_times: invalid time %q ignored, use HH:MM", text))
			continue
		}
		times = append(times, formatClock(minutes))
	}
	return times
}

func parseEmails(obj *orderedObject, warnings *[]string) (map[string]string, []string) {
	emails := make(map[string]string)
	if obj == nil {
		return emails, nil
	}
	order := make([]string, 0, len(obj.keys))
	for _, code := range obj.keys {
		var address string
		if err := json.Unmarshal(obj.values[code], &address); err != nil {
			*warnings = append(*warnings, fmt.Sprintf("email_config[%s]: recipient must be a string", code))
			continue
		}
		address = strings.TrimSpace(address)
		if address == "" || strings.TrimSpace(code) == "" {
			continue
		}
		emails[code] = address
		order = append(order, code)
	}
	return emails, order
}

func parseRule(code string, raw json.RawMessage, warnings *[]string) Rule {
	rule := Rule{Code: code}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		*warnings = append(*warnings, fmt.Sprintf("date_config[%s]: expected an object, offsets default to 0", code))
		return rule
	}
	if value, ok := fields[keyDaysOffset]; ok {
		if err := json.Unmarshal(value, &rule.DaysOffset); err != nil {
			*warnings = append(*warnings, fmt.Sprintf("date_config[%s].%s must be an integer", code, keyDaysOffset))
			rule.DaysOffset = 0
		}
	}
	rule.FridayOffset = rule.DaysOffset
	if value, ok := fields[keyFridayOffset]; ok {
		var friday int
		if err := json.Unmarshal(value, &friday); err != nil {
			*warnings = append(*warnings, fmt.Sprintf("date_config[%s].%s must be an integer", code, keyFridayOffset))
		} else {
			rule.FridayOffset = friday
		}
	}
	return rule
}

// Save writes the snapshot to path, keeping rule order.
func Save(path string, snapshot Snapshot) error {
	data, err := snapshot.MarshalJSON()
	if err != nil {
		return err
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		return fmt.Errorf("format warehouse config: %w", err)
	}
	pretty.WriteByte('\n')
	if err := fileutil.WriteFileAtomic(path, pretty.Bytes(), fileMode); err != nil {
		return fmt.Errorf("write warehouse config: %w", err)
	}
	return nil
}

// WriteSample writes Sample to path unless a file already exists there.
func WriteSample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("warehouse config already exists at %s", path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat warehouse config: %w", err)
	}
	return Save(path, Sample())
}

// MarshalJSON encodes the snapshot in the file layout with rules in order.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	schedule := s.ScheduleTimes
	if schedule == nil {
		schedule = []string{}
	}
	if err := writeField(&buf, keyFolder, s.Folder, true); err != nil {
		return nil, err
	}
	if err := writeField(&buf, keySchedule, schedule, false); err != nil {
		return nil, err
	}
	if err := writeField(&buf, keySender, s.Sender, false); err != nil {
		return nil, err
	}

	emails := &orderedObject{values: make(map[string]json.RawMessage)}
	dates := &orderedObject{values: make(map[string]json.RawMessage)}
	for _, rule := range s.rules {
		if rule.Active() {
			encoded, err := json.Marshal(rule.Recipient)
			if err != nil {
				return nil, err
			}
			emails.set(rule.Code, encoded)
		}
		encoded, err := json.Marshal(struct {
			DaysOffset   int `json:"days_offset"`
			FridayOffset int `json:"send_on_friday"`
		}{rule.DaysOffset, rule.FridayOffset})
		if err != nil {
			return nil, err
		}
		dates.set(rule.Code, encoded)
	}
	if err := writeField(&buf, keyEmails, emails, false); err != nil {
		return nil, err
	}
	if err := writeField(&buf, keyDates, dates, false); err != nil {
		return nil, err
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeField(buf *bytes.Buffer, key string, value any, first bool) error {
	if !first {
		buf.WriteByte(',')
	}
	encodedKey, err := json.Marshal(key)
	if err != nil {
		return err
	}
	encodedValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	buf.Write(encodedKey)
	buf.WriteByte(':')
	buf.Write(encodedValue)
	return nil
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
