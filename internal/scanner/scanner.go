// Package scanner matches report files in the watched folder against
// warehouse targets.
package scanner

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"courier/internal/targetdate"
)

// ReportExtension is the only file extension considered, compared
// case-insensitively.
const ReportExtension = ".xlsx"

// ErrDirectoryUnavailable reports that the folder is missing, is not a
// directory, or cannot be listed. It is distinct from an empty result.
var ErrDirectoryUnavailable = errors.New("report folder unavailable")

// Target is the date one warehouse expects in this cycle.
type Target struct {
	Code      string
	Date      time.Time
	Recipient string
}

// Stamp returns the YYYYMMDD form of the target date.
func (t Target) Stamp() string {
	return targetdate.Stamp(t.Date)
}

// Result maps warehouse codes to the matching filenames, in listing order.
type Result struct {
	files map[string][]string
	codes []string
}

// Files returns the filenames claimed by code.
func (r Result) Files(code string) []string {
	return append([]string(nil), r.files[code]...)
}

// Codes returns the codes with at least one match, in the order they first
// matched.
func (r Result) Codes() []string {
	return append([]string(nil), r.codes...)
}

// Total counts every matched file.
func (r Result) Total() int {
	total := 0
	for _, files := range r.files {
		total += len(files)
	}
	return total
}

func (r *Result) add(code, name string) {
	if r.files == nil {
		r.files = make(map[string][]string)
	}
	if _, ok := r.files[code]; !ok {
		r.codes = append(r.codes, code)
	}
	r.files[code] = append(r.files[code], name)
}

// Scan lists folder and assigns each report file to the first target it
// matches. Sub-directories are ignored. Returned names are as found on disk.
func Scan(folder string, targets []Target) (Result, error) {
	info, err := os.Stat(folder)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s: %w", ErrDirectoryUnavailable, folder, err)
	}
	if !info.IsDir() {
		return Result{}, fmt.Errorf("%w: %s is not a directory", ErrDirectoryUnavailable, folder)
	}
	entries, err := os.ReadDir(folder)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s: %w", ErrDirectoryUnavailable, folder, err)
	}

	var result Result
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if code, ok := Match(name, targets); ok {
			result.add(code, name)
		}
	}
	return result, nil
}

// Match returns the code of the first target whose "<code>_" prefix and
// YYYYMMDD date both appear in name. Names without the report extension never
// match.
func Match(name string, targets []Target) (string, bool) {
	normalized := norm.NFC.String(name)
	if !strings.EqualFold(extension(normalized), ReportExtension) {
		return "", false
	}
	for _, target := range targets {
		if target.Code == "" {
			continue
		}
		prefix := norm.NFC.String(target.Code) + "_"
		if strings.HasPrefix(normalized, prefix) && strings.Contains(normalized, target.Stamp()) {
			return target.Code, true
		}
	}
	return "", false
}

func extension(name string) string {
	if len(name) < len(ReportExtension) {
		return ""
	}
	return name[len(name)-len(ReportExtension):]
}
