package mailer

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var tokenPattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Vars builds the substitution values for one batch.
func Vars(code string, date time.Time, layout string, files []string) map[string]string {
	return map[string]string{
		"code":  code,
		"date":  date.Format(layout),
		"count": strconv.Itoa(len(files)),
		"files": strings.Join(files, ", "),
	}
}

// Render substitutes {{name}} tokens in tmpl with the matching values in a
// single pass, so substituted values are never expanded again. Unknown tokens
// are left as written.
func Render(tmpl string, vars map[string]string) string {
	return tokenPattern.ReplaceAllStringFunc(tmpl, func(token string) string {
		name := tokenPattern.FindStringSubmatch(token)[1]
		if value, ok := vars[name]; ok {
			return value
		}
		return token
	})
}
