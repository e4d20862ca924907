package preflight

import (
	"context"
	"fmt"
	"strings"

	"courier/internal/config"
	"courier/internal/mailer"
)

// CheckSMTPFromConfig evaluates the [smtp] settings and, when they are
// complete, connectivity.
func CheckSMTPFromConfig(ctx context.Context, cfg *config.Config, transport mailer.Transport) Result {
	const name = "Mail server"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	host := strings.TrimSpace(cfg.SMTP.Host)
	if host == "" {
		return Result{Name: name, Detail: "Missing host"}
	}
	if cfg.SMTP.Username != "" && cfg.SMTP.Password == "" {
		return Result{Name: name, Detail: "Missing password"}
	}
	if transport == nil {
		transport = mailer.New(cfg)
	}
	check := CheckSMTP(ctx, transport, cfg.SMTPTimeout())
	if check.Passed {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s:%d reachable", host, cfg.SMTP.Port)}
	}
	return Result{Name: name, Detail: check.Detail}
}
