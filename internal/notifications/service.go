package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"courier/internal/config"
	"courier/internal/dispatch"
)

const userAgent = "courier/1.0"

// Service defines the notification surface used by the daemon.
type Service interface {
	// NotifyCycle publishes an alert for report when it needs attention.
	NotifyCycle(ctx context.Context, report dispatch.CycleReport) error
	TestNotification(ctx context.Context) error
}

// Enabled reports whether cfg configures an ntfy topic.
func Enabled(cfg *config.Config) bool {
	return cfg != nil && strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if !Enabled(cfg) {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:      strings.TrimSpace(cfg.Notifications.NtfyTopic),
		client:        &http.Client{Timeout: timeout},
		notifySuccess: cfg.Notifications.NotifySuccess,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint      string
	client        *http.Client
	notifySuccess bool

	mu        sync.Mutex
	lastAlert string
}

func (n *ntfyService) NotifyCycle(ctx context.Context, report dispatch.CycleReport) error {
	data := cyclePayload(report)
	if data == nil {
		n.setLastAlert("")
		if report.Outcome == dispatch.OutcomeCompleted && n.notifySuccess {
			return n.send(ctx, payload{
				title:   "Courier - Reports Sent",
				message: report.Summary(),
				tags:    []string{"courier", "sent"},
			})
		}
		return nil
	}

	// Only the first cycle of an unchanged problem is announced.
	key := data.title + "\n" + data.message
	if !n.setLastAlert(key) {
		return nil
	}
	if err := n.send(ctx, *data); err != nil {
		n.setLastAlert("")
		return err
	}
	return nil
}

// setLastAlert records key and reports whether it differs from the previous
// alert.
func (n *ntfyService) setLastAlert(key string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	changed := n.lastAlert != key
	n.lastAlert = key
	return changed
}

// cyclePayload returns the alert for report, or nil when the cycle needs no
// attention.
func cyclePayload(report dispatch.CycleReport) *payload {
	switch report.Outcome {
	case dispatch.OutcomeTransportUnavailable, dispatch.OutcomeDirectoryUnavailable, dispatch.OutcomeInternalError:
		return &payload{
			title:    "Courier - Cycle Failed",
			message:  "Nothing was sent: " + report.Summary(),
			tags:     []string{"courier", "error", string(report.Outcome)},
			priority: "high",
		}
	case dispatch.OutcomeCompleted:
	default:
		return nil
	}

	if len(report.Failures) > 0 {
		var builder strings.Builder
		fmt.Fprintf(&builder, "%d of %d warehouse(s) not delivered, %d file(s) sent.",
			len(report.Failures), report.WarehousesAttempted, report.FilesSent)
		for _, failure := range report.Failures {
			builder.WriteString("\n")
			builder.WriteString(failure.Code)
			if failure.Recipient != "" {
				builder.WriteString(" (" + failure.Recipient + ")")
			}
			if failure.Err != nil {
				builder.WriteString(": " + strings.TrimSpace(failure.Err.Error()))
			}
		}
		return &payload{
			title:    "Courier - Delivery Incomplete",
			message:  builder.String(),
			tags:     []string{"courier", "warning", "partial"},
			priority: "high",
		}
	}

	if report.Err != nil && !report.LedgerSaved && report.FilesSent > 0 {
		return &payload{
			title:    "Courier - Ledger Not Saved",
			message:  fmt.Sprintf("%d file(s) were sent but not recorded: %v", report.FilesSent, report.Err),
			tags:     []string{"courier", "warning", "ledger"},
			priority: "high",
		}
	}
	return nil
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Courier - Test",
		message:  "Notification system test",
		tags:     []string{"courier", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyCycle(context.Context, dispatch.CycleReport) error { return nil }
func (noopService) TestNotification(context.Context) error                 { return nil }
