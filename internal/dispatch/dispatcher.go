package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"courier/internal/config"
	"courier/internal/ledger"
	"courier/internal/logging"
	"courier/internal/mailer"
	"courier/internal/scanner"
	"courier/internal/targetdate"
	"courier/internal/warehouse"
)

// ErrNoAttachments reports a batch whose files all disappeared before sending.
var ErrNoAttachments = errors.New("no report files left to attach")

// Templates shapes the message sent for each warehouse batch.
type Templates struct {
	Subject    string
	Body       string
	DateFormat string
}

// TemplatesFromConfig reads the [mail] section of cfg.
func TemplatesFromConfig(cfg *config.Config) Templates {
	if cfg == nil {
		return Templates{}
	}
	return Templates{
		Subject:    cfg.Mail.SubjectTemplate,
		Body:       cfg.Mail.BodyTemplate,
		DateFormat: cfg.Mail.DateFormat,
	}
}

func (t Templates) withDefaults() Templates {
	defaults := config.Default().Mail
	if strings.TrimSpace(t.Subject) == "" {
		t.Subject = defaults.SubjectTemplate
	}
	if strings.TrimSpace(t.Body) == "" {
		t.Body = defaults.BodyTemplate
	}
	if strings.TrimSpace(t.DateFormat) == "" {
		t.DateFormat = defaults.DateFormat
	}
	return t
}

// Dispatcher runs dispatch cycles. Warehouses, Ledger and Transport are
// required. Cycles on one Dispatcher never overlap.
type Dispatcher struct {
	// Warehouses is called once per cycle. It returns a usable snapshot even
	// when it also returns an error.
	Warehouses func() (warehouse.Snapshot, error)
	Ledger     ledger.Store
	Transport  mailer.Transport
	Templates  Templates
	Logger     *slog.Logger
	// Now stamps FinishedAt. Defaults to time.Now.
	Now func() time.Time

	mu sync.Mutex
	// step is the state-machine step the running cycle is in.
	step Step
	// pending holds names delivered by this process whose ledger save failed.
	pending ledger.Set
}

// New wires a dispatcher from daemon settings.
func New(cfg *config.Config, store ledger.Store, transport mailer.Transport, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		Warehouses: warehouse.Loader(cfg.Paths.WarehouseConfig),
		Ledger:     store,
		Transport:  transport,
		Templates:  TemplatesFromConfig(cfg),
		Logger:     logging.NewComponentLogger(logger, "dispatch"),
		Now:        time.Now,
	}
}

type batch struct {
	target scanner.Target
	files  []string
}

// ResolveTargets returns one target per warehouse that has a recipient, in
// rule order. Warehouses without a recipient are left out.
func ResolveTargets(snapshot warehouse.Snapshot, today time.Time) []scanner.Target {
	active := snapshot.Active()
	targets := make([]scanner.Target, 0, len(active))
	for _, rule := range active {
		targets = append(targets, scanner.Target{
			Code:      rule.Code,
			Date:      targetdate.Resolve(rule, today),
			Recipient: rule.Recipient,
		})
	}
	return targets
}

// RunCycle performs one full dispatch pass for the moment now. It never
// panics and never returns an error; the report's Outcome and Err describe
// how the cycle ended.
func (d *Dispatcher) RunCycle(ctx context.Context, now time.Time) (report CycleReport) {
	d.mu.Lock()
	defer d.mu.Unlock()

	report = CycleReport{ID: uuid.NewString(), StartedAt: now}
	ctx = logging.WithCycleID(ctx, report.ID)
	logger := logging.WithContext(ctx, d.logger())

	defer func() {
		if r := recover(); r != nil {
			report.Outcome = OutcomeInternalError
			report.Err = &StepError{Step: d.step, Err: fmt.Errorf("cycle panic: %v", r)}
			logging.ErrorWithContext(logger, "cycle aborted by internal error", "cycle_panic",
				logging.String("step", string(d.step)),
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())),
				logging.String(logging.FieldErrorHint, "the next cycle starts from scratch; report this if it repeats"),
			)
		}
		report.FinishedAt = d.now()
		logCycleFinished(logger, report)
	}()

	logger.Info("cycle started",
		logging.String(logging.FieldEventType, "cycle_started"),
		logging.Time("now", now),
	)
	d.runSteps(ctx, logger, now, &report)
	return report
}

func (d *Dispatcher) runSteps(ctx context.Context, logger *slog.Logger, now time.Time, report *CycleReport) {
	d.step = StepWeekendCheck
	if targetdate.IsWeekend(now) {
		report.Outcome = OutcomeSkippedWeekend
		logger.Info("weekend, skipping cycle",
			logging.String(logging.FieldEventType, "cycle_skipped"),
			logging.String("weekday", now.Weekday().String()),
		)
		return
	}

	d.step = StepLoadConfig
	snapshot := d.loadSnapshot(logger)
	report.Folder = snapshot.ResolvedFolder()
	if !snapshot.ScheduleOpen(now) {
		report.Outcome = OutcomeSkippedSchedule
		earliest, _ := snapshot.Earliest()
		logger.Info("before scheduled send time, skipping cycle",
			logging.String(logging.FieldEventType, "cycle_skipped"),
			logging.String("not_before", clock(earliest)),
		)
		return
	}

	d.step = StepResolveTargets
	targets := ResolveTargets(snapshot, now)
	if len(targets) == 0 {
		report.Outcome = OutcomeNoCandidates
		logging.WarnWithContext(logger, "no warehouse has a recipient; nothing to send", "no_active_warehouses",
			logging.String("warehouse_config", snapshot.Source),
			logging.String(logging.FieldErrorHint, "add addresses with 'courier warehouse set'"),
			logging.String(logging.FieldImpact, "no reports are mailed"),
		)
		return
	}
	for _, target := range targets {
		logger.Debug("target resolved",
			logging.Warehouse(target.Code),
			logging.String("target_date", target.Stamp()),
		)
	}

	d.step = StepScan
	result, err := scanner.Scan(report.Folder, targets)
	if err != nil {
		report.Outcome = OutcomeDirectoryUnavailable
		report.Err = &StepError{Step: StepScan, Err: err}
		logging.ErrorWithContext(logger, "report folder unavailable; retrying next cycle", "folder_unavailable",
			logging.String("folder", report.Folder),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check folder_path in the warehouse config and that the share is mounted"),
		)
		return
	}
	report.CandidatesFound = result.Total()
	logger.Info("candidate files found",
		logging.String(logging.FieldEventType, "candidates_found"),
		logging.Count(report.CandidatesFound),
		logging.Int("warehouses", len(targets)),
	)
	if report.CandidatesFound == 0 {
		report.Outcome = OutcomeNoCandidates
		logNewFiles(logger, 0, 0)
		return
	}

	d.step = StepDiff
	sent := d.loadLedger(ctx, logger)
	batches := diff(targets, result, sent)
	for _, b := range batches {
		report.NewFiles += len(b.files)
	}
	logNewFiles(logger, report.NewFiles, len(batches))
	if len(batches) == 0 {
		report.Outcome = OutcomeNoNewFiles
		return
	}

	d.step = StepConnect
	session, err := d.Transport.Connect(ctx)
	if err != nil {
		report.Outcome = OutcomeTransportUnavailable
		report.Err = &StepError{Step: StepConnect, Err: err}
		logging.ErrorWithContext(logger, "mail transport unavailable; retrying next cycle", "transport_unavailable",
			logging.Error(err),
			logging.Int("pending_files", report.NewFiles),
			logging.String(logging.FieldErrorHint, "check the [smtp] settings and that the mail server is reachable"),
		)
		return
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Debug("mail session close failed", logging.Error(err))
		}
	}()

	d.step = StepSendBatches
	delivered := d.sendBatches(ctx, logger, session, snapshot, now, batches, report)
	report.Outcome = OutcomeCompleted
	if len(delivered) == 0 {
		return
	}
	d.step = StepCommit
	d.commit(ctx, logger, sent, delivered, report)
}

func logNewFiles(logger *slog.Logger, count, batches int) {
	logger.Info("new files found",
		logging.String(logging.FieldEventType, "new_files_found"),
		logging.Count(count),
		logging.Int("batches", batches),
	)
}

func (d *Dispatcher) loadSnapshot(logger *slog.Logger) warehouse.Snapshot {
	if d.Warehouses == nil {
		return warehouse.Defaults()
	}
	snapshot, err := d.Warehouses()
	if err != nil {
		logging.ErrorWithContext(logger, "warehouse config unusable; using built-in defaults", "warehouse_config_invalid",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "fix the warehouse JSON file or recreate it with 'courier warehouse init'"),
		)
	}
	for _, warning := range snapshot.Warnings {
		logging.WarnWithContext(logger, "warehouse config entry ignored", "warehouse_config_warning",
			logging.String("detail", warning),
			logging.String(logging.FieldErrorHint, "correct the entry in the warehouse JSON file"),
			logging.String(logging.FieldImpact, "entry has no effect this cycle"),
		)
	}
	return snapshot
}

func (d *Dispatcher) loadLedger(ctx context.Context, logger *slog.Logger) ledger.Set {
	sent, err := d.Ledger.Load(ctx)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Debug("ledger not created yet", logging.String("ledger", d.Ledger.Location()))
		} else {
			logging.WarnWithContext(logger, "ledger unreadable; treating as empty", "ledger_read_failed",
				logging.String("ledger", d.Ledger.Location()),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "inspect or remove the ledger file"),
				logging.String(logging.FieldImpact, "previously sent files may be sent again"),
			)
		}
	}
	if sent == nil {
		sent = ledger.NewSet()
	}
	if d.pending.Len() > 0 {
		sent = ledger.Merge(sent, d.pending)
	}
	return sent
}

func diff(targets []scanner.Target, result scanner.Result, sent ledger.Set) []batch {
	var batches []batch
	for _, target := range targets {
		files := ledger.Subtract(result.Files(target.Code), sent)
		if len(files) == 0 {
			continue
		}
		batches = append(batches, batch{target: target, files: files})
	}
	return batches
}

func (d *Dispatcher) sendBatches(ctx context.Context, logger *slog.Logger, session mailer.Session, snapshot warehouse.Snapshot, now time.Time, batches []batch, report *CycleReport) []string {
	templates := d.Templates.withDefaults()
	var delivered []string
	for _, b := range batches {
		report.WarehousesAttempted++
		batchLogger := logger.With(
			logging.Warehouse(b.target.Code),
			logging.Recipient(b.target.Recipient),
		)
		attached, err := sendBatch(ctx, batchLogger, session, templates, snapshot.Sender, report.Folder, now, b)
		if err != nil {
			report.Failures = append(report.Failures, BatchFailure{
				Code:      b.target.Code,
				Recipient: b.target.Recipient,
				Files:     b.files,
				Err:       err,
			})
			logging.ErrorWithContext(batchLogger, "warehouse batch failed; retrying next cycle", "batch_failed",
				logging.Strings("files", b.files),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the recipient address and the mail server response"),
			)
			continue
		}
		report.WarehousesSucceeded++
		report.FilesSent += len(attached)
		delivered = append(delivered, attached...)
		batchLogger.Info("warehouse batch sent",
			logging.String(logging.FieldEventType, "batch_sent"),
			logging.Count(len(attached)),
			logging.Strings("files", attached),
		)
	}
	return delivered
}

func sendBatch(ctx context.Context, logger *slog.Logger, session mailer.Session, templates Templates, sender, folder string, now time.Time, b batch) (attached []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			attached = nil
			err = &StepError{Step: StepSendBatches, Err: fmt.Errorf("batch panic: %v", r)}
		}
	}()

	paths := make([]string, 0, len(b.files))
	for _, name := range b.files {
		path := filepath.Join(folder, name)
		info, statErr := os.Stat(path)
		if statErr == nil && !info.Mode().IsRegular() {
			statErr = errors.New("not a regular file")
		}
		if statErr != nil {
			logging.WarnWithContext(logger, "report file vanished before sending; skipping", "attachment_missing",
				logging.String("file", name),
				logging.Error(statErr),
				logging.String(logging.FieldImpact, "file is picked up again if it reappears"),
			)
			continue
		}
		paths = append(paths, path)
		attached = append(attached, name)
	}
	if len(paths) == 0 {
		return nil, ErrNoAttachments
	}

	vars := mailer.Vars(b.target.Code, now, templates.DateFormat, attached)
	msg := mailer.Message{
		From:        sender,
		To:          b.target.Recipient,
		Subject:     mailer.Render(templates.Subject, vars),
		Body:        mailer.Render(templates.Body, vars),
		Attachments: paths,
	}
	if err := session.Send(ctx, msg); err != nil {
		return nil, err
	}
	return attached, nil
}

func (d *Dispatcher) commit(ctx context.Context, logger *slog.Logger, sent ledger.Set, delivered []string, report *CycleReport) {
	fresh := ledger.NewSet(delivered...)
	if err := d.Ledger.Save(ctx, ledger.Merge(sent, fresh)); err != nil {
		d.pending = ledger.Merge(d.pending, fresh)
		report.Err = &StepError{Step: StepCommit, Err: err}
		logging.ErrorWithContext(logger, "ledger save failed; sent files are remembered until restart", "ledger_write_failed",
			logging.String("ledger", d.Ledger.Location()),
			logging.Error(err),
			logging.Int("unsaved", d.pending.Len()),
			logging.String(logging.FieldErrorHint, "check free space and permissions for the ledger path"),
		)
		return
	}
	d.pending = nil
	report.LedgerSaved = true
	logger.Debug("ledger saved",
		logging.String("ledger", d.Ledger.Location()),
		logging.Int("added", fresh.Len()),
	)
}

func logCycleFinished(logger *slog.Logger, report CycleReport) {
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "cycle_finished"),
		logging.String("outcome", string(report.Outcome)),
		logging.Int("warehouses_attempted", report.WarehousesAttempted),
		logging.Int("warehouses_succeeded", report.WarehousesSucceeded),
		logging.Int("files_sent", report.FilesSent),
		logging.Duration("duration", report.Duration()),
	}
	if report.Outcome == OutcomeCompleted {
		attrs = append(attrs, logging.Bool("ledger_saved", report.LedgerSaved))
	}
	logger.Info("cycle finished", logging.Args(attrs...)...)
}

func (d *Dispatcher) logger() *slog.Logger {
	if d.Logger == nil {
		return logging.NewNop()
	}
	return d.Logger
}

func (d *Dispatcher) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

func clock(minutes int) string {
	if minutes < 0 {
		return ""
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
