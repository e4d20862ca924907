package config

const (
	defaultConfigPath          = "~/.config/courier/config.toml"
	defaultStateDir            = "~/.local/share/courier"
	defaultLogDir              = "~/.local/share/courier/logs"
	defaultWarehouseConfigPath = "~/.config/courier/warehouses.json"
	defaultLedgerBackend       = LedgerBackendJSON
	defaultLedgerFile          = "sent_files.json"
	defaultLedgerDBFile        = "sent_files.db"
	defaultSMTPPort            = 587
	defaultSMTPTimeout         = 30
	defaultSMTPFromName        = "Report Courier"
	defaultSubjectTemplate     = "Warehouse {{code}} reports for {{date}}"
	defaultBodyTemplate        = "Attached are the reports of warehouse {{code}} for {{date}}."
	defaultDateFormat          = "02.01.2006"
	defaultPollInterval        = 60
	defaultWatchDebounce       = 5
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultLogRetentionDays    = 30
	defaultNtfyRequestTimeout  = 10
)

// Ledger backends.
const (
	LedgerBackendJSON   = "json"
	LedgerBackendSQLite = "sqlite"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:        defaultStateDir,
			LogDir:          defaultLogDir,
			WarehouseConfig: defaultWarehouseConfigPath,
		},
		SMTP: SMTP{
			Port:     defaultSMTPPort,
			FromName: defaultSMTPFromName,
			StartTLS: true,
			Timeout:  defaultSMTPTimeout,
		},
		Mail: Mail{
			SubjectTemplate: defaultSubjectTemplate,
			BodyTemplate:    defaultBodyTemplate,
			DateFormat:      defaultDateFormat,
		},
		Ledger: Ledger{
			Backend: defaultLedgerBackend,
		},
		Workflow: Workflow{
			PollInterval:  defaultPollInterval,
			WatchDebounce: defaultWatchDebounce,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyRequestTimeout,
		},
	}
}
