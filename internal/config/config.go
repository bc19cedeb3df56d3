package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type BaseLinker struct {
	Token             string // X-BLToken header value
	BaseURL           string // e.g. https://api.baselinker.com
	DeliveredStatusID int    // status id that marks an order as shipped
	LookbackHours     int    // how far back getOrders looks
}

type Twilio struct {
	AccountSID    string
	AuthToken     string
	From          string // sending number
	OperatorPhone string // dry-run destination
}

type Drive struct {
	FolderID        string // destination folder for uploaded invoices
	CredentialsFile string // service-account credentials JSON
}

type Ledger struct {
	Path string // processed-order file, one id per line
	DSN  string // optional postgres backend; file backend when empty
}

type Config struct {
	AppName     string
	DryRun      bool          // send to OperatorPhone instead of customers
	Workers     int           // concurrent orders in flight, 1 = sequential
	HTTPTimeout time.Duration // per external call
	InvoiceDir  string        // local invoice artifacts land here
	MetricsAddr string        // optional /metrics + /healthz listener, off when empty
	BaseLinker  BaseLinker
	Twilio      Twilio
	Drive       Drive
	Ledger      Ledger
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func FromEnv() Config {
	return Config{
		AppName:     getenv("APP_NAME", "shipnotify"),
		DryRun:      getenvBool("DRY_RUN", true), // safe default: never message customers unless asked
		Workers:     getenvInt("WORKERS", 4),
		HTTPTimeout: getenvDuration("HTTP_TIMEOUT", 30*time.Second),
		InvoiceDir:  getenv("INVOICE_DIR", "."),
		MetricsAddr: getenv("METRICS_ADDR", ""),
		BaseLinker: BaseLinker{
			Token:             getenv("BASELINKER_TOKEN", ""),
			BaseURL:           getenv("BASELINKER_URL", "https://api.baselinker.com"),
			DeliveredStatusID: getenvInt("DELIVERED_STATUS_ID", 20507),
			LookbackHours:     getenvInt("LOOKBACK_HOURS", 48),
		},
		Twilio: Twilio{
			AccountSID:    getenv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:     getenv("TWILIO_AUTH_TOKEN", ""),
			From:          getenv("TWILIO_FROM", "+18564741965"),
			OperatorPhone: getenv("OPERATOR_PHONE", ""),
		},
		Drive: Drive{
			FolderID:        getenv("DRIVE_FOLDER_ID", ""),
			CredentialsFile: getenv("GOOGLE_CREDENTIALS_FILE", "credentials.json"),
		},
		Ledger: Ledger{
			Path: getenv("LEDGER_PATH", "orders.txt"),
			DSN:  getenv("LEDGER_DSN", ""),
		},
	}
}

// Validate checks the settings a run cannot proceed without.
func (c Config) Validate() error {
	if c.BaseLinker.Token == "" {
		return fmt.Errorf("BASELINKER_TOKEN is required")
	}
	if c.Twilio.AccountSID == "" || c.Twilio.AuthToken == "" {
		return fmt.Errorf("TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN are required")
	}
	if c.DryRun && c.Twilio.OperatorPhone == "" {
		return fmt.Errorf("OPERATOR_PHONE is required in dry-run mode")
	}
	if c.Drive.FolderID == "" {
		return fmt.Errorf("DRIVE_FOLDER_ID is required")
	}
	if c.Workers < 1 {
		return fmt.Errorf("WORKERS must be at least 1, got %d", c.Workers)
	}
	return nil
}
