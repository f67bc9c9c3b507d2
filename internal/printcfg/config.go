// Package printcfg holds the persisted PrinterPal configuration document:
// defaults, validation, and an atomically written JSON store.
package printcfg

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// Mode names accepted for preview and print processing.
var ValidModes = []string{"raw", "grayscale", "bw", "dither", "outline"}

// AppConfig covers process-facing settings persisted with the document.
type AppConfig struct {
	Host        string `json:"host"`
	Port        int    `json:"port"`
	SecretKey   string `json:"secret_key"`
	MaxUploadMB int    `json:"max_upload_mb"`
}

// PrintingConfig covers print and preview processing settings.
type PrintingConfig struct {
	DefaultPrinter     string `json:"default_printer"`
	PreviewDPI         int    `json:"preview_dpi"`
	PrintDPI           int    `json:"print_dpi"`
	MaxPDFPagesProcess int    `json:"max_pdf_pages_process"`
	DefaultCopies      int    `json:"default_copies"`
	DefaultMode        string `json:"default_mode"`
	BWThreshold        int    `json:"bw_threshold"`
}

// AirPrintConfig controls automatic AirPrint advertisement.
type AirPrintConfig struct {
	AutoEnable bool `json:"auto_enable"`
}

// UIConfig holds browser display defaults.
type UIConfig struct {
	DefaultDarkMode bool `json:"default_dark_mode"`
	DefaultEinkMode bool `json:"default_eink_mode"`
}

// SecurityConfig gates mutating endpoints behind a shared token.
type SecurityConfig struct {
	RequireToken bool   `json:"require_token"`
	Token        string `json:"token"`
}

// Config is the whole configuration document.
type Config struct {
	App      AppConfig      `json:"app"`
	Printing PrintingConfig `json:"printing"`
	AirPrint AirPrintConfig `json:"airprint"`
	UI       UIConfig       `json:"ui"`
	Security SecurityConfig `json:"security"`
}

// ValidationError reports an invalid config field. Handlers render it as
// HTTP 400 rather than 500.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// Default returns the document defaults, with a fresh secret key.
func Default() Config {
	return Config{
		App: AppConfig{
			Host:        "0.0.0.0",
			Port:        80,
			SecretKey:   newSecretKey(),
			MaxUploadMB: 25,
		},
		Printing: PrintingConfig{
			DefaultPrinter:     "",
			PreviewDPI:         150,
			PrintDPI:           200,
			MaxPDFPagesProcess: 30,
			DefaultCopies:      1,
			DefaultMode:        "grayscale",
			BWThreshold:        180,
		},
		AirPrint: AirPrintConfig{AutoEnable: true},
		UI:       UIConfig{},
		Security: SecurityConfig{},
	}
}

// Validate checks field ranges. Zero-valued numeric or mode fields are
// filled from defaults first, so a sparse document round-trips cleanly.
func Validate(cfg Config) (Config, error) {
	def := Default()

	if cfg.App.Host == "" {
		cfg.App.Host = def.App.Host
	}
	if cfg.App.Port == 0 {
		cfg.App.Port = def.App.Port
	}
	if cfg.App.SecretKey == "" {
		cfg.App.SecretKey = def.App.SecretKey
	}
	if cfg.App.MaxUploadMB == 0 {
		cfg.App.MaxUploadMB = def.App.MaxUploadMB
	}
	fillPrintingDefaults(&cfg.Printing, def.Printing)

	if err := checkRange("app.port", cfg.App.Port, 1, 65535); err != nil {
		return Config{}, err
	}
	if err := checkRange("app.max_upload_mb", cfg.App.MaxUploadMB, 1, 500); err != nil {
		return Config{}, err
	}
	if len(cfg.App.SecretKey) < 16 {
		return Config{}, &ValidationError{Field: "app.secret_key", Reason: "must be at least 16 characters"}
	}

	p := cfg.Printing
	checks := []struct {
		field    string
		val      int
		min, max int
	}{
		{"printing.preview_dpi", p.PreviewDPI, 72, 600},
		{"printing.print_dpi", p.PrintDPI, 72, 1200},
		{"printing.max_pdf_pages_process", p.MaxPDFPagesProcess, 1, 500},
		{"printing.default_copies", p.DefaultCopies, 1, 99},
		{"printing.bw_threshold", p.BWThreshold, 1, 254},
	}
	for _, c := range checks {
		if err := checkRange(c.field, c.val, c.min, c.max); err != nil {
			return Config{}, err
		}
	}

	if !IsValidMode(p.DefaultMode) {
		return Config{}, &ValidationError{
			Field:  "printing.default_mode",
			Reason: "must be one of raw|grayscale|bw|dither|outline",
		}
	}

	return cfg, nil
}

// IsValidMode reports whether mode names a supported processing mode.
func IsValidMode(mode string) bool {
	for _, m := range ValidModes {
		if mode == m {
			return true
		}
	}
	return false
}

func fillPrintingDefaults(p *PrintingConfig, def PrintingConfig) {
	if p.PreviewDPI == 0 {
		p.PreviewDPI = def.PreviewDPI
	}
	if p.PrintDPI == 0 {
		p.PrintDPI = def.PrintDPI
	}
	if p.MaxPDFPagesProcess == 0 {
		p.MaxPDFPagesProcess = def.MaxPDFPagesProcess
	}
	if p.DefaultCopies == 0 {
		p.DefaultCopies = def.DefaultCopies
	}
	if p.DefaultMode == "" {
		p.DefaultMode = def.DefaultMode
	}
	if p.BWThreshold == 0 {
		p.BWThreshold = def.BWThreshold
	}
}

func checkRange(field string, v, min, max int) error {
	if v < min || v > max {
		return &ValidationError{
			Field:  field,
			Reason: fmt.Sprintf("must be between %d and %d", min, max),
		}
	}
	return nil
}

func newSecretKey() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return hex.EncodeToString(buf)
}
