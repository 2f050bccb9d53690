package helpers

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Fixed diagnostic file names, overwritten on every failed extraction
const (
	DebugScreenshotFile = "snkrdunk_debug.png"
	DebugHTMLFile       = "snkrdunk_debug.html"
	ErrorLogFile        = "snkrdunk_errors.log"
)

// Diagnostics writes page captures and an error log for post-mortem analysis
type Diagnostics struct {
	dir string
}

// NewDiagnostics creates a diagnostics sink writing into dir
func NewDiagnostics(dir string) *Diagnostics {
	if dir == "" {
		dir = "."
	}
	return &Diagnostics{dir: dir}
}

// Dump writes the screenshot and page source. Either may be empty; an empty
// screenshot leaves any previous image in place.
func (d *Diagnostics) Dump(screenshot []byte, html string) error {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create debug directory: %w", err)
	}
	if len(screenshot) > 0 {
		if err := os.WriteFile(d.ScreenshotPath(), screenshot, 0o644); err != nil {
			return fmt.Errorf("failed to write screenshot: %w", err)
		}
	}
	if err := os.WriteFile(d.HTMLPath(), []byte(html), 0o644); err != nil {
		return fmt.Errorf("failed to write page source: %w", err)
	}
	return nil
}

// LogError appends an error line with the crawler name and a timestamp
func (d *Diagnostics) LogError(crawlerName string, err error) error {
	if mkErr := os.MkdirAll(d.dir, 0o755); mkErr != nil {
		return fmt.Errorf("failed to create debug directory: %w", mkErr)
	}
	f, openErr := os.OpenFile(filepath.Join(d.dir, ErrorLogFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if openErr != nil {
		return fmt.Errorf("failed to open error log: %w", openErr)
	}
	defer f.Close()

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	_, writeErr := fmt.Fprintf(f, "[%s] [%s] %s\n", timestamp, crawlerName, err.Error())
	return writeErr
}

// ScreenshotPath returns where Dump writes the screenshot
func (d *Diagnostics) ScreenshotPath() string {
	return filepath.Join(d.dir, DebugScreenshotFile)
}

// HTMLPath returns where Dump writes the page source
func (d *Diagnostics) HTMLPath() string {
	return filepath.Join(d.dir, DebugHTMLFile)
}
