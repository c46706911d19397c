package cli

import (
	"payrollforms/internal/log"

	"github.com/pkg/browser"
)

var openBrowser = browser.OpenURL

// OpenUI opens url in the default browser when enabled. A failure is logged
// and otherwise ignored; the server keeps running.
func OpenUI(logger *log.Logger, enabled bool, url string) bool {
	if !enabled {
		return false
	}
	if err := openBrowser(url); err != nil {
		logger.Warn("Could not open the browser", "url", url, log.FieldError, err)
		return false
	}
	logger.Info("Opened the UI in the browser", "url", url)
	return true
}
