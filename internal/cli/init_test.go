package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"payrollforms/internal/backend"
	"payrollforms/internal/config"
	"payrollforms/internal/log"

	"github.com/pkg/browser"
)

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLogger(&config.Config{LogLevel: "warn", LogFormat: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", log.FieldOperation, log.OpStartup)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"component":"app"`) {
		t.Errorf("expected json record with component, got %s", out)
	}
}

func TestInitBackendMemory(t *testing.T) {
	res := InitBackend(context.Background(), log.Discard(), &config.Config{DataBackend: "memory"})
	defer res.Close()
	if res.Type != backend.MemoryBackend {
		t.Fatalf("type = %s", res.Type)
	}
}

func TestOpenUI(t *testing.T) {
	var opened []string
	openBrowser = func(url string) error {
		opened = append(opened, url)
		if strings.Contains(url, "broken") {
			return errors.New("no browser")
		}
		return nil
	}
	t.Cleanup(func() { openBrowser = browser.OpenURL })

	logger := log.Discard()
	if OpenUI(logger, false, "http://localhost:8081/") {
		t.Fatal("disabled auto-open must not open the browser")
	}
	if !OpenUI(logger, true, "http://localhost:8081/") {
		t.Fatal("enabled auto-open should open the browser")
	}
	if OpenUI(logger, true, "http://broken/") {
		t.Fatal("a browser failure should be reported")
	}
	if len(opened) != 2 || opened[0] != "http://localhost:8081/" {
		t.Fatalf("opened = %v", opened)
	}
}
