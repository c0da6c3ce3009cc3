package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestSetupTextAndJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(&buf, "text", slog.LevelInfo)
	logger.Info("hello", Operation("schedule.get"))
	if !strings.Contains(buf.String(), "operation=schedule.get") {
		t.Errorf("expected text attribute in output, got %q", buf.String())
	}

	buf.Reset()
	logger = Setup(&buf, "json", slog.LevelInfo)
	logger.Info("hello", Status(StatusSuccess))
	if !strings.Contains(buf.String(), `"status":"success"`) {
		t.Errorf("expected json attribute in output, got %q", buf.String())
	}
}

func TestSetupLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(&buf, "text", slog.LevelWarn)
	logger.Info("suppressed")
	if buf.Len() != 0 {
		t.Errorf("expected info to be filtered at warn level, got %q", buf.String())
	}
}

func TestWithOperation(t *testing.T) {
	logger := slog.Default()
	if WithOperation(logger, "availability.find") == nil {
		t.Error("WithOperation returned nil")
	}
}

func TestWithAccount(t *testing.T) {
	logger := slog.Default()
	if WithAccount(logger, 42) == nil {
		t.Error("WithAccount returned nil")
	}
}

func TestErr(t *testing.T) {
	attr := Err(errors.New("boom"))
	if attr.Value.String() != "boom" {
		t.Errorf("expected error value, got %v", attr.Value)
	}

	// Nil errors produce an empty group that slog omits.
	attr = Err(nil)
	if attr.Value.Kind() != slog.KindGroup {
		t.Errorf("expected group kind for nil error, got %v", attr.Value.Kind())
	}
}

func TestAnonymizeUser(t *testing.T) {
	if AnonymizeUser("") != "" {
		t.Error("expected empty string for empty user")
	}

	a := AnonymizeUser("alice@example.com")
	b := AnonymizeUser("alice@example.com")
	if a != b {
		t.Error("expected anonymization to be deterministic")
	}
	if strings.Contains(a, "alice") {
		t.Error("anonymized value must not contain the original identifier")
	}
	if !strings.HasPrefix(a, "user:") {
		t.Errorf("expected user: prefix, got %q", a)
	}
}

func TestSanitizeToken(t *testing.T) {
	if SanitizeToken("") != "<empty>" {
		t.Error("expected <empty> for empty token")
	}
	got := SanitizeToken("ya29.secret-token")
	if strings.Contains(got, "secret") {
		t.Errorf("sanitized token leaks content: %q", got)
	}
}
