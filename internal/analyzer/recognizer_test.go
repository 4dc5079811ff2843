package analyzer_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"warden/internal/analyzer"
	"warden/internal/config"
	"warden/internal/services"
	"warden/internal/testsupport"
)

func TestTesseractReadsStdout(t *testing.T) {
	binDir := filepath.Join(t.TempDir(), "bin")
	testsupport.StubBinary(t, binDir, "#!/bin/sh\ncat >/dev/null\necho \"Governor ID 58532591\"\n", "tesseract")

	rec := analyzer.NewTesseract(config.Default().Analyzer)
	text, err := rec.Recognize(context.Background(), "id_panel", testsupport.AnchorFragment())
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if text != "Governor ID 58532591\n" {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestTesseractFailureIsExternalToolError(t *testing.T) {
	binDir := filepath.Join(t.TempDir(), "bin")
	testsupport.StubBinary(t, binDir, "#!/bin/sh\ncat >/dev/null\necho 'Error opening data file' >&2\nexit 1\n", "tesseract")

	rec := analyzer.NewTesseract(config.Default().Analyzer)
	_, err := rec.Recognize(context.Background(), "id_panel", testsupport.AnchorFragment())
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
	if services.Classify(err) != services.FailureTransient {
		t.Fatalf("expected transient classification, got %s", services.Classify(err))
	}
}
