package analyzer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os/exec"
	"strconv"
	"strings"

	"warden/internal/config"
	"warden/internal/services"
)

// TextRecognizer turns a preprocessed region into text. The region name is
// informational; implementations must not change behavior on it except in
// tests.
type TextRecognizer interface {
	Recognize(ctx context.Context, region string, img image.Image) (string, error)
}

// RecognizerFunc adapts a function to TextRecognizer.
type RecognizerFunc func(ctx context.Context, region string, img image.Image) (string, error)

func (f RecognizerFunc) Recognize(ctx context.Context, region string, img image.Image) (string, error) {
	return f(ctx, region, img)
}

var commandContext = exec.CommandContext

// Tesseract shells out to the tesseract CLI, streaming a PNG on stdin.
type Tesseract struct {
	binary      string
	language    string
	pageSegMode int
}

// NewTesseract builds a recognizer from analyzer settings.
func NewTesseract(cfg config.Analyzer) *Tesseract {
	binary := strings.TrimSpace(cfg.TesseractBinary)
	if binary == "" {
		binary = "tesseract"
	}
	language := strings.TrimSpace(cfg.Language)
	if language == "" {
		language = "eng"
	}
	psm := cfg.PageSegMode
	if psm <= 0 {
		psm = 6
	}
	return &Tesseract{binary: binary, language: language, pageSegMode: psm}
}

// Binary returns the configured executable.
func (t *Tesseract) Binary() string { return t.binary }

func (t *Tesseract) Recognize(ctx context.Context, region string, img image.Image) (string, error) {
	var input bytes.Buffer
	if err := png.Encode(&input, img); err != nil {
		return "", services.Wrap(services.ErrAnalysis, "analyzer", "encode region", region, err)
	}

	args := []string{"stdin", "stdout", "--psm", strconv.Itoa(t.pageSegMode), "-l", t.language}
	cmd := commandContext(ctx, t.binary, args...) //nolint:gosec
	cmd.Stdin = &input
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", services.Wrap(services.ErrTimeout, "analyzer", "tesseract", region, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			err = fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return "", services.Wrap(services.ErrExternalTool, "analyzer", "tesseract", region, err)
	}
	return stdout.String(), nil
}
