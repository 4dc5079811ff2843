package analyzer

import (
	"context"
	"errors"
	"image"
	"testing"

	"warden/internal/config"
	"warden/internal/services"
	"warden/internal/testsupport"
)

func TestRegionRectFloorsFractions(t *testing.T) {
	b := image.Rect(0, 0, 401, 301)
	got := regionRect(b, config.Region{X: 0.05, Y: 0.15, Width: 0.45, Height: 0.25})
	want := image.Rect(20, 45, 200, 120)
	if got != want {
		t.Fatalf("regionRect = %v want %v", got, want)
	}
	if full := regionRect(b, config.Region{Width: 1, Height: 1}); full != b {
		t.Fatalf("full frame = %v", full)
	}
}

func TestPreprocessProducesBinaryImageAtWidth(t *testing.T) {
	img := testsupport.EvidenceImage(true)
	out, err := preprocess(context.Background(), cropRegion(img, config.DefaultRegions()[0]), preprocessOptions{Width: 700, Contrast: 20, Sharpen: 1, Threshold: 150})
	if err != nil {
		t.Fatalf("preprocess: %v", err)
	}
	if out.Bounds().Dx() != 700 {
		t.Fatalf("expected width 700, got %d", out.Bounds().Dx())
	}
	for i := 0; i < len(out.Pix); i += 4 {
		if v := out.Pix[i]; v != 0 && v != 255 {
			t.Fatalf("expected binary output, found %d", v)
		}
	}
}

func TestPreprocessStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := preprocess(ctx, testsupport.EvidenceImage(true), preprocessOptions{Width: 700, Threshold: 150})
	if out != nil || !errors.Is(err, services.ErrTimeout) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancelled preprocess, got %v, %v", out, err)
	}
}

func TestAuthenticatorScoresExactAnchor(t *testing.T) {
	cfg := config.Default().Analyzer
	auth, err := newAuthenticator(cfg, []Reference{{Name: "a.png", Image: testsupport.AnchorFragment()}})
	if err != nil {
		t.Fatalf("newAuthenticator: %v", err)
	}
	got, err := auth.Check(t.Context(), testsupport.EvidenceImage(true))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !got.Passed || got.Reference != "a.png" {
		t.Fatalf("expected pass, got %+v", got)
	}
}

func TestAuthenticatorSkipsOversizedTemplate(t *testing.T) {
	cfg := config.Default().Analyzer
	cfg.TemplateWidth = 500
	auth, err := newAuthenticator(cfg, []Reference{{Name: "big.png", Image: testsupport.AnchorFragment()}})
	if err != nil {
		t.Fatalf("newAuthenticator: %v", err)
	}
	got, err := auth.Check(t.Context(), testsupport.EvidenceImage(true))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if got.Passed || got.Best != 0 {
		t.Fatalf("expected zero score for oversized template, got %+v", got)
	}
}
