package analyzer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"time"

	"warden/internal/config"
	"warden/internal/evidence"
	"warden/internal/logging"
	"warden/internal/services"
)

// Analyzer extracts an identifier from evidence and authenticates the
// capture. The result is a pure function of the bytes for a given
// configuration, recognizer and reference set.
type Analyzer struct {
	regions    []config.Region
	prep       preprocessOptions
	recognizer TextRecognizer
	matcher    *identifierMatcher
	auth       *authenticator
	logger     *slog.Logger
}

// New loads reference fragments from cfg.ReferencesDir and builds an analyzer.
func New(cfg config.Analyzer, recognizer TextRecognizer, logger *slog.Logger) (*Analyzer, error) {
	refs, err := LoadReferences(cfg.ReferencesDir)
	if err != nil {
		return nil, err
	}
	return NewWithReferences(cfg, recognizer, refs, logger)
}

// NewWithReferences builds an analyzer over explicit reference fragments.
func NewWithReferences(cfg config.Analyzer, recognizer TextRecognizer, refs []Reference, logger *slog.Logger) (*Analyzer, error) {
	if recognizer == nil {
		return nil, errors.New("analyzer: text recognizer is required")
	}
	if len(cfg.Regions) == 0 {
		cfg.Regions = config.DefaultRegions()
	}
	matcher, err := newIdentifierMatcher(cfg.LabelPattern, cfg.MinDigits, cfg.MaxDigits)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "analyzer", "label pattern", cfg.LabelPattern, err)
	}
	auth, err := newAuthenticator(cfg, refs)
	if err != nil {
		return nil, err
	}
	return &Analyzer{
		regions:    append([]config.Region(nil), cfg.Regions...),
		prep:       preprocessFromConfig(cfg),
		recognizer: recognizer,
		matcher:    matcher,
		auth:       auth,
		logger:     logging.NewComponentLogger(logger, "analyzer"),
	}, nil
}

// RegionAttempt records one OCR pass.
type RegionAttempt struct {
	Region     string        `json:"region"`
	Text       string        `json:"text"`
	Identifier string        `json:"identifier,omitempty"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Report carries the result plus the diagnostics behind it.
type Report struct {
	Format    string                  `json:"format,omitempty"`
	Width     int                     `json:"width"`
	Height    int                     `json:"height"`
	Attempts  []RegionAttempt         `json:"attempts"`
	Score     float64                 `json:"score"`
	Reference string                  `json:"reference,omitempty"`
	Result    evidence.AnalysisResult `json:"result"`
}

// Analyze runs the pipeline and returns the tagged result.
func (a *Analyzer) Analyze(ctx context.Context, data []byte) evidence.AnalysisResult {
	return a.Inspect(ctx, data).Result
}

// Inspect runs the pipeline and keeps per-region diagnostics.
func (a *Analyzer) Inspect(ctx context.Context, data []byte) Report {
	logger := logging.WithContext(ctx, a.logger)
	var report Report

	img, format, err := decode(data)
	if err != nil {
		logger.Info("evidence undecodable", logging.Error(err), logging.String(logging.FieldEventType, "evidence_undecodable"))
		report.Result = evidence.NoIdentifierFound(err.Error())
		return report
	}
	report.Format = format
	report.Width, report.Height = img.Bounds().Dx(), img.Bounds().Dy()

	var (
		id     string
		region string
	)
	for _, r := range a.regions {
		if err := ctx.Err(); err != nil {
			report.Result = evidence.TransientIOError("analysis deadline exceeded before region " + r.Name)
			return report
		}
		attempt, found, err := a.recognizeRegion(ctx, img, r)
		report.Attempts = append(report.Attempts, attempt)
		if err != nil {
			if ctx.Err() == nil {
				logging.ErrorWithContext(logger, "text recognition failed", "ocr_failed",
					logging.String("region", r.Name),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "verify the tesseract binary and language data are installed"),
				)
			}
			report.Result = evidence.TransientIOError(fmt.Sprintf("text recognition failed in %s: %v", r.Name, err))
			return report
		}
		if found {
			id, region = attempt.Identifier, r.Name
			break
		}
	}
	if id == "" {
		report.Result = evidence.NoIdentifierFound("no identifier in regions " + regionNames(a.regions))
		logger.Info("no identifier found", logging.Int("regions", len(a.regions)))
		return report
	}

	score, err := a.auth.Check(ctx, img)
	report.Score, report.Reference = score.Best, score.Reference
	if err != nil {
		report.Result = evidence.TransientIOError(err.Error())
		return report
	}
	if !score.Passed {
		logger.Info("authenticity check failed",
			logging.String("region", region),
			logging.Float64("score", score.Best),
			logging.String("reference", score.Reference),
		)
		report.Result = evidence.AuthenticityCheckFailed(id, region, score.Best,
			fmt.Sprintf("best reference similarity %.2f", score.Best))
		return report
	}
	logger.Debug("evidence analyzed",
		logging.String("region", region),
		logging.Float64("score", score.Best),
	)
	report.Result = evidence.Success(id, region, score.Best)
	return report
}

func (a *Analyzer) recognizeRegion(ctx context.Context, img image.Image, r config.Region) (RegionAttempt, bool, error) {
	started := time.Now()
	attempt := RegionAttempt{Region: r.Name}
	prepared, err := preprocess(ctx, cropRegion(img, r), a.prep)
	if err != nil {
		attempt.Duration = time.Since(started)
		attempt.Error = err.Error()
		return attempt, false, err
	}
	text, err := a.recognizer.Recognize(ctx, r.Name, prepared)
	attempt.Duration = time.Since(started)
	if err != nil {
		attempt.Error = err.Error()
		return attempt, false, err
	}
	attempt.Text = strings.TrimSpace(text)
	if id, ok := a.matcher.Find(text); ok {
		attempt.Identifier = id
		return attempt, true, nil
	}
	return attempt, false, nil
}

func regionNames(regions []config.Region) string {
	names := make([]string, 0, len(regions))
	for _, r := range regions {
		names = append(names, r.Name)
	}
	return strings.Join(names, ",")
}
