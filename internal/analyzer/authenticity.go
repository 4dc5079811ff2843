package analyzer

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"

	"github.com/disintegration/imaging"

	"warden/internal/config"
	"warden/internal/services"
)

// Reference is a known-good fragment (an icon or UI anchor) expected only in
// a genuine, uncropped capture.
type Reference struct {
	Name  string
	Image image.Image
}

// LoadReferences reads every *.png in dir in lexical order. An empty or
// missing directory is a configuration error.
func LoadReferences(dir string) ([]Reference, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.png"))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "analyzer", "load references", dir, err)
	}
	sort.Strings(matches)
	refs := make([]Reference, 0, len(matches))
	for _, path := range matches {
		img, err := imaging.Open(path)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "analyzer", "load references", path, err)
		}
		refs = append(refs, Reference{Name: filepath.Base(path), Image: img})
	}
	if len(refs) == 0 {
		if _, statErr := os.Stat(dir); statErr != nil {
			return nil, services.Wrap(services.ErrConfiguration, "analyzer", "load references", dir, statErr)
		}
		return nil, services.Wrap(services.ErrConfiguration, "analyzer", "load references",
			fmt.Sprintf("no *.png reference fragments in %s", dir), nil)
	}
	return refs, nil
}

type template struct {
	name string
	gray *image.Gray
}

// authenticator slides each reference over the profile panel and scores the
// fraction of pixels whose gray levels differ by less than the tolerance.
type authenticator struct {
	region    config.Region
	templates []template
	stride    int
	tolerance int
	threshold float64
}

func newAuthenticator(cfg config.Analyzer, refs []Reference) (*authenticator, error) {
	if len(refs) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "analyzer", "authenticity", "no reference fragments configured", nil)
	}
	templates := make([]template, 0, len(refs))
	for _, ref := range refs {
		if ref.Image == nil {
			continue
		}
		img := ref.Image
		if cfg.TemplateWidth > 0 && img.Bounds().Dx() != cfg.TemplateWidth {
			img = imaging.Resize(img, cfg.TemplateWidth, 0, imaging.Lanczos)
		}
		templates = append(templates, template{name: ref.Name, gray: toGray(img)})
	}
	if len(templates) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "analyzer", "authenticity", "reference fragments are empty", nil)
	}
	stride := cfg.Stride
	if stride <= 0 {
		stride = 1
	}
	return &authenticator{
		region:    cfg.ProfileRegion,
		templates: templates,
		stride:    stride,
		tolerance: cfg.PixelTolerance,
		threshold: cfg.SimilarityThreshold,
	}, nil
}

// authenticityScore is the outcome of one check.
type authenticityScore struct {
	Best      float64
	Reference string
	Passed    bool
}

// Check returns as soon as any position exceeds the threshold. The scan is
// deterministic: references in load order, rows then columns.
func (a *authenticator) Check(ctx context.Context, img image.Image) (authenticityScore, error) {
	panel := toGray(cropRegion(img, a.region))
	var result authenticityScore
	for _, tpl := range a.templates {
		best, err := a.bestMatch(ctx, panel, tpl.gray)
		if err != nil {
			return result, err
		}
		if best > result.Best || result.Reference == "" {
			result.Best = best
			result.Reference = tpl.name
		}
		if best > a.threshold {
			result.Passed = true
			return result, nil
		}
	}
	return result, nil
}

func (a *authenticator) bestMatch(ctx context.Context, panel, tpl *image.Gray) (float64, error) {
	pw, ph := panel.Bounds().Dx(), panel.Bounds().Dy()
	tw, th := tpl.Bounds().Dx(), tpl.Bounds().Dy()
	if tw == 0 || th == 0 || tw > pw || th > ph {
		return 0, nil
	}
	total := float64(tw * th)
	best := 0.0
	for y := 0; y+th <= ph; y += a.stride {
		if err := ctx.Err(); err != nil {
			return best, services.Wrap(services.ErrTimeout, "analyzer", "authenticity", "scan cancelled", err)
		}
		for x := 0; x+tw <= pw; x += a.stride {
			matched := 0
			for ty := 0; ty < th; ty++ {
				prow := panel.Pix[(y+ty)*panel.Stride+x : (y+ty)*panel.Stride+x+tw]
				trow := tpl.Pix[ty*tpl.Stride : ty*tpl.Stride+tw]
				for i, tv := range trow {
					diff := int(prow[i]) - int(tv)
					if diff < 0 {
						diff = -diff
					}
					if diff < a.tolerance {
						matched++
					}
				}
			}
			score := float64(matched) / total
			if score > best {
				best = score
			}
			if best > a.threshold {
				return best, nil
			}
		}
	}
	return best, nil
}
