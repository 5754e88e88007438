package evaluator

import (
	"context"
	"fmt"
	"log"
	"math"

	"github.com/ShayCichocki/irsight/internal/page"
	"github.com/ShayCichocki/irsight/pkg/models"
)

// contrastThreshold is the minimum foreground/background contrast ratio for
// normal text (WCAG AA).
const contrastThreshold = 4.5

// heroMaxViewportRatio is the largest share of the viewport a hero element
// may occupy.
const heroMaxViewportRatio = 0.5

// carouselMaxSlides is the largest acceptable slide count per carousel.
const carouselMaxSlides = 3

// relativeLuminance computes the WCAG relative luminance of a color,
// gamma-correcting each channel before weighting.
func relativeLuminance(c page.RGB) float64 {
	lin := func(v uint8) float64 {
		s := float64(v) / 255.0
		if s <= 0.03928 {
			return s / 12.92
		}
		return math.Pow((s+0.055)/1.055, 2.4)
	}
	return 0.2126*lin(c.R) + 0.7152*lin(c.G) + 0.0722*lin(c.B)
}

// contrastRatio computes the WCAG contrast ratio between two colors. The
// result is always >= 1, lighter luminance on top.
func contrastRatio(a, b page.RGB) float64 {
	la := relativeLuminance(a)
	lb := relativeLuminance(b)
	if la < lb {
		la, lb = lb, la
	}
	return (la + 0.05) / (lb + 0.05)
}

// evalContrast checks every sampled element pair and judges on the worst
// ratio found. Deterministic checks report full confidence.
func evalContrast(ctx context.Context, in Input) (models.Result, error) {
	if in.Metrics == nil {
		return models.Result{}, fmt.Errorf("no page metrics available")
	}

	worst := math.Inf(1)
	worstSelector := ""
	for _, st := range in.Metrics.Styles {
		if st.Color == nil || st.Background == nil {
			continue
		}
		r := contrastRatio(*st.Color, *st.Background)
		if r < worst {
			worst = r
			worstSelector = st.Selector
		}
	}
	if math.IsInf(worst, 1) {
		return models.Result{}, fmt.Errorf("no elements with resolvable colors on %s", in.PageURL)
	}

	details := fmt.Sprintf("worst contrast %.1f:1 at %s (minimum %.1f:1)", worst, worstSelector, contrastThreshold)
	if worst >= contrastThreshold {
		return newResult(in, models.VerdictPass, 1.0, details), nil
	}
	return newResult(in, models.VerdictFail, 1.0, details), nil
}

// evalHeroViewport checks that the first hero-like element occupies at most
// half the viewport. A page with no hero passes vacuously.
func evalHeroViewport(ctx context.Context, in Input) (models.Result, error) {
	if in.Metrics == nil {
		return models.Result{}, fmt.Errorf("no page metrics available")
	}
	m := in.Metrics
	if m.HeroHeight <= 0 {
		return newResult(in, models.VerdictPass, 1.0, "no hero element found"), nil
	}
	if m.ViewportHeight <= 0 {
		return models.Result{}, fmt.Errorf("viewport height unavailable for %s", in.PageURL)
	}

	ratio := m.HeroHeight / m.ViewportHeight
	details := fmt.Sprintf("hero %s occupies %.2f of viewport (maximum %.2f)", m.HeroSelector, ratio, heroMaxViewportRatio)

	res := newResult(in, models.VerdictPass, 1.0, details)
	if ratio > heroMaxViewportRatio {
		res.Verdict = models.VerdictFail
	}
	attachEvidence(ctx, in, &res, m.HeroSelector)
	return res, nil
}

// evalCarouselSlides checks that no carousel exceeds the slide limit. A page
// with no carousels passes vacuously.
func evalCarouselSlides(ctx context.Context, in Input) (models.Result, error) {
	if in.Metrics == nil {
		return models.Result{}, fmt.Errorf("no page metrics available")
	}
	if len(in.Metrics.Carousels) == 0 {
		return newResult(in, models.VerdictPass, 1.0, "no carousel found"), nil
	}

	worst := in.Metrics.Carousels[0]
	for _, c := range in.Metrics.Carousels[1:] {
		if c.SlideCount > worst.SlideCount {
			worst = c
		}
	}

	details := fmt.Sprintf("%d slides in %s (maximum %d)", worst.SlideCount, worst.Selector, carouselMaxSlides)
	res := newResult(in, models.VerdictPass, 1.0, details)
	if worst.SlideCount > carouselMaxSlides {
		res.Verdict = models.VerdictFail
	}
	attachEvidence(ctx, in, &res, worst.Selector)
	return res, nil
}

// coverageFunc builds an evaluator that passes when matching/total for the
// named coverage metric meets the minimum ratio. Pages with no applicable
// elements pass vacuously.
func coverageFunc(metric string, minimum float64) Func {
	return func(ctx context.Context, in Input) (models.Result, error) {
		if in.Metrics == nil {
			return models.Result{}, fmt.Errorf("no page metrics available")
		}
		count, ok := in.Metrics.Coverage[metric]
		if !ok {
			return models.Result{}, fmt.Errorf("coverage metric %q missing for %s", metric, in.PageURL)
		}
		if count.Total == 0 {
			return newResult(in, models.VerdictPass, 1.0, fmt.Sprintf("no %s elements to check", metric)), nil
		}

		ratio := float64(count.Matching) / float64(count.Total)
		details := fmt.Sprintf("%s coverage %.2f (%d/%d, minimum %.2f)", metric, ratio, count.Matching, count.Total, minimum)
		if ratio >= minimum {
			return newResult(in, models.VerdictPass, 1.0, details), nil
		}
		return newResult(in, models.VerdictFail, 1.0, details), nil
	}
}

// attachEvidence screenshots the judged element when a live page is
// available. Evidence is best-effort: failures are logged, never fatal.
func attachEvidence(ctx context.Context, in Input, res *models.Result, selector string) {
	if in.Page == nil || selector == "" {
		return
	}
	path, err := in.Page.CaptureEvidence(ctx, selector)
	if err != nil {
		log.Printf("[evaluator] evidence capture failed for %s: %v", selector, err)
		return
	}
	res.EvidencePath = path
}
