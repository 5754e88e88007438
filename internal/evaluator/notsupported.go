package evaluator

import (
	"strings"

	"github.com/ShayCichocki/irsight/pkg/models"
)

// unsupportedKeywords maps lowercase phrases to the reason a criterion
// mentioning them cannot be measured from a single rendered page.
var unsupportedKeywords = []struct {
	phrase string
	reason string
}{
	{"largest contentful paint", "LCP requires field performance data, not a single lab render"},
	{"lcp", "LCP requires field performance data, not a single lab render"},
	{"cumulative layout shift", "CLS requires field performance data collected over real sessions"},
	{"cls", "CLS requires field performance data collected over real sessions"},
	{"time to first byte", "TTFB depends on network position and needs repeated sampling"},
	{"ttfb", "TTFB depends on network position and needs repeated sampling"},
	{"speed index", "Speed Index needs a filmstrip capture pipeline this tool does not run"},
	{"uptime", "uptime requires longitudinal monitoring, not a point-in-time check"},
	{"availability", "availability requires longitudinal monitoring, not a point-in-time check"},
	{"action duration", "user action timing requires interactive session recording"},
}

// genericUnsupportedReason covers criteria marked unsupported in the catalog
// without a recognizable keyword.
const genericUnsupportedReason = "criterion cannot be measured from page content or structure"

// Unsupported reports whether the criterion resolves to a NOT_SUPPORTED
// outcome. Such criteria never need page access.
func Unsupported(c models.Criterion) bool {
	_, ok := unsupportedReason(c)
	return ok
}

// unsupportedReason returns the explanation recorded in a NOT_SUPPORTED
// result, and whether the criterion is unsupported at all. A criterion is
// unsupported when the catalog says so or when its text names a metric this
// tool cannot measure.
func unsupportedReason(c models.Criterion) (string, bool) {
	text := strings.ToLower(c.Name + " " + c.Instruction)
	for _, kw := range unsupportedKeywords {
		if strings.Contains(text, kw.phrase) {
			return kw.reason, true
		}
	}
	if c.CheckKind == models.CheckUnsupported {
		return genericUnsupportedReason, true
	}
	return "", false
}
