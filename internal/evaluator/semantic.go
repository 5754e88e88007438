package evaluator

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/ShayCichocki/irsight/internal/llm"
	"github.com/ShayCichocki/irsight/internal/retry"
	"github.com/ShayCichocki/irsight/pkg/models"
)

// maxReducedChars caps the page text sent to the reasoning service. Pages
// longer than this are truncated after reduction.
const maxReducedChars = 15000

// SemanticClient sends one prompt+content exchange to a reasoning service
// and returns its raw text response.
type SemanticClient interface {
	Send(ctx context.Context, prompt, content string) (string, error)
}

// Semantic evaluates criteria that need judgment rather than measurement. It
// reduces the page to text, asks the reasoning service for a structured
// verdict, and parses the response defensively.
type Semantic struct {
	client   SemanticClient
	gate     *retry.Gate
	classify retry.Classifier
}

// NewSemantic builds a semantic evaluator. Transport failures are classified
// and retried through the gate.
func NewSemantic(client SemanticClient, gate *retry.Gate) *Semantic {
	return &Semantic{
		client:   client,
		gate:     gate,
		classify: llm.Classify,
	}
}

// Evaluate runs one semantic criterion against one page. The service's
// found/not-found answer maps to PASS/FAIL; an unparseable response is a FAIL
// with zero confidence, never an error.
func (s *Semantic) Evaluate(ctx context.Context, in Input) (models.Result, error) {
	content := ReduceContent(in.Content, maxReducedChars)
	if strings.TrimSpace(content) == "" {
		return models.Result{}, fmt.Errorf("page %s reduced to empty content", in.PageURL)
	}
	prompt := BuildPrompt(in.Criterion)

	raw, err := retry.Do(ctx, s.gate, s.classify, func(ctx context.Context) (string, error) {
		return s.client.Send(ctx, prompt, content)
	})
	if err != nil {
		return models.Result{}, fmt.Errorf("semantic evaluation of criterion %d: %w", in.Criterion.ID, err)
	}

	v := models.ParseSemanticVerdict(raw)
	verdict := models.VerdictFail
	if v.Found {
		verdict = models.VerdictPass
	}
	return newResult(in, verdict, v.Confidence, v.Details), nil
}

// BuildPrompt renders the system prompt for one criterion. It is a pure
// function of the criterion so prompts are reproducible across runs.
func BuildPrompt(c models.Criterion) string {
	var b strings.Builder
	b.WriteString("You are auditing a company website against a disclosure checklist.\n\n")
	fmt.Fprintf(&b, "Checklist item: %s\n", c.Name)
	if c.Category != "" {
		fmt.Fprintf(&b, "Category: %s", c.Category)
		if c.Subcategory != "" {
			fmt.Fprintf(&b, " / %s", c.Subcategory)
		}
		b.WriteString("\n")
	}
	if c.Instruction != "" {
		fmt.Fprintf(&b, "\nWhat to look for:\n%s\n", c.Instruction)
	}
	b.WriteString(`
The user message contains the text content of the page under audit. Decide
whether the page satisfies the checklist item.

Respond with ONLY a JSON object in this exact shape:
{"found": true or false, "confidence": 0.0 to 1.0, "details": "short evidence or absence note", "reasoning": "one or two sentences"}

Do not wrap the JSON in markdown fences or add any other text.`)
	return b.String()
}

// ReduceContent strips markup, scripts, and styling from raw HTML and
// returns whitespace-collapsed text capped at maxChars. Malformed HTML is
// tolerated; the tokenizer recovers what it can.
func ReduceContent(rawHTML string, maxChars int) string {
	skip := map[string]bool{
		"script": true, "style": true, "noscript": true,
		"svg": true, "iframe": true, "head": true,
	}

	z := html.NewTokenizer(strings.NewReader(rawHTML))
	var b strings.Builder
	depth := 0 // nesting depth inside skipped subtrees
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		switch tt {
		case html.StartTagToken:
			name, _ := z.TagName()
			if skip[string(name)] {
				depth++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if skip[string(name)] && depth > 0 {
				depth--
			}
		case html.TextToken:
			if depth > 0 {
				continue
			}
			text := strings.TrimSpace(string(z.Text()))
			if text == "" {
				continue
			}
			b.WriteString(collapseSpaces(text))
			b.WriteString("\n")
		}
		if b.Len() > maxChars*2 {
			break
		}
	}

	out := strings.TrimSpace(b.String())
	if len(out) > maxChars {
		cut := maxChars
		// Never split a multi-byte rune at the cap.
		for cut > 0 && !utf8.RuneStart(out[cut]) {
			cut--
		}
		out = out[:cut]
	}
	return out
}

// collapseSpaces folds runs of whitespace into single spaces.
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
