// Package ai provides adapters around the text-generation capability:
// the OpenRouter chat client, token budgeting, and best-effort recovery
// of JSON objects from free-form model output.
package ai

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/fairyhunter13/ai-interviewer/internal/domain"
	"github.com/fairyhunter13/ai-interviewer/internal/observability"
)

// Recoverer extracts a JSON object from unreliable model text using an
// escalating ladder of strategies. The model is prompted to emit JSON but
// is not a guaranteed structured-output channel; a parse failure must
// never abort an interview, only degrade to the caller's default.
type Recoverer struct {
	ai domain.AIClient
}

// NewRecoverer constructs a Recoverer. The AI client is used for the
// "fix this JSON" round-trip and may be nil, in which case that rung is
// skipped.
func NewRecoverer(ai domain.AIClient) *Recoverer {
	return &Recoverer{ai: ai}
}

var (
	singleQuotedRe  = regexp.MustCompile(`'([^']*)'`)
	braceThenKeyRe  = regexp.MustCompile(`([}\]])\s*"`)
	valueThenKeyRe  = regexp.MustCompile(`("(?:[^"\\]|\\.)*"|-?\d+(?:\.\d+)?|true|false|null)\s+(")`)
	adjacentObjsRe  = regexp.MustCompile(`}\s*{`)
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
	unquotedKeyRe   = regexp.MustCompile(`([{,]\s*)(\w+)(\s*:)`)
)

// SliceParse cuts the first-{ .. last-} span out of raw and parses it as
// a JSON object. This is the direct tier used before any recovery.
func SliceParse(raw string) (map[string]any, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw[start:end+1]), &out); err != nil {
		return nil, false
	}
	return out, true
}

// Recover runs the ladder: direct slice parse, model-assisted fix,
// heuristic repair, then field-by-field extraction for expectedFields.
// It returns nil when every rung fails; callers substitute defaults.
func (r *Recoverer) Recover(ctx domain.Context, raw string, expectedFields []string) map[string]any {
	if strings.TrimSpace(raw) == "" {
		observability.RecoveryOutcomesTotal.WithLabelValues("unrecovered").Inc()
		return nil
	}
	if m, ok := SliceParse(raw); ok {
		observability.RecoveryOutcomesTotal.WithLabelValues("direct").Inc()
		return m
	}
	if m := r.modelFix(ctx, raw); m != nil {
		observability.RecoveryOutcomesTotal.WithLabelValues("model_fix").Inc()
		return m
	}
	if m, ok := SliceParse(RepairJSON(raw)); ok {
		observability.RecoveryOutcomesTotal.WithLabelValues("repair").Inc()
		return m
	}
	if m := extractFields(raw, expectedFields); m != nil {
		observability.RecoveryOutcomesTotal.WithLabelValues("field_extract").Inc()
		return m
	}
	observability.RecoveryOutcomesTotal.WithLabelValues("unrecovered").Inc()
	return nil
}

func (r *Recoverer) modelFix(ctx domain.Context, raw string) map[string]any {
	if r.ai == nil {
		return nil
	}
	const system = "You repair malformed JSON. Return only the corrected JSON object, with no commentary and no markdown fences."
	fixed, err := r.ai.ChatJSON(ctx, system, "Fix the JSON syntax of this text:\n"+raw, 1024)
	if err != nil {
		slog.Debug("json fix round-trip failed", slog.String("error", err.Error()))
		return nil
	}
	if m, ok := SliceParse(fixed); ok {
		return m
	}
	return nil
}

// RepairJSON applies heuristic regex repairs: quote normalization,
// missing commas between adjacent pairs and between objects, trailing
// comma removal and control character stripping.
func RepairJSON(s string) string {
	s = stripControlChars(s)
	s = singleQuotedRe.ReplaceAllString(s, `"$1"`)
	s = unquotedKeyRe.ReplaceAllString(s, `$1"$2"$3`)
	s = adjacentObjsRe.ReplaceAllString(s, "},{")
	s = braceThenKeyRe.ReplaceAllString(s, `$1, "`)
	s = valueThenKeyRe.ReplaceAllString(s, `$1, $2`)
	s = trailingCommaRe.ReplaceAllString(s, "$1")
	return s
}

func stripControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// extractFields regexes each expected field out of the raw text
// independently. Unrecovered fields default to an empty string so the
// caller sees a uniform shape. Returns nil when nothing was found.
func extractFields(raw string, fields []string) map[string]any {
	if len(fields) == 0 {
		return nil
	}
	out := map[string]any{}
	found := false
	for _, f := range fields {
		quoted := regexp.QuoteMeta(f)
		if m := regexp.MustCompile(`"?` + quoted + `"?\s*:\s*"((?:[^"\\]|\\.)*)"`).FindStringSubmatch(raw); m != nil {
			out[f] = m[1]
			found = true
			continue
		}
		if m := regexp.MustCompile(`"?` + quoted + `"?\s*:\s*(-?\d+(?:\.\d+)?)`).FindStringSubmatch(raw); m != nil {
			if n, err := strconv.ParseFloat(m[1], 64); err == nil {
				out[f] = n
				found = true
				continue
			}
		}
		if m := regexp.MustCompile(`"?` + quoted + `"?\s*:\s*\[([^\]]*)\]`).FindStringSubmatch(raw); m != nil {
			out[f] = splitQuotedItems(m[1])
			found = true
			continue
		}
		out[f] = ""
	}
	if !found {
		return nil
	}
	return out
}

var quotedItemRe = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"`)

func splitQuotedItems(s string) []any {
	var items []any
	for _, m := range quotedItemRe.FindAllStringSubmatch(s, -1) {
		items = append(items, m[1])
	}
	return items
}
