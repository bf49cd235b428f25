// Package privacy implements the redaction and leak-detection pass:
// recursive key/value scrubbing of negotiation-adjacent payloads, plus
// the price/spread banding applied to public turn summaries.
package privacy

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/molt-labs/molt-negotiation/internal/apierr"
)

const redacted = "[REDACTED]"

var sensitiveKeyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)private`),
	regexp.MustCompile(`(?i)income`),
	regexp.MustCompile(`(?i)credit`),
	regexp.MustCompile(`(?i)reservation`),
	regexp.MustCompile(`(?i)salary`),
	regexp.MustCompile(`(?i)budget`),
	regexp.MustCompile(`(?i)secret`),
	regexp.MustCompile(`(?i)max[_-]?price`),
	regexp.MustCompile(`(?i)min[_-]?price`),
	regexp.MustCompile(`(?i)notes?`),
}

var sensitiveValuePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)credit score`),
	regexp.MustCompile(`(?i)income`),
	regexp.MustCompile(`(?i)reservation price`),
	regexp.MustCompile(`(?i)max price`),
	regexp.MustCompile(`(?i)private context`),
	regexp.MustCompile(`(?i)ignore previous instructions`),
	regexp.MustCompile(`(?i)reveal private`),
}

func keyIsSensitive(key string) bool {
	for _, p := range sensitiveKeyPatterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}

func valueIsSensitive(v string) bool {
	for _, p := range sensitiveValuePatterns {
		if p.MatchString(v) {
			return true
		}
	}
	return false
}

// Redact returns a deep copy of v with every sensitive key's value and
// every sensitive string value replaced with [REDACTED]. Maps and slices
// are walked recursively; other values pass through unchanged.
func Redact(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if keyIsSensitive(k) {
				out[k] = redacted
				continue
			}
			out[k] = Redact(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = Redact(item)
		}
		return out
	case string:
		if valueIsSensitive(t) {
			return redacted
		}
		return t
	default:
		return t
	}
}

// AssertClean walks the payload without mutating it and, when enabled is
// true, returns an apierr.Error with code privacy_redaction_violation
// (HTTP 500) the first time any sensitive key or value is found,
// carrying the dotted paths of every hit in Details["paths"].
func AssertClean(payload any, enabled bool) error {
	if !enabled {
		return nil
	}
	var paths []string
	walkForViolations(payload, "$", &paths)
	if len(paths) == 0 {
		return nil
	}
	sort.Strings(paths)
	return apierr.WithDetails(apierr.KindSystem, apierr.CodePrivacyRedactionViolation,
		fmt.Sprintf("sensitive_content_detected: %s", strings.Join(paths, ",")),
		map[string]any{"paths": paths})
}

func walkForViolations(v any, path string, paths *[]string) {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			childPath := path + "." + k
			if keyIsSensitive(k) {
				*paths = append(*paths, childPath)
				continue
			}
			walkForViolations(val, childPath, paths)
		}
	case []any:
		for i, item := range t {
			walkForViolations(item, fmt.Sprintf("%s[%d]", path, i), paths)
		}
	case string:
		if valueIsSensitive(t) {
			*paths = append(*paths, path)
		}
	}
}
