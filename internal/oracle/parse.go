// internal/oracle/parse.go
package oracle

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMalformedResponse marks an oracle reply that could not be decoded
// into the expected structure. There is no repair or re-ask: callers
// treat the classification as failed.
var ErrMalformedResponse = errors.New("oracle returned a malformed response")

var (
	// Regexes use \x60 for backticks because Go raw strings cannot contain them.
	jsonObjectRegex = regexp.MustCompile("(?s)\x60\x60\x60(?:json)?\\s*({.*})\\s*\x60\x60\x60")
	jsonArrayRegex  = regexp.MustCompile("(?s)\x60\x60\x60(?:json)?\\s*(\\[.*\\])\\s*\x60\x60\x60")
)

// parseJSONResponse decodes an LLM reply into T. It tolerates markdown
// code fences and surrounding conversational text, but any decode
// failure after extraction is terminal and wraps ErrMalformedResponse
// with a truncated copy of the offending payload.
func parseJSONResponse[T any](response string) (*T, error) {
	response = strings.TrimSpace(response)
	candidate := response

	isObject := strings.Contains(response, "{")
	isArray := strings.Contains(response, "[")

	if strings.HasPrefix(response, "```") {
		var matches []string
		if isObject {
			matches = jsonObjectRegex.FindStringSubmatch(response)
		}
		if len(matches) <= 1 && isArray {
			matches = jsonArrayRegex.FindStringSubmatch(response)
		}
		if len(matches) > 1 {
			candidate = matches[1]
		}
	} else if (isObject || isArray) && !strings.HasPrefix(response, "{") && !strings.HasPrefix(response, "[") {
		// The structure is buried in prose; take the outermost brackets.
		start, end := -1, -1
		if isObject {
			if fb, lb := strings.Index(response, "{"), strings.LastIndex(response, "}"); fb != -1 && lb > fb {
				start, end = fb, lb+1
			}
		}
		if start == -1 && isArray {
			if fb, lb := strings.Index(response, "["), strings.LastIndex(response, "]"); fb != -1 && lb > fb {
				start, end = fb, lb+1
			}
		}
		if start != -1 {
			candidate = response[start:end]
		}
	}

	var result T
	if err := json.Unmarshal([]byte(candidate), &result); err != nil {
		return nil, fmt.Errorf("%w: %v (payload: %s)", ErrMalformedResponse, err, truncate(candidate, 500))
	}
	return &result, nil
}

func truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
