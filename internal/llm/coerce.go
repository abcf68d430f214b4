package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/joseph-ayodele/resume-parser/internal/common"
	"github.com/joseph-ayodele/resume-parser/internal/entity"
)

// Coerce decodes raw completion text into a profile. Shape drift is repaired and reported
// in notes. Only text that is not a single JSON object fails, with CodeMalformedCompletion.
func Coerce(raw string) (entity.ExtractedProfile, []string, error) {
	text := StripCodeFences(strings.TrimSpace(raw))
	if text == "" {
		return entity.ExtractedProfile{}, nil, malformed("completion is empty", nil)
	}

	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return entity.ExtractedProfile{}, nil, malformed("completion is not valid JSON", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return entity.ExtractedProfile{}, nil, malformed("completion has data after the JSON value", err)
	}

	envelope, err := compiledEnvelopeSchema()
	if err != nil {
		return entity.ExtractedProfile{}, nil, fmt.Errorf("envelope schema: %w", err)
	}
	if err := validateValue(envelope, doc); err != nil {
		return entity.ExtractedProfile{}, nil, malformed(fmt.Sprintf("completion top level is %s, want object", jsonKind(doc)), err)
	}

	normalized, notes := NormalizeProfileMap(doc.(map[string]any))
	b, err := json.Marshal(normalized)
	if err != nil {
		return entity.ExtractedProfile{}, notes, malformed("re-encode normalized completion", err)
	}

	profileSchema, err := compiledProfileSchema()
	if err != nil {
		return entity.ExtractedProfile{}, notes, fmt.Errorf("profile schema: %w", err)
	}
	var check any
	if err := json.Unmarshal(b, &check); err != nil {
		return entity.ExtractedProfile{}, notes, malformed("re-decode normalized completion", err)
	}
	if err := validateValue(profileSchema, check); err != nil {
		return entity.ExtractedProfile{}, notes, malformed("completion does not match the profile schema", err)
	}

	var profile entity.ExtractedProfile
	if err := json.Unmarshal(b, &profile); err != nil {
		return entity.ExtractedProfile{}, notes, malformed("decode profile", err)
	}
	profile.Normalize()
	return profile, notes, nil
}

// StripCodeFences removes one surrounding markdown fence (```json ... ``` or ``` ... ```).
// Anything else is returned unchanged.
func StripCodeFences(text string) string {
	cleaned := strings.TrimSpace(text)
	if !strings.HasPrefix(cleaned, "```") || !strings.HasSuffix(cleaned, "```") || len(cleaned) < 6 {
		return text
	}
	body := cleaned[3 : len(cleaned)-3]
	// drop the info string (e.g. "json") up to the first newline
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		if info := strings.TrimSpace(body[:nl]); info == "" || !strings.ContainsAny(info, "{[") {
			body = body[nl+1:]
		}
	}
	return strings.TrimSpace(body)
}

func malformed(message string, cause error) error {
	return common.NewAppError(common.CodeMalformedCompletion, message, cause)
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "an array"
	case string:
		return "a string"
	case json.Number, float64:
		return "a number"
	case bool:
		return "a boolean"
	case map[string]any:
		return "an object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
