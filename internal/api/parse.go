package api

import (
	"math"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// preferredModelKeys are promoted to the front of the model list, in this
// order, when the payload reports more than one model bucket.
var preferredModelKeys = []string{"seven_day_sonnet", "seven_day_opus"}

const sevenDayPrefix = "seven_day_"

// ParseUsagePayload converts a decoded usage payload into an ok snapshot.
// The upstream API is loosely typed, so parsing is deliberately tolerant:
// missing or malformed sub-objects default to 0% with no reset timestamp
// rather than failing the whole snapshot.
func ParseUsagePayload(payload map[string]any, orgID string) Snapshot {
	usage := Usage{}

	if window, ok := payload["five_hour"].(map[string]any); ok {
		usage.SessionPercent = utilizationPercent(window["utilization"])
		usage.SessionResetsAt = readString(window["resets_at"])
	}
	if window, ok := payload["seven_day"].(map[string]any); ok {
		usage.WeeklyPercent = utilizationPercent(window["utilization"])
		usage.WeeklyResetsAt = readString(window["resets_at"])
	}

	usage.Models = readModelBuckets(payload)

	return OkSnapshot(orgID, usage)
}

// readModelBuckets collects every seven_day_<model> bucket. Preferred models
// come first in their fixed order; the rest follow in whatever order they are
// discovered, skipping zero-percent stragglers.
func readModelBuckets(payload map[string]any) []ModelUsage {
	var out []ModelUsage

	for _, key := range preferredModelKeys {
		if window, ok := payload[key].(map[string]any); ok {
			out = append(out, modelFromBucket(key, window))
		}
	}

	for key, value := range payload {
		if !strings.HasPrefix(key, sevenDayPrefix) || key == "seven_day" {
			continue
		}
		if lo.Contains(preferredModelKeys, key) {
			continue
		}
		window, ok := value.(map[string]any)
		if !ok {
			continue
		}
		m := modelFromBucket(key, window)
		if m.Percent == 0 {
			continue
		}
		out = append(out, m)
	}

	return lo.UniqBy(out, func(m ModelUsage) string { return m.Name })
}

func modelFromBucket(key string, window map[string]any) ModelUsage {
	return ModelUsage{
		Name:     TitleCase(strings.TrimPrefix(key, sevenDayPrefix)),
		Percent:  utilizationPercent(window["utilization"]),
		ResetsAt: readString(window["resets_at"]),
	}
}

// utilizationPercent coerces a numeric-or-string utilization value to a
// clamped percentage. Unparsable or non-finite values map to 0.
func utilizationPercent(v any) float64 {
	switch value := v.(type) {
	case float64:
		return ClampPercent(value)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || math.IsInf(parsed, 0) {
			return 0
		}
		return ClampPercent(parsed)
	default:
		return 0
	}
}

func readString(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// TitleCase converts a raw model key like "opus" or "research_preview" into
// a display name ("Opus", "Research Preview").
func TitleCase(raw string) string {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '_' || r == ' ' || r == '\t'
	})
	for i, part := range parts {
		parts[i] = strings.ToUpper(part[:1]) + part[1:]
	}
	return strings.Join(parts, " ")
}
