package results

import (
	"encoding/json"
	"strings"
)

// Step statuses counted by Summary. Anything else lands in Other.
const (
	StatusPass    = "pass"
	StatusFail    = "fail"
	StatusWarning = "warning"
	StatusSkipped = "skipped"
)

// Summary counts a run's records.
type Summary struct {
	Steps      int `json:"steps"`
	Pass       int `json:"pass"`
	Fail       int `json:"fail"`
	Warning    int `json:"warning"`
	Skipped    int `json:"skipped"`
	Other      int `json:"other"`
	Actions    int `json:"actions"`
	NavTimings int `json:"navTimings"`
	Requests   int `json:"requests"`
}

// Passed reports whether no step failed.
func (s Summary) Passed() bool { return s.Fail == 0 }

// stepFields is the part of a step record Summary understands.
type stepFields struct {
	Name   string `json:"name"`
	Title  string `json:"title"`
	Step   string `json:"step"`
	Status string `json:"status"`
}

func parseStep(raw json.RawMessage) stepFields {
	var fields stepFields
	_ = json.Unmarshal(raw, &fields)
	if fields.Name == "" {
		fields.Name = fields.Title
	}
	if fields.Name == "" {
		fields.Name = fields.Step
	}
	fields.Status = normalizeStatus(fields.Status)
	return fields
}

func normalizeStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "pass", "passed", "ok", "success":
		return StatusPass
	case "fail", "failed", "error":
		return StatusFail
	case "warn", "warning":
		return StatusWarning
	case "skip", "skipped", "pending":
		return StatusSkipped
	case "":
		return "unknown"
	default:
		return strings.ToLower(strings.TrimSpace(status))
	}
}

func summarize(steps, actions, navTimings, requests []json.RawMessage) Summary {
	summary := Summary{
		Steps:      len(steps),
		Actions:    len(actions),
		NavTimings: len(navTimings),
		Requests:   len(requests),
	}
	for _, raw := range steps {
		switch parseStep(raw).Status {
		case StatusPass:
			summary.Pass++
		case StatusFail:
			summary.Fail++
		case StatusWarning:
			summary.Warning++
		case StatusSkipped:
			summary.Skipped++
		default:
			summary.Other++
		}
	}
	return summary
}
