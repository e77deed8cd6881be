package scans

import (
	"encoding/json"
	"fmt"
	"strings"
)

// vulnReport is the subset of the scanning tool's JSON output we care
// about. Snyk-style: a vulnerabilities array with a severity per entry.
type vulnReport struct {
	Vulnerabilities []struct {
		Severity string `json:"severity"`
	} `json:"vulnerabilities"`
}

// ParseSeverityCounts extracts severity counts from a raw vulnerability
// report. Accepts both the single-project object form and the
// multi-project array form the tool emits.
func ParseSeverityCounts(raw []byte) (SeverityCounts, error) {
	if len(raw) == 0 {
		return SeverityCounts{}, fmt.Errorf("empty report")
	}

	var reports []vulnReport
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(raw, &reports); err != nil {
			return SeverityCounts{}, fmt.Errorf("parse report: %w", err)
		}
	} else {
		var r vulnReport
		if err := json.Unmarshal(raw, &r); err != nil {
			return SeverityCounts{}, fmt.Errorf("parse report: %w", err)
		}
		reports = []vulnReport{r}
	}

	var c SeverityCounts
	for _, rep := range reports {
		for _, v := range rep.Vulnerabilities {
			switch strings.ToLower(v.Severity) {
			case "critical":
				c.Critical++
			case "high":
				c.High++
			case "medium":
				c.Medium++
			case "low", "info", "informational", "negligible":
				c.Low++
			default:
				// unknown severity still counts as a finding
				c.Low++
			}
			c.Total++
		}
	}
	return c, nil
}
