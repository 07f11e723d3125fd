package enums

import (
	"fmt"
	"strings"
)

// ReportView enumerates the closed set of order report projections.
type ReportView string

const (
	ReportViewDefault            ReportView = "default"
	ReportViewFull               ReportView = "full"
	ReportViewVerification       ReportView = "verification"
	ReportViewSpreadingJobs      ReportView = "spreading_jobs"
	ReportViewMoneyCollection    ReportView = "money_collection"
	ReportViewDistributionPoints ReportView = "distribution_points"
)

var validReportViews = []ReportView{
	ReportViewDefault,
	ReportViewFull,
	ReportViewVerification,
	ReportViewSpreadingJobs,
	ReportViewMoneyCollection,
	ReportViewDistributionPoints,
}

// ReportViews returns every report view in display order.
func ReportViews() []ReportView {
	out := make([]ReportView, len(validReportViews))
	copy(out, validReportViews)
	return out
}

// String implements fmt.Stringer.
func (v ReportView) String() string {
	return string(v)
}

// IsValid reports whether the view is recognized.
func (v ReportView) IsValid() bool {
	for _, candidate := range validReportViews {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseReportView converts a raw string into a ReportView. Hyphens and case are tolerated.
func ParseReportView(value string) (ReportView, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), "-", "_")
	if normalized == "" {
		return ReportViewDefault, nil
	}
	for _, candidate := range validReportViews {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid report view %q", value)
}
