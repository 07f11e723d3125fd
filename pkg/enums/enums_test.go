package enums

import "testing"

func TestParseReportView(t *testing.T) {
	tests := map[string]ReportView{
		"":                    ReportViewDefault,
		"Full":                ReportViewFull,
		"spreading-jobs":      ReportViewSpreadingJobs,
		" money_collection ":  ReportViewMoneyCollection,
		"DISTRIBUTION_POINTS": ReportViewDistributionPoints,
	}
	for in, want := range tests {
		got, err := ParseReportView(in)
		if err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
		if got != want {
			t.Fatalf("parse %q: expected %s got %s", in, want, got)
		}
	}
	if _, err := ParseReportView("showFull"); err == nil {
		t.Fatalf("expected error for unknown view")
	}
	if len(ReportViews()) != 6 {
		t.Fatalf("expected six report views")
	}
}

func TestParseFundraiserKind(t *testing.T) {
	if kind, err := ParseFundraiserKind(""); err != nil || kind != FundraiserKindMulch {
		t.Fatalf("blank kind should default to mulch, got %q %v", kind, err)
	}
	if kind, err := ParseFundraiserKind("Product"); err != nil || kind != FundraiserKindProduct {
		t.Fatalf("expected product kind, got %q %v", kind, err)
	}
	if _, err := ParseFundraiserKind("cookies"); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
	if FundraiserKind("cookies").IsValid() {
		t.Fatalf("unknown kind should be invalid")
	}
}
