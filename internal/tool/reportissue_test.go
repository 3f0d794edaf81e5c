package tool

import (
	"bytes"
	"context"
	"net/url"
	"strings"
	"testing"
)

func TestReportIssueBuildsPrefilledURL(t *testing.T) {
	issue := &ReportIssue{
		Title:          "Spinner never stops",
		ActualBehavior: "The spinner keeps spinning after the response ends",
	}
	issue.SetContext(IssueContext{
		Transcript:       []string{"> hello", "hi there"},
		FailedRequestIDs: []string{"req-42"},
		AcceptAll:        true,
		Interactive:      true,
	})

	var out bytes.Buffer
	result, err := issue.Invoke(context.Background(), nil, &out)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if result.Text == "" {
		t.Error("expected a result summary for the model")
	}

	printed := out.String()
	if !strings.Contains(printed, issueTrackerURL) {
		t.Fatalf("output does not contain the tracker URL: %q", printed)
	}
	if !strings.Contains(printed, url.QueryEscape("Spinner never stops")) {
		t.Errorf("title not escaped into the URL: %q", printed)
	}

	body, err := url.QueryUnescape(printed[strings.Index(printed, "body=")+5:])
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"req-42", "> hello", "accept-all: true", "The spinner keeps spinning"} {
		if !strings.Contains(body, want) {
			t.Errorf("issue body missing %q:\n%s", want, body)
		}
	}
}

func TestReportIssueValidate(t *testing.T) {
	if err := (&ReportIssue{Title: " "}).Validate(context.Background(), nil); err == nil {
		t.Error("blank title must fail validation")
	}
	if err := (&ReportIssue{Title: "bug"}).Validate(context.Background(), nil); err != nil {
		t.Errorf("Validate = %v", err)
	}
}

func TestReportIssueNeedsNoAcceptance(t *testing.T) {
	if (&ReportIssue{Title: "bug"}).RequiresAcceptance(nil) {
		t.Error("report_issue must not require acceptance")
	}
}
