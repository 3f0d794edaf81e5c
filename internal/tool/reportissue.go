package tool

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/ymhiroki/qchat/internal/message"
)

// issueTrackerURL is where pre-filled issue reports are opened.
const issueTrackerURL = "https://github.com/ymhiroki/qchat/issues/new"

// maxIssueBodyLen keeps the pre-filled URL within browser limits.
const maxIssueBodyLen = 6000

// IssueContext is the session snapshot injected into the issue reporter.
// Snapshots, not references: the tool keeps copies so it never reaches back
// into the session.
type IssueContext struct {
	Transcript       []string
	FailedRequestIDs []string
	AcceptAll        bool
	Interactive      bool
}

// ReportIssue builds a pre-filled GitHub issue URL for a bug report or
// feature request and prints it for the user to open; it does not open a
// browser itself.
type ReportIssue struct {
	Title            string `json:"title"`
	ExpectedBehavior string `json:"expected_behavior,omitempty"`
	ActualBehavior   string `json:"actual_behavior,omitempty"`
	StepsToReproduce string `json:"steps_to_reproduce,omitempty"`

	issueContext IssueContext
}

// SetContext injects the session snapshot. Called during contextualization.
func (t *ReportIssue) SetContext(ic IssueContext) {
	t.issueContext = ic
}

func (t *ReportIssue) DisplayName() string {
	return "Report an issue"
}

func (t *ReportIssue) DisplayNameAction() string {
	return "Reporting an issue"
}

func (t *ReportIssue) Validate(_ context.Context, _ *Env) error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("title must not be empty")
	}
	return nil
}

func (t *ReportIssue) RequiresAcceptance(_ *Env) bool {
	return false
}

func (t *ReportIssue) QueueDescription(_ *Env, w io.Writer) error {
	fmt.Fprintf(w, "Preparing an issue report titled: %s\n", t.Title)
	return nil
}

func (t *ReportIssue) Invoke(_ context.Context, _ *Env, w io.Writer) (InvokeOutput, error) {
	body := t.buildBody()

	issueURL := fmt.Sprintf("%s?title=%s&body=%s",
		issueTrackerURL,
		url.QueryEscape(t.Title),
		url.QueryEscape(body),
	)

	fmt.Fprintf(w, "Open the following URL to file the report:\n%s\n", issueURL)
	return InvokeOutput{Text: "Issue report prepared for the user"}, nil
}

func (t *ReportIssue) buildBody() string {
	var sb strings.Builder

	section := func(header, content string) {
		if content != "" {
			fmt.Fprintf(&sb, "### %s\n%s\n\n", header, content)
		}
	}
	section("Expected behavior", t.ExpectedBehavior)
	section("Actual behavior", t.ActualBehavior)
	section("Steps to reproduce", t.StepsToReproduce)

	if len(t.issueContext.FailedRequestIDs) > 0 {
		section("Failed request ids", strings.Join(t.issueContext.FailedRequestIDs, "\n"))
	}

	fmt.Fprintf(&sb, "### Session\naccept-all: %v\ninteractive: %v\n\n",
		t.issueContext.AcceptAll, t.issueContext.Interactive)

	if len(t.issueContext.Transcript) > 0 {
		remaining := maxIssueBodyLen - sb.Len()
		if remaining > 0 {
			section("Transcript", message.BuildTranscriptText(t.issueContext.Transcript, remaining))
		}
	}

	return sb.String()
}
