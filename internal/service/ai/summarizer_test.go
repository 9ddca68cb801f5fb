package ai

import (
	"context"
	"testing"
)

func TestParseSummaryValidJSON(t *testing.T) {
	raw := `{"chinese_summary":"病人腹痛三天。","admission_note":"This is a 40-year-old patient..."}`

	summary, err := parseSummary(raw)
	if err != nil {
		t.Fatalf("parseSummary err: %v", err)
	}
	if summary.ChineseSummary != "病人腹痛三天。" {
		t.Fatalf("unexpected chinese summary: %q", summary.ChineseSummary)
	}
	if summary.AdmissionNote == "" {
		t.Fatal("admission note missing")
	}
}

func TestParseSummaryTrimsSurroundingText(t *testing.T) {
	raw := "Here is your summary:\n```json\n{\"chinese_summary\":\"摘要\",\"admission_note\":\"note\"}\n```"

	summary, err := parseSummary(raw)
	if err != nil {
		t.Fatalf("parseSummary err: %v", err)
	}
	if summary.ChineseSummary != "摘要" || summary.AdmissionNote != "note" {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestParseSummaryRejectsNonJSON(t *testing.T) {
	if _, err := parseSummary("抱歉，我無法產生摘要。"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSummarizerWithoutModelReturnsPlaceholders(t *testing.T) {
	s, err := NewSummarizer(context.Background(), nil)
	if err != nil {
		t.Fatalf("NewSummarizer err: %v", err)
	}

	summary := s.Summarize(context.Background(), "Q: 哪裡不舒服？\nA: 肚子痛\n\n")
	if summary.ChineseSummary != summaryFailed || summary.AdmissionNote != summaryFailed {
		t.Fatalf("expected failure placeholders, got %+v", summary)
	}
}

func TestClassifierWithoutModelReturnsDefault(t *testing.T) {
	c, err := NewClassifier(context.Background(), nil)
	if err != nil {
		t.Fatalf("NewClassifier err: %v", err)
	}

	if got := c.Classify(context.Background(), "我肚子痛"); got != "abdominal pain" {
		t.Fatalf("expected default category, got %s", got)
	}
}
