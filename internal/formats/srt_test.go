package formats_test

import (
	"strings"
	"testing"

	"ytqueue/internal/formats"
)

func TestSRTToText(t *testing.T) {
	input := "\ufeff1\r\n00:00:01,000 --> 00:00:02,000\r\n<i>Hello</i> there\r\n\r\n" +
		"2\n00:00:02,000 --> 00:00:03,500\n{\\an8}Hello there\n\n" +
		"3\n00:00:04,000 --> 00:00:05,000\nSecond <font color=\"red\">line</font>\n2024 was a year\n"

	got, err := formats.SRTToText(strings.NewReader(input))
	if err != nil {
		t.Fatalf("SRTToText: %v", err)
	}
	want := "Hello there\nSecond line\n2024 was a year\n"
	if got != want {
		t.Fatalf("unexpected text:\n got %q\nwant %q", got, want)
	}
}

func TestSRTToTextEmpty(t *testing.T) {
	got, err := formats.SRTToText(strings.NewReader(""))
	if err != nil || got != "" {
		t.Fatalf("expected empty output, got %q %v", got, err)
	}
}
