package runner

import (
	"strings"
	"testing"
)

func TestSquashSpaces(t *testing.T) {
	for _, tc := range []struct {
		in, want string
	}{
		{"", ""},
		{"a b", "a b"},
		{"a  b", "a b"},
		{"a        b", "a b"},
		{" %   cumulative    self  ", " % cumulative self "},
	} {
		if got := squashSpaces(tc.in); got != tc.want {
			t.Errorf("squashSpaces(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTruncateReport(t *testing.T) {
	long := strings.Repeat("x", 600)
	if got := truncateReport(long, maxReportLen); len(got) != maxReportLen {
		t.Fatalf("expected %d chars, got %d", maxReportLen, len(got))
	}
	short := "short report"
	if got := truncateReport(short, maxReportLen); got != short {
		t.Fatalf("expected short report unchanged, got %q", got)
	}
}

func TestUnifiedDiff(t *testing.T) {
	d, err := unifiedDiff("a\nb\n", "a\nb\n")
	if err != nil {
		t.Fatal(err)
	}
	if d != "" {
		t.Fatalf("expected empty diff for equal inputs, got %q", d)
	}

	d, err = unifiedDiff("a\nb\n", "a\nc\n")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"--- expected_output", "+++ actual_output", "-b", "+c"} {
		if !strings.Contains(d, want) {
			t.Fatalf("expected diff to contain %q, got %q", want, d)
		}
	}
}
