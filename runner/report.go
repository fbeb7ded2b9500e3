package runner

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// maxReportLen bounds the profiling report returned to callers.
const maxReportLen = 500

// squashSpaces collapses every run of consecutive spaces down to a single
// space so column-padded profiler tables survive transport compactly.
func squashSpaces(s string) string {
	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}
	return s
}

// truncateReport cuts s to at most n characters without splitting a rune.
func truncateReport(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// unifiedDiff returns a line-based unified diff between expected and actual,
// labeled expected_output / actual_output. Equal inputs yield an empty diff.
func unifiedDiff(expected, actual string) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(expected),
		B:        difflib.SplitLines(actual),
		FromFile: "expected_output",
		ToFile:   "actual_output",
		Context:  3,
	})
}
