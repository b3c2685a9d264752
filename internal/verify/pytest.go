package verify

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"

	"apiscribe/internal/types"
)

var (
	// Final counts line: "1 failed, 5 passed, 2 skipped in 0.45s", optionally
	// framed with ===== and with a trailing "(0:00:01)".
	resultsLineRegex = regexp.MustCompile(`(?:\d+ \w+|no tests ran).*\bin [\d.]+s\b`)

	countRegex = regexp.MustCompile(`(\d+) (passed|failed|errors?|skipped|xfailed|xpassed|deselected|warnings?)`)

	// Short summary: FAILED tests/test_file.py::TestClass::test_method - ErrorType: msg
	failedLineRegex = regexp.MustCompile(`^(?:FAILED|ERROR) (\S+::\S+)`)
)

// ParseSummary extracts the counts and failed test ids from pytest output.
// It returns nil when no counts line is present. The result is informational;
// the exit status alone decides success.
func ParseSummary(output string) *types.TestSummary {
	var (
		summary  types.TestSummary
		found    bool
		resultLn string
	)

	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if m := failedLineRegex.FindStringSubmatch(line); m != nil {
			summary.FailedTests = append(summary.FailedTests, m[1])
			continue
		}
		if resultsLineRegex.MatchString(line) {
			resultLn = line
			found = true
		}
	}
	if !found {
		return nil
	}

	for _, m := range countRegex.FindAllStringSubmatch(resultLn, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		switch m[2] {
		case "passed", "xpassed":
			summary.Passed += n
		case "failed":
			summary.Failed += n
		case "error", "errors":
			summary.Errors += n
		case "skipped", "xfailed", "deselected":
			summary.Skipped += n
		}
	}
	return &summary
}
