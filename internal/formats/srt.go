package formats

import (
	"bufio"
	"io"
	"regexp"
	"strings"
)

var (
	srtTagPattern      = regexp.MustCompile(`<[^>]*>`)
	srtOverridePattern = regexp.MustCompile(`\{\\[^}]*\}`)
)

// SRTToText strips cue numbers, timing lines, and inline markup from an SRT
// document, returning one caption line per output line. Consecutive duplicate
// lines, common in auto-generated captions, are collapsed.
func SRTToText(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var out strings.Builder
	var last string
	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))
		if line == "" || isCueNumber(line) || strings.Contains(line, "-->") {
			continue
		}
		line = srtOverridePattern.ReplaceAllString(line, "")
		line = strings.TrimSpace(srtTagPattern.ReplaceAllString(line, ""))
		if line == "" || line == last {
			continue
		}
		out.WriteString(line)
		out.WriteByte('\n')
		last = line
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return out.String(), nil
}

func isCueNumber(line string) bool {
	for _, r := range line {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
