// Package alpr turns raw OpenALPR text output into plate candidates and picks the
// most trustworthy reading.
package alpr

import (
	"strconv"
	"strings"

	"parking-anpr-service/internal/domain/anpr"
)

const confidenceLiteral = "confidence:"

// ParseCandidates extracts every "- PLATE confidence: NN.N" reading from the
// newline-delimited recognizer output. Lines of any other shape are ignored and
// duplicates are kept in input order.
func ParseCandidates(text string) []anpr.Candidate {
	var out []anpr.Candidate
	for _, line := range strings.Split(text, "\n") {
		if c, ok := parseLine(line); ok {
			out = append(out, c)
		}
	}
	return out
}

// parseLine uses the leftmost dash that starts a complete reading. A reading whose
// number run is not a valid decimal discards the whole line.
func parseLine(line string) (anpr.Candidate, bool) {
	for i := 0; i < len(line); i++ {
		if line[i] != '-' {
			continue
		}
		plate, number, ok := scanReading(line, i+1)
		if !ok {
			continue
		}
		conf, err := strconv.ParseFloat(number, 64)
		if err != nil {
			return anpr.Candidate{}, false
		}
		return anpr.Candidate{Plate: plate, Confidence: conf}, true
	}
	return anpr.Candidate{}, false
}

// scanReading matches `\s+[A-Z0-9]+\s+confidence:\s+[0-9.]+` starting at pos.
func scanReading(s string, pos int) (plate, number string, ok bool) {
	i, ok := skipSpace(s, pos)
	if !ok {
		return "", "", false
	}

	start := i
	for i < len(s) && isPlateChar(s[i]) {
		i++
	}
	if i == start {
		return "", "", false
	}
	plate = s[start:i]

	if i, ok = skipSpace(s, i); !ok {
		return "", "", false
	}
	if !strings.HasPrefix(s[i:], confidenceLiteral) {
		return "", "", false
	}
	i += len(confidenceLiteral)
	if i, ok = skipSpace(s, i); !ok {
		return "", "", false
	}

	start = i
	for i < len(s) && (isDigit(s[i]) || s[i] == '.') {
		i++
	}
	if i == start {
		return "", "", false
	}
	return plate, s[start:i], true
}

// skipSpace requires at least one whitespace byte at pos.
func skipSpace(s string, pos int) (int, bool) {
	i := pos
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	return i, i > pos
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\r', '\f', '\v':
		return true
	}
	return false
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isPlateChar(b byte) bool {
	return isDigit(b) || (b >= 'A' && b <= 'Z')
}
