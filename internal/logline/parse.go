// Package logline extracts addressed commands from serialized log lines.
package logline

import (
	"errors"
	"strconv"
	"strings"

	"github.com/verte-zerg/oscreplay/internal/model"
)

const (
	addressMarker = "ADDRESS"
	floatMarker   = "FLOAT"
	boolMarker    = "BOOL"
)

// Parse scans a line for the first ADDRESS(...) marker and the FLOAT(...)
// or BOOL(...) markers that follow it. FLOAT markers take precedence: BOOL
// markers are only read when the remainder has no FLOAT marker at all.
// It returns false when the line has no address.
func Parse(line string) (model.Command, bool) {
	address, end, ok := findMarker(line, addressMarker, 0)
	if !ok {
		return model.Command{}, false
	}
	rest := line[end:]
	cmd := model.Command{Address: address}

	if bodies := findAll(rest, floatMarker); len(bodies) > 0 {
		for _, body := range bodies {
			f, ok := parseFloat(body)
			if !ok {
				continue
			}
			cmd.Values = append(cmd.Values, model.FloatValue(f))
		}
		return cmd, true
	}

	for _, body := range findAll(rest, boolMarker) {
		b, ok := parseBool(body)
		if !ok {
			continue
		}
		cmd.Values = append(cmd.Values, model.BoolValue(b))
	}
	return cmd, true
}

// parseFloat accepts decimal numbers only. Out-of-range values become ±Inf.
func parseFloat(body string) (float64, bool) {
	text := strings.TrimSpace(body)
	if strings.ContainsAny(text, "xX") {
		return 0, false
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	return f, true
}

func parseBool(body string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(body)) {
	case "true", "1":
		return true, true
	case "false", "0":
		return false, true
	default:
		return false, false
	}
}

// findMarker locates the first NAME(body) at or after from, where body is at
// least one character and contains no ')'. It returns the body and the
// offset just past the closing parenthesis.
func findMarker(s, name string, from int) (string, int, bool) {
	open := name + "("
	pos := from
	for pos <= len(s) {
		idx := strings.Index(s[pos:], open)
		if idx < 0 {
			return "", 0, false
		}
		start := pos + idx + len(open)
		closeIdx := strings.IndexByte(s[start:], ')')
		if closeIdx < 0 {
			// No ')' anywhere later, so no later marker can close either.
			return "", 0, false
		}
		if closeIdx == 0 {
			pos += idx + 1
			continue
		}
		return s[start : start+closeIdx], start + closeIdx + 1, true
	}
	return "", 0, false
}

func findAll(s, name string) []string {
	var bodies []string
	pos := 0
	for {
		body, end, ok := findMarker(s, name, pos)
		if !ok {
			return bodies
		}
		bodies = append(bodies, body)
		pos = end
	}
}
