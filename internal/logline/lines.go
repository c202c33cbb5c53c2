package logline

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

// ReadLines reads a log file fully and splits it into lines.
func ReadLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%s is not valid UTF-8", path)
	}
	return SplitLines(string(data)), nil
}

var newlines = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// SplitLines splits text into lines, treating "\r\n" and a lone '\r' as
// '\n'. A trailing newline does not produce an extra empty line and empty
// input has no lines.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	text = newlines.Replace(text)
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
