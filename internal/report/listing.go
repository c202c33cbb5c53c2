package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/verte-zerg/oscreplay/internal/logline"
	"github.com/verte-zerg/oscreplay/internal/model"
)

// Entry is one matched line of a log file.
type Entry struct {
	Line    int
	Command model.Command
}

// Listing is the dry-run view of a log file.
type Listing struct {
	Entries  []Entry
	Total    int
	Sendable int
}

// BuildListing parses every line the way a replay pass would.
func BuildListing(lines []string) Listing {
	listing := Listing{Total: len(lines)}
	for i, line := range lines {
		cmd, ok := logline.Parse(line)
		if !ok {
			continue
		}
		if cmd.Sendable() {
			listing.Sendable++
		}
		listing.Entries = append(listing.Entries, Entry{Line: i + 1, Command: cmd})
	}
	return listing
}

// WriteListing prints the matched lines followed by a summary. Lines without
// values are dimmed because the replay skips sending them.
func WriteListing(w io.Writer, listing Listing, color bool) error {
	rows := make([][]string, 0, len(listing.Entries))
	for _, entry := range listing.Entries {
		rows = append(rows, []string{
			strconv.Itoa(entry.Line),
			entry.Command.Address,
			formatValues(entry.Command.Values),
		})
	}
	lines := formatTable([]string{"Line", "Address", "Values"}, rows, map[int]bool{0: true})
	for i, line := range lines {
		code := ""
		if i > 0 && !listing.Entries[i-1].Command.Sendable() {
			code = colorYellow
		}
		if _, err := fmt.Fprintln(w, paint(line, code, color)); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	_, err := fmt.Fprintf(w, "\n%d lines, %d matched, %d sendable\n", listing.Total, len(listing.Entries), listing.Sendable)
	if err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func formatValues(values []model.Value) string {
	if len(values) == 0 {
		return "-"
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = v.String()
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
