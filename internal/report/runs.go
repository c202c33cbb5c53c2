package report

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"time"

	"github.com/verte-zerg/oscreplay/internal/model"
)

// WriteRuns prints run history as an aligned table.
func WriteRuns(w io.Writer, runs []model.RunRecord, color bool) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded yet.")
		return err
	}
	headers := []string{"ID", "Ended", "Preset", "File", "Passes", "Matched", "Sent", "Duration", "Outcome"}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		outcome := string(run.Outcome)
		if run.Error != "" {
			outcome += ": " + run.Error
		}
		rows = append(rows, []string{
			strconv.FormatInt(run.ID, 10),
			run.EndedAt.Local().Format("2006-01-02 15:04:05"),
			strconv.Itoa(run.Preset + 1),
			filepath.Base(run.FilePath),
			strconv.Itoa(run.Passes),
			strconv.Itoa(run.Matched),
			strconv.Itoa(run.Messages),
			run.EndedAt.Sub(run.StartedAt).Round(time.Millisecond).String(),
			outcome,
		})
	}
	lines := formatTable(headers, rows, map[int]bool{0: true, 2: true, 4: true, 5: true, 6: true, 7: true})
	for i, line := range lines {
		code := ""
		if i > 0 {
			code = outcomeColor(runs[i-1].Outcome)
		}
		if _, err := fmt.Fprintln(w, paint(line, code, color)); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func outcomeColor(outcome model.Outcome) string {
	switch outcome {
	case model.OutcomeCompleted:
		return colorGreen
	case model.OutcomeStopped:
		return colorYellow
	case model.OutcomeFailed:
		return colorRed
	default:
		return ""
	}
}
