package out

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"habitsync/internal/modules/session/domain"
	sessionout "habitsync/internal/modules/session/port/out"
	"habitsync/internal/platform/markdown"
	"habitsync/internal/platform/slug"
)

const defaultNoteBody = "## Notes\n"

// OutcomeBlock holds the generated outcome table inside an exported note.
var OutcomeBlock = markdown.Block{
	Start: "<!-- habitsync:outcome:start -->",
	End:   "<!-- habitsync:outcome:end -->",
}

// MarkdownNoteWriter exports history entries as markdown notes with YAML
// frontmatter. Text outside the managed outcome block survives re-export.
type MarkdownNoteWriter struct {
	loc *time.Location
}

func NewMarkdownNoteWriter(loc *time.Location) sessionout.NoteWriter {
	if loc == nil {
		loc = time.Local
	}
	return &MarkdownNoteWriter{loc: loc}
}

func (w *MarkdownNoteWriter) WriteNote(_ context.Context, dir string, record domain.Record) (string, bool, error) {
	occurred := record.Session.OccurredAt.In(w.loc)
	path := filepath.Join(dir, slug.Make(occurred.Format("2006-01-02 1504")+" "+record.Session.ID)+".md")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", false, fmt.Errorf("create export directory: %w", err)
	}

	note := markdown.Note{Meta: map[string]any{}, Body: defaultNoteBody}
	existing, err := os.ReadFile(path)
	switch {
	case err == nil:
		parsed, parseErr := markdown.Parse(string(existing))
		if parseErr != nil {
			return "", false, fmt.Errorf("read existing note %s: %w", path, parseErr)
		}
		if strings.TrimSpace(parsed.Body) == "" {
			parsed.Body = defaultNoteBody
		}
		note = parsed
	case !os.IsNotExist(err):
		return "", false, fmt.Errorf("read existing note %s: %w", path, err)
	}

	note = note.Merge(frontmatter(record, occurred))
	note.Body = OutcomeBlock.Replace(note.Body, outcomeTable(record.Outcome))
	rendered, err := note.Render()
	if err != nil {
		return "", false, err
	}
	if string(existing) == rendered {
		return path, false, nil
	}
	if err := os.WriteFile(path, []byte(rendered), 0o644); err != nil {
		return "", false, fmt.Errorf("write note %s: %w", path, err)
	}
	return path, true, nil
}

func frontmatter(record domain.Record, occurred time.Time) map[string]any {
	return map[string]any{
		"session_id":             record.Session.ID,
		"identity":               record.Session.Identity.String(),
		"occurred_at":            occurred.Format(time.RFC3339),
		"actual_duration_sec":    record.Session.ActualDurationSec,
		"target_duration_sec":    record.Session.TargetDurationSec,
		"aimed_sessions_per_day": record.Session.AimedSessionsPerDay,
		"total_points":           record.Outcome.TotalPoints,
	}
}

func outcomeTable(outcome domain.Outcome) string {
	rows := []string{
		"| base | bonus | total | time streak | daily streak |",
		"| --- | --- | --- | --- | --- |",
		fmt.Sprintf("| %d | %d | %d | %d | %d |", outcome.BasePoints, outcome.BonusPoints, outcome.TotalPoints, outcome.TimeStreak, outcome.DailyStreak),
	}
	return strings.Join(rows, "\n")
}
