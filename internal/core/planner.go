package core

import (
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	DefaultNoteColor  = "#ffffff"
	DefaultEventColor = "#3b82f6"

	reminderDoneColor    = "#10b981"
	reminderPendingColor = "#ef4444"
	notePreviewRunes     = 50
)

type Note struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Reminder struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	IsCompleted bool       `json:"is_completed"`
	CreatedAt   time.Time  `json:"created_at"`
}

type CalendarEvent struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	Color       string     `json:"color"`
	CreatedAt   time.Time  `json:"created_at"`
}

type EntryKind string

const (
	EntryEvent    EntryKind = "event"
	EntryReminder EntryKind = "reminder"
	EntryNote     EntryKind = "note"
)

// CalendarEntry is one item of the merged calendar feed.
type CalendarEntry struct {
	ID          string     `json:"id"`
	SourceID    int64      `json:"source_id"`
	Kind        EntryKind  `json:"type"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Start       time.Time  `json:"start"`
	End         *time.Time `json:"end,omitempty"`
	Color       string     `json:"color"`
	Completed   *bool      `json:"completed,omitempty"`
}

// Window bounds a calendar feed. Zero bounds are open.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) contains(t time.Time) bool {
	if !w.Start.IsZero() && t.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && t.After(w.End) {
		return false
	}
	return true
}

// overlaps reports whether [start, end] intersects the window.
func (w Window) overlaps(start, end time.Time) bool {
	if !w.End.IsZero() && start.After(w.End) {
		return false
	}
	if !w.Start.IsZero() && end.Before(w.Start) {
		return false
	}
	return true
}

// MergeCalendar projects events, dated reminders and notes into one
// chronological feed. Reminders without a due date are left out.
func MergeCalendar(events []CalendarEvent, reminders []Reminder, notes []Note, w Window) []CalendarEntry {
	out := make([]CalendarEntry, 0, len(events)+len(reminders)+len(notes))

	for _, e := range events {
		if e.EndTime != nil {
			if !w.overlaps(e.StartTime, *e.EndTime) {
				continue
			}
		} else if !w.contains(e.StartTime) {
			continue
		}
		color := e.Color
		if color == "" {
			color = DefaultEventColor
		}
		out = append(out, CalendarEntry{
			ID:          "event-" + strconv.FormatInt(e.ID, 10),
			SourceID:    e.ID,
			Kind:        EntryEvent,
			Title:       e.Title,
			Description: e.Description,
			Start:       e.StartTime,
			End:         e.EndTime,
			Color:       color,
		})
	}

	for _, r := range reminders {
		if r.DueDate == nil || !w.contains(*r.DueDate) {
			continue
		}
		color := reminderPendingColor
		if r.IsCompleted {
			color = reminderDoneColor
		}
		completed := r.IsCompleted
		out = append(out, CalendarEntry{
			ID:          "reminder-" + strconv.FormatInt(r.ID, 10),
			SourceID:    r.ID,
			Kind:        EntryReminder,
			Title:       r.Title,
			Description: "Reminder: " + r.Description,
			Start:       *r.DueDate,
			Color:       color,
			Completed:   &completed,
		})
	}

	for _, n := range notes {
		if !w.contains(n.CreatedAt) {
			continue
		}
		color := n.Color
		if color == "" {
			color = DefaultNoteColor
		}
		out = append(out, CalendarEntry{
			ID:          "note-" + strconv.FormatInt(n.ID, 10),
			SourceID:    n.ID,
			Kind:        EntryNote,
			Title:       n.Title,
			Description: notePreview(n.Content),
			Start:       n.CreatedAt,
			Color:       color,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].SourceID < out[j].SourceID
	})
	return out
}

func notePreview(content string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return "Note"
	}
	if utf8.RuneCountInString(content) <= notePreviewRunes {
		return "Note: " + content
	}
	runes := []rune(content)
	return "Note: " + string(runes[:notePreviewRunes]) + "..."
}
