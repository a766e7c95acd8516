package core

import (
	"strings"
	"testing"
	"time"
)

func TestMergeCalendar(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 6, d, 9, 0, 0, 0, time.UTC) }
	due := day(3)
	later := day(20)

	events := []CalendarEvent{{ID: 1, Title: "Standup", StartTime: day(5)}}
	reminders := []Reminder{
		{ID: 7, Title: "Pay rent", Description: "June", DueDate: &due, IsCompleted: true},
		{ID: 8, Title: "Undated"},
		{ID: 9, Title: "Later", DueDate: &later},
	}
	notes := []Note{{ID: 4, Title: "Ideas", Content: strings.Repeat("x", 60), CreatedAt: day(1)}}

	feed := MergeCalendar(events, reminders, notes, Window{})
	if len(feed) != 4 {
		t.Fatalf("feed length = %d, want 4", len(feed))
	}

	if feed[0].Kind != EntryNote || !strings.HasSuffix(feed[0].Description, "...") {
		t.Errorf("first entry should be the truncated note, got %+v", feed[0])
	}
	if feed[0].Color != DefaultNoteColor {
		t.Errorf("note color = %s", feed[0].Color)
	}
	if feed[1].Kind != EntryReminder || feed[1].Color != reminderDoneColor || feed[1].Description != "Reminder: June" {
		t.Errorf("completed reminder projected wrong: %+v", feed[1])
	}
	if feed[2].Kind != EntryEvent || feed[2].Color != DefaultEventColor {
		t.Errorf("event projected wrong: %+v", feed[2])
	}
	if feed[3].Color != reminderPendingColor {
		t.Errorf("pending reminder color = %s", feed[3].Color)
	}

	windowed := MergeCalendar(events, reminders, notes, Window{Start: day(2), End: day(10)})
	if len(windowed) != 2 {
		t.Errorf("windowed feed length = %d, want 2", len(windowed))
	}
}

func TestMergeCalendarSpanningEvents(t *testing.T) {
	at := func(m time.Month, d, h int) time.Time { return time.Date(2024, m, d, h, 0, 0, 0, time.UTC) }
	feb := Window{Start: at(time.February, 1, 0), End: at(time.February, 29, 23)}

	end := at(time.February, 2, 10)
	janEnd := at(time.January, 31, 23)
	events := []CalendarEvent{
		{ID: 1, Title: "Trip", StartTime: at(time.January, 31, 20), EndTime: &end},
		{ID: 2, Title: "Conference", StartTime: at(time.January, 30, 9), EndTime: &janEnd},
		{ID: 3, Title: "Open ended", StartTime: at(time.January, 31, 8)},
	}

	feed := MergeCalendar(events, nil, nil, feb)
	if len(feed) != 1 || feed[0].SourceID != 1 {
		t.Fatalf("feed = %+v, want only the event spanning into the window", feed)
	}
}

func TestNotePreview(t *testing.T) {
	if got := notePreview(""); got != "Note" {
		t.Errorf("empty preview = %q", got)
	}
	if got := notePreview("short"); got != "Note: short" {
		t.Errorf("short preview = %q", got)
	}
}
