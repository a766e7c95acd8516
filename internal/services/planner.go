package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/storage"

	"golang.org/x/sync/errgroup"
)

// NoteInput, ReminderInput and EventInput carry create and partial update
// parameters. Nil fields are left untouched on update; an empty DueDate or
// EndTime clears it.
type NoteInput struct {
	Title   *string
	Content *string
	Color   *string
}

type ReminderInput struct {
	Title       *string
	Description *string
	DueDate     *string
	IsCompleted *bool
}

type EventInput struct {
	Title       *string
	Description *string
	StartTime   *string
	EndTime     *string
	Color       *string
}

// PlannerService manages notes, reminders and calendar events. Every record
// is private to its owner, admins included.
type PlannerService struct {
	storage *storage.SQLiteRepository
	now     func() time.Time
}

func NewPlannerService(storage *storage.SQLiteRepository) *PlannerService {
	return &PlannerService{storage: storage, now: time.Now}
}

func value(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

func requireTitle(p *string) error {
	if value(p) == "" {
		return fmt.Errorf("%w: title", core.ErrMissingField)
	}
	return nil
}

func parseOptionalTime(p *string) (*time.Time, error) {
	if value(p) == "" {
		return nil, nil
	}
	t, err := core.ParseTimestamp(*p)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *PlannerService) ListNotes(ctx context.Context, actor core.Actor) ([]core.Note, error) {
	return s.storage.ListNotes(ctx, actor.UserID)
}

func (s *PlannerService) CreateNote(ctx context.Context, actor core.Actor, in NoteInput) (core.Note, error) {
	if err := requireTitle(in.Title); err != nil {
		return core.Note{}, err
	}
	now := s.now().UTC().Truncate(time.Second)
	n := core.Note{
		UserID:    actor.UserID,
		Title:     value(in.Title),
		Content:   value(in.Content),
		Color:     value(in.Color),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if n.Color == "" {
		n.Color = core.DefaultNoteColor
	}
	return s.storage.CreateNote(ctx, n)
}

func (s *PlannerService) UpdateNote(ctx context.Context, actor core.Actor, id int64, in NoteInput) (core.Note, error) {
	n, err := s.storage.GetNote(ctx, actor.UserID, id)
	if err != nil {
		return core.Note{}, err
	}
	if in.Title != nil {
		if err := requireTitle(in.Title); err != nil {
			return core.Note{}, err
		}
		n.Title = value(in.Title)
	}
	if in.Content != nil {
		n.Content = value(in.Content)
	}
	if in.Color != nil && value(in.Color) != "" {
		n.Color = value(in.Color)
	}
	n.UpdatedAt = s.now().UTC().Truncate(time.Second)
	if err := s.storage.UpdateNote(ctx, n); err != nil {
		return core.Note{}, err
	}
	return n, nil
}

func (s *PlannerService) DeleteNote(ctx context.Context, actor core.Actor, id int64) error {
	return s.storage.DeleteNote(ctx, actor.UserID, id)
}

func (s *PlannerService) ListReminders(ctx context.Context, actor core.Actor) ([]core.Reminder, error) {
	return s.storage.ListReminders(ctx, actor.UserID)
}

func (s *PlannerService) CreateReminder(ctx context.Context, actor core.Actor, in ReminderInput) (core.Reminder, error) {
	if err := requireTitle(in.Title); err != nil {
		return core.Reminder{}, err
	}
	due, err := parseOptionalTime(in.DueDate)
	if err != nil {
		return core.Reminder{}, err
	}
	rm := core.Reminder{
		UserID:      actor.UserID,
		Title:       value(in.Title),
		Description: value(in.Description),
		DueDate:     due,
		CreatedAt:   s.now().UTC().Truncate(time.Second),
	}
	if in.IsCompleted != nil {
		rm.IsCompleted = *in.IsCompleted
	}
	return s.storage.CreateReminder(ctx, rm)
}

func (s *PlannerService) UpdateReminder(ctx context.Context, actor core.Actor, id int64, in ReminderInput) (core.Reminder, error) {
	rm, err := s.storage.GetReminder(ctx, actor.UserID, id)
	if err != nil {
		return core.Reminder{}, err
	}
	if in.Title != nil {
		if err := requireTitle(in.Title); err != nil {
			return core.Reminder{}, err
		}
		rm.Title = value(in.Title)
	}
	if in.Description != nil {
		rm.Description = value(in.Description)
	}
	if in.DueDate != nil {
		if rm.DueDate, err = parseOptionalTime(in.DueDate); err != nil {
			return core.Reminder{}, err
		}
	}
	if in.IsCompleted != nil {
		rm.IsCompleted = *in.IsCompleted
	}
	if err := s.storage.UpdateReminder(ctx, rm); err != nil {
		return core.Reminder{}, err
	}
	return rm, nil
}

func (s *PlannerService) DeleteReminder(ctx context.Context, actor core.Actor, id int64) error {
	return s.storage.DeleteReminder(ctx, actor.UserID, id)
}

func (s *PlannerService) ListEvents(ctx context.Context, actor core.Actor) ([]core.CalendarEvent, error) {
	return s.storage.ListEvents(ctx, actor.UserID)
}

func (s *PlannerService) CreateEvent(ctx context.Context, actor core.Actor, in EventInput) (core.CalendarEvent, error) {
	if err := requireTitle(in.Title); err != nil {
		return core.CalendarEvent{}, err
	}
	if value(in.StartTime) == "" {
		return core.CalendarEvent{}, fmt.Errorf("%w: start_time", core.ErrMissingField)
	}
	start, err := core.ParseTimestamp(*in.StartTime)
	if err != nil {
		return core.CalendarEvent{}, err
	}
	end, err := parseOptionalTime(in.EndTime)
	if err != nil {
		return core.CalendarEvent{}, err
	}
	if err := checkSpan(start, end); err != nil {
		return core.CalendarEvent{}, err
	}

	e := core.CalendarEvent{
		UserID:      actor.UserID,
		Title:       value(in.Title),
		Description: value(in.Description),
		StartTime:   start,
		EndTime:     end,
		Color:       value(in.Color),
		CreatedAt:   s.now().UTC().Truncate(time.Second),
	}
	if e.Color == "" {
		e.Color = core.DefaultEventColor
	}
	return s.storage.CreateEvent(ctx, e)
}

func (s *PlannerService) UpdateEvent(ctx context.Context, actor core.Actor, id int64, in EventInput) (core.CalendarEvent, error) {
	e, err := s.storage.GetEvent(ctx, actor.UserID, id)
	if err != nil {
		return core.CalendarEvent{}, err
	}
	if in.Title != nil {
		if err := requireTitle(in.Title); err != nil {
			return core.CalendarEvent{}, err
		}
		e.Title = value(in.Title)
	}
	if in.Description != nil {
		e.Description = value(in.Description)
	}
	if in.StartTime != nil {
		if e.StartTime, err = core.ParseTimestamp(*in.StartTime); err != nil {
			return core.CalendarEvent{}, err
		}
	}
	if in.EndTime != nil {
		if e.EndTime, err = parseOptionalTime(in.EndTime); err != nil {
			return core.CalendarEvent{}, err
		}
	}
	if in.Color != nil && value(in.Color) != "" {
		e.Color = value(in.Color)
	}
	if err := checkSpan(e.StartTime, e.EndTime); err != nil {
		return core.CalendarEvent{}, err
	}
	if err := s.storage.UpdateEvent(ctx, e); err != nil {
		return core.CalendarEvent{}, err
	}
	return e, nil
}

func (s *PlannerService) DeleteEvent(ctx context.Context, actor core.Actor, id int64) error {
	return s.storage.DeleteEvent(ctx, actor.UserID, id)
}

func checkSpan(start time.Time, end *time.Time) error {
	if end != nil && end.Before(start) {
		return fmt.Errorf("%w: end_time before start_time", core.ErrInvalidDate)
	}
	return nil
}

// Calendar merges the actor's events, dated reminders and notes inside w.
func (s *PlannerService) Calendar(ctx context.Context, actor core.Actor, w core.Window) ([]core.CalendarEntry, error) {
	var (
		events    []core.CalendarEvent
		reminders []core.Reminder
		notes     []core.Note
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		events, err = s.storage.ListEvents(gctx, actor.UserID)
		return err
	})
	g.Go(func() (err error) {
		reminders, err = s.storage.ListReminders(gctx, actor.UserID)
		return err
	})
	g.Go(func() (err error) {
		notes, err = s.storage.ListNotes(gctx, actor.UserID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load calendar: %w", err)
	}

	return core.MergeCalendar(events, reminders, notes, w), nil
}
