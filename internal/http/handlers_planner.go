package http

import (
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := s.planner.ListNotes(r.Context(), currentActor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if notes == nil {
		notes = []core.Note{}
	}
	NewJSONResponse().Data(notes).Write(w)
}

func noteInput(p *RequestBodyParser) services.NoteInput {
	return services.NoteInput{
		Title:   p.Optional("title"),
		Content: p.Optional("content"),
		Color:   p.Optional("color"),
	}
}

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	p, err := s.parseBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	n, err := s.planner.CreateNote(r.Context(), currentActor(r), noteInput(p))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Field("id", n.ID).Field("note", n).Write(w)
}

func (s *Server) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.parseBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	n, err := s.planner.UpdateNote(r.Context(), currentActor(r), id, noteInput(p))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Field("note", n).Write(w)
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.planner.DeleteNote(r.Context(), currentActor(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Message("Note deleted").Write(w)
}

func (s *Server) handleListReminders(w http.ResponseWriter, r *http.Request) {
	reminders, err := s.planner.ListReminders(r.Context(), currentActor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if reminders == nil {
		reminders = []core.Reminder{}
	}
	NewJSONResponse().Data(reminders).Write(w)
}

func reminderInput(p *RequestBodyParser) (services.ReminderInput, error) {
	done, err := p.Bool("is_completed")
	if err != nil {
		return services.ReminderInput{}, err
	}
	return services.ReminderInput{
		Title:       p.Optional("title"),
		Description: p.Optional("description"),
		DueDate:     p.Optional("due_date"),
		IsCompleted: done,
	}, nil
}

func (s *Server) handleCreateReminder(w http.ResponseWriter, r *http.Request) {
	p, err := s.parseBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	in, err := reminderInput(p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rem, err := s.planner.CreateReminder(r.Context(), currentActor(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Field("id", rem.ID).Field("reminder", rem).Write(w)
}

func (s *Server) handleUpdateReminder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.parseBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	in, err := reminderInput(p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rem, err := s.planner.UpdateReminder(r.Context(), currentActor(r), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Field("reminder", rem).Write(w)
}

func (s *Server) handleDeleteReminder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.planner.DeleteReminder(r.Context(), currentActor(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Message("Reminder deleted").Write(w)
}

// handleCalendarFeed merges events, dated reminders and notes, optionally
// bounded by ?start and ?end.
func (s *Server) handleCalendarFeed(w http.ResponseWriter, r *http.Request) {
	win, err := windowFromQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := s.planner.Calendar(r.Context(), currentActor(r), win)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []core.CalendarEntry{}
	}
	NewJSONResponse().Data(entries).Write(w)
}

func eventInput(p *RequestBodyParser) services.EventInput {
	return services.EventInput{
		Title:       p.Optional("title"),
		Description: p.Optional("description"),
		StartTime:   p.Optional("start_time"),
		EndTime:     p.Optional("end_time"),
		Color:       p.Optional("color"),
	}
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	p, err := s.parseBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ev, err := s.planner.CreateEvent(r.Context(), currentActor(r), eventInput(p))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Field("id", ev.ID).Field("event", ev).Write(w)
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.parseBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ev, err := s.planner.UpdateEvent(r.Context(), currentActor(r), id, eventInput(p))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Field("event", ev).Write(w)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.planner.DeleteEvent(r.Context(), currentActor(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Message("Event deleted").Write(w)
}
