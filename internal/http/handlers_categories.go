package http

import (
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

func categoryInput(p *RequestBodyParser) services.CategoryInput {
	return services.CategoryInput{
		Name: p.Optional("name"),
		Type: p.Optional("type"),
		Icon: p.Optional("icon"),
	}
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.categories.List(r.Context(), r.URL.Query().Get("type"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if cats == nil {
		cats = []core.Category{}
	}
	NewJSONResponse().Data(cats).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	p, err := s.parseBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.categories.Create(r.Context(), currentActor(r), categoryInput(p))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Message("Category added successfully").
		Field("id", c.ID).
		Field("category", c).
		Write(w)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
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
	c, err := s.categories.Update(r.Context(), currentActor(r), id, categoryInput(p))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().
		Message("Category updated successfully").
		Field("category", c).
		Write(w)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.categories.Delete(r.Context(), currentActor(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Message("Category deleted successfully").Write(w)
}
