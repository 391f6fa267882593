package server

import (
	"net/http"
	"time"

	"pillid/pkg/domain"
	"pillid/services/api/internal/app"
)

type imageURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *Server) handleSearchMedications(w http.ResponseWriter, r *http.Request, _ domain.User) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()
	meds, err := s.app.SearchMedications(domain.MedicationFilter{
		Name:    q.Get("name"),
		NDC:     q.Get("ndc"),
		GTIN:    q.Get("gtin"),
		Imprint: q.Get("imprint"),
		Shape:   q.Get("shape"),
		Color:   q.Get("color"),
	}, limit)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"medications": meds})
}

func (s *Server) handleCreateMedication(w http.ResponseWriter, r *http.Request, user domain.User) {
	var in app.MedicationInput
	if !decodeJSON(w, r, &in) {
		return
	}
	med, err := s.app.CreateMedication(user, in)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, med)
}

func (s *Server) handleGetMedication(w http.ResponseWriter, r *http.Request, _ domain.User) {
	med, err := s.app.GetMedication(r.PathValue("id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, med)
}

func (s *Server) handleUpdateMedication(w http.ResponseWriter, r *http.Request, user domain.User) {
	var in app.MedicationInput
	if !decodeJSON(w, r, &in) {
		return
	}
	med, err := s.app.UpdateMedication(user, r.PathValue("id"), in)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, med)
}

func (s *Server) handleDeleteMedication(w http.ResponseWriter, r *http.Request, user domain.User) {
	if err := s.app.DeleteMedication(r.Context(), user, r.PathValue("id")); err != nil {
		writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMedicationImage(w http.ResponseWriter, r *http.Request, _ domain.User) {
	url, expires, err := s.app.MedicationImageURL(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, imageURLResponse{URL: url, ExpiresAt: expires})
}

func (s *Server) handleListSaved(w http.ResponseWriter, r *http.Request, user domain.User) {
	items, err := s.app.ListSaved(r.Context(), user)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"saved": items})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request, user domain.User) {
	var in app.SaveInput
	if !decodeJSON(w, r, &in) {
		return
	}
	item, err := s.app.SaveMedication(user, in)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleRemoveSaved(w http.ResponseWriter, r *http.Request, user domain.User) {
	if err := s.app.RemoveSaved(user, r.PathValue("id")); err != nil {
		writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
