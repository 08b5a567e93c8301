package http

import (
	"net/http"
	"strconv"

	"caixinhas/internal/log"
)

func (s *Server) handleCreateSaving(w http.ResponseWriter, r *http.Request) {
	var req savingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, log.OpParse, err)
		return
	}
	in, err := req.input()
	if err != nil {
		s.writeError(w, r, log.OpValidate, err)
		return
	}

	created, err := s.savings.CreateSaving(r.Context(), in)
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	s.appMetrics.savingsCreated.Add(1)
	s.events.LogSavingChanged(r.Context(), log.OpCreate, created.ID, created.Version)

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/saving/"+strconv.FormatInt(created.ID, 10)).
		Body(newSavingResponse(created)).
		Write(w)
}

func (s *Server) handleListSavings(w http.ResponseWriter, r *http.Request) {
	list, err := s.savings.ListSavings(r.Context())
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}

	out := make([]savingResponse, 0, len(list))
	for _, sv := range list {
		out = append(out, newSavingResponse(sv))
	}
	NewJSONResponse().Body(out).Write(w)
}

func (s *Server) handleGetSaving(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, log.OpParse, err)
		return
	}
	sv, err := s.savings.GetSaving(r.Context(), id)
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(newSavingResponse(sv)).Write(w)
}

func (s *Server) handleUpdateSaving(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, log.OpParse, err)
		return
	}
	var req savingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, log.OpParse, err)
		return
	}
	in, err := req.input()
	if err != nil {
		s.writeError(w, r, log.OpValidate, err)
		return
	}

	updated, err := s.savings.UpdateSaving(r.Context(), id, in)
	if err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	s.appMetrics.savingsUpdated.Add(1)
	s.events.LogSavingChanged(r.Context(), log.OpUpdate, updated.ID, updated.Version)

	NewJSONResponse().Body(newSavingResponse(updated)).Write(w)
}

func (s *Server) handleDeleteSaving(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, log.OpParse, err)
		return
	}
	if err := s.savings.DeleteSaving(r.Context(), id); err != nil {
		s.writeError(w, r, log.OpDelete, err)
		return
	}
	s.appMetrics.savingsDeleted.Add(1)
	s.events.LogSavingChanged(r.Context(), log.OpDelete, id, 0)

	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleSavingProjection(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, log.OpParse, err)
		return
	}
	snap, err := s.savings.SavingProjection(r.Context(), id)
	if err != nil {
		s.writeError(w, r, log.OpProject, err)
		return
	}
	NewJSONResponse().Body(newProjectionResponse(snap)).Write(w)
}
