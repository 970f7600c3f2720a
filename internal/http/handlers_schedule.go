package http

import (
	"net/http"

	"finledger/internal/core"
)

func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := s.schedules.List(r.Context(), s.requestUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, schedules)
}

func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var sched core.Schedule
	if err := readJSON(r, &sched); err != nil {
		writeError(w, r, err)
		return
	}
	if sched.UserID == "" {
		sched.UserID = s.requestUser(r)
	}
	created, err := s.schedules.Create(r.Context(), sched)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var sched core.Schedule
	if err := readJSON(r, &sched); err != nil {
		writeError(w, r, err)
		return
	}
	sched.ID = id
	if sched.UserID == "" {
		sched.UserID = s.requestUser(r)
	}
	if err := s.schedules.Update(r.Context(), sched); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sched)
}

func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.schedules.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// handlePaySchedule realizes the schedule's next occurrence now. A second
// pay racing the first gets a 409.
func (s *Server) handlePaySchedule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	realized, err := s.schedules.Pay(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, realized)
}
