package http

import (
	"net/http"
	"strconv"

	"github.com/couchcryptid/fuel-tank-telemetry/internal/domain"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

// readingResponse is a reading with its classified status.
type readingResponse struct {
	domain.Reading
	Status domain.Status `json:"status"`
}

func newReadingResponse(r domain.Reading) readingResponse {
	return readingResponse{Reading: r, Status: domain.Classify(r.FuelLevelPercentage)}
}

func (s *Server) handleListTanks(w http.ResponseWriter, r *http.Request) {
	tanks, err := s.tanks.ListTanks(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tanks)
}

func (s *Server) handleGetTank(w http.ResponseWriter, r *http.Request) {
	tank, err := s.tanks.GetTank(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tank)
}

func (s *Server) handleLatestReading(w http.ResponseWriter, r *http.Request) {
	reading, err := s.tanks.LatestReading(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newReadingResponse(reading))
}

func (s *Server) handleReadingHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be between 1 and 1000"})
			return
		}
		limit = n
	}

	history, err := s.tanks.ReadingHistory(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]readingResponse, 0, len(history))
	for _, reading := range history {
		out = append(out, newReadingResponse(reading))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLatestReadings(w http.ResponseWriter, r *http.Request) {
	readings, err := s.tanks.LatestReadings(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, readings)
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	reading, err := s.tanks.ManualTrigger(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newReadingResponse(reading))
}
