package api

import (
	"net/http"
	"strconv"

	"nflpicks/tracker/internal/accuracy"
	"nflpicks/tracker/internal/apperr"
	"nflpicks/tracker/internal/metrics"
	"nflpicks/tracker/internal/models"

	"github.com/gorilla/mux"
)

func (s *Server) handleTeams(w http.ResponseWriter, r *http.Request) {
	reg, err := s.registry.Load(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reg.Teams())
}

// handleGames lists the schedule, optionally filtered by ?week=.
func (s *Server) handleGames(w http.ResponseWriter, r *http.Request) {
	reg, err := s.registry.Load(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	raw := r.URL.Query().Get("week")
	if raw == "" {
		writeJSON(w, http.StatusOK, reg.Games())
		return
	}
	week, err := strconv.Atoi(raw)
	if err != nil || week < models.FirstWeek || week > models.LastWeek {
		badRequest(w, r, "week must be between %d and %d", models.FirstWeek, models.LastWeek)
		return
	}
	writeJSON(w, http.StatusOK, reg.GamesByWeek(week))
}

type predictionsResponse struct {
	Games      map[string]string            `json:"games"`
	Records    map[string]models.Record     `json:"teamRecords"`
	Postseason models.PostseasonPredictions `json:"postseason"`
	Problems   map[string][]string          `json:"problems,omitempty"`
}

func (s *Server) handleGetPredictions(w http.ResponseWriter, r *http.Request) {
	resp := predictionsResponse{
		Games:      s.store.GetAll(),
		Records:    s.store.TeamRecords(),
		Postseason: s.store.Postseason(),
	}
	if problems := recordProblems(s.store.RecordProblems()); len(problems) > 0 {
		resp.Problems = problems
	}
	writeJSON(w, http.StatusOK, resp)
}

type gamePredictionRequest struct {
	Team string `json:"team"`
}

func (s *Server) handleSetGamePrediction(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["gameID"]

	var req gamePredictionRequest
	if err := decodeBody(r, &req); err != nil || req.Team == "" {
		badRequest(w, r, "body must be {\"team\": \"<code>\"}")
		return
	}
	if err := s.store.Set(r.Context(), gameID, req.Team); err != nil {
		writeError(w, r, err)
		return
	}
	s.refreshPredictionStats()
	writeJSON(w, http.StatusOK, map[string]string{"gameId": gameID, "team": req.Team})
}

func (s *Server) handleClearGamePrediction(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Clear(r.Context(), mux.Vars(r)["gameID"]); err != nil {
		writeError(w, r, err)
		return
	}
	s.refreshPredictionStats()
	w.WriteHeader(http.StatusNoContent)
}

type recordPredictionResponse struct {
	Team     string        `json:"team"`
	Record   models.Record `json:"record"`
	Problems []string      `json:"problems,omitempty"`
}

// handleSetRecordPrediction always saves; validation problems ride along
// with the 200.
func (s *Server) handleSetRecordPrediction(w http.ResponseWriter, r *http.Request) {
	team := mux.Vars(r)["team"]

	var rec models.Record
	if err := decodeBody(r, &rec); err != nil {
		badRequest(w, r, "body must be {\"wins\": n, \"losses\": n}")
		return
	}
	problems, err := s.store.SetTeamRecord(r.Context(), team, rec)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.refreshPredictionStats()
	writeJSON(w, http.StatusOK, recordPredictionResponse{Team: team, Record: rec, Problems: problems})
}

func (s *Server) handleClearRecordPrediction(w http.ResponseWriter, r *http.Request) {
	if err := s.store.ClearTeamRecord(r.Context(), mux.Vars(r)["team"]); err != nil {
		writeError(w, r, err)
		return
	}
	s.refreshPredictionStats()
	w.WriteHeader(http.StatusNoContent)
}

type postseasonResponse struct {
	models.PostseasonPredictions
	Problems []string `json:"problems,omitempty"`
}

func (s *Server) handleGetPostseason(w http.ResponseWriter, r *http.Request) {
	p := s.store.Postseason()
	writeJSON(w, http.StatusOK, postseasonResponse{PostseasonPredictions: p, Problems: p.Problems()})
}

func (s *Server) handleSetPostseason(w http.ResponseWriter, r *http.Request) {
	var p models.PostseasonPredictions
	if err := decodeBody(r, &p); err != nil {
		badRequest(w, r, "invalid postseason bracket: %v", err)
		return
	}
	for conf := range p.Conferences {
		if !conf.Valid() {
			badRequest(w, r, "unknown conference %q", conf)
			return
		}
	}
	if err := s.store.SetPostseason(r.Context(), p); err != nil {
		writeError(w, r, err)
		return
	}
	saved := s.store.Postseason()
	writeJSON(w, http.StatusOK, postseasonResponse{PostseasonPredictions: saved, Problems: saved.Problems()})
}

func (s *Server) handleAccuracy(w http.ResponseWriter, r *http.Request) {
	reg, err := s.registry.Load(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	report := accuracy.Build(reg, s.store.GetAll(), s.store.TeamRecords(), s.now())
	metrics.UpdateAccuracy(report.Games.Percent, report.Records.Percent)
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) refreshPredictionStats() {
	metrics.UpdatePredictionStats(len(s.store.GetAll()), len(s.store.TeamRecords()))
}

func recordProblems(errs []error) map[string][]string {
	out := make(map[string][]string, len(errs))
	for _, err := range errs {
		if vErr, ok := apperr.AsValidationError(err); ok {
			out[vErr.Subject] = vErr.Problems
		}
	}
	return out
}
