package api

import (
	"bytes"
	"fmt"
	"net/http"

	"nflpicks/tracker/internal/backup"
	"nflpicks/tracker/internal/cloudsync"
)

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coord.Status())
}

type configureRequest struct {
	Provider     string `json:"provider"`
	Token        string `json:"token"`
	RemoteHandle string `json:"remoteHandle,omitempty"`
}

type configureResponse struct {
	Identity cloudsync.Identity `json:"identity"`
	Status   cloudsync.Status   `json:"status"`
}

func (s *Server) handleSyncConfigure(w http.ResponseWriter, r *http.Request) {
	var req configureRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, r, "invalid configure request: %v", err)
		return
	}
	kind, err := cloudsync.ParseProviderKind(req.Provider)
	if err != nil {
		badRequest(w, r, "%v", err)
		return
	}

	ident, err := s.coord.Configure(r.Context(), kind, cloudsync.Credentials{
		Token:        req.Token,
		RemoteHandle: req.RemoteHandle,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, configureResponse{Identity: ident, Status: s.coord.Status()})
}

type reconcileRequest struct {
	Strategy string `json:"strategy"`
}

// handleSyncReconcile returns needs-decision with a 200 when remote data
// exists and no strategy was chosen.
func (s *Server) handleSyncReconcile(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			badRequest(w, r, "invalid reconcile request: %v", err)
			return
		}
	}
	strategy, err := cloudsync.ParseStrategy(req.Strategy)
	if err != nil {
		badRequest(w, r, "%v", err)
		return
	}

	res, err := s.coord.Reconcile(r.Context(), strategy)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSyncPush(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.SyncNow(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.coord.Status())
}

func (s *Server) handleSyncResync(w http.ResponseWriter, r *http.Request) {
	res, err := s.coord.Resync(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type scheduleRequest struct {
	Interval string `json:"interval"`
}

func (s *Server) handleSyncSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, r, "invalid schedule request: %v", err)
		return
	}
	iv, err := cloudsync.ParseInterval(req.Interval)
	if err != nil {
		badRequest(w, r, "%v", err)
		return
	}
	if err := s.coord.SetAutoBackup(r.Context(), iv); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.coord.Status())
}

func (s *Server) handleSyncDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.Disconnect(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.coord.Status())
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coord.Notifier().Recent())
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	f := backup.Export(s.store, s.now())

	var buf bytes.Buffer
	if err := backup.Write(&buf, f); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "nfl-predictions-"+f.ExportDate+".json"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	strategy, err := backup.ParseImportStrategy(r.URL.Query().Get("strategy"))
	if err != nil {
		badRequest(w, r, "%v", err)
		return
	}
	f, err := backup.Read(r.Body)
	if err != nil {
		s.coord.Notifier().Error("import", err)
		writeError(w, r, err)
		return
	}
	if err := backup.Import(r.Context(), s.store, f, strategy); err != nil {
		writeError(w, r, err)
		return
	}
	s.coord.Notifier().Info("import", fmt.Sprintf("Imported backup from %s (%s)", f.ExportDate, strategy))
	s.refreshPredictionStats()

	writeJSON(w, http.StatusOK, predictionsResponse{
		Games:      s.store.GetAll(),
		Records:    s.store.TeamRecords(),
		Postseason: s.store.Postseason(),
	})
}
