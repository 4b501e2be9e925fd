package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/capcluster/internal/cluster"
	"github.com/hyperjump/capcluster/internal/models"
	"github.com/hyperjump/capcluster/internal/session"
	"github.com/hyperjump/capcluster/internal/storage"
)

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	family := chi.URLParam(r, "family")
	var req models.InitializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("initialize request", zap.String("family", family),
		zap.Int("items", len(req.Items)), zap.Int("k", req.K), zap.Bool("reset", req.Reset))
	resp, err := s.manager.Initialize(r.Context(), family, req)
	if err != nil {
		s.fail(w, "initialize", family, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleAddItems(w http.ResponseWriter, r *http.Request) {
	family := chi.URLParam(r, "family")
	var req models.AddItemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("add items request", zap.String("family", family),
		zap.Int("items", len(req.Items)), zap.Bool("refit", req.Refit))
	resp, err := s.manager.AddItems(r.Context(), family, req)
	if err != nil {
		s.fail(w, "add items", family, err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateCapacities(w http.ResponseWriter, r *http.Request) {
	family := chi.URLParam(r, "family")
	var req models.UpdateCapacitiesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	resp, err := s.manager.UpdateCapacities(r.Context(), family, req.Capacities)
	if err != nil {
		s.fail(w, "update capacities", family, err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	family := chi.URLParam(r, "family")
	st, err := s.manager.Status(r.Context(), family)
	if err != nil {
		s.fail(w, "status", family, err)
		return
	}
	s.respondJSON(w, http.StatusOK, st)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	family := chi.URLParam(r, "family")
	s.logger.Debug("reset request", zap.String("family", family))
	if err := s.manager.Reset(r.Context(), family); err != nil {
		s.fail(w, "reset", family, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"family": family, "status": "reset"})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"sessions": s.manager.List()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"sessions": s.manager.List(),
		"families": s.manager.Families(),
	}

	if s.config != nil {
		st := s.config.Storage
		c := s.config.Clustering
		resp["config"] = map[string]interface{}{
			"storage_backend":  st.Backend,
			"distance":         c.Distance,
			"default_capacity": c.DefaultCapacity,
			"max_iterations":   c.MaxIterations,
			"normalize":        c.Normalize,
		}
		var paths []string
		switch st.Backend {
		case storage.BackendSQLite:
			paths = append(paths, st.DatabasePath)
		case storage.BackendBadger:
			paths = append(paths, st.BadgerPath)
		}
		if len(paths) > 0 {
			diskBytes, err := storage.DiskUsageBytes(paths...)
			if err == nil {
				resp["disk_usage_bytes"] = diskBytes
			} else {
				s.logger.Warn("status: disk usage failed", zap.Error(err))
			}
		}
	}
	if s.inbox != nil {
		resp["inbox_directories"] = s.inbox.Directories()
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// statusFor maps a manager error onto an HTTP status code.
func statusFor(err error) int {
	var dim *cluster.DimensionMismatchError
	var capErr *cluster.CapacityExceededError
	switch {
	case errors.Is(err, session.ErrUnknownFamily):
		return http.StatusNotFound
	case errors.As(err, &dim):
		return http.StatusUnprocessableEntity
	case errors.As(err, &capErr):
		return http.StatusConflict
	case errors.Is(err, cluster.ErrConfiguration),
		errors.Is(err, cluster.ErrNoActiveModel),
		errors.Is(err, cluster.ErrAlreadyActive):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, op, family string, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		s.logger.Error(op+" failed", zap.String("family", family), zap.Error(err))
	} else {
		s.logger.Debug(op+" rejected", zap.String("family", family), zap.Error(err))
	}
	s.respondError(w, code, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
