package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/steeldragon666/abfi-platform-1-sub004/covenant"
	"github.com/steeldragon666/abfi-platform-1-sub004/diff"
	"github.com/steeldragon666/abfi-platform-1-sub004/lender"
	"github.com/steeldragon666/abfi-platform-1-sub004/temporal"
)

// Request/response types for JSON serialization

type CreateEntityRequest struct {
	Attributes map[string]interface{} `json:"attributes"`
	Reason     string                 `json:"reason"`
	ChangedBy  string                 `json:"changedBy"`
}

type CreateVersionResponse struct {
	VersionID string `json:"versionId"`
}

type CompareResponse struct {
	FromVersion int                `json:"fromVersion"`
	ToVersion   int                `json:"toVersion"`
	Changes     []diff.FieldChange `json:"changes"`
}

type CovenantCheckRequest struct {
	Covenants []covenant.Covenant `json:"covenants"`
	Metrics   covenant.Metrics    `json:"metrics"`
	Record    bool                `json:"record"`
}

type ResolveBreachRequest struct {
	Notes      string `json:"notes"`
	ResolvedBy string `json:"resolvedBy"`
}

type GenerateReportRequest struct {
	ReportMonth string `json:"reportMonth"`
	GeneratedBy string `json:"generatedBy"`
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, temporal.ErrNoCurrentVersion),
		errors.Is(err, lender.ErrReportNotFound),
		errors.Is(err, covenant.ErrBreachNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, temporal.ErrVersionConflict),
		errors.Is(err, lender.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, temporal.ErrUnknownEntityType):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Errorw("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func entityParams(r *http.Request) (temporal.EntityType, uuid.UUID, error) {
	entityType, err := temporal.ParseEntityType(chi.URLParam(r, "entityType"))
	if err != nil {
		return "", uuid.Nil, err
	}
	entityID, err := uuid.Parse(chi.URLParam(r, "entityID"))
	if err != nil {
		return "", uuid.Nil, err
	}
	return entityType, entityID, nil
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, name))
}

func parseVersionNumber(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.New("invalid version number")
	}
	return n, nil
}

// Entity handlers

func (s *Server) handleCreateEntity(w http.ResponseWriter, r *http.Request) {
	entityType, err := temporal.ParseEntityType(chi.URLParam(r, "entityType"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req CreateEntityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	version, err := s.engine.CreateEntity(r.Context(), entityType, req.Attributes, req.Reason, req.ChangedBy)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, version)
}

func (s *Server) handleGetCurrent(w http.ResponseWriter, r *http.Request) {
	entityType, entityID, err := entityParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	version, err := s.engine.GetCurrent(r.Context(), entityType, entityID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if version == nil {
		writeError(w, http.StatusNotFound, "no current version")
		return
	}
	writeJSON(w, http.StatusOK, version)
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	entityType, entityID, err := entityParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	history, err := s.engine.GetHistory(r.Context(), entityType, entityID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entityId": entityID,
		"versions": history,
	})
}

func (s *Server) handleGetAsOf(w http.ResponseWriter, r *http.Request) {
	entityType, entityID, err := entityParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	asOf, err := time.Parse(time.RFC3339, r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, want RFC3339")
		return
	}

	version, err := s.engine.GetAsOf(r.Context(), entityType, entityID, asOf)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if version == nil {
		writeError(w, http.StatusNotFound, "no version covers that instant")
		return
	}
	writeJSON(w, http.StatusOK, version)
}

func (s *Server) handleCreateVersion(w http.ResponseWriter, r *http.Request) {
	entityType, entityID, err := entityParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req CreateEntityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	versionID, err := s.engine.CreateNewVersion(r.Context(), entityType, entityID, req.Attributes, req.Reason, req.ChangedBy)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateVersionResponse{VersionID: versionID.String()})
}

func (s *Server) handleCompareVersions(w http.ResponseWriter, r *http.Request) {
	entityType, entityID, err := entityParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := r.URL.Query()
	from, errFrom := parseVersionNumber(q.Get("from"))
	to, errTo := parseVersionNumber(q.Get("to"))
	if errFrom != nil || errTo != nil {
		writeError(w, http.StatusBadRequest, "from and to must be version numbers")
		return
	}

	oldVersion, err := s.engine.GetVersion(r.Context(), entityType, entityID, from)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	newVersion, err := s.engine.GetVersion(r.Context(), entityType, entityID, to)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if oldVersion == nil || newVersion == nil {
		writeError(w, http.StatusNotFound, "version not found")
		return
	}

	changes := temporal.Compare(oldVersion, newVersion)
	if changes == nil {
		changes = []diff.FieldChange{}
	}
	writeJSON(w, http.StatusOK, CompareResponse{
		FromVersion: from,
		ToVersion:   to,
		Changes:     changes,
	})
}

// Covenant handlers

func (s *Server) handleCovenantCheck(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathUUID(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid project id")
		return
	}

	var req CovenantCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var results []covenant.Result
	if req.Record {
		results, err = s.covenants.RunComplianceCheck(r.Context(), projectID, req.Covenants, req.Metrics)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
	} else {
		results = covenant.Check(req.Covenants, req.Metrics)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"projectId": projectID,
		"results":   results,
	})
}

func (s *Server) handleResolveBreach(w http.ResponseWriter, r *http.Request) {
	breachID, err := pathUUID(r, "breachID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid breach id")
		return
	}

	var req ResolveBreachRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.covenants.ResolveBreach(r.Context(), breachID, req.Notes, req.ResolvedBy); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
}

// Report handlers

func (s *Server) handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathUUID(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid project id")
		return
	}

	var req GenerateReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	report, err := s.lender.GenerateMonthlyReport(r.Context(), projectID, req.ReportMonth, req.GeneratedBy)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathUUID(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid project id")
		return
	}

	reports, err := s.lender.GetProjectReports(r.Context(), projectID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"reports": reports})
}

func (s *Server) handleLatestReport(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathUUID(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid project id")
		return
	}

	report, err := s.lender.GetLatestReport(r.Context(), projectID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if report == nil {
		writeError(w, http.StatusNotFound, "no reports for project")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleFinalizeReport(w http.ResponseWriter, r *http.Request) {
	reportID, err := pathUUID(r, "reportID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid report id")
		return
	}

	report, err := s.lender.FinalizeReport(r.Context(), reportID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleSendReport(w http.ResponseWriter, r *http.Request) {
	reportID, err := pathUUID(r, "reportID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid report id")
		return
	}

	report, err := s.lender.MarkReportSent(r.Context(), reportID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Dashboard handlers

func (s *Server) handleGetAlerts(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathUUID(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid project id")
		return
	}

	alerts, err := s.lender.GetActiveAlerts(r.Context(), projectID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"alerts": alerts})
}

func (s *Server) handleGetDashboard(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathUUID(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid project id")
		return
	}

	dashboard, err := s.lender.GetLenderDashboardData(r.Context(), projectID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}
