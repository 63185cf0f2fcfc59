package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/steeldragon666/abfi-platform-1-sub004/covenant"
	"github.com/steeldragon666/abfi-platform-1-sub004/lender"
	"github.com/steeldragon666/abfi-platform-1-sub004/temporal"
)

type memBreachStore struct {
	events []covenant.BreachEvent
}

func (m *memBreachStore) InsertBreach(_ context.Context, event *covenant.BreachEvent) error {
	m.events = append(m.events, *event)
	return nil
}

func (m *memBreachStore) ResolveBreach(_ context.Context, breachID uuid.UUID, notes, resolvedBy string, resolvedAt time.Time) error {
	for i := range m.events {
		if m.events[i].BreachID == breachID && !m.events[i].Resolved {
			m.events[i].Resolved = true
			m.events[i].ResolutionNotes = notes
			m.events[i].ResolvedBy = resolvedBy
			m.events[i].ResolvedAt = &resolvedAt
			return nil
		}
	}
	return covenant.ErrBreachNotFound
}

func (m *memBreachStore) ListBreachesSince(_ context.Context, projectID uuid.UUID, since time.Time) ([]covenant.BreachEvent, error) {
	var out []covenant.BreachEvent
	for _, event := range m.events {
		if event.ProjectID == projectID && !event.DetectedAt.Before(since) {
			out = append(out, event)
		}
	}
	return out, nil
}

func (m *memBreachStore) ListUnresolvedBreaches(_ context.Context, projectID uuid.UUID) ([]covenant.BreachEvent, error) {
	var out []covenant.BreachEvent
	for _, event := range m.events {
		if event.ProjectID == projectID && !event.Resolved {
			out = append(out, event)
		}
	}
	return out, nil
}

type memReportStore struct {
	reports map[uuid.UUID]*lender.Report
}

func (m *memReportStore) InsertReport(_ context.Context, report *lender.Report) error {
	stored := *report
	m.reports[report.ReportID] = &stored
	return nil
}

func (m *memReportStore) GetReport(_ context.Context, reportID uuid.UUID) (*lender.Report, error) {
	report, ok := m.reports[reportID]
	if !ok {
		return nil, nil
	}
	out := *report
	return &out, nil
}

func (m *memReportStore) UpdateReportStatus(_ context.Context, reportID uuid.UUID, status lender.ReportStatus, finalizedAt, sentAt *time.Time) error {
	report, ok := m.reports[reportID]
	if !ok {
		return lender.ErrReportNotFound
	}
	report.Status = status
	report.FinalizedAt = finalizedAt
	report.SentAt = sentAt
	return nil
}

func (m *memReportStore) GetLatestReport(_ context.Context, projectID uuid.UUID) (*lender.Report, error) {
	var latest *lender.Report
	for _, report := range m.reports {
		if report.ProjectID != projectID {
			continue
		}
		if latest == nil || report.ReportMonth > latest.ReportMonth {
			latest = report
		}
	}
	if latest == nil {
		return nil, nil
	}
	out := *latest
	return &out, nil
}

func (m *memReportStore) GetProjectReports(_ context.Context, projectID uuid.UUID) ([]lender.Report, error) {
	var reports []lender.Report
	for _, report := range m.reports {
		if report.ProjectID == projectID {
			reports = append(reports, *report)
		}
	}
	return reports, nil
}

func testHandler(t *testing.T) http.Handler {
	t.Helper()

	log := zap.NewNop().Sugar()

	registry := temporal.NewRegistry()
	registry.Register(temporal.EntityFeedstock, temporal.NewMemStore())
	registry.Register(temporal.EntityCertificate, temporal.NewMemStore())
	engine := temporal.NewEngine(registry, log)

	breaches := &memBreachStore{}
	covenants := covenant.NewService(breaches, log)
	reports := &memReportStore{reports: make(map[uuid.UUID]*lender.Report)}
	lenderSvc := lender.NewService(reports, breaches, nil, log)

	return NewServer(engine, covenants, lenderSvc, ":0", log).Handler()
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
}

func TestEntityEndpoints(t *testing.T) {
	handler := testHandler(t)

	createReq := CreateEntityRequest{
		Attributes: map[string]interface{}{"name": "Sugarcane bagasse", "tier": "tier1"},
		Reason:     "initial registration",
		ChangedBy:  "ops",
	}
	rec := doJSON(t, handler, http.MethodPost, "/api/entities/feedstock", createReq)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create entity status = %d, body %s", rec.Code, rec.Body.String())
	}

	var created temporal.EntityVersion
	decodeBody(t, rec, &created)
	if created.VersionNumber != 1 || !created.IsCurrent {
		t.Errorf("created version wrong: %+v", created)
	}

	entityPath := fmt.Sprintf("/api/entities/feedstock/%s", created.EntityID)

	rec = doJSON(t, handler, http.MethodGet, entityPath, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get current status = %d", rec.Code)
	}
	var current temporal.EntityVersion
	decodeBody(t, rec, &current)
	if current.VersionID != created.VersionID {
		t.Errorf("get current returned %s, want %s", current.VersionID, created.VersionID)
	}

	// Supersede with a changed attribute.
	updateReq := CreateEntityRequest{
		Attributes: map[string]interface{}{"name": "Sugarcane bagasse", "tier": "tier2"},
		Reason:     "tier reassessment",
		ChangedBy:  "ops",
	}
	rec = doJSON(t, handler, http.MethodPost, entityPath+"/versions", updateReq)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create version status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, entityPath+"/history", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("history status = %d", rec.Code)
	}
	var history struct {
		Versions []temporal.EntityVersion `json:"versions"`
	}
	decodeBody(t, rec, &history)
	if len(history.Versions) != 2 {
		t.Fatalf("expected 2 versions in history, got %d", len(history.Versions))
	}

	// An instant before the entity existed has no covering version.
	before := history.Versions[0].ValidFrom.Add(-time.Hour).Format(time.RFC3339)
	rec = doJSON(t, handler, http.MethodGet, entityPath+"/asof?date="+before, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("as-of before creation status = %d, want 404", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, entityPath+"/compare?from=1&to=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("compare status = %d, body %s", rec.Code, rec.Body.String())
	}
	var compared CompareResponse
	decodeBody(t, rec, &compared)
	if len(compared.Changes) != 1 || compared.Changes[0].Name != "tier" {
		t.Errorf("compare changes = %+v, want single tier change", compared.Changes)
	}
}

func TestEntityEndpoints_Errors(t *testing.T) {
	handler := testHandler(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/entities/pipeline", CreateEntityRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown entity type status = %d, want 400", rec.Code)
	}

	// Versioning an entity that was never created.
	path := fmt.Sprintf("/api/entities/certificate/%s/versions", uuid.New())
	rec = doJSON(t, handler, http.MethodPost, path, CreateEntityRequest{
		Attributes: map[string]interface{}{"status": "issued"},
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("version of missing entity status = %d, want 404", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, fmt.Sprintf("/api/entities/feedstock/%s", uuid.New()), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get missing entity status = %d, want 404", rec.Code)
	}
}

func TestCovenantCheckEndpoint(t *testing.T) {
	handler := testHandler(t)
	projectID := uuid.New()

	checkReq := CovenantCheckRequest{
		Covenants: []covenant.Covenant{
			{Type: covenant.MinTier1Coverage, Threshold: 80},
			{Type: covenant.MaxHHI, Threshold: 50},
		},
		Metrics: covenant.Metrics{Tier1Coverage: 60, HHI: 20},
	}
	rec := doJSON(t, handler, http.MethodPost, fmt.Sprintf("/api/projects/%s/covenants/check", projectID), checkReq)
	if rec.Code != http.StatusOK {
		t.Fatalf("covenant check status = %d, body %s", rec.Code, rec.Body.String())
	}

	var checked struct {
		Results []covenant.Result `json:"results"`
	}
	decodeBody(t, rec, &checked)
	if len(checked.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(checked.Results))
	}
	if checked.Results[0].Severity != covenant.SeverityBreach || checked.Results[0].VariancePercent != 25 {
		t.Errorf("tier1 result wrong: %+v", checked.Results[0])
	}
	if !checked.Results[1].Compliant {
		t.Errorf("hhi result should be compliant: %+v", checked.Results[1])
	}

	// record=false must not leave alerts behind.
	rec = doJSON(t, handler, http.MethodGet, fmt.Sprintf("/api/projects/%s/alerts", projectID), nil)
	var alerts struct {
		Alerts []lender.Alert `json:"alerts"`
	}
	decodeBody(t, rec, &alerts)
	if len(alerts.Alerts) != 0 {
		t.Errorf("pure check recorded %d alerts", len(alerts.Alerts))
	}

	checkReq.Record = true
	rec = doJSON(t, handler, http.MethodPost, fmt.Sprintf("/api/projects/%s/covenants/check", projectID), checkReq)
	if rec.Code != http.StatusOK {
		t.Fatalf("recorded check status = %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, fmt.Sprintf("/api/projects/%s/alerts", projectID), nil)
	decodeBody(t, rec, &alerts)
	if len(alerts.Alerts) != 1 {
		t.Fatalf("expected 1 alert after recorded check, got %d", len(alerts.Alerts))
	}
	if alerts.Alerts[0].Severity != covenant.SeverityBreach {
		t.Errorf("alert severity = %s, want breach", alerts.Alerts[0].Severity)
	}

	rec = doJSON(t, handler, http.MethodPost,
		fmt.Sprintf("/api/breaches/%s/resolve", alerts.Alerts[0].AlertID),
		ResolveBreachRequest{Notes: "supplier onboarded", ResolvedBy: "ops"})
	if rec.Code != http.StatusOK {
		t.Fatalf("resolve breach status = %d, body %s", rec.Code, rec.Body.String())
	}

	// Resolving twice fails.
	rec = doJSON(t, handler, http.MethodPost,
		fmt.Sprintf("/api/breaches/%s/resolve", alerts.Alerts[0].AlertID),
		ResolveBreachRequest{Notes: "again", ResolvedBy: "ops"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("second resolve status = %d, want 404", rec.Code)
	}
}

func TestReportEndpoints(t *testing.T) {
	handler := testHandler(t)
	projectID := uuid.New()

	rec := doJSON(t, handler, http.MethodGet, fmt.Sprintf("/api/projects/%s/reports/latest", projectID), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("latest report with none status = %d, want 404", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, fmt.Sprintf("/api/projects/%s/reports", projectID),
		GenerateReportRequest{ReportMonth: "2025-11", GeneratedBy: "analyst"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("generate report status = %d, body %s", rec.Code, rec.Body.String())
	}
	var report lender.Report
	decodeBody(t, rec, &report)
	if report.Status != lender.StatusDraft || !report.CovenantCompliance.Compliant {
		t.Errorf("generated report wrong: %+v", report)
	}

	rec = doJSON(t, handler, http.MethodPost, fmt.Sprintf("/api/reports/%s/finalize", report.ReportID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("finalize status = %d, body %s", rec.Code, rec.Body.String())
	}

	// A second finalize conflicts.
	rec = doJSON(t, handler, http.MethodPost, fmt.Sprintf("/api/reports/%s/finalize", report.ReportID), nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("re-finalize status = %d, want 409", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, fmt.Sprintf("/api/reports/%s/send", report.ReportID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("send status = %d", rec.Code)
	}
	var sent lender.Report
	decodeBody(t, rec, &sent)
	if sent.Status != lender.StatusSent || sent.SentAt == nil {
		t.Errorf("sent report wrong: %+v", sent)
	}

	rec = doJSON(t, handler, http.MethodGet, fmt.Sprintf("/api/projects/%s/reports/latest", projectID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("latest report status = %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, fmt.Sprintf("/api/projects/%s/dashboard", projectID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard status = %d", rec.Code)
	}
	var dashboard lender.DashboardData
	decodeBody(t, rec, &dashboard)
	if dashboard.LatestReport == nil || dashboard.LatestReport.ReportID != report.ReportID {
		t.Errorf("dashboard latest report missing")
	}
}
