package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendancehub/internal/attendance"
	"attendancehub/internal/auth"
	"attendancehub/internal/config"
	"attendancehub/internal/model"
	"attendancehub/internal/roster"
	"attendancehub/internal/schedule"
	"attendancehub/internal/store"
)

const (
	testKey    = "test-signing-key"
	testIssuer = "attendance-hub-test"
)

// 2024-01-01 is a Monday: gkp-1 meets, kalp-1 does not.
var monday = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

type harness struct {
	t      *testing.T
	router *gin.Engine
	roster *roster.Service
}

func testConfig() config.App {
	return config.App{
		JWTIssuer:        testIssuer,
		JWTSigningKey:    testKey,
		AccessTTL:        time.Hour,
		AdminPasscode:    "9999",
		RateLimitPerMin:  1000,
		LoginLimitPerMin: 1000,
	}
}

func newHarness(t *testing.T, kv store.KV, jobs JobPublisher) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	adapter := store.NewAdapter(store.NewKVBackend(kv, "test_"), store.DefaultLimits())
	catalog := schedule.DefaultCatalog()
	rs := roster.NewService(adapter.Students, adapter.Trainers, nil, roster.WithGroups(catalog))
	att := attendance.NewService(adapter.Records, adapter.Students, catalog, nil)
	srv := New(Deps{
		Config:     testConfig(),
		Catalog:    catalog,
		Attendance: att,
		Roster:     rs,
		Jobs:       jobs,
		Location:   time.UTC,
		Now:        func() time.Time { return monday },
	})
	return &harness{t: t, router: srv.Router(), roster: rs}
}

func newMemoryHarness(t *testing.T) *harness {
	h := newHarness(t, store.NewMemoryKV(), nil)
	ctx := context.Background()
	_, err := h.roster.Import(ctx, roster.Seed{
		Trainers: []model.Trainer{
			{ID: "t1", Name: "Asha", CourtID: "court-1", Passcode: "1234"},
			{ID: "t2", Name: "Ravi", CourtID: "court-2", Passcode: "1234"},
		},
		Students: []model.Student{
			{ID: "s1", Name: "Aarav", GroupID: "gkp-1"},
			{ID: "s2", Name: "Diya", GroupID: "gkp-1"},
			{ID: "s3", Name: "Kavya", GroupID: "gkp-all"},
			{ID: "s4", Name: "Rohan", GroupID: "kalp-1"},
		},
	})
	require.NoError(t, err)
	return h
}

func (h *harness) do(method, path, token string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func (h *harness) login(court, passcode string) string {
	h.t.Helper()
	w := h.do(http.MethodPost, "/v1/courts/"+court+"/login", "", gin.H{"passcode": passcode})
	require.Equal(h.t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Token auth.Token `json:"token"`
	}
	decode(h.t, w, &resp)
	return resp.Token.AccessToken
}

func (h *harness) adminToken() string {
	h.t.Helper()
	w := h.do(http.MethodPost, "/v1/admin/login", "", gin.H{"passcode": "9999"})
	require.Equal(h.t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Token auth.Token `json:"token"`
	}
	decode(h.t, w, &resp)
	return resp.Token.AccessToken
}

func TestTrainerLogin(t *testing.T) {
	h := newMemoryHarness(t)

	w := h.do(http.MethodPost, "/v1/courts/court-1/login", "", gin.H{"passcode": "0000"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(http.MethodPost, "/v1/courts/court-1/login", "", gin.H{"passcode": "12a4"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodPost, "/v1/courts/court-9/login", "", gin.H{"passcode": "1234"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(http.MethodPost, "/v1/courts/court-2/login", "", gin.H{"passcode": "1234"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Trainer struct {
			ID string `json:"id"`
		} `json:"trainer"`
		Court courtView `json:"court"`
	}
	decode(t, w, &resp)
	assert.Equal(t, "t2", resp.Trainer.ID)
	assert.Equal(t, "Kalptaru Aura", resp.Court.Name)
}

func TestAdminLogin(t *testing.T) {
	h := newMemoryHarness(t)
	w := h.do(http.MethodPost, "/v1/admin/login", "", gin.H{"passcode": "1234"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, h.adminToken())
}

func TestListGroupsFlagsActiveSessions(t *testing.T) {
	h := newMemoryHarness(t)
	w := h.do(http.MethodGet, "/v1/courts/court-2/groups?date=2024-01-06", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Groups []groupView `json:"groups"`
	}
	decode(t, w, &resp)

	active := map[string]bool{}
	for _, g := range resp.Groups {
		active[g.ID] = g.Active
	}
	assert.Equal(t, map[string]bool{
		"kalp-1": true, "kalp-2": true, "kalp-3": true, "kalp-4": true, model.OthersGroupID: true,
	}, active)

	w = h.do(http.MethodGet, "/v1/courts/court-2/groups/kalp-3/session?date=2024-01-01", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status struct {
		Active bool `json:"active"`
	}
	decode(t, w, &status)
	assert.False(t, status.Active)
}

func TestSubmitAttendance(t *testing.T) {
	h := newMemoryHarness(t)
	tok := h.login("court-1", "1234")

	w := h.do(http.MethodPost, "/v1/courts/court-1/attendance", tok,
		gin.H{"groupId": "gkp-1", "presentStudentIds": []string{"s1", "s3"}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		Record model.AttendanceRecord `json:"record"`
	}
	decode(t, w, &resp)
	assert.Equal(t, "2024-01-01", resp.Record.Date.String())
	assert.Equal(t, "t1", resp.Record.TrainerID)
	assert.Equal(t, "Asha", resp.Record.TrainerName)
	assert.Equal(t, 2, resp.Record.RosterSize)

	w = h.do(http.MethodPost, "/v1/courts/court-1/attendance", tok,
		gin.H{"groupId": "gkp-1", "date": "2024-01-02", "presentStudentIds": []string{"s1"}})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "session_inactive")

	w = h.do(http.MethodPost, "/v1/courts/court-1/attendance", tok,
		gin.H{"groupId": model.OthersGroupID, "presentStudentIds": []string{"s4"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "eventName")

	w = h.do(http.MethodPost, "/v1/courts/court-1/attendance", tok,
		gin.H{"groupId": model.OthersGroupID, "eventName": "Open day", "date": "2024-01-02", "presentStudentIds": []string{"s4"}})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = h.do(http.MethodPost, "/v1/courts/court-1/attendance", tok,
		gin.H{"groupId": "kalp-1", "presentStudentIds": []string{"s4"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResubmitReplacesRecord(t *testing.T) {
	h := newMemoryHarness(t)
	tok := h.login("court-1", "1234")

	for _, present := range [][]string{{"s1", "s2"}, {"s2"}} {
		w := h.do(http.MethodPost, "/v1/courts/court-1/attendance", tok,
			gin.H{"groupId": "gkp-1", "presentStudentIds": present})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := h.do(http.MethodGet, "/v1/courts/court-1/attendance?group=gkp-1&date=2024-01-01", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var existing struct {
		Record *model.AttendanceRecord `json:"record"`
	}
	decode(t, w, &existing)
	require.NotNil(t, existing.Record)
	assert.Equal(t, []string{"s2"}, existing.Record.PresentStudentIDs)

	w = h.do(http.MethodGet, "/v1/courts/court-1/reports/trainer-log", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history struct {
		Entries []struct {
			PresentNames []string `json:"presentNames"`
			Total        int      `json:"total"`
		} `json:"entries"`
	}
	decode(t, w, &history)
	require.Len(t, history.Entries, 1)
	assert.Equal(t, []string{"Diya"}, history.Entries[0].PresentNames)
	assert.Equal(t, 2, history.Entries[0].Total)

	w = h.do(http.MethodGet, "/v1/courts/court-1/reports/daily?group=gkp-1&date=2024-01-01", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var daily struct {
		Report struct {
			Present   []model.Student `json:"present"`
			Absent    []model.Student `json:"absent"`
			HasRecord bool            `json:"hasRecord"`
		} `json:"report"`
	}
	decode(t, w, &daily)
	assert.True(t, daily.Report.HasRecord)
	require.Len(t, daily.Report.Present, 1)
	assert.Equal(t, "s2", daily.Report.Present[0].ID)
	require.Len(t, daily.Report.Absent, 1)
	assert.Equal(t, "s1", daily.Report.Absent[0].ID)
}

func TestCourtRosterAndStats(t *testing.T) {
	h := newMemoryHarness(t)
	tok := h.login("court-1", "1234")

	w := h.do(http.MethodGet, "/v1/courts/court-1/students", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Students []model.Student `json:"students"`
	}
	decode(t, w, &list)
	ids := make([]string, 0, len(list.Students))
	for _, st := range list.Students {
		ids = append(ids, st.ID)
	}
	assert.Equal(t, []string{"s1", "s2", "s3"}, ids)

	w = h.do(http.MethodGet, "/v1/courts/court-1/students?group=others&q=roh", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &list)
	require.Len(t, list.Students, 1)
	assert.Equal(t, "s4", list.Students[0].ID)

	w = h.do(http.MethodPost, "/v1/courts/court-1/attendance", tok,
		gin.H{"groupId": "gkp-1", "presentStudentIds": []string{"s1"}})
	require.Equal(t, http.StatusCreated, w.Code)

	w = h.do(http.MethodGet, "/v1/courts/court-1/students/s2/stats?range=month", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var st struct {
		Stats struct {
			Attended int `json:"attended"`
			Missed   int `json:"missed"`
			Total    int `json:"total"`
		} `json:"stats"`
	}
	decode(t, w, &st)
	assert.Equal(t, 0, st.Stats.Attended)
	assert.Equal(t, 1, st.Stats.Missed)
	assert.Equal(t, 1, st.Stats.Total)

	w = h.do(http.MethodGet, "/v1/courts/court-1/students/s4/stats", tok, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(http.MethodGet, "/v1/courts/court-1/reports/overview?month=2024-13", tok, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCourtScopeEnforced(t *testing.T) {
	h := newMemoryHarness(t)
	tok := h.login("court-1", "1234")

	w := h.do(http.MethodGet, "/v1/courts/court-2/students", tok, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(http.MethodGet, "/v1/courts/court-1/students", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(http.MethodGet, "/v1/admin/students", tok, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	admin := h.adminToken()
	w = h.do(http.MethodGet, "/v1/courts/court-2/students", admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = h.do(http.MethodPost, "/v1/courts/court-2/attendance", admin,
		gin.H{"groupId": "kalp-3", "date": "2024-01-06"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

type failingKV struct{}

func (failingKV) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("connection refused")
}

func (failingKV) Update(context.Context, string, store.Mutation) error {
	return errors.New("connection refused")
}

func TestReadsDegradeWhenStoreIsDown(t *testing.T) {
	h := newHarness(t, failingKV{}, nil)
	tok, err := auth.Issue(auth.Identity{TrainerID: "t1", CourtID: "court-1", Role: auth.RoleTrainer}, testIssuer, testKey, time.Hour)
	require.NoError(t, err)

	w := h.do(http.MethodGet, "/v1/courts/court-1/reports/overview", tok.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "true", w.Header().Get("X-Degraded"))
	var resp struct {
		Overview struct {
			Students []json.RawMessage `json:"students"`
		} `json:"overview"`
	}
	decode(t, w, &resp)
	assert.NotNil(t, resp.Overview.Students)
	assert.Empty(t, resp.Overview.Students)

	w = h.do(http.MethodPost, "/v1/courts/court-1/attendance", tok.AccessToken,
		gin.H{"groupId": "gkp-1", "presentStudentIds": []string{"s1"}})
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = h.do(http.MethodPost, "/v1/courts/court-1/login", "", gin.H{"passcode": "1234"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestAdminRoster(t *testing.T) {
	h := newMemoryHarness(t)
	admin := h.adminToken()

	w := h.do(http.MethodPost, "/v1/admin/students", admin, gin.H{"id": "s9", "name": "Zara", "groupId": "orch-1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = h.do(http.MethodPost, "/v1/admin/students", admin, gin.H{"id": "s9", "name": "Zara again", "groupId": "orch-1"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = h.do(http.MethodPost, "/v1/admin/students", admin, gin.H{"id": "s10", "name": "Typo", "groupId": "orch-9"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = h.do(http.MethodPatch, "/v1/admin/students/s9", admin, gin.H{"groupId": "orch-9"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodPatch, "/v1/admin/students/s9", admin, gin.H{"groupId": "orch-2"})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = h.do(http.MethodGet, "/v1/admin/students?group=orch-2", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Students []model.Student `json:"students"`
	}
	decode(t, w, &list)
	require.Len(t, list.Students, 1)
	assert.Equal(t, "s9", list.Students[0].ID)

	w = h.do(http.MethodDelete, "/v1/admin/students/s9", admin, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = h.do(http.MethodDelete, "/v1/admin/students/s9", admin, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = h.do(http.MethodPatch, "/v1/admin/students/s9", admin, gin.H{"groupId": "orch-1"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(http.MethodPost, "/v1/admin/students/dedupe", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"removed":0}`, w.Body.String())
}

func TestAdminTrainers(t *testing.T) {
	h := newMemoryHarness(t)
	admin := h.adminToken()

	w := h.do(http.MethodPost, "/v1/admin/trainers", admin, gin.H{"id": "t3", "name": "Meera", "courtId": "court-1", "passcode": "1234"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = h.do(http.MethodPost, "/v1/admin/trainers", admin, gin.H{"id": "t3", "name": "Meera", "courtId": "court-9", "passcode": "4321"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodPost, "/v1/admin/trainers", admin, gin.H{"id": "t3", "name": "Meera", "courtId": "court-1", "passcode": "4321"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = h.do(http.MethodPut, "/v1/admin/trainers/t3/passcode", admin, gin.H{"passcode": "5678"})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NotEmpty(t, h.login("court-1", "5678"))

	w = h.do(http.MethodGet, "/v1/admin/trainers?court=court-1", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Trainers []model.Trainer `json:"trainers"`
	}
	decode(t, w, &list)
	assert.Len(t, list.Trainers, 2)

	w = h.do(http.MethodPut, "/v1/admin/trainers/t9/passcode", admin, gin.H{"passcode": "5678"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(http.MethodDelete, "/v1/admin/trainers/t3", admin, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = h.do(http.MethodPost, "/v1/courts/court-1/login", "", gin.H{"passcode": "5678"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

type recordingJobs struct{ dedupes int }

func (r *recordingJobs) DedupeStudents(context.Context) error {
	r.dedupes++
	return nil
}

func TestAdminEnqueueDedupe(t *testing.T) {
	h := newMemoryHarness(t)
	w := h.do(http.MethodPost, "/v1/admin/jobs/dedupe", h.adminToken(), nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	jobs := &recordingJobs{}
	h = newHarness(t, store.NewMemoryKV(), jobs)
	w = h.do(http.MethodPost, "/v1/admin/jobs/dedupe", h.adminToken(), nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 1, jobs.dedupes)
}

func TestHealthz(t *testing.T) {
	h := newMemoryHarness(t)
	w := h.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
