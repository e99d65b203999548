package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dentalclinic/m/internal/config"
	"dentalclinic/m/internal/database/dbtest"
)

type testServer struct {
	t       *testing.T
	db      *sqlx.DB
	handler *Handler
	router  http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := dbtest.Open(t)
	h := New(db, config.Config{Secret: "test-secret", CORSOrigins: []string{"*"}}, nil, nil)
	h.now = func() time.Time { return time.Date(2026, 2, 11, 9, 30, 0, 0, time.Local) }
	return &testServer{t: t, db: db, handler: h, router: h.Router()}
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// register creates a practitioner and returns its token.
func (s *testServer) register(email string) string {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/auth/register", "", map[string]string{
		"email": email, "password": "secret1", "name": "Ana", "lastname": "Paz",
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp authResponse
	decode(s.t, rec, &resp)
	return resp.Token
}

func (s *testServer) createPatient(token, dni string) int64 {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/patients", token, map[string]string{"name": "Juan", "lastname": "Perez", "dni": dni})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp savePatientResponse
	decode(s.t, rec, &resp)
	return resp.Data.ID
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest), rec.Body.String())
}

func body(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	out := map[string]any{}
	decode(t, rec, &out)
	return out
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body(t, rec)["status"])

	rec = s.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)
	token := s.register("ana@example.com")
	assert.NotEmpty(t, token)

	rec := s.do(http.MethodPost, "/auth/register", "", map[string]string{
		"email": "ANA@example.com", "password": "secret1", "name": "Ana", "lastname": "Paz",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, "/auth/register", "", map[string]string{"email": "nope", "password": "1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "ana@example.com", "password": "wrong!"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "ana@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, rec.Code)
	var login authResponse
	decode(t, rec, &login)
	assert.Equal(t, "ana@example.com", login.User.Email)

	rec = s.do(http.MethodGet, "/auth/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/auth/profile", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPut, "/auth/profile", login.Token, map[string]string{"email": "ana.paz@example.com", "tuition": "MP 1234"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/auth/profile", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var profile struct {
		User struct {
			Email   string `json:"email"`
			Tuition string `json:"tuition"`
		} `json:"user"`
	}
	decode(t, rec, &profile)
	assert.Equal(t, "ana.paz@example.com", profile.User.Email)
	assert.Equal(t, "MP 1234", profile.User.Tuition)
}

func TestPatientGate(t *testing.T) {
	s := newTestServer(t)
	owner := s.register("owner@example.com")
	other := s.register("other@example.com")
	patientID := s.createPatient(owner, "30111222")

	rec := s.do(http.MethodGet, fmt.Sprintf("/patients/%d", patientID), owner, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	for _, path := range []string{
		fmt.Sprintf("/patients/%d", patientID),
		fmt.Sprintf("/patients/%d/budgets", patientID),
		fmt.Sprintf("/patients/%d/odontograma", patientID),
		fmt.Sprintf("/patients/%d/anamnesis", patientID),
		"/patients/9999",
	} {
		rec := s.do(http.MethodGet, path, other, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}

	rec = s.do(http.MethodGet, "/patients/abc", owner, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, fmt.Sprintf("/patients/%d/budgets", patientID), owner, map[string]any{"treatment": "Implante", "total": 500})
	require.Equal(t, http.StatusCreated, rec.Code)
	budgetID := int64(body(t, rec)["id"].(float64))

	rec = s.do(http.MethodPost, fmt.Sprintf("/patients/%d/budgets/%d/payments", patientID, budgetID), other, map[string]any{
		"amount_paid": 10, "payment_method": "efectivo", "payment_date": "2024-03-01",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 0, dbtest.Count(t, s.db, "payments"))

	second := s.createPatient(owner, "30999888")
	rec = s.do(http.MethodGet, fmt.Sprintf("/patients/%d/budgets/%d", second, budgetID), owner, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPatientsListAndUpdate(t *testing.T) {
	s := newTestServer(t)
	token := s.register("ana@example.com")
	for i := 0; i < 12; i++ {
		s.createPatient(token, fmt.Sprintf("3000%04d", i))
	}
	s.createPatient(s.register("other@example.com"), "40000000")

	rec := s.do(http.MethodGet, "/patients?page=2", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page patientPage
	decode(t, rec, &page)
	assert.Len(t, page.Data, 2)
	assert.Equal(t, pagination{CurrentPage: 2, PageSize: 10, TotalPatients: 12, TotalPages: 2}, page.Pagination)

	rec = s.do(http.MethodGet, "/patients?search=30000011", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &page)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "30000011", page.Data[0].DNI)

	rec = s.do(http.MethodGet, "/patients?search='%20OR%201=1%20--", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &page)
	assert.Empty(t, page.Data)

	patientID := s.createPatient(token, "31000000")
	rec = s.do(http.MethodPut, fmt.Sprintf("/patients/%d", patientID), token, map[string]any{"tel": "351-555", "holder": true, "dni": "ignored"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodPut, fmt.Sprintf("/patients/%d", patientID), token, map[string]any{"dni": "ignored"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, fmt.Sprintf("/patients/%d", patientID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := body(t, rec)
	assert.Equal(t, "351-555", got["tel"])
	assert.Equal(t, true, got["holder"])
	assert.Equal(t, "31000000", got["dni"])

	rec = s.do(http.MethodPost, "/patients", token, map[string]any{"patientId": patientID, "name": "Juana", "lastname": "Perez", "dni": "31000000"})
	require.Equal(t, http.StatusOK, rec.Code)
	var saved savePatientResponse
	decode(t, rec, &saved)
	assert.False(t, saved.IsNew)
	assert.Equal(t, "Juana", saved.Data.Name)
}

func TestPaymentScenario(t *testing.T) {
	s := newTestServer(t)
	token := s.register("ana@example.com")
	patientID := s.createPatient(token, "30111222")
	base := fmt.Sprintf("/patients/%d/budgets", patientID)

	rec := s.do(http.MethodPost, base, token, map[string]any{"treatment": "Ortodoncia", "total": "1000.00"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	budget := body(t, rec)
	assert.Equal(t, 1000.0, budget["total"])
	assert.Equal(t, 1000.0, budget["pending"])
	assert.Equal(t, true, budget["is_active"])
	payments := fmt.Sprintf("%s/%d/payments", base, int64(budget["id"].(float64)))

	payment := func(amount float64) *httptest.ResponseRecorder {
		return s.do(http.MethodPost, payments, token, map[string]any{
			"amount_paid": amount, "payment_method": "efectivo", "payment_date": "2024-03-01",
		})
	}

	rec = payment(600)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	a := body(t, rec)
	assert.Equal(t, 400.0, a["pending"])
	assert.Equal(t, true, a["budget_is_active"])

	rec = payment(500)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rejected := body(t, rec)
	assert.Equal(t, "BUDGET_EXCEEDED", rejected["code"])
	assert.Equal(t, 1000.0, rejected["total"])
	assert.Equal(t, 1100.0, rejected["attempted"])

	rec = payment(0)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = payment(400)
	require.Equal(t, http.StatusCreated, rec.Code)
	c := body(t, rec)
	assert.Equal(t, 0.0, c["pending"])
	assert.Equal(t, false, c["budget_is_active"])

	rec = s.do(http.MethodDelete, fmt.Sprintf("%s/%d", payments, int64(a["id"].(float64))), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	deleted := body(t, rec)
	assert.Equal(t, 600.0, deleted["pending"])
	assert.Equal(t, true, deleted["budget_is_active"])

	rec = s.do(http.MethodGet, payments, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var active []map[string]any
	decode(t, rec, &active)
	assert.Len(t, active, 1)

	rec = s.do(http.MethodGet, payments+"?include_inactive=true", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var all []map[string]any
	decode(t, rec, &all)
	assert.Len(t, all, 2)

	rec = s.do(http.MethodGet, base, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var budgets []map[string]any
	decode(t, rec, &budgets)
	require.Len(t, budgets, 1)
	assert.Equal(t, 400.0, budgets[0]["total_paid"])
	assert.Equal(t, 600.0, budgets[0]["remaining"])
	assert.Equal(t, 600.0, budgets[0]["pending"])
}

func TestUpdateBudgetBelowPaid(t *testing.T) {
	s := newTestServer(t)
	token := s.register("ana@example.com")
	patientID := s.createPatient(token, "30111222")
	base := fmt.Sprintf("/patients/%d/budgets", patientID)

	rec := s.do(http.MethodPost, base, token, map[string]any{"treatment": "Corona", "total": 300})
	require.Equal(t, http.StatusCreated, rec.Code)
	budgetPath := fmt.Sprintf("%s/%d", base, int64(body(t, rec)["id"].(float64)))

	rec = s.do(http.MethodPost, budgetPath+"/payments", token, map[string]any{
		"amount_paid": 200, "payment_method": "tarjeta", "payment_date": "2024-03-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(http.MethodPut, budgetPath, token, map[string]any{"total": 150})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "BUDGET_EXCEEDED", body(t, rec)["code"])

	rec = s.do(http.MethodPut, budgetPath, token, map[string]any{"total": 250})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 50.0, body(t, rec)["pending"])

	rec = s.do(http.MethodDelete, budgetPath, token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, dbtest.Count(t, s.db, "payments"))

	rec = s.do(http.MethodGet, budgetPath, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
