package handler_test

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verimed/internal/crypto"
	"verimed/internal/patient"
	"verimed/internal/sensitive"
	"verimed/internal/sensitive/handler"
	"verimed/internal/sensitive/throttle"
	"verimed/pkg/domain"
	"verimed/pkg/platform/audit"
	auditmemory "verimed/pkg/platform/audit/store/memory"
	"verimed/pkg/testutil"
)

type fixture struct {
	router   chi.Router
	patients *patient.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.Default()
	cryptoSvc, err := crypto.New("test-master-secret", crypto.WithIterations(1000))
	require.NoError(t, err)

	store := patient.NewInMemoryStore()
	recorder := audit.NewRecorder(auditmemory.New(), logger)
	patients := patient.NewService(store, cryptoSvc, logger)
	fields := sensitive.NewService(store, cryptoSvc, throttle.NewInMemoryStore(), recorder, logger,
		sensitive.WithLockout(3, time.Minute))

	router := chi.NewRouter()
	handler.New(fields, patients, logger).Register(router)
	return &fixture{router: router, patients: patients}
}

func (f *fixture) seedPatient(t *testing.T, owner, phone string) domain.PatientID {
	t.Helper()
	created, err := f.patients.Create(testutil.Context(owner, "staff"), patient.CreateInput{
		DisplayName: "Jordan Smith",
		Phone:       phone,
	})
	require.NoError(t, err)
	return created.ID
}

func (f *fixture) do(t *testing.T, userID, role, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req = testutil.WithRequester(req, userID, role)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestGetFieldReturnsMaskNotPlaintext(t *testing.T) {
	f := newFixture(t)
	patientID := f.seedPatient(t, "owner-1", "555-867-5309")

	rec := f.do(t, "owner-1", "staff", http.MethodGet, "/patients/"+patientID.String()+"/fields/phone", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var masked map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &masked))
	assert.Equal(t, true, masked["encrypted"])
	assert.NotContains(t, rec.Body.String(), "867-5309")
	assert.Contains(t, masked["value"], "•")
}

func TestRevealByOwner(t *testing.T) {
	f := newFixture(t)
	patientID := f.seedPatient(t, "owner-1", "555-867-5309")

	rec := f.do(t, "owner-1", "staff", http.MethodPost,
		"/patients/"+patientID.String()+"/fields/phone/reveal", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "phone", resp["field"])
	assert.Equal(t, "555-867-5309", resp["value"])
}

func TestRevealDeniedForNonOwner(t *testing.T) {
	f := newFixture(t)
	patientID := f.seedPatient(t, "owner-1", "555-867-5309")

	rec := f.do(t, "intruder", "staff", http.MethodPost,
		"/patients/"+patientID.String()+"/fields/phone/reveal", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NotContains(t, rec.Body.String(), "555")
}

func TestRevealAllowedForElevatedRole(t *testing.T) {
	f := newFixture(t)
	patientID := f.seedPatient(t, "owner-1", "555-867-5309")

	rec := f.do(t, "auditor", "compliance", http.MethodPost,
		"/patients/"+patientID.String()+"/fields/phone/reveal", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRepeatedDenialsLockOut(t *testing.T) {
	f := newFixture(t)
	patientID := f.seedPatient(t, "owner-1", "555-867-5309")
	path := "/patients/" + patientID.String() + "/fields/phone/reveal"

	for i := 0; i < 3; i++ {
		rec := f.do(t, "intruder", "staff", http.MethodPost, path, "")
		require.Equal(t, http.StatusForbidden, rec.Code)
	}
	rec := f.do(t, "intruder", "staff", http.MethodPost, path, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestPutFieldReEncrypts(t *testing.T) {
	f := newFixture(t)
	patientID := f.seedPatient(t, "owner-1", "555-867-5309")

	rec := f.do(t, "owner-1", "staff", http.MethodPut,
		"/patients/"+patientID.String()+"/fields/email", `{"value":"jordan@example.com"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, "owner-1", "staff", http.MethodPost,
		"/patients/"+patientID.String()+"/fields/email/reveal", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "jordan@example.com", resp["value"])
}

func TestUnknownFieldNameRejected(t *testing.T) {
	f := newFixture(t)
	patientID := f.seedPatient(t, "owner-1", "555-867-5309")

	rec := f.do(t, "owner-1", "staff", http.MethodGet,
		"/patients/"+patientID.String()+"/fields/favorite_color", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
