package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaxpoint/vaccine-scheduler/internal/api"
	"github.com/vaxpoint/vaccine-scheduler/internal/booking"
	"github.com/vaxpoint/vaccine-scheduler/internal/config"
	"github.com/vaxpoint/vaccine-scheduler/internal/identity"
	"github.com/vaxpoint/vaccine-scheduler/internal/session"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	sessions := session.NewMemoryStore()
	handlers := api.NewHandlers(
		identity.NewService(identity.NewMemoryStore()),
		sessions,
		booking.NewService(booking.NewMemoryRepository(), config.Config{ReserveAttempts: 5}),
	)

	srv := httptest.NewServer(api.NewRouter(api.RouterConfig{
		Handlers: handlers,
		Sessions: sessions,
		Env:      "test",
		Version:  "test",
	}))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, token string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func register(t *testing.T, srv *httptest.Server, path, username string) {
	t.Helper()
	status, _ := do(t, srv, http.MethodPost, path, "", map[string]string{
		"username": username, "password": "Test-password-1!",
	})
	require.Equal(t, http.StatusCreated, status)
}

func login(t *testing.T, srv *httptest.Server, path, username string) string {
	t.Helper()
	status, raw := do(t, srv, http.MethodPost, path, "", map[string]string{
		"username": username, "password": "Test-password-1!",
	})
	require.Equal(t, http.StatusOK, status)

	var resp api.LoginResponse
	require.NoError(t, json.Unmarshal(raw, &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func errCode(t *testing.T, raw []byte) string {
	t.Helper()
	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(raw, &resp))
	return resp.Error
}

func tomorrowStr() string {
	return time.Now().AddDate(0, 0, 1).Format("2006-01-02")
}

// =============================================================================
// ACCOUNTS AND SESSIONS
// =============================================================================

func TestRegister_DuplicateUsernameConflict(t *testing.T) {
	srv := newTestServer(t)

	register(t, srv, "/patients", "alice")

	status, raw := do(t, srv, http.MethodPost, "/patients", "", map[string]string{
		"username": "alice", "password": "Test-password-1!",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "username_taken", errCode(t, raw))
}

func TestLogin_WrongPassword(t *testing.T) {
	srv := newTestServer(t)

	register(t, srv, "/caregivers", "carol")

	status, raw := do(t, srv, http.MethodPost, "/caregivers/login", "", map[string]string{
		"username": "carol", "password": "not-it",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "login_failed", errCode(t, raw))
}

func TestProtectedRoute_NoToken(t *testing.T) {
	srv := newTestServer(t)

	status, raw := do(t, srv, http.MethodPost, "/reservations", "", map[string]string{
		"date": tomorrowStr(), "vaccine": "pfizer",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "auth_required", errCode(t, raw))
}

func TestLogout_TokenInvalidated(t *testing.T) {
	srv := newTestServer(t)

	register(t, srv, "/patients", "alice")
	token := login(t, srv, "/patients/login", "alice")

	status, _ := do(t, srv, http.MethodPost, "/logout", token, nil)
	require.Equal(t, http.StatusOK, status)

	status, raw := do(t, srv, http.MethodGet, "/appointments", token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "auth_required", errCode(t, raw))
}

// =============================================================================
// FULL BOOKING FLOW
// =============================================================================

func TestBookingFlow_EndToEnd(t *testing.T) {
	srv := newTestServer(t)
	date := tomorrowStr()

	register(t, srv, "/caregivers", "carol")
	register(t, srv, "/patients", "alice")
	caregiver := login(t, srv, "/caregivers/login", "carol")
	patient := login(t, srv, "/patients/login", "alice")

	// caregiver publishes a slot and stocks doses
	status, _ := do(t, srv, http.MethodPost, "/availabilities", caregiver, map[string]string{"date": date})
	require.Equal(t, http.StatusCreated, status)

	status, raw := do(t, srv, http.MethodPost, "/vaccines/pfizer/doses", caregiver, map[string]int{"doses": 5})
	require.Equal(t, http.StatusOK, status)
	var stock api.AddDosesResponse
	require.NoError(t, json.Unmarshal(raw, &stock))
	assert.Equal(t, 5, stock.Doses)

	// the schedule shows both
	status, raw = do(t, srv, http.MethodGet, "/schedule/"+date, patient, nil)
	require.Equal(t, http.StatusOK, status)
	var sched api.ScheduleResponse
	require.NoError(t, json.Unmarshal(raw, &sched))
	assert.Equal(t, []string{"carol"}, sched.Caregivers)
	assert.Equal(t, []api.VaccineView{{Name: "pfizer", Doses: 5}}, sched.Vaccines)

	// patient reserves
	status, raw = do(t, srv, http.MethodPost, "/reservations", patient, map[string]string{
		"date": date, "vaccine": "pfizer",
	})
	require.Equal(t, http.StatusCreated, status)
	var res api.ReserveResponse
	require.NoError(t, json.Unmarshal(raw, &res))
	assert.Equal(t, "carol", res.Caregiver)

	// each side sees the counterpart participant
	status, raw = do(t, srv, http.MethodGet, "/appointments", patient, nil)
	require.Equal(t, http.StatusOK, status)
	var patientView []api.AppointmentView
	require.NoError(t, json.Unmarshal(raw, &patientView))
	require.Len(t, patientView, 1)
	assert.Equal(t, "carol", patientView[0].Caregiver)
	assert.Empty(t, patientView[0].Patient)

	status, raw = do(t, srv, http.MethodGet, "/appointments", caregiver, nil)
	require.Equal(t, http.StatusOK, status)
	var caregiverView []api.AppointmentView
	require.NoError(t, json.Unmarshal(raw, &caregiverView))
	require.Len(t, caregiverView, 1)
	assert.Equal(t, "alice", caregiverView[0].Patient)

	// second reservation for the same day finds no slot left
	status, raw = do(t, srv, http.MethodPost, "/reservations", patient, map[string]string{
		"date": date, "vaccine": "pfizer",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "no_availability", errCode(t, raw))

	// cancel restores slot and dose
	apptPath := "/appointments/" + strconv.FormatInt(res.AppointmentID, 10)
	status, _ = do(t, srv, http.MethodDelete, apptPath, patient, nil)
	require.Equal(t, http.StatusOK, status)

	status, raw = do(t, srv, http.MethodGet, "/schedule/"+date, patient, nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(raw, &sched))
	assert.Equal(t, []string{"carol"}, sched.Caregivers)
	assert.Equal(t, []api.VaccineView{{Name: "pfizer", Doses: 5}}, sched.Vaccines)

	// cancelling again is NotFound, nothing restored twice
	status, raw = do(t, srv, http.MethodDelete, apptPath, patient, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "appointment_not_found", errCode(t, raw))
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func TestReserve_PastDate_BadRequest(t *testing.T) {
	srv := newTestServer(t)

	register(t, srv, "/patients", "alice")
	patient := login(t, srv, "/patients/login", "alice")

	past := time.Now().AddDate(0, 0, -1).Format("2006-01-02")
	status, raw := do(t, srv, http.MethodPost, "/reservations", patient, map[string]string{
		"date": past, "vaccine": "pfizer",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "past_date", errCode(t, raw))
}

func TestReserve_MalformedDate_BadRequest(t *testing.T) {
	srv := newTestServer(t)

	register(t, srv, "/patients", "alice")
	patient := login(t, srv, "/patients/login", "alice")

	status, raw := do(t, srv, http.MethodPost, "/reservations", patient, map[string]string{
		"date": "not-a-date", "vaccine": "pfizer",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_date", errCode(t, raw))
}

func TestReserve_AsCaregiver_Forbidden(t *testing.T) {
	srv := newTestServer(t)

	register(t, srv, "/caregivers", "carol")
	caregiver := login(t, srv, "/caregivers/login", "carol")

	status, raw := do(t, srv, http.MethodPost, "/reservations", caregiver, map[string]string{
		"date": tomorrowStr(), "vaccine": "pfizer",
	})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "not_a_patient", errCode(t, raw))
}

func TestUploadAvailability_AsPatient_Forbidden(t *testing.T) {
	srv := newTestServer(t)

	register(t, srv, "/patients", "alice")
	patient := login(t, srv, "/patients/login", "alice")

	status, raw := do(t, srv, http.MethodPost, "/availabilities", patient, map[string]string{"date": tomorrowStr()})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "not_a_caregiver", errCode(t, raw))
}

func TestUploadAvailability_Duplicate_Conflict(t *testing.T) {
	srv := newTestServer(t)

	register(t, srv, "/caregivers", "carol")
	caregiver := login(t, srv, "/caregivers/login", "carol")
	date := tomorrowStr()

	status, _ := do(t, srv, http.MethodPost, "/availabilities", caregiver, map[string]string{"date": date})
	require.Equal(t, http.StatusCreated, status)

	status, raw := do(t, srv, http.MethodPost, "/availabilities", caregiver, map[string]string{"date": date})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "duplicate_availability", errCode(t, raw))
}

func TestReserve_NoDoses_Conflict(t *testing.T) {
	srv := newTestServer(t)

	register(t, srv, "/caregivers", "carol")
	register(t, srv, "/patients", "alice")
	caregiver := login(t, srv, "/caregivers/login", "carol")
	patient := login(t, srv, "/patients/login", "alice")

	status, _ := do(t, srv, http.MethodPost, "/availabilities", caregiver, map[string]string{"date": tomorrowStr()})
	require.Equal(t, http.StatusCreated, status)

	status, raw := do(t, srv, http.MethodPost, "/reservations", patient, map[string]string{
		"date": tomorrowStr(), "vaccine": "pfizer",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "insufficient_doses", errCode(t, raw))
}

func TestAddDoses_NonPositive_BadRequest(t *testing.T) {
	srv := newTestServer(t)

	register(t, srv, "/caregivers", "carol")
	caregiver := login(t, srv, "/caregivers/login", "carol")

	status, raw := do(t, srv, http.MethodPost, "/vaccines/pfizer/doses", caregiver, map[string]int{"doses": 0})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_dose_count", errCode(t, raw))
}

func TestCancel_ForeignAppointment_NotFound(t *testing.T) {
	srv := newTestServer(t)

	register(t, srv, "/caregivers", "carol")
	register(t, srv, "/patients", "alice")
	register(t, srv, "/patients", "mallory")
	caregiver := login(t, srv, "/caregivers/login", "carol")
	alice := login(t, srv, "/patients/login", "alice")
	mallory := login(t, srv, "/patients/login", "mallory")

	status, _ := do(t, srv, http.MethodPost, "/availabilities", caregiver, map[string]string{"date": tomorrowStr()})
	require.Equal(t, http.StatusCreated, status)
	status, _ = do(t, srv, http.MethodPost, "/vaccines/pfizer/doses", caregiver, map[string]int{"doses": 1})
	require.Equal(t, http.StatusOK, status)

	status, raw := do(t, srv, http.MethodPost, "/reservations", alice, map[string]string{
		"date": tomorrowStr(), "vaccine": "pfizer",
	})
	require.Equal(t, http.StatusCreated, status)
	var res api.ReserveResponse
	require.NoError(t, json.Unmarshal(raw, &res))

	status, raw = do(t, srv, http.MethodDelete, "/appointments/"+strconv.FormatInt(res.AppointmentID, 10), mallory, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "appointment_not_found", errCode(t, raw))
}

func TestHealth_Liveness(t *testing.T) {
	srv := newTestServer(t)

	status, raw := do(t, srv, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, status)

	var resp api.LivenessResponse
	require.NoError(t, json.Unmarshal(raw, &resp))
	assert.Equal(t, "ok", resp.Status)
}
