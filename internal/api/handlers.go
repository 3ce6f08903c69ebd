package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/vaxpoint/vaccine-scheduler/internal/booking"
	"github.com/vaxpoint/vaccine-scheduler/internal/identity"
	"github.com/vaxpoint/vaccine-scheduler/internal/session"
)

const dateLayout = "2006-01-02"

type Handlers struct {
	identity *identity.Service
	sessions session.Store
	booking  *booking.Service
}

func NewHandlers(ident *identity.Service, sessions session.Store, booking *booking.Service) *Handlers {
	return &Handlers{identity: ident, sessions: sessions, booking: booking}
}

// Accounts

func (h *Handlers) registerHandler(kind identity.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		if err := h.identity.Register(r.Context(), kind, req.Username, req.Password); err != nil {
			if errors.Is(err, identity.ErrUsernameTaken) {
				writeError(w, http.StatusConflict, "username_taken", "username taken, try again")
				return
			}
			writeInternalError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, MessageResponse{
			Message: "created " + string(kind) + " user " + req.Username,
		})
	}
}

func (h *Handlers) loginHandler(kind identity.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		username, err := h.identity.Authenticate(r.Context(), kind, req.Username, req.Password)
		if err != nil {
			if errors.Is(err, identity.ErrInvalidCredentials) {
				writeError(w, http.StatusUnauthorized, "login_failed", "invalid username or password")
				return
			}
			writeInternalError(w, r, err)
			return
		}

		token, err := h.sessions.Create(r.Context(), session.Session{Kind: kind, Username: username})
		if err != nil {
			writeInternalError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, LoginResponse{Token: token, Kind: string(kind), Username: username})
	}
}

func (h *Handlers) logoutHandler(w http.ResponseWriter, r *http.Request) {
	token := GetSessionToken(r.Context())
	if err := h.sessions.Delete(r.Context(), token); err != nil {
		writeInternalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "successfully logged out"})
}

// Booking

func (h *Handlers) scheduleHandler(w http.ResponseWriter, r *http.Request) {
	sess, _ := GetSession(r.Context())

	day, ok := parseDateParam(w, chi.URLParam(r, "date"))
	if !ok {
		return
	}

	sched, err := h.booking.Schedule(r.Context(), sess, day)
	if err != nil {
		handleBookingError(w, r, err)
		return
	}

	resp := ScheduleResponse{
		Date:       sched.Day.Format(dateLayout),
		Caregivers: sched.Caregivers,
		Vaccines:   make([]VaccineView, 0, len(sched.Vaccines)),
	}
	for _, v := range sched.Vaccines {
		resp.Vaccines = append(resp.Vaccines, VaccineView{Name: v.Name, Doses: v.Doses})
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) uploadAvailabilityHandler(w http.ResponseWriter, r *http.Request) {
	sess, _ := GetSession(r.Context())

	var req UploadAvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	day, ok := parseDateParam(w, req.Date)
	if !ok {
		return
	}

	if err := h.booking.UploadAvailability(r.Context(), sess, day); err != nil {
		handleBookingError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, MessageResponse{Message: "availability uploaded"})
}

func (h *Handlers) reserveHandler(w http.ResponseWriter, r *http.Request) {
	sess, _ := GetSession(r.Context())

	var req ReserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	day, ok := parseDateParam(w, req.Date)
	if !ok {
		return
	}

	res, err := h.booking.Reserve(r.Context(), sess, day, req.Vaccine)
	if err != nil {
		handleBookingError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, ReserveResponse{
		AppointmentID: res.AppointmentID,
		Caregiver:     res.Caregiver,
	})
}

func (h *Handlers) cancelHandler(w http.ResponseWriter, r *http.Request) {
	sess, _ := GetSession(r.Context())

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be an integer")
		return
	}

	if err := h.booking.Cancel(r.Context(), sess, id); err != nil {
		handleBookingError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "appointment cancelled"})
}

func (h *Handlers) addDosesHandler(w http.ResponseWriter, r *http.Request) {
	sess, _ := GetSession(r.Context())

	var req AddDosesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	vaccine := chi.URLParam(r, "name")

	total, err := h.booking.AddDoses(r.Context(), sess, vaccine, req.Doses)
	if err != nil {
		handleBookingError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, AddDosesResponse{Vaccine: vaccine, Doses: total})
}

func (h *Handlers) appointmentsHandler(w http.ResponseWriter, r *http.Request) {
	sess, _ := GetSession(r.Context())

	appts, err := h.booking.Appointments(r.Context(), sess)
	if err != nil {
		handleBookingError(w, r, err)
		return
	}

	views := make([]AppointmentView, 0, len(appts))
	for _, a := range appts {
		view := AppointmentView{
			AppointmentID: a.ID,
			Date:          a.Day.Format(dateLayout),
			Vaccine:       a.Vaccine,
		}
		// each side sees the counterpart participant
		if sess.IsCaregiver() {
			view.Patient = a.Patient
		} else {
			view.Caregiver = a.Caregiver
		}
		views = append(views, view)
	}

	writeJSON(w, http.StatusOK, views)
}

// Helpers

func parseDateParam(w http.ResponseWriter, raw string) (time.Time, bool) {
	day, err := time.Parse(dateLayout, raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be yyyy-mm-dd")
		return time.Time{}, false
	}
	return day, true
}

func handleBookingError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, booking.ErrPastDate):
		writeError(w, http.StatusBadRequest, "past_date", err.Error())
	case errors.Is(err, booking.ErrEmptyVaccine):
		writeError(w, http.StatusBadRequest, "empty_vaccine", err.Error())
	case errors.Is(err, booking.ErrInvalidDoseCount):
		writeError(w, http.StatusBadRequest, "invalid_dose_count", err.Error())
	case errors.Is(err, booking.ErrNotPatient):
		writeError(w, http.StatusForbidden, "not_a_patient", err.Error())
	case errors.Is(err, booking.ErrNotCaregiver):
		writeError(w, http.StatusForbidden, "not_a_caregiver", err.Error())
	case errors.Is(err, booking.ErrNoAvailability):
		writeError(w, http.StatusConflict, "no_availability", err.Error())
	case errors.Is(err, booking.ErrInsufficientDoses):
		writeError(w, http.StatusConflict, "insufficient_doses", err.Error())
	case errors.Is(err, booking.ErrContention):
		writeError(w, http.StatusConflict, "contention", err.Error())
	case errors.Is(err, booking.ErrDuplicateAvailability):
		writeError(w, http.StatusConflict, "duplicate_availability", err.Error())
	case errors.Is(err, booking.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	default:
		writeInternalError(w, r, err)
	}
}

// writeInternalError is the one path that logs full diagnostic detail;
// everything else is an expected business outcome.
func writeInternalError(w http.ResponseWriter, r *http.Request, err error) {
	log.Error().Err(err).
		Str("request_id", GetRequestID(r.Context())).
		Str("path", r.URL.Path).
		Msg("storage failure")
	writeError(w, http.StatusInternalServerError, "internal_error", "operation failed, no changes were applied")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
