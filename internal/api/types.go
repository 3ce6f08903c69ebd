package api

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token    string `json:"token"`
	Kind     string `json:"kind"`
	Username string `json:"username"`
}

type UploadAvailabilityRequest struct {
	Date string `json:"date"` // yyyy-mm-dd
}

type ReserveRequest struct {
	Date    string `json:"date"` // yyyy-mm-dd
	Vaccine string `json:"vaccine"`
}

type ReserveResponse struct {
	AppointmentID int64  `json:"appointment_id"`
	Caregiver     string `json:"caregiver"`
}

type AddDosesRequest struct {
	Doses int `json:"doses"`
}

type AddDosesResponse struct {
	Vaccine string `json:"vaccine"`
	Doses   int    `json:"doses"`
}

type VaccineView struct {
	Name  string `json:"name"`
	Doses int    `json:"doses"`
}

type ScheduleResponse struct {
	Date       string        `json:"date"`
	Caregivers []string      `json:"caregivers"`
	Vaccines   []VaccineView `json:"vaccines"`
}

// AppointmentView shows the counterpart participant: patients see the
// caregiver and caregivers see the patient.
type AppointmentView struct {
	AppointmentID int64  `json:"appointment_id"`
	Date          string `json:"date"`
	Vaccine       string `json:"vaccine"`
	Patient       string `json:"patient,omitempty"`
	Caregiver     string `json:"caregiver,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
