package booking

import "time"

// Availability is one caregiver's published slot for one calendar day.
// (Day, Caregiver) is unique; the record is destroyed when a reservation
// claims it and re-published by cancellation.
type Availability struct {
	Day       time.Time
	Caregiver string
}

// Vaccine is a named dose counter. Doses never goes negative: the only
// decrement is the conditional one in TryTakeDose.
type Vaccine struct {
	Name  string
	Doses int
}

// Appointment binds one claimed slot and one consumed dose. The ledger
// owns the record; patient and caregiver hold only the id.
type Appointment struct {
	ID        int64
	Day       time.Time
	Patient   string
	Caregiver string
	Vaccine   string
	CreatedAt time.Time
}

// Reservation is what a successful Reserve returns to the patient.
type Reservation struct {
	AppointmentID int64
	Caregiver     string
}

// Schedule is the search_schedule view: who is available on a day, plus
// the current dose counters.
type Schedule struct {
	Day        time.Time
	Caregivers []string
	Vaccines   []Vaccine
}

// Day truncates t to its calendar date in UTC. All slot and appointment
// dates are stored at day precision.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
