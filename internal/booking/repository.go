package booking

import (
	"context"
	"errors"
	"time"
)

var (
	ErrDuplicateAvailability = errors.New("caregiver already has a slot for that day")
	ErrAppointmentNotFound   = errors.New("appointment not found")
)

// AvailabilityIndex holds published (day, caregiver) slots.
type AvailabilityIndex interface {
	// Publish inserts a slot. Fails with ErrDuplicateAvailability if the
	// caregiver already published that day.
	Publish(ctx context.Context, day time.Time, caregiver string) error

	// Caregivers lists caregivers with a slot on the day, ascending by
	// username. Re-querying reflects current state, not a snapshot.
	Caregivers(ctx context.Context, day time.Time) ([]string, error)

	// Claim atomically removes the slot and reports whether this caller
	// got it. A slot taken by a concurrent claim yields false, never a
	// double removal.
	Claim(ctx context.Context, day time.Time, caregiver string) (bool, error)
}

// DoseInventory holds the named dose counters.
type DoseInventory interface {
	// AddDoses creates the counter at n if absent, else adds n. Returns
	// the new total.
	AddDoses(ctx context.Context, vaccine string, n int) (int, error)

	// TryTakeDose atomically decrements by one iff at least one dose is
	// available. No read-then-write race can drive the counter negative.
	TryTakeDose(ctx context.Context, vaccine string) (bool, error)

	// ReturnDose atomically adds one dose back. A vaccine that was ever
	// consumable always exists, so this never reports absence.
	ReturnDose(ctx context.Context, vaccine string) (int, error)

	// Vaccines lists all counters, ascending by name.
	Vaccines(ctx context.Context) ([]Vaccine, error)
}

// AppointmentLedger owns committed reservations.
type AppointmentLedger interface {
	// Create inserts the appointment and returns its store-issued id.
	// Ids are unique across live and removed appointments.
	Create(ctx context.Context, appt Appointment) (int64, error)

	ByPatient(ctx context.Context, patient string) ([]Appointment, error)
	ByCaregiver(ctx context.Context, caregiver string) ([]Appointment, error)
}

// Repository is everything the booking engine needs from storage.
type Repository interface {
	AvailabilityIndex
	DoseInventory
	AppointmentLedger

	// CancelAppointment deletes the appointment, returns one dose of its
	// vaccine to the inventory and republishes its slot, all as one atomic
	// step: either every effect applies or none does, so no observer and no
	// storage failure can see a half-reversed reservation. An existing slot
	// for the same (day, caregiver) satisfies the republish. A racing
	// double-cancel loses here with ErrAppointmentNotFound, the same as a
	// dead id, and nothing gets restored twice.
	CancelAppointment(ctx context.Context, id int64) (*Appointment, error)
}
