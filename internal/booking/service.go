package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vaxpoint/vaccine-scheduler/internal/config"
	"github.com/vaxpoint/vaccine-scheduler/internal/session"
)

var (
	ErrNotPatient        = errors.New("only patients can do this, log in as a patient")
	ErrNotCaregiver      = errors.New("only caregivers can do this, log in as a caregiver")
	ErrPastDate          = errors.New("date must be today or later")
	ErrEmptyVaccine      = errors.New("vaccine name must be non-empty")
	ErrInvalidDoseCount  = errors.New("dose count must be a positive integer")
	ErrNoAvailability    = errors.New("no caregivers available for that day")
	ErrInsufficientDoses = errors.New("not enough available doses")
	ErrContention        = errors.New("reservation retries exhausted, please try again")
)

// Service is the booking engine. It composes the three ledgers through
// their atomic primitives; nothing here holds a cross-store lock.
type Service struct {
	repo Repository
	cfg  config.Config
}

func NewService(repo Repository, cfg config.Config) *Service {
	if cfg.ReserveAttempts < 1 {
		cfg.ReserveAttempts = 5
	}
	return &Service{repo: repo, cfg: cfg}
}

// Reserve books one dose of the vaccine with the first available caregiver
// on the day, ascending by username so racing requests have a reproducible
// pick order.
//
// Protocol: take a dose first, then claim the slot. If the claim loses to a
// concurrent reservation the dose is returned and the whole attempt restarts
// against current availability, up to cfg.ReserveAttempts times. Each step is
// individually atomic and cheaply reversible, so a failure at any point
// leaves no partial state behind.
func (s *Service) Reserve(ctx context.Context, sess session.Session, day time.Time, vaccine string) (*Reservation, error) {
	if !sess.IsPatient() {
		return nil, ErrNotPatient
	}
	if vaccine == "" {
		return nil, ErrEmptyVaccine
	}
	day = Day(day)
	if day.Before(Day(time.Now())) {
		return nil, ErrPastDate
	}

	for attempt := 1; attempt <= s.cfg.ReserveAttempts; attempt++ {
		caregivers, err := s.repo.Caregivers(ctx, day)
		if err != nil {
			return nil, fmt.Errorf("list availabilities: %w", err)
		}
		if len(caregivers) == 0 {
			return nil, ErrNoAvailability
		}
		candidate := caregivers[0]

		took, err := s.repo.TryTakeDose(ctx, vaccine)
		if err != nil {
			return nil, fmt.Errorf("take dose: %w", err)
		}
		if !took {
			return nil, ErrInsufficientDoses
		}

		claimed, err := s.repo.Claim(ctx, day, candidate)
		if err != nil {
			// the dose is held but the claim outcome is unknown-failed;
			// give the dose back before surfacing the storage error
			s.compensateDose(ctx, vaccine)
			return nil, fmt.Errorf("claim slot: %w", err)
		}
		if !claimed {
			// lost the slot to a concurrent reservation between the
			// listing and the claim; return the dose and start over
			s.compensateDose(ctx, vaccine)
			log.Debug().
				Str("caregiver", candidate).
				Time("day", day).
				Int("attempt", attempt).
				Msg("slot claim lost, retrying")
			continue
		}

		id, err := s.repo.Create(ctx, Appointment{
			Day:       day,
			Patient:   sess.Username,
			Caregiver: candidate,
			Vaccine:   vaccine,
		})
		if err != nil {
			// both resources are held; release them in reverse order
			s.compensateDose(ctx, vaccine)
			if pubErr := s.repo.Publish(ctx, day, candidate); pubErr != nil && !errors.Is(pubErr, ErrDuplicateAvailability) {
				log.Error().Err(pubErr).
					Str("caregiver", candidate).
					Time("day", day).
					Msg("could not republish slot after failed appointment insert")
			}
			return nil, fmt.Errorf("create appointment: %w", err)
		}

		return &Reservation{AppointmentID: id, Caregiver: candidate}, nil
	}

	return nil, ErrContention
}

// Cancel reverses one reservation exactly: the appointment record goes away,
// one dose returns to the counter and the slot is published again, as one
// atomic store operation, so a storage failure midway leaves the reservation
// fully intact rather than half-reversed. Only the referenced patient or
// caregiver may cancel; anyone else sees NotFound, the same as a dead id.
func (s *Service) Cancel(ctx context.Context, sess session.Session, id int64) error {
	if !s.ownsAppointment(ctx, sess, id) {
		return ErrAppointmentNotFound
	}

	appt, err := s.repo.CancelAppointment(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return ErrAppointmentNotFound
		}
		return fmt.Errorf("cancel appointment: %w", err)
	}

	log.Debug().
		Int64("appointment_id", appt.ID).
		Str("caregiver", appt.Caregiver).
		Str("vaccine", appt.Vaccine).
		Msg("reservation cancelled")
	return nil
}

// UploadAvailability publishes the caregiver's slot for the day.
func (s *Service) UploadAvailability(ctx context.Context, sess session.Session, day time.Time) error {
	if !sess.IsCaregiver() {
		return ErrNotCaregiver
	}
	day = Day(day)
	if day.Before(Day(time.Now())) {
		return ErrPastDate
	}

	if err := s.repo.Publish(ctx, day, sess.Username); err != nil {
		if errors.Is(err, ErrDuplicateAvailability) {
			return ErrDuplicateAvailability
		}
		return fmt.Errorf("publish availability: %w", err)
	}
	return nil
}

// AddDoses restocks the named vaccine, creating its counter on first use.
func (s *Service) AddDoses(ctx context.Context, sess session.Session, vaccine string, count int) (int, error) {
	if !sess.IsCaregiver() {
		return 0, ErrNotCaregiver
	}
	if vaccine == "" {
		return 0, ErrEmptyVaccine
	}
	if count < 1 {
		return 0, ErrInvalidDoseCount
	}

	total, err := s.repo.AddDoses(ctx, vaccine, count)
	if err != nil {
		return 0, fmt.Errorf("add doses: %w", err)
	}
	return total, nil
}

// Schedule returns the caregivers available on the day plus the current
// dose counters, for either participant kind.
func (s *Service) Schedule(ctx context.Context, sess session.Session, day time.Time) (*Schedule, error) {
	day = Day(day)
	if day.Before(Day(time.Now())) {
		return nil, ErrPastDate
	}

	caregivers, err := s.repo.Caregivers(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("list availabilities: %w", err)
	}
	vaccines, err := s.repo.Vaccines(ctx)
	if err != nil {
		return nil, fmt.Errorf("list vaccines: %w", err)
	}

	return &Schedule{Day: day, Caregivers: caregivers, Vaccines: vaccines}, nil
}

// Appointments lists the caller's appointments, ordered by id.
func (s *Service) Appointments(ctx context.Context, sess session.Session) ([]Appointment, error) {
	var (
		appts []Appointment
		err   error
	)
	if sess.IsCaregiver() {
		appts, err = s.repo.ByCaregiver(ctx, sess.Username)
	} else {
		appts, err = s.repo.ByPatient(ctx, sess.Username)
	}
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}

// ownsAppointment checks that the session participant is referenced by the
// appointment, using only the per-participant lookups.
func (s *Service) ownsAppointment(ctx context.Context, sess session.Session, id int64) bool {
	appts, err := s.Appointments(ctx, sess)
	if err != nil {
		return false
	}
	for _, a := range appts {
		if a.ID == id {
			return true
		}
	}
	return false
}

func (s *Service) compensateDose(ctx context.Context, vaccine string) {
	if _, err := s.repo.ReturnDose(ctx, vaccine); err != nil {
		log.Error().Err(err).
			Str("vaccine", vaccine).
			Msg("could not return dose during reservation rollback")
	}
}
