package booking

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryRepository implements Repository for tests and single-process runs.
// One mutex per ledger section keeps each primitive atomic with the same
// contracts as the Postgres statements.
type MemoryRepository struct {
	slotMu sync.Mutex
	slots  map[slotKey]struct{}

	doseMu sync.Mutex
	doses  map[string]int

	apptMu sync.Mutex
	nextID int64
	appts  map[int64]Appointment
}

type slotKey struct {
	day       string // yyyy-mm-dd, so map equality ignores time.Time internals
	caregiver string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		slots:  make(map[slotKey]struct{}),
		doses:  make(map[string]int),
		appts:  make(map[int64]Appointment),
		nextID: 1,
	}
}

func keyFor(day time.Time, caregiver string) slotKey {
	return slotKey{day: Day(day).Format("2006-01-02"), caregiver: caregiver}
}

// AvailabilityIndex

func (r *MemoryRepository) Publish(_ context.Context, day time.Time, caregiver string) error {
	r.slotMu.Lock()
	defer r.slotMu.Unlock()

	key := keyFor(day, caregiver)
	if _, ok := r.slots[key]; ok {
		return ErrDuplicateAvailability
	}
	r.slots[key] = struct{}{}
	return nil
}

func (r *MemoryRepository) Caregivers(_ context.Context, day time.Time) ([]string, error) {
	r.slotMu.Lock()
	defer r.slotMu.Unlock()

	want := Day(day).Format("2006-01-02")
	var result []string
	for key := range r.slots {
		if key.day == want {
			result = append(result, key.caregiver)
		}
	}
	sort.Strings(result)
	return result, nil
}

func (r *MemoryRepository) Claim(_ context.Context, day time.Time, caregiver string) (bool, error) {
	r.slotMu.Lock()
	defer r.slotMu.Unlock()

	key := keyFor(day, caregiver)
	if _, ok := r.slots[key]; !ok {
		return false, nil
	}
	delete(r.slots, key)
	return true, nil
}

// DoseInventory

func (r *MemoryRepository) AddDoses(_ context.Context, vaccine string, n int) (int, error) {
	r.doseMu.Lock()
	defer r.doseMu.Unlock()

	r.doses[vaccine] += n
	return r.doses[vaccine], nil
}

func (r *MemoryRepository) TryTakeDose(_ context.Context, vaccine string) (bool, error) {
	r.doseMu.Lock()
	defer r.doseMu.Unlock()

	if r.doses[vaccine] < 1 {
		return false, nil
	}
	r.doses[vaccine]--
	return true, nil
}

func (r *MemoryRepository) ReturnDose(_ context.Context, vaccine string) (int, error) {
	r.doseMu.Lock()
	defer r.doseMu.Unlock()

	if _, ok := r.doses[vaccine]; !ok {
		return 0, fmt.Errorf("return dose: vaccine %q does not exist", vaccine)
	}
	r.doses[vaccine]++
	return r.doses[vaccine], nil
}

func (r *MemoryRepository) Vaccines(_ context.Context) ([]Vaccine, error) {
	r.doseMu.Lock()
	defer r.doseMu.Unlock()

	result := make([]Vaccine, 0, len(r.doses))
	for name, doses := range r.doses {
		result = append(result, Vaccine{Name: name, Doses: doses})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// AppointmentLedger

func (r *MemoryRepository) Create(_ context.Context, appt Appointment) (int64, error) {
	r.apptMu.Lock()
	defer r.apptMu.Unlock()

	appt.ID = r.nextID
	r.nextID++
	appt.Day = Day(appt.Day)
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = time.Now()
	}
	r.appts[appt.ID] = appt
	return appt.ID, nil
}

func (r *MemoryRepository) ByPatient(_ context.Context, patient string) ([]Appointment, error) {
	return r.list(func(a Appointment) bool { return a.Patient == patient }), nil
}

func (r *MemoryRepository) ByCaregiver(_ context.Context, caregiver string) ([]Appointment, error) {
	return r.list(func(a Appointment) bool { return a.Caregiver == caregiver }), nil
}

func (r *MemoryRepository) list(match func(Appointment) bool) []Appointment {
	r.apptMu.Lock()
	defer r.apptMu.Unlock()

	var result []Appointment
	for _, a := range r.appts {
		if match(a) {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// CancelAppointment holds all three section locks for the reversal, so no
// primitive can observe a half-cancelled reservation. Every check runs
// before the first mutation; a failure applies nothing. Other methods take
// one lock at a time, so the nesting here cannot deadlock.
func (r *MemoryRepository) CancelAppointment(_ context.Context, id int64) (*Appointment, error) {
	r.apptMu.Lock()
	defer r.apptMu.Unlock()
	r.doseMu.Lock()
	defer r.doseMu.Unlock()
	r.slotMu.Lock()
	defer r.slotMu.Unlock()

	appt, ok := r.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if _, ok := r.doses[appt.Vaccine]; !ok {
		return nil, fmt.Errorf("cancel appointment: vaccine %q does not exist", appt.Vaccine)
	}

	delete(r.appts, id)
	r.doses[appt.Vaccine]++
	r.slots[keyFor(appt.Day, appt.Caregiver)] = struct{}{}
	return &appt, nil
}
