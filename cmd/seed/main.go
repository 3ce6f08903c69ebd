package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/rs/zerolog/log"

	"github.com/vaxpoint/vaccine-scheduler/internal/booking"
	"github.com/vaxpoint/vaccine-scheduler/internal/db"
	"github.com/vaxpoint/vaccine-scheduler/internal/identity"
	"github.com/vaxpoint/vaccine-scheduler/internal/logging"
)

const (
	caregiverCount = 25
	patientCount   = 200
	scheduleDays   = 14
	seedPassword   = "Seed-password-1!"
)

var vaccines = map[string]int{
	"pfizer":  500,
	"moderna": 400,
	"novavax": 150,
}

func main() {
	logging.Init("seed", "dev")
	log.Info().Msg("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal().Msg("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	accounts := identity.NewService(identity.NewPgStore(pool))
	repo := booking.NewPgRepository(pool)

	seedCtx := context.Background()

	caregivers, err := seedAccounts(seedCtx, accounts, identity.KindCaregiver, caregiverCount)
	if err != nil {
		log.Fatal().Err(err).Msg("seed caregivers")
	}
	if _, err := seedAccounts(seedCtx, accounts, identity.KindPatient, patientCount); err != nil {
		log.Fatal().Err(err).Msg("seed patients")
	}

	for name, doses := range vaccines {
		if _, err := repo.AddDoses(seedCtx, name, doses); err != nil {
			log.Fatal().Err(err).Str("vaccine", name).Msg("seed vaccine")
		}
	}
	log.Info().Int("vaccines", len(vaccines)).Msg("vaccines seeded")

	if err := seedAvailabilities(seedCtx, repo, caregivers); err != nil {
		log.Fatal().Err(err).Msg("seed availabilities")
	}

	log.Info().Msg("seed complete")
}

func seedAccounts(ctx context.Context, svc *identity.Service, kind identity.Kind, count int) ([]string, error) {
	log.Info().Int("count", count).Str("kind", string(kind)).Msg("seeding accounts")

	usernames := make([]string, 0, count)
	for i := 0; i < count; i++ {
		username := fmt.Sprintf("%s-%s-%d", kind, gofakeit.Username(), i)
		err := svc.Register(ctx, kind, username, seedPassword)
		if err != nil {
			if errors.Is(err, identity.ErrUsernameTaken) {
				continue
			}
			return nil, err
		}
		usernames = append(usernames, username)
	}

	log.Info().Int("created", len(usernames)).Str("kind", string(kind)).Msg("accounts seeded")
	return usernames, nil
}

func seedAvailabilities(ctx context.Context, repo *booking.PgRepository, caregivers []string) error {
	today := booking.Day(time.Now())
	total := 0

	for _, caregiver := range caregivers {
		for offset := 0; offset < scheduleDays; offset++ {
			// each caregiver works roughly every other day
			if gofakeit.Bool() {
				continue
			}
			day := today.AddDate(0, 0, offset)
			err := repo.Publish(ctx, day, caregiver)
			if err != nil && !errors.Is(err, booking.ErrDuplicateAvailability) {
				return err
			}
			total++
		}
	}

	log.Info().Int("slots", total).Msg("availabilities seeded")
	return nil
}
