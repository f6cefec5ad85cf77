package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/clinic-scheduling/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	doctorCount := flag.Int("doctors", 50, "number of doctors to seed")
	patientCount := flag.Int("patients", 2000, "number of patients to seed")
	flag.Parse()

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	specIDs, err := seedSpecialities(context.Background(), pool)
	if err != nil {
		log.Fatalf("seed specialities: %v", err)
	}
	if err := seedDoctors(context.Background(), pool, specIDs, *doctorCount); err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	if err := seedPatients(context.Background(), pool, *patientCount); err != nil {
		log.Fatalf("seed patients: %v", err)
	}

	log.Println("seed complete")
}

func seedSpecialities(ctx context.Context, pool *pgxpool.Pool) ([]int64, error) {
	names := []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Psychiatry",
		"Ophthalmology",
		"ENT",
	}

	log.Printf("seeding %d specialities", len(names))

	ids := make([]int64, 0, len(names))
	for _, name := range names {
		var id int64
		err := pool.QueryRow(ctx, `
			INSERT INTO specialities (speciality_name)
			VALUES ($1)
			ON CONFLICT (speciality_name) DO UPDATE SET speciality_name = EXCLUDED.speciality_name
			RETURNING speciality_id
		`, name).Scan(&id)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	log.Println("specialities seeded")
	return ids, nil
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, specIDs []int64, count int) error {
	log.Printf("seeding %d doctors", count)

	genders := []string{"Male", "Female"}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		name := "Dr. " + gofakeit.Name()
		gender := genders[gofakeit.Number(0, len(genders)-1)]

		var doctorID int64
		err := tx.QueryRow(ctx, `
			INSERT INTO doctors (name, gender)
			VALUES ($1, $2)
			RETURNING doctor_id
		`, name, gender).Scan(&doctorID)
		if err != nil {
			return err
		}

		specID := specIDs[gofakeit.Number(0, len(specIDs)-1)]
		_, err = tx.Exec(ctx, `
			INSERT INTO doctor_specialities (doctor_id, speciality_id)
			VALUES ($1, $2)
		`, doctorID, specID)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("doctors seeded")
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			name := gofakeit.Name()
			contact := gofakeit.Phone()
			age := gofakeit.Number(1, 120)

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (name, contact, age)
				VALUES ($1, $2, $3)
			`, name, contact, age)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	log.Println("patients seeded")
	return nil
}
