package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.uber.org/zap"

	"classrecord/backend/internal/grading"
	"classrecord/backend/internal/shared"
	"classrecord/backend/internal/store"
)

// StudentSeed is one demo student; scores are generated per template.
type StudentSeed struct {
	IDNumber  string
	LastName  string
	FirstName string
	Base      float64 // typical score the student earns
	Missed    []string
}

var students = []StudentSeed{
	{"2021-00001", "Dela Cruz", "Juan", 96, nil},
	{"2021-00002", "Santos", "Maria", 89, []string{"quiz3"}},
	{"2021-00003", "Reyes", "Jose", 82, nil},
	{"2021-00004", "Garcia", "Ana", 77, []string{"quiz1", "activity1"}},
	{"2021-00005", "Mendoza", "Paolo", 64, []string{"assignment1"}},
}

func main() {
	log.Println("Starting Class Record Seeder...")

	if err := shared.LoadEnv(".env"); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	cfg, err := shared.LoadConfig("seeder")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.MongoDB.URI == "" {
		log.Fatal("MONGO_URI is required")
	}

	logger, err := shared.NewLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	templates, err := grading.LoadTemplates(cfg.TemplatesFile)
	if err != nil {
		logger.Fatal("Failed to load grading templates", zap.Error(err))
	}

	client, db, err := shared.ConnectMongoDB(&cfg.MongoDB, logger)
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer shared.DisconnectMongoDB(client, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	recordStore := store.NewMongoStore(db, cfg.Store.Timeout, logger)

	for _, tmpl := range templates.All() {
		// Drop the collection to ensure a clean start
		if err := db.Collection(tmpl.Collection).Drop(ctx); err != nil {
			logger.Fatal("Failed to drop collection", zap.String("collection", tmpl.Collection), zap.Error(err))
		}
		seedTemplate(ctx, recordStore, tmpl, logger)
	}

	log.Println("All data seeding completed successfully.")
}

// ============================================================================
// SEEDING FUNCTIONS
// ============================================================================

func seedTemplate(ctx context.Context, st store.RecordStore, tmpl *grading.Template, logger *zap.Logger) {
	log.Printf("--- Seeding %s (%s) ---", tmpl.Name, tmpl.Collection)

	for i, s := range students {
		raw := map[string]any{
			shared.FieldIDNumber:  s.IDNumber,
			shared.FieldLastName:  s.LastName,
			shared.FieldFirstName: s.FirstName,
		}
		for j, field := range tmpl.ScoreFields() {
			// Spread scores a little around the student's base.
			raw[field] = clamp(s.Base + float64((i+j)%5) - 2)
		}
		for _, field := range s.Missed {
			raw[field] = shared.MissedScore
		}

		rec := grading.NormalizeRecord(raw, tmpl)
		if err := st.Upsert(ctx, tmpl.Collection, rec.IDNumber, rec.Fields(tmpl)); err != nil {
			logger.Fatal("Failed to seed record", zap.String("id_number", rec.IDNumber), zap.Error(err))
		}
		log.Printf("Seeded %s %s -> %s", rec.IDNumber, grading.FullName(rec), describe(rec, tmpl))
	}
}

func clamp(v float64) float64 {
	if v > 100 {
		return 100
	}
	if v < 0 {
		return 0
	}
	return v
}

func describe(rec grading.StudentRecord, tmpl *grading.Template) string {
	verdict := "failed"
	if tmpl.Scale.Passed(rec.Grade) {
		verdict = "passed"
	}
	return fmt.Sprintf("%s (%s)", grading.FormatGrade(rec.Grade), verdict)
}
