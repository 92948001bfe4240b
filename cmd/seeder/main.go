package main

import (
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

// Simplified config loading for the script
func loadConfig() map[string]string {
	err := godotenv.Load()
	if err != nil {
		log.Warn("No .env file found, reading from environment variables")
	}

	config := make(map[string]string)
	required := []string{"TURSO_PRIMARY_URL", "TURSO_AUTH_TOKEN", "SPOND_GROUP_ID"}

	for _, key := range required {
		if value, ok := os.LookupEnv(key); ok {
			config[key] = value
		} else {
			log.Fatalf("Error: Required environment variable %s is not set.", key)
		}
	}
	return config
}

func main() {
	log.Info("Starting database seeder...")
	cfg := loadConfig()

	// Connect directly to the primary database
	dbURL := fmt.Sprintf("%s?authToken=%s", cfg["TURSO_PRIMARY_URL"], cfg["TURSO_AUTH_TOKEN"])
	db, err := sql.Open("libsql", dbURL)
	if err != nil {
		log.Fatalf("Failed to open primary database: %s", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to connect to primary database: %s", err)
	}

	log.Info("Successfully connected to the primary database.")

	dummyPlayers := []struct {
		ID   string
		Name string
	}{
		{ID: "player-1", Name: "Seeder Player A"},
		{ID: "player-2", Name: "Seeder Player B"},
		{ID: "player-3", Name: "Seeder Player C"},
		{ID: "player-4", Name: "Seeder Player D"},
		{ID: "player-5", Name: "Seeder Player E"},
		{ID: "player-6", Name: "Seeder Player F"},
	}

	for _, p := range dummyPlayers {
		_, err := db.Exec("INSERT OR IGNORE INTO players (id, name, profile_picture) VALUES (?, ?, ?)", p.ID, p.Name, "")
		if err != nil {
			log.Fatalf("Failed to insert dummy player %s: %s", p.Name, err)
		}
	}
	log.Info("Ensured dummy players exist.")

	const batchSize = 100 // Insert 100 events at a time
	const numEvents = 5000

	log.Info("Preparing to insert dummy events...", "total", numEvents, "batch_size", batchSize)
	startTime := time.Now()

	tx, err := db.Begin()
	if err != nil {
		log.Fatalf("Failed to begin transaction: %s", err)
	}

	valueStrings := make([]string, 0, batchSize)
	valueArgs := make([]interface{}, 0, batchSize*6) // 6 columns per event

	for i := 0; i < numEvents; i++ {
		start := time.Now().Add(-time.Duration(rand.Intn(365*24)) * time.Hour)

		kind := "training"
		heading := "Tirsdagstræning"
		if i%4 == 0 {
			kind = "match"
			heading = fmt.Sprintf("Kamp mod Seeded FC %d", i)
		}

		valueStrings = append(valueStrings, "(?, ?, ?, ?, ?, ?)")
		valueArgs = append(valueArgs,
			uuid.NewString(),
			heading,
			kind,
			start.Unix(),
			start.Add(-7*24*time.Hour).Unix(),
			cfg["SPOND_GROUP_ID"],
		)

		if (i+1)%batchSize == 0 || (i+1) == numEvents {
			stmt := fmt.Sprintf(`
				INSERT INTO events (id, heading, kind, start_time, invited_at, group_id)
				VALUES %s;`, strings.Join(valueStrings, ","))

			_, err := tx.Exec(stmt, valueArgs...)
			if err != nil {
				tx.Rollback()
				log.Fatalf("Failed to execute batch insert: %s", err)
			}

			// Reset for the next batch
			valueStrings = make([]string, 0, batchSize)
			valueArgs = make([]interface{}, 0, batchSize*6)
			log.Info("Inserted batch", "completed", i+1, "total", numEvents)
		}
	}

	if err := tx.Commit(); err != nil {
		log.Fatalf("Failed to commit transaction: %s", err)
	}

	duration := time.Since(startTime)
	log.Info("Successfully inserted all dummy events.", "duration", duration)
}
