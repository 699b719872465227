package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/playfield/marketplace-backend/internal/config"
	"github.com/playfield/marketplace-backend/internal/database"
)

// Tables owned by the payment flow, children first
var paymentTables = []string{
	"payment_audits",
	"notifications",
	"trainer_assignments",
	"confirmed_sessions",
	"pending_charges",
}

func main() {
	var (
		dbURLFlag string
		confirm   bool
	)
	flag.StringVar(&dbURLFlag, "database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	flag.BoolVar(&confirm, "yes", false, "required; truncates payment, session and notification data")
	flag.Parse()

	// Optional .env in the working directory keeps secrets off the command line
	_ = godotenv.Load()

	dbURL := dbURLFlag
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set and -database-url was not provided")
	}
	if os.Getenv("ENVIRONMENT") == "production" {
		log.Fatal("refusing to clear data with ENVIRONMENT=production")
	}
	if !confirm {
		log.Fatal("pass -yes to truncate: " + fmt.Sprint(paymentTables))
	}

	db, err := database.NewConnection(config.DatabaseConfig{
		URL:                dbURL,
		MaxConnections:     2,
		MaxIdleConnections: 1,
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	fmt.Println("Connected to database. Truncating payment tables...")

	// Bookings are owned by booking CRUD and left alone
	query := "TRUNCATE TABLE "
	for i, t := range paymentTables {
		if i > 0 {
			query += ", "
		}
		query += t
	}
	if _, err := db.Exec(query + " RESTART IDENTITY"); err != nil {
		log.Fatalf("failed to truncate tables: %v", err)
	}

	fmt.Println("Post-clear row counts:")
	for _, t := range paymentTables {
		var count int
		if err := db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", t)).Scan(&count); err != nil {
			fmt.Printf("  %s: error: %v\n", t, err)
			continue
		}
		fmt.Printf("  %s: %d\n", t, count)
	}
}
