package main

import (
	"log"
	"os"

	"lupa-be/internal/model"
	"lupa-be/pkg/database"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

var (
	step = color.New(color.FgCyan, color.Bold)
	warn = color.New(color.FgYellow)
	ok   = color.New(color.FgGreen, color.Bold)
)

func main() {
	// 1. Load Environment Variables
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	// 2. Extensions & Enums
	step.Println("Step 1: Setting up Extensions and Enums...")
	execAll(db, model.SchemaSetup)

	// 3. AutoMigrate
	step.Println("Step 2: Running AutoMigrate...")
	if err := db.AutoMigrate(model.All()...); err != nil {
		log.Fatalf("Error: AutoMigrate failed: %v", err)
	}

	// 4. Indexes AutoMigrate cannot express
	step.Println("Step 3: Creating partial indexes...")
	execAll(db, model.SchemaConstraints)

	ok.Println("Success: Database migration completed.")
}

func execAll(db *gorm.DB, statements []string) {
	for _, sql := range statements {
		if err := db.Exec(sql).Error; err != nil {
			warn.Printf("Warn: %v. Continuing...\n", err)
		}
	}
}
