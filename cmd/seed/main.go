package main

import (
	"log"
	"os"
	"time"

	"lupa-be/internal/model"
	"lupa-be/pkg/database"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
)

// seed creates a demo project for SEED_ORG_ID and prints a development token
// for that organization.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}
	orgID := os.Getenv("SEED_ORG_ID")
	if orgID == "" {
		orgID = "org_demo"
	}

	db, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Seeding demo project...")

	var project model.Project
	if err := db.Where("org_id = ? AND name = ?", orgID, "demo").First(&project).Error; err == nil {
		log.Printf("Project 'demo' already exists (%s), skipping...", project.Id)
	} else {
		project = model.Project{OrgId: orgID, Name: "demo"}
		if err := db.Create(&project).Error; err != nil {
			log.Fatalf("Error creating project: %v", err)
		}
		log.Printf("Created project: %s (%s)", project.Name, project.Id)
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Println("JWT_SECRET is not set, no token issued")
		return
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "seed",
		"org_id":  orgID,
		"exp":     time.Now().Add(30 * 24 * time.Hour).Unix(),
	}).SignedString([]byte(secret))
	if err != nil {
		log.Fatalf("Error signing token: %v", err)
	}

	log.Println("Seeding completed!")
	log.Printf("export LUPA_PROJECT=%s", project.Id)
	log.Printf("export LUPA_TOKEN=%s", token)
}
