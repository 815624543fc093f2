package main

import (
	"log"

	"cosmic-chat/config"
	"cosmic-chat/internal/domain/message"
	"cosmic-chat/internal/domain/user"
	"cosmic-chat/pkg/database"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&user.User{},
		&message.Message{},
	); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	log.Println("Migrations applied")
}
