package main

import (
	"context"
	"fmt"
	"log"

	"wallet/internal/config"
	"wallet/internal/db"
)

func main() {
	cfg := config.Load()
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer database.Close()

	applied, err := db.Migrate(context.Background(), database)
	if err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	if len(applied) == 0 {
		fmt.Println("database is up to date")
		return
	}
	for _, name := range applied {
		fmt.Printf("applied %s\n", name)
	}
}
