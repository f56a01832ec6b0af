// Command seed fills the ledger with demo moderation history.
package main

import (
	"context"
	"flag"
	"log"
	"strconv"
	"strings"

	"chatwarden/internal/config"
	"chatwarden/internal/database"
	"chatwarden/internal/seed"

	_ "github.com/joho/godotenv/autoload"
)

func main() {
	numEvents := flag.Int("events", 500, "Number of moderation events to create")
	chats := flag.String("chats", "", "Comma-separated chat ids to spread events over")
	days := flag.Int("days", 30, "Spread created_at over this many days")
	shouldClean := flag.Bool("clean", false, "Delete existing events before seeding")
	dryRun := flag.Bool("dry-run", false, "Generate without writing")
	flag.Parse()

	chatIDs, err := parseChats(*chats)
	if err != nil {
		log.Fatalf("Invalid -chats: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx := context.Background()
	s := seed.NewSeeder(db, seed.Options{Chats: chatIDs, MaxDays: *days, DryRun: *dryRun})

	if *shouldClean {
		if err := s.ClearAll(ctx); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	events, err := s.SeedEvents(ctx, *numEvents)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	log.Printf("Seeded %d moderation events", len(events))
}

func parseChats(raw string) ([]int64, error) {
	var out []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}
