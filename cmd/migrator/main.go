package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"schoolportal/internal/config"
	"schoolportal/internal/db"
)

func main() {
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	cfg := config.Load()

	ctx := context.Background()
	conn, err := db.OpenMigrationDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connection failed: %v", err)
	}
	defer conn.Close()

	if err := db.Migrate(ctx, conn, args[0]); err != nil {
		log.Fatalf("migrate %s failed: %v", args[0], err)
	}
	log.Printf("migrate %s done", args[0])
}

func usage() {
	fmt.Println("usage: migrator <command>")
	fmt.Println("commands:")
	fmt.Println("  up       apply all pending migrations")
	fmt.Println("  down     roll back the latest migration")
	fmt.Println("  status   print migration status")
	fmt.Println("  version  print the current schema version")
}
