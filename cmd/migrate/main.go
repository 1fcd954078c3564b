package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cantera/papers-backend/internal/config"
)

func main() {
	cfg := config.Load()

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		fmt.Printf("Failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	files, err := filepath.Glob("migrations/*.sql")
	if err != nil {
		fmt.Printf("Failed to list migrations: %v\n", err)
		os.Exit(1)
	}
	sort.Strings(files)

	for _, file := range files {
		sql, err := os.ReadFile(file)
		if err != nil {
			fmt.Printf("Failed to read %s: %v\n", file, err)
			os.Exit(1)
		}

		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			fmt.Printf("Migration %s failed: %v\n", file, err)
			os.Exit(1)
		}
		fmt.Printf("Applied %s\n", file)
	}
}
