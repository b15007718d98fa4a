package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/safar/stockbill/internal/config"
	"github.com/safar/stockbill/internal/database"
)

func main() {
	dir := flag.String("dir", "migrations", "directory holding the *.up.sql and *.down.sql files")
	flag.Parse()

	log := logrus.New()

	if flag.NArg() < 1 {
		log.Fatal("usage: go run scripts/run_migrations.go [-dir migrations] up|down")
	}

	direction := flag.Arg(0)
	if direction != "up" && direction != "down" {
		log.Fatal("direction must be 'up' or 'down'")
	}

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	if cfg.Store.Driver != config.DriverPostgres {
		log.WithField("driver", cfg.Store.Driver).Fatal("migrations only apply to the postgres backend")
	}

	ctx := context.Background()

	db, err := database.NewConnection(ctx, &cfg.Database, log)
	if err != nil {
		log.WithError(err).Fatal("connect to database")
	}
	defer db.Close()

	files, err := migrationFiles(*dir, direction)
	if err != nil {
		log.WithError(err).Fatal("list migrations")
	}

	for _, filename := range files {
		content, err := os.ReadFile(filepath.Join(*dir, filename))
		if err != nil {
			log.WithError(err).Fatalf("read migration %s", filename)
		}

		log.WithField("file", filename).Info("running migration")
		if _, err := db.ExecContext(ctx, string(content)); err != nil {
			log.WithError(err).Fatalf("execute migration %s", filename)
		}
	}

	log.WithFields(logrus.Fields{
		"count":     len(files),
		"direction": direction,
	}).Info("migrations applied")
}

// migrationFiles lists the files for one direction, in the order they must run.
func migrationFiles(dir, direction string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migration directory: %w", err)
	}

	suffix := "." + direction + ".sql"
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), suffix) {
			files = append(files, entry.Name())
		}
	}

	sort.Strings(files)
	if direction == "down" {
		sort.Sort(sort.Reverse(sort.StringSlice(files)))
	}
	return files, nil
}
