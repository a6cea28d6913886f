package db

import (
	"bufio"
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrate applies every embedded migration that is not yet recorded in
// schema_migrations and returns the filenames it applied, in order.
func Migrate(ctx context.Context, database *sqlx.DB) ([]string, error) {
	return migrate(ctx, database, migrationFiles, "migrations")
}

func migrate(ctx context.Context, database *sqlx.DB, files fs.FS, dir string) ([]string, error) {
	if _, err := database.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (filename TEXT PRIMARY KEY, applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP)`); err != nil {
		return nil, fmt.Errorf("ensure schema_migrations: %w", err)
	}
	names, err := fs.Glob(files, path.Join(dir, "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	sort.Strings(names)

	var applied []string
	for _, name := range names {
		filename := path.Base(name)
		var exists bool
		if err := database.GetContext(ctx, &exists, database.Rebind(`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename = ?)`), filename); err != nil {
			return applied, fmt.Errorf("read migration state: %w", err)
		}
		if exists {
			continue
		}
		content, err := fs.ReadFile(files, name)
		if err != nil {
			return applied, err
		}
		if err := WithTx(ctx, database, func(tx *sqlx.Tx) error {
			for _, stmt := range upStatements(string(content)) {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}
			_, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO schema_migrations (filename) VALUES (?)`), filename)
			return err
		}); err != nil {
			return applied, fmt.Errorf("apply %s: %w", filename, err)
		}
		applied = append(applied, filename)
	}
	return applied, nil
}

func upStatements(content string) []string {
	up := strings.SplitN(content, "-- +migrate Down", 2)[0]
	var statements []string
	for _, stmt := range splitSQL(up) {
		if strings.TrimSpace(stmt) != "" {
			statements = append(statements, stmt)
		}
	}
	return statements
}

func splitSQL(sqlText string) []string {
	var statements []string
	var current strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(sqlText))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		current.WriteString(line)
		current.WriteRune('\n')
		if strings.Contains(line, ";") {
			statements = append(statements, current.String())
			current.Reset()
		}
	}
	if strings.TrimSpace(current.String()) != "" {
		statements = append(statements, current.String())
	}
	return statements
}
