package runner

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/printwerk/labelpress/internal/domain"
	"github.com/printwerk/labelpress/internal/repository/postgres"
	"github.com/printwerk/labelpress/internal/repository/sqlite"
)

// Repositories bundles the opened connection with its repositories
type Repositories struct {
	DB       *sql.DB
	Jobs     domain.JobRepository
	Articles domain.ArticleRepository
}

// OpenRepositories opens the database named by dsn and runs migrations.
// A postgres:// or postgresql:// prefix selects PostgreSQL; anything else
// is treated as a SQLite file path, defaulting to labelpress.db inside
// the data folder.
func OpenRepositories(dsn, dataFolder string) (*Repositories, error) {
	isPostgres := strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")

	if isPostgres {
		db, err := postgres.OpenConnection(dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := postgres.RunMigrations(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		repos := postgres.NewRepositories(db)
		return &Repositories{DB: db, Jobs: repos.Jobs, Articles: repos.Articles}, nil
	}

	if dsn == "" {
		dsn = filepath.Join(dataFolder, "labelpress.db")
	}

	db, err := sqlite.OpenConnection(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := sqlite.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	repos := sqlite.NewRepositories(db)
	return &Repositories{DB: db, Jobs: repos.Jobs, Articles: repos.Articles}, nil
}
