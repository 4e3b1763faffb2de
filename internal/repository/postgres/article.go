package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/printwerk/labelpress/internal/domain"
)

// ArticleRepository implements domain.ArticleRepository for PostgreSQL
type ArticleRepository struct {
	db *sql.DB
}

// NewArticleRepository creates a new ArticleRepository
func NewArticleRepository(db *sql.DB) *ArticleRepository {
	return &ArticleRepository{db: db}
}

// Upsert creates or updates articles keyed by article number. The
// ON CONFLICT clause reports via xmax whether the row pre-existed, so
// created/updated counts come from the insert itself.
func (r *ArticleRepository) Upsert(ctx context.Context, articles []*domain.Article) (domain.UpsertCounts, error) {
	var counts domain.UpsertCounts

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return counts, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO articles (article_number, name, ean, price, tiered_prices, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		ON CONFLICT (article_number) DO UPDATE SET
			name = EXCLUDED.name,
			ean = EXCLUDED.ean,
			price = EXCLUDED.price,
			tiered_prices = EXCLUDED.tiered_prices,
			updated_at = now()
		RETURNING (xmax = 0) AS inserted
	`

	for _, art := range articles {
		if strings.TrimSpace(art.ArticleNumber) == "" {
			counts.Skipped++
			continue
		}

		tieredJSON, err := json.Marshal(art.TieredPrices)
		if err != nil {
			return counts, fmt.Errorf("failed to marshal tiered prices: %w", err)
		}

		var inserted bool
		err = tx.QueryRowContext(ctx, query,
			art.ArticleNumber, art.Name, art.EAN, art.Price, tieredJSON,
		).Scan(&inserted)
		if err != nil {
			return counts, err
		}

		if inserted {
			counts.Created++
		} else {
			counts.Updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return counts, fmt.Errorf("failed to commit upsert: %w", err)
	}
	return counts, nil
}

// GetByArticleNumber retrieves one article, nil when missing
func (r *ArticleRepository) GetByArticleNumber(ctx context.Context, articleNumber string) (*domain.Article, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT article_number, name, ean, price, tiered_prices, created_at, updated_at
		FROM articles
		WHERE article_number = $1
	`, articleNumber)

	art, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return art, err
}

// List retrieves articles ordered by article number
func (r *ArticleRepository) List(ctx context.Context, limit, offset int) ([]*domain.Article, int, error) {
	if limit <= 0 {
		limit = 100
	}

	total, err := r.Count(ctx)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT article_number, name, ean, price, tiered_prices, created_at, updated_at
		FROM articles
		ORDER BY article_number
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var articles []*domain.Article
	for rows.Next() {
		art, err := scanArticle(rows)
		if err != nil {
			return nil, 0, err
		}
		articles = append(articles, art)
	}
	return articles, total, rows.Err()
}

// Count returns the number of stored articles
func (r *ArticleRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM articles").Scan(&count)
	return count, err
}

func scanArticle(row rowScanner) (*domain.Article, error) {
	art := &domain.Article{}
	var tieredJSON []byte

	err := row.Scan(&art.ArticleNumber, &art.Name, &art.EAN, &art.Price, &tieredJSON, &art.CreatedAt, &art.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(tieredJSON, &art.TieredPrices); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tiered prices: %w", err)
	}
	return art, nil
}
