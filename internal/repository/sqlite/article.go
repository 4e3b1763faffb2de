package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/printwerk/labelpress/internal/domain"
)

// ArticleRepository implements domain.ArticleRepository for SQLite
type ArticleRepository struct {
	db *sql.DB
}

// NewArticleRepository creates a new ArticleRepository
func NewArticleRepository(db *sql.DB) *ArticleRepository {
	return &ArticleRepository{db: db}
}

// Upsert creates or updates articles keyed by article number. Records
// without an article number are counted as skipped.
func (r *ArticleRepository) Upsert(ctx context.Context, articles []*domain.Article) (domain.UpsertCounts, error) {
	var counts domain.UpsertCounts

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return counts, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, art := range articles {
		if strings.TrimSpace(art.ArticleNumber) == "" {
			counts.Skipped++
			continue
		}

		var exists bool
		err := tx.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM articles WHERE article_number = ?)",
			art.ArticleNumber,
		).Scan(&exists)
		if err != nil {
			return counts, err
		}

		tieredJSON, err := json.Marshal(art.TieredPrices)
		if err != nil {
			return counts, fmt.Errorf("failed to marshal tiered prices: %w", err)
		}

		now := time.Now().UTC().Format(time.RFC3339)

		if exists {
			_, err = tx.ExecContext(ctx, `
				UPDATE articles SET
					name = ?, ean = ?, price = ?, tiered_prices = ?, updated_at = ?
				WHERE article_number = ?
			`, art.Name, art.EAN, art.Price, string(tieredJSON), now, art.ArticleNumber)
			if err != nil {
				return counts, err
			}
			counts.Updated++
		} else {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO articles (article_number, name, ean, price, tiered_prices, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, art.ArticleNumber, art.Name, art.EAN, art.Price, string(tieredJSON), now, now)
			if err != nil {
				return counts, err
			}
			counts.Created++
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
		WHERE article_number = ?
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
		LIMIT ? OFFSET ?
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
	var tieredJSON, createdAtStr, updatedAtStr string

	err := row.Scan(&art.ArticleNumber, &art.Name, &art.EAN, &art.Price, &tieredJSON, &createdAtStr, &updatedAtStr)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(tieredJSON), &art.TieredPrices); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tiered prices: %w", err)
	}

	art.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	art.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return art, nil
}
