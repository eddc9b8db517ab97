package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresRepository stores a cart header row plus one row per line. Updates
// lock the header row for the whole read-modify-write.
type PostgresRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{
		pool: pool,
		now:  time.Now,
	}
}

func ConnectPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping Postgres: %w", err)
	}
	return pool, nil
}

func (r *PostgresRepository) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	if userID == "" {
		return nil, fmt.Errorf("userID is empty")
	}

	return withTx(ctx, r.pool, func(tx pgx.Tx) (*domain.Cart, error) {
		return loadCart(ctx, tx, userID, false)
	})
}

func (r *PostgresRepository) UpdateCart(ctx context.Context, userID string, createIfMissing bool, fn MutateFunc) (*domain.Cart, error) {
	if userID == "" {
		return nil, fmt.Errorf("userID is empty")
	}

	return withTx(ctx, r.pool, func(tx pgx.Tx) (*domain.Cart, error) {
		if createIfMissing {
			now := r.now()
			_, err := tx.Exec(ctx, `
				INSERT INTO carts (user_id, created_at, updated_at)
				VALUES ($1, $2, $2)
				ON CONFLICT (user_id) DO NOTHING`, userID, now)
			if err != nil {
				return nil, fmt.Errorf("insert cart: %w", err)
			}
		}

		cart, err := loadCart(ctx, tx, userID, true)
		if err != nil {
			return nil, err
		}

		if err := fn(cart); err != nil {
			return nil, err
		}

		cart.Version++
		cart.UpdatedAt = r.now()

		if err := saveCart(ctx, tx, cart); err != nil {
			return nil, err
		}
		return cart, nil
	})
}

func loadCart(ctx context.Context, tx pgx.Tx, userID string, forUpdate bool) (*domain.Cart, error) {
	query := `
		SELECT user_id, total_price::text, total_quantity, version, created_at, updated_at
		FROM carts
		WHERE user_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var (
		cart       domain.Cart
		totalPrice string
	)
	err := tx.QueryRow(ctx, query, userID).Scan(
		&cart.UserID,
		&totalPrice,
		&cart.TotalQuantity,
		&cart.Version,
		&cart.CreatedAt,
		&cart.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select cart: %w", err)
	}
	if cart.TotalPrice, err = decimal.NewFromString(totalPrice); err != nil {
		return nil, fmt.Errorf("total_price[%s] is not valid: %w", totalPrice, err)
	}

	rows, err := tx.Query(ctx, `
		SELECT id, product_id, size, color, quantity, unit_price::text, line_total::text,
		       display_name, display_image, created_at, updated_at
		FROM cart_lines
		WHERE user_id = $1
		ORDER BY position`, userID)
	if err != nil {
		return nil, fmt.Errorf("select cart lines: %w", err)
	}
	defer rows.Close()

	cart.Lines = []domain.CartLine{}
	for rows.Next() {
		var (
			line                 domain.CartLine
			unitPrice, lineTotal string
		)
		err := rows.Scan(
			&line.ID,
			&line.ProductID,
			&line.Size,
			&line.Color,
			&line.Quantity,
			&unitPrice,
			&lineTotal,
			&line.DisplayName,
			&line.DisplayImage,
			&line.CreatedAt,
			&line.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		if line.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
			return nil, fmt.Errorf("unit_price[%s] is not valid: %w", unitPrice, err)
		}
		if line.LineTotal, err = decimal.NewFromString(lineTotal); err != nil {
			return nil, fmt.Errorf("line_total[%s] is not valid: %w", lineTotal, err)
		}
		cart.Lines = append(cart.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return &cart, nil
}

// saveCart rewrites the line set of the cart and its header row.
func saveCart(ctx context.Context, tx pgx.Tx, cart *domain.Cart) error {
	if _, err := tx.Exec(ctx, `DELETE FROM cart_lines WHERE user_id = $1`, cart.UserID); err != nil {
		return fmt.Errorf("delete cart lines: %w", err)
	}

	batch := &pgx.Batch{}
	for i, line := range cart.Lines {
		batch.Queue(`
			INSERT INTO cart_lines (id, user_id, position, product_id, size, color, quantity,
			                        unit_price, line_total, display_name, display_image, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9::numeric, $10, $11, $12, $13)`,
			line.ID, cart.UserID, i, line.ProductID, line.Size, line.Color, line.Quantity,
			line.UnitPrice.String(), line.LineTotal.String(), line.DisplayName, line.DisplayImage,
			line.CreatedAt, line.UpdatedAt,
		)
	}
	batch.Queue(`
		UPDATE carts
		SET total_price = $2::numeric, total_quantity = $3, version = $4, updated_at = $5
		WHERE user_id = $1`,
		cart.UserID, cart.TotalPrice.String(), cart.TotalQuantity, cart.Version, cart.UpdatedAt,
	)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("write cart: %w", err)
	}
	return nil
}
