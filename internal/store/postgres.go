package store

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AngelCh415/adforecast/internal/models"
)

// PostgresSource reads daily campaign rows from a warehouse table:
//
//	CREATE TABLE campaign_daily (
//	  day              DATE PRIMARY KEY,
//	  impressions      INTEGER NOT NULL,
//	  clicks           INTEGER,
//	  conversions      INTEGER NOT NULL,
//	  cost             DOUBLE PRECISION NOT NULL,
//	  conversion_value DOUBLE PRECISION NOT NULL,
//	  avg_position     DOUBLE PRECISION NOT NULL
//	);
type PostgresSource struct {
	pool *pgxpool.Pool
}

func NewPostgresSource(ctx context.Context, connStr string) (*PostgresSource, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return &PostgresSource{pool: pool}, nil
}

// LoadDaily returns rows in [from, to] ordered by day. Zero bounds are open.
func (p *PostgresSource) LoadDaily(ctx context.Context, from, to time.Time) ([]models.DailyRecord, error) {
	const query = `
		SELECT day, impressions, clicks, conversions, cost, conversion_value, avg_position
		FROM campaign_daily
		WHERE ($1::date IS NULL OR day >= $1) AND ($2::date IS NULL OR day <= $2)
		ORDER BY day
	`
	rows, err := p.pool.Query(ctx, query, nullDate(from), nullDate(to))
	if err != nil {
		return nil, fmt.Errorf("postgres query failed: %w", err)
	}
	defer rows.Close()

	var out []models.DailyRecord
	for rows.Next() {
		var (
			r      models.DailyRecord
			clicks *int64
		)
		if err := rows.Scan(&r.Date, &r.Impressions, &clicks, &r.Conversions, &r.Cost, &r.ConversionValue, &r.AvgPosition); err != nil {
			return nil, fmt.Errorf("postgres scan failed: %w", err)
		}
		r.Clicks = math.NaN()
		if clicks != nil {
			r.Clicks = float64(*clicks)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *PostgresSource) Close() { p.pool.Close() }

func nullDate(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	d := Day(t)
	return &d
}
