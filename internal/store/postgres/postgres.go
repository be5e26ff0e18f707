package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"apotekku/backend/internal/store/sqlstore"
)

// Dialect locks rows with FOR UPDATE so concurrent checkouts serialize on each
// medicine they touch.
var Dialect = sqlstore.Dialect{
	Name:              "postgres",
	LockClause:        "FOR UPDATE",
	Types:             sqlstore.PostgresTypes,
	IsUniqueViolation: isUniqueViolation,
}

// New connects to databaseURL through the pgx stdlib driver and applies the
// schema.
func New(ctx context.Context, databaseURL string) (*sqlstore.Store, error) {
	db, err := sqlx.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := sqlstore.New(db, Dialect)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
