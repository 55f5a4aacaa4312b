package channel

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yourneighborhoodchef/skuwatch/internal/config"
	"github.com/yourneighborhoodchef/skuwatch/internal/notify"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
	Close()
}

// Journal records every stock transition in a PostgreSQL table.
type Journal struct {
	cfg   config.JournalConfig
	table string
	db    execer
	open  func(ctx context.Context, dsn string) (execer, error)
}

func NewJournal(cfg config.JournalConfig, _ Deps) *Journal {
	return &Journal{
		cfg:   cfg,
		table: pgx.Identifier{cfg.Table}.Sanitize(),
		open: func(ctx context.Context, dsn string) (execer, error) {
			return pgxpool.New(ctx, dsn)
		},
	}
}

func (j *Journal) Name() string { return "journal" }

func (j *Journal) Initialize(ctx context.Context) (bool, error) {
	const op = "channel.Journal.Initialize"

	if !j.cfg.Enabled || j.cfg.DSN == "" {
		return false, nil
	}
	db, err := j.open(ctx, j.cfg.DSN)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return false, fmt.Errorf("%s: %w", op, err)
	}

	_, err = db.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+j.table+` (
		id          uuid PRIMARY KEY,
		product     text NOT NULL,
		sku         text NOT NULL,
		in_stock    boolean NOT NULL,
		price       text NOT NULL DEFAULT '',
		url         text NOT NULL DEFAULT '',
		observed_at timestamptz NOT NULL
	)`)
	if err != nil {
		db.Close()
		return false, fmt.Errorf("%s: create table: %w", op, err)
	}
	j.db = db
	return true, nil
}

func (j *Journal) Shutdown(context.Context) error {
	if j.db != nil {
		j.db.Close()
	}
	return nil
}

func (j *Journal) SendStockAlert(ctx context.Context, a notify.Alert) error {
	const op = "channel.Journal.SendStockAlert"

	_, err := j.db.Exec(ctx,
		`INSERT INTO `+j.table+` (id, product, sku, in_stock, price, url, observed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (id) DO NOTHING`,
		a.ID, a.Product, a.SKU, a.InStock, a.Price, a.URL, a.At,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (j *Journal) SendStatusUpdate(context.Context, notify.StatusReport) error { return nil }

func (j *Journal) SendStartupMessage(context.Context, string) error { return nil }
