// Package pgstore backs the request log, the content catalog, the edge
// registry and the decision history with PostgreSQL.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Borislavv/go-ash-edge/config"
	"github.com/Borislavv/go-ash-edge/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS edge_nodes (
	edge_id           VARCHAR(50) PRIMARY KEY,
	region            VARCHAR(50) NOT NULL,
	cache_capacity    BIGINT      NOT NULL,
	current_usage     BIGINT      NOT NULL DEFAULT 0,
	is_active         BOOLEAN     NOT NULL DEFAULT TRUE,
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS content (
	content_id        VARCHAR(100) PRIMARY KEY,
	content_type      VARCHAR(50)  NOT NULL DEFAULT '',
	size              BIGINT       NOT NULL,
	category          VARCHAR(50)  NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS requests (
	request_id        BIGSERIAL PRIMARY KEY,
	content_id        VARCHAR(100) NOT NULL,
	edge_id           VARCHAR(50)  NOT NULL,
	is_cache_hit      BOOLEAN      NOT NULL,
	response_time_us  BIGINT       NOT NULL,
	request_timestamp TIMESTAMPTZ  NOT NULL,
	experiment_id     BIGINT
);
CREATE INDEX IF NOT EXISTS idx_requests_time ON requests (request_timestamp);
CREATE TABLE IF NOT EXISTS ai_decisions (
	decision_id          BIGSERIAL PRIMARY KEY,
	decision_type        VARCHAR(20)  NOT NULL,
	content_id           VARCHAR(100) NOT NULL,
	edge_id              VARCHAR(50),
	ttl_seconds          INTEGER,
	priority             INTEGER      NOT NULL DEFAULT 0,
	reason               TEXT,
	predicted_popularity BIGINT,
	decision_timestamp   TIMESTAMPTZ  NOT NULL,
	applied_at           TIMESTAMPTZ,
	error                TEXT,
	experiment_id        BIGINT
);`

type Store struct {
	pool         *pgxpool.Pool
	logger       *slog.Logger
	experimentID *int64
}

// Open connects, pings and migrates.
func Open(ctx context.Context, cfg *config.PostgresCfg, logger *slog.Logger) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pcfg.MaxConns = cfg.MaxConns

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err = pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate postgres schema: %w", err)
	}

	logger.Info("postgres is connected", "max_conns", cfg.MaxConns)
	return &Store{pool: pool, logger: logger, experimentID: cfg.ExperimentID}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// RecentEvents returns requests of window w ordered by time.
func (s *Store) RecentEvents(ctx context.Context, w model.Window) ([]model.RequestEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT content_id, edge_id, request_timestamp, is_cache_hit, response_time_us
		FROM requests
		WHERE request_timestamp >= $1 AND request_timestamp < $2
		ORDER BY request_timestamp`,
		w.From, w.To,
	)
	if err != nil {
		return nil, fmt.Errorf("query requests: %w", err)
	}
	events, err := pgx.CollectRows(rows, scanEvent)
	if err != nil {
		return nil, fmt.Errorf("scan requests: %w", err)
	}
	return events, nil
}

func scanEvent(row pgx.CollectableRow) (model.RequestEvent, error) {
	var (
		content, edge string
		at            time.Time
		hit           bool
		micros        int64
	)
	if err := row.Scan(&content, &edge, &at, &hit, &micros); err != nil {
		return model.RequestEvent{}, err
	}
	return model.NewRequestEvent(model.ContentID(content), model.EdgeID(edge), at, hit, time.Duration(micros)*time.Microsecond), nil
}

// Append stores one request event.
func (s *Store) Append(ctx context.Context, ev model.RequestEvent) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO requests (content_id, edge_id, is_cache_hit, response_time_us, request_timestamp, experiment_id)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		string(ev.ContentID), string(ev.EdgeID), ev.Hit, ev.Latency.Microseconds(), model.Normalize(ev.At), s.experimentID,
	)
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

// Catalog returns all content ordered by id.
func (s *Store) Catalog(ctx context.Context) ([]model.ContentItem, error) {
	rows, err := s.pool.Query(ctx, `SELECT content_id, size, category, content_type FROM content ORDER BY content_id`)
	if err != nil {
		return nil, fmt.Errorf("query content: %w", err)
	}
	items, err := pgx.CollectRows(rows, scanItem)
	if err != nil {
		return nil, fmt.Errorf("scan content: %w", err)
	}
	return items, nil
}

// Item returns the metadata of id.
func (s *Store) Item(ctx context.Context, id model.ContentID) (model.ContentItem, bool, error) {
	rows, err := s.pool.Query(ctx, `SELECT content_id, size, category, content_type FROM content WHERE content_id = $1`, string(id))
	if err != nil {
		return model.ContentItem{}, false, fmt.Errorf("query content %s: %w", id, err)
	}
	item, err := pgx.CollectExactlyOneRow(rows, scanItem)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ContentItem{}, false, nil
	}
	if err != nil {
		return model.ContentItem{}, false, fmt.Errorf("scan content %s: %w", id, err)
	}
	return item, true, nil
}

func scanItem(row pgx.CollectableRow) (model.ContentItem, error) {
	var (
		id, category, typ string
		size              int64
	)
	if err := row.Scan(&id, &size, &category, &typ); err != nil {
		return model.ContentItem{}, err
	}
	return model.ContentItem{ID: model.ContentID(id), Size: size, Category: category, Type: typ}, nil
}

// UpsertContent registers or updates catalog entries.
func (s *Store) UpsertContent(ctx context.Context, items ...model.ContentItem) error {
	batch := &pgx.Batch{}
	for _, it := range items {
		batch.Queue(`
			INSERT INTO content (content_id, size, category, content_type) VALUES ($1, $2, $3, $4)
			ON CONFLICT (content_id) DO UPDATE SET size = EXCLUDED.size, category = EXCLUDED.category, content_type = EXCLUDED.content_type`,
			string(it.ID), it.Size, it.Category, it.Type,
		)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert content: %w", err)
	}
	return nil
}

// Edges returns the active edge nodes ordered by id.
func (s *Store) Edges(ctx context.Context) ([]model.EdgeNode, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT edge_id, region, cache_capacity, current_usage
		FROM edge_nodes WHERE is_active ORDER BY edge_id`)
	if err != nil {
		return nil, fmt.Errorf("query edge nodes: %w", err)
	}
	nodes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.EdgeNode, error) {
		var id, region string
		var n model.EdgeNode
		if err := row.Scan(&id, &region, &n.Capacity, &n.Usage); err != nil {
			return model.EdgeNode{}, err
		}
		n.ID, n.Region = model.EdgeID(id), region
		return n, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan edge nodes: %w", err)
	}
	return nodes, nil
}

// SyncEdges publishes the current capacity and usage of every edge.
func (s *Store) SyncEdges(ctx context.Context, stats []model.Stats) error {
	batch := &pgx.Batch{}
	for _, st := range stats {
		batch.Queue(`
			INSERT INTO edge_nodes (edge_id, region, cache_capacity, current_usage, updated_at) VALUES ($1, $2, $3, $4, now())
			ON CONFLICT (edge_id) DO UPDATE SET cache_capacity = EXCLUDED.cache_capacity, current_usage = EXCLUDED.current_usage, updated_at = now()`,
			string(st.Edge), st.Region, st.Capacity, st.BytesUsed,
		)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("sync edge nodes: %w", err)
	}
	return nil
}

// Record persists the decisions of a ran cycle in one transaction and
// refreshes the edge usage snapshot. Skipped and aborted cycles have no decisions.
func (s *Store) Record(ctx context.Context, o model.Outcome) error {
	if o.Status != model.StatusRan || len(o.Results) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin decisions tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, r := range o.Results {
		row := newDecisionRow(r, s.experimentID)
		batch.Queue(`
			INSERT INTO ai_decisions (decision_type, content_id, edge_id, ttl_seconds, priority, reason,
				predicted_popularity, decision_timestamp, applied_at, error, experiment_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			row.args()...,
		)
	}
	if err = tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert decisions: %w", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit decisions tx: %w", err)
	}
	return nil
}
