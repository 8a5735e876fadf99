package planstore

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/agentuity/go-plancache/plan"
	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite"
)

// SQLite stores plans in a single "plans" table.
type SQLite struct {
	db        *sql.DB
	ctx       context.Context
	cancel    context.CancelFunc
	waitGroup sync.WaitGroup
	once      sync.Once
	cfg       config
}

var _ Store = (*SQLite)(nil)

// NewSQLite opens (or creates) the database at dbPath. An empty path or
// ":memory:" uses an in-memory database, which is limited to a single
// connection so every query sees the same data.
func NewSQLite(ctx context.Context, dbPath string, opts ...Option) (*SQLite, error) {
	if dbPath == "" {
		dbPath = ":memory:"
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "planstore: open sqlite")
	}
	if strings.Contains(dbPath, ":memory:") {
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "planstore: enable wal")
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS plans (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		expires_at INTEGER NOT NULL,
		hits INTEGER NOT NULL DEFAULT 0
	)`); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "planstore: create plans table")
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_plans_expires_at ON plans(expires_at)`); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "planstore: create expiry index")
	}

	childCtx, cancel := context.WithCancel(ctx)
	s := &SQLite{
		db:     db,
		ctx:    childCtx,
		cancel: cancel,
		cfg:    applyOptions(opts),
	}
	s.waitGroup.Add(1)
	go s.run()
	return s, nil
}

func (s *SQLite) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, s.cfg.queryTimeout)
}

func (s *SQLite) Load(ctx context.Context, key string) (*plan.Plan, bool, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	var data []byte
	var expiresAt int64
	err := s.db.QueryRowContext(qctx,
		`SELECT value, expires_at FROM plans WHERE key = ?`, key,
	).Scan(&data, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "planstore: sqlite load %s", key)
	}
	if expiresAt < time.Now().UnixNano() {
		_, _ = s.db.ExecContext(qctx, `DELETE FROM plans WHERE key = ?`, key)
		return nil, false, nil
	}
	p, err := decodePlan(data)
	if err != nil {
		return nil, false, err
	}
	_, _ = s.db.ExecContext(qctx, `UPDATE plans SET hits = hits + 1 WHERE key = ?`, key)
	return p, true, nil
}

func (s *SQLite) Save(ctx context.Context, key string, p *plan.Plan) error {
	data, err := encodePlan(p)
	if err != nil {
		return err
	}
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	expiresAt := time.Now().Add(s.cfg.expires).UnixNano()
	_, err = s.db.ExecContext(qctx,
		`INSERT INTO plans (key, value, expires_at, hits) VALUES (?, ?, ?, 0)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at, hits = 0`,
		key, data, expiresAt,
	)
	if err != nil {
		return errors.Wrapf(err, "planstore: sqlite save %s", key)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	tx, err := s.db.BeginTx(qctx, nil)
	if err != nil {
		return errors.Wrap(err, "planstore: sqlite begin")
	}
	for _, key := range keys {
		if _, err := tx.ExecContext(qctx, `DELETE FROM plans WHERE key = ?`, key); err != nil {
			_ = tx.Rollback()
			return errors.Wrapf(err, "planstore: sqlite delete %s", key)
		}
	}
	return errors.Wrap(tx.Commit(), "planstore: sqlite commit")
}

// Hits returns how many times key has been loaded since it was saved.
func (s *SQLite) Hits(ctx context.Context, key string) (bool, int) {
	var hits int
	if err := s.db.QueryRowContext(ctx, `SELECT hits FROM plans WHERE key = ?`, key).Scan(&hits); err != nil {
		return false, 0
	}
	return true, hits
}

func (s *SQLite) Close() error {
	var dbErr error
	s.once.Do(func() {
		s.cancel()
		s.waitGroup.Wait()
		dbErr = s.db.Close()
	})
	return dbErr
}

func (s *SQLite) purgeExpired() {
	qctx, cancel := s.queryCtx(s.ctx)
	defer cancel()
	_, _ = s.db.ExecContext(qctx, `DELETE FROM plans WHERE expires_at < ?`, time.Now().UnixNano())
}

func (s *SQLite) run() {
	defer s.waitGroup.Done()
	ticker := time.NewTicker(s.cfg.expiryCheck)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.purgeExpired()
		}
	}
}
