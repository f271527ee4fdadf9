package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultLockKey names the lock guarding a migration pass
const DefaultLockKey = "locallibrary:migrate"

// Locker provides mutual exclusion for migration passes across processes.
// Acquire blocks until the lock is held or ctx is done; the returned release
// function is safe to call more than once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// AdvisoryLocker uses PostgreSQL session-level advisory locks
type AdvisoryLocker struct {
	db *sql.DB
}

// NewAdvisoryLocker creates a PostgreSQL advisory locker
func NewAdvisoryLocker(db *sql.DB) *AdvisoryLocker {
	return &AdvisoryLocker{db: db}
}

// Acquire takes pg_advisory_lock on a dedicated connection; the lock lives as
// long as that connection.
func (l *AdvisoryLocker) Acquire(ctx context.Context, key string) (func(), error) {
	lockID := hashLockKey(key)

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire lock connection for %s: %w", key, err)
	}

	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", lockID); err != nil {
		conn.Close()
		return nil, fmt.Errorf("pg_advisory_lock(%d): %w", lockID, err)
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			_, _ = conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", lockID)
			conn.Close()
		})
	}
	return release, nil
}

// LockTable is the coordination table used by TableLocker
const LockTable = "schema_migrations_lock"

// maxVanishedRetries bounds immediate retries when an insert fails but no
// holder row exists
const maxVanishedRetries = 3

// TableLocker holds the lock as a row in a coordination table. It works on any
// engine, including SQLite, at the cost of polling.
type TableLocker struct {
	db           *sql.DB
	dialect      Dialect
	PollInterval time.Duration
	// StaleAfter lets a waiter take over a row older than this; zero disables takeover
	StaleAfter time.Duration
}

// NewTableLocker creates a coordination-row locker. A positive staleAfter
// lets a waiter take over a row older than that.
func NewTableLocker(db *sql.DB, dialect Dialect, staleAfter time.Duration) *TableLocker {
	return &TableLocker{
		db:           db,
		dialect:      dialect,
		PollInterval: 500 * time.Millisecond,
		StaleAfter:   staleAfter,
	}
}

// Acquire inserts the lock row, waiting while another owner holds it
func (l *TableLocker) Acquire(ctx context.Context, key string) (func(), error) {
	if err := l.ensureTable(ctx); err != nil {
		return nil, err
	}

	owner := uuid.NewString()
	insert := l.dialect.Rebind(fmt.Sprintf("INSERT INTO %s (name, owner, acquired_at) VALUES (?, ?, ?)", l.dialect.Quote(LockTable)))

	vanished := 0
	for {
		_, err := l.db.ExecContext(ctx, insert, key, owner, time.Now().UTC())
		if err == nil {
			break
		}

		holder, acquiredAt, qerr := l.holder(ctx, key)
		if qerr != nil {
			return nil, fmt.Errorf("acquire table lock %s: %w", key, errors.Join(err, qerr))
		}
		if holder == "" {
			// Either the row vanished between the insert and the check, or the
			// insert failed for a reason other than a held lock
			vanished++
			if vanished > maxVanishedRetries {
				return nil, fmt.Errorf("acquire table lock %s: %w", key, err)
			}
			continue
		}
		vanished = 0
		if l.StaleAfter > 0 && time.Since(acquiredAt) > l.StaleAfter {
			if err := l.takeover(ctx, key, holder); err != nil {
				return nil, err
			}
			continue
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire table lock %s: %w", key, ctx.Err())
		case <-time.After(l.PollInterval):
		}
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			del := l.dialect.Rebind(fmt.Sprintf("DELETE FROM %s WHERE name = ? AND owner = ?", l.dialect.Quote(LockTable)))
			_, _ = l.db.ExecContext(context.Background(), del, key, owner)
		})
	}
	return release, nil
}

func (l *TableLocker) ensureTable(ctx context.Context) error {
	tsType, err := l.dialect.ColumnType(Timestamp("acquired_at"))
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	name VARCHAR(100) PRIMARY KEY,
	owner VARCHAR(64) NOT NULL,
	acquired_at %s NOT NULL
)`, l.dialect.Quote(LockTable), tsType)
	if _, err := l.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to initialize lock table: %w", err)
	}
	return nil
}

// holder reports the current owner of the lock row, if any
func (l *TableLocker) holder(ctx context.Context, key string) (owner string, acquiredAt time.Time, err error) {
	query := l.dialect.Rebind(fmt.Sprintf("SELECT owner, acquired_at FROM %s WHERE name = ?", l.dialect.Quote(LockTable)))
	err = l.db.QueryRowContext(ctx, query, key).Scan(&owner, &acquiredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", time.Time{}, nil
	}
	if err != nil {
		return "", time.Time{}, err
	}
	return owner, acquiredAt, nil
}

func (l *TableLocker) takeover(ctx context.Context, key, owner string) error {
	query := l.dialect.Rebind(fmt.Sprintf("DELETE FROM %s WHERE name = ? AND owner = ?", l.dialect.Quote(LockTable)))
	if _, err := l.db.ExecContext(ctx, query, key, owner); err != nil {
		return fmt.Errorf("take over stale lock %s: %w", key, err)
	}
	return nil
}

var redisUnlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker holds the lock as a Redis key with an owner token and expiry.
// The expiry is refreshed while the lock is held.
type RedisLocker struct {
	client       *redis.Client
	TTL          time.Duration
	PollInterval time.Duration
}

// NewRedisLocker creates a Redis-backed locker
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{
		client:       client,
		TTL:          30 * time.Second,
		PollInterval: 250 * time.Millisecond,
	}
}

// Acquire sets the key with NX, polling until it succeeds or ctx is done
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire redis lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire redis lock %s: %w", key, ctx.Err())
		case <-time.After(l.PollInterval):
		}
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(l.TTL / 3)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				_ = l.client.PExpire(context.Background(), key, l.TTL).Err()
			}
		}
	}()

	var once sync.Once
	release := func() {
		once.Do(func() {
			close(stop)
			wg.Wait()
			_ = redisUnlockScript.Run(context.Background(), l.client, []string{key}, token).Err()
		})
	}
	return release, nil
}

// hashLockKey produces a stable non-negative int64 from key using FNV-1a
func hashLockKey(key string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return int64(h.Sum64() & 0x7FFFFFFFFFFFFFFF)
}
