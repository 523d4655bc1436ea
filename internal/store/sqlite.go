// apps/duel-server/internal/store/sqlite.go
//
// SQLite implementation of Store.
// Responsibilities:
//   - Opening SQLite with safe defaults (WAL, busy timeout, immediate write locks).
//   - Applying embedded migrations from sql/*.sql (idempotent, recorded in _migrations).
//   - Mapping Tx calls onto JSON documents plus indexed lookup columns.
//
// Notes:
//   - One open connection: SQLite has a single writer, and BEGIN IMMEDIATE
//     makes every Update take the write lock up front, which is what gives
//     read-check-write callbacks their serializability.

package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordle/apps/duel-server/internal/model"
	"github.com/robalobadob/wordle/apps/duel-server/internal/tasks"
)

//go:embed sql/*.sql
var migrations embed.FS

// SQLite is a Store backed by a SQLite database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (and creates if missing) the database at dsn and migrates it.
// Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, dsn string) (*SQLite, error) {
	// Ensure directory exists for ./data/duel.db, etc.
	if dsn != ":memory:" {
		if dir := filepath.Dir(dsn); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, eris.Wrapf(err, "mkdir %s", dir)
			}
		}
	}

	db, err := sql.Open("sqlite3", dsn+"?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate&_foreign_keys=1")
	if err != nil {
		return nil, eris.Wrap(err, "open sqlite")
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "ping sqlite")
	}
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

// migrate applies embedded migrations in lexical order, each in its own
// transaction, skipping files already recorded in _migrations.
func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS _migrations (name TEXT PRIMARY KEY);`); err != nil {
		return eris.Wrap(err, "create _migrations")
	}

	files, err := fs.Glob(migrations, "sql/*.sql")
	if err != nil {
		return eris.Wrap(err, "list migrations")
	}
	sort.Strings(files)

	for _, f := range files {
		var done int
		err := db.QueryRowContext(ctx, `SELECT 1 FROM _migrations WHERE name=?`, f).Scan(&done)
		if err == nil {
			log.Debug().Str("migration", f).Msg("already applied")
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return eris.Wrap(err, "query _migrations")
		}

		body, err := migrations.ReadFile(f)
		if err != nil {
			return eris.Wrapf(err, "read %s", f)
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return eris.Wrap(err, "begin migration")
		}
		if _, err := tx.ExecContext(ctx, string(body)); err != nil {
			_ = tx.Rollback()
			return eris.Wrapf(err, "apply %s", f)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO _migrations(name) VALUES (?)`, f); err != nil {
			_ = tx.Rollback()
			return eris.Wrapf(err, "record %s", f)
		}
		if err := tx.Commit(); err != nil {
			return eris.Wrapf(err, "commit %s", f)
		}
		log.Info().Str("migration", f).Msg("applied")
	}
	return nil
}

// Update runs fn inside BEGIN IMMEDIATE and commits when it returns nil.
func (s *SQLite) Update(ctx context.Context, fn func(tx Tx) error) error {
	return s.run(ctx, true, fn)
}

// View runs fn inside a transaction whose writes are refused.
func (s *SQLite) View(ctx context.Context, fn func(tx Tx) error) error {
	return s.run(ctx, false, fn)
}

func (s *SQLite) run(ctx context.Context, writable bool, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&sqlTx{ctx: ctx, tx: tx, writable: writable}); err != nil {
		return err
	}
	if !writable {
		return nil
	}
	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "commit")
	}
	return nil
}

// Ping checks the connection.
func (s *SQLite) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close releases the database handle.
func (s *SQLite) Close() error { return s.db.Close() }

// SaveTask records an armed task.
func (s *SQLite) SaveTask(ctx context.Context, t tasks.Task) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, kind, run_at, payload) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET kind=excluded.kind, run_at=excluded.run_at, payload=excluded.payload`,
		t.ID, t.Kind, t.RunAt.UnixNano(), string(t.Payload))
	return eris.Wrapf(err, "save task %s", t.ID)
}

// DeleteTask forgets a task once it has run.
func (s *SQLite) DeleteTask(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	return eris.Wrapf(err, "delete task %s", id)
}

// PendingTasks lists tasks not yet run, earliest first.
func (s *SQLite) PendingTasks(ctx context.Context) ([]tasks.Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, kind, run_at, payload FROM tasks ORDER BY run_at ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "query tasks")
	}
	defer rows.Close()

	var out []tasks.Task
	for rows.Next() {
		var (
			t       tasks.Task
			runAt   int64
			payload string
		)
		if err := rows.Scan(&t.ID, &t.Kind, &runAt, &payload); err != nil {
			return nil, eris.Wrap(err, "scan task")
		}
		t.RunAt = time.Unix(0, runAt).UTC()
		t.Payload = json.RawMessage(payload)
		out = append(out, t)
	}
	return out, rows.Err()
}

// -------------------------------- sqlTx -------------------------------------

type sqlTx struct {
	ctx      context.Context
	tx       *sql.Tx
	writable bool
}

func (t *sqlTx) exec(query string, args ...any) error {
	if !t.writable {
		return ErrReadOnly
	}
	_, err := t.tx.ExecContext(t.ctx, query, args...)
	return err
}

// one scans a single doc column into v.
func (t *sqlTx) one(v any, query string, args ...any) error {
	var doc string
	err := t.tx.QueryRowContext(t.ctx, query, args...).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return eris.Wrap(err, "query")
	}
	return json.Unmarshal([]byte(doc), v)
}

// many scans a doc column per row, passing each to add.
func (t *sqlTx) many(add func(doc []byte) error, query string, args ...any) error {
	rows, err := t.tx.QueryContext(t.ctx, query, args...)
	if err != nil {
		return eris.Wrap(err, "query")
	}
	defer rows.Close()
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return eris.Wrap(err, "scan")
		}
		if err := add([]byte(doc)); err != nil {
			return err
		}
	}
	return rows.Err()
}

func encode(v any) (string, error) {
	b, err := json.Marshal(v)
	return string(b), err
}

func (t *sqlTx) Match(id string) (*model.Match, error) {
	var m model.Match
	if err := t.one(&m, `SELECT doc FROM matches WHERE id=?`, id); err != nil {
		return nil, err
	}
	return &m, nil
}

func (t *sqlTx) PutMatch(m *model.Match) error {
	doc, err := encode(m)
	if err != nil {
		return err
	}
	return eris.Wrapf(t.exec(`
		INSERT INTO matches (id, status, updated_at, doc) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status=excluded.status, updated_at=excluded.updated_at, doc=excluded.doc`,
		m.ID, string(m.Status), time.Now().UnixNano(), doc), "put match %s", m.ID)
}

func (t *sqlTx) PlayerState(matchID, handle string) (*model.PlayerState, error) {
	var p model.PlayerState
	if err := t.one(&p, `SELECT doc FROM player_states WHERE match_id=? AND handle=?`, matchID, handle); err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *sqlTx) PutPlayerState(p *model.PlayerState) error {
	doc, err := encode(p)
	if err != nil {
		return err
	}
	return eris.Wrapf(t.exec(`
		INSERT INTO player_states (match_id, handle, doc) VALUES (?, ?, ?)
		ON CONFLICT(match_id, handle) DO UPDATE SET doc=excluded.doc`,
		p.MatchID, p.PlayerHandle, doc), "put player state %s/%s", p.MatchID, p.PlayerHandle)
}

func (t *sqlTx) queueOne(query string, args ...any) (*model.QueueEntry, error) {
	var e model.QueueEntry
	if err := t.one(&e, query, args...); err != nil {
		return nil, err
	}
	return &e, nil
}

func (t *sqlTx) QueueEntry(id string) (*model.QueueEntry, error) {
	return t.queueOne(`SELECT doc FROM queue_entries WHERE id=?`, id)
}

func (t *sqlTx) QueueEntryBySession(sessionID string) (*model.QueueEntry, error) {
	return t.queueOne(`SELECT doc FROM queue_entries WHERE session_id=?`, sessionID)
}

func (t *sqlTx) OldestWaiting(excludeHandle string) (*model.QueueEntry, error) {
	return t.queueOne(`
		SELECT doc FROM queue_entries
		WHERE status=? AND bot_only=0 AND handle<>?
		ORDER BY created_at ASC, rowid ASC LIMIT 1`, string(model.QueueWaiting), excludeHandle)
}

func (t *sqlTx) WaitingByHandle(handle string) (*model.QueueEntry, error) {
	return t.queueOne(`
		SELECT doc FROM queue_entries WHERE status=? AND handle=?
		ORDER BY created_at ASC LIMIT 1`, string(model.QueueWaiting), handle)
}

func (t *sqlTx) WaitingBefore(before time.Time) ([]*model.QueueEntry, error) {
	var out []*model.QueueEntry
	err := t.many(func(doc []byte) error {
		var e model.QueueEntry
		if err := json.Unmarshal(doc, &e); err != nil {
			return err
		}
		out = append(out, &e)
		return nil
	}, `SELECT doc FROM queue_entries WHERE status=? AND created_at<? ORDER BY created_at ASC, rowid ASC`,
		string(model.QueueWaiting), before.UnixNano())
	return out, err
}

func (t *sqlTx) PutQueueEntry(e *model.QueueEntry) error {
	doc, err := encode(e)
	if err != nil {
		return err
	}
	return eris.Wrapf(t.exec(`
		INSERT INTO queue_entries (id, session_id, handle, status, created_at, bot_only, doc) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status=excluded.status, bot_only=excluded.bot_only, doc=excluded.doc`,
		e.ID, e.SessionID, e.PlayerHandle, string(e.Status), e.CreatedAt.UnixNano(), e.BotOnly, doc), "put queue entry %s", e.ID)
}

func (t *sqlTx) inviteList(query string, args ...any) ([]*model.FriendBattleRequest, error) {
	var out []*model.FriendBattleRequest
	err := t.many(func(doc []byte) error {
		var r model.FriendBattleRequest
		if err := json.Unmarshal(doc, &r); err != nil {
			return err
		}
		out = append(out, &r)
		return nil
	}, query, args...)
	return out, err
}

func (t *sqlTx) Invite(id string) (*model.FriendBattleRequest, error) {
	var r model.FriendBattleRequest
	if err := t.one(&r, `SELECT doc FROM invites WHERE id=?`, id); err != nil {
		return nil, err
	}
	return &r, nil
}

func (t *sqlTx) PendingInvite(fromHandle, toHandle string) (*model.FriendBattleRequest, error) {
	var r model.FriendBattleRequest
	if err := t.one(&r, `
		SELECT doc FROM invites WHERE from_handle=? AND to_handle=? AND status=?
		ORDER BY created_at DESC LIMIT 1`, fromHandle, toHandle, string(model.InvitePending)); err != nil {
		return nil, err
	}
	return &r, nil
}

func (t *sqlTx) InvitesTo(handle string, status model.InviteStatus) ([]*model.FriendBattleRequest, error) {
	return t.inviteList(`SELECT doc FROM invites WHERE to_handle=? AND status=? ORDER BY created_at DESC`,
		handle, string(status))
}

func (t *sqlTx) PendingExpiringBy(at time.Time) ([]*model.FriendBattleRequest, error) {
	return t.inviteList(`SELECT doc FROM invites WHERE status=? AND expires_at<=?`,
		string(model.InvitePending), at.UnixNano())
}

func (t *sqlTx) PutInvite(r *model.FriendBattleRequest) error {
	doc, err := encode(r)
	if err != nil {
		return err
	}
	return eris.Wrapf(t.exec(`
		INSERT INTO invites (id, from_handle, to_handle, status, created_at, expires_at, doc) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status=excluded.status, doc=excluded.doc`,
		r.ID, r.FromHandle, r.ToHandle, string(r.Status), r.CreatedAt.UnixNano(), r.ExpiresAt.UnixNano(), doc),
		"put invite %s", r.ID)
}

func (t *sqlTx) Presence(sessionID string) (*model.PresenceRecord, error) {
	var p model.PresenceRecord
	if err := t.one(&p, `SELECT doc FROM presence WHERE session_id=?`, sessionID); err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *sqlTx) PresenceFor(handles []string) ([]*model.PresenceRecord, error) {
	if len(handles) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(handles))
	for _, h := range handles {
		args = append(args, h)
	}
	query := `SELECT doc FROM presence WHERE user_handle<>'' AND user_handle IN (?` +
		strings.Repeat(",?", len(handles)-1) + `)`

	var out []*model.PresenceRecord
	err := t.many(func(doc []byte) error {
		var p model.PresenceRecord
		if err := json.Unmarshal(doc, &p); err != nil {
			return err
		}
		out = append(out, &p)
		return nil
	}, query, args...)
	return out, err
}

func (t *sqlTx) PutPresence(p *model.PresenceRecord) error {
	doc, err := encode(p)
	if err != nil {
		return err
	}
	return eris.Wrapf(t.exec(`
		INSERT INTO presence (session_id, user_handle, last_seen_at, doc) VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET user_handle=excluded.user_handle,
			last_seen_at=excluded.last_seen_at, doc=excluded.doc`,
		p.SessionID, p.UserHandle, p.LastSeenAt.UnixNano(), doc), "put presence %s", p.SessionID)
}

func (t *sqlTx) DeletePresenceBefore(before time.Time) (int, error) {
	if !t.writable {
		return 0, ErrReadOnly
	}
	res, err := t.tx.ExecContext(t.ctx, `DELETE FROM presence WHERE last_seen_at<?`, before.UnixNano())
	if err != nil {
		return 0, eris.Wrap(err, "delete presence")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
