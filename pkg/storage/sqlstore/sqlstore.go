// Package sqlstore implements storage.Driver on top of ent's SQL dialect
// layer. It is database-agnostic and is embedded by the SQLite and
// PostgreSQL drivers.
package sqlstore

import (
	"context"
	stdsql "database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"

	"github.com/papercomputeco/parley/pkg/conversation"
	"github.com/papercomputeco/parley/pkg/storage"
	"github.com/papercomputeco/parley/pkg/window"
)

// Store provides storage operations over an ent SQL driver.
type Store struct {
	drv     *entsql.Driver
	dialect string
	now     func() time.Time
}

var _ storage.Driver = (*Store)(nil)

// Open wraps db with ent's SQL driver for the given dialect and runs the
// schema migration. Migrations are append-only (new tables, columns, indexes).
func Open(ctx context.Context, dialectName string, db *stdsql.DB) (*Store, error) {
	drv := entsql.OpenDB(dialectName, db)

	migrate, err := schema.NewMigrate(drv)
	if err != nil {
		drv.Close()
		return nil, fmt.Errorf("failed to create migration: %w", err)
	}
	if err := migrate.Create(ctx, tables...); err != nil {
		drv.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{
		drv:     drv,
		dialect: dialectName,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *Store) builder() *entsql.DialectBuilder {
	return entsql.Dialect(s.dialect)
}

func (s *Store) exec(ctx context.Context, query string, args []any) (stdsql.Result, error) {
	var res stdsql.Result
	if err := s.drv.Exec(ctx, query, args, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// CreateKey stores a new conversation key.
func (s *Store) CreateKey(ctx context.Context, key *conversation.Key) error {
	if key == nil || key.Key == "" {
		return errors.New("cannot store empty conversation key")
	}
	if key.CreatedAt.IsZero() {
		key.CreatedAt = s.now()
	}

	query, args := s.builder().Insert(keysTable).
		Columns(colKey, colUserID, colPreset, colModel, colTopic, colTitle, colSaved, colCreatedAt).
		Values(key.Key, key.UserID, key.Preset, key.Model, key.Topic, key.Title, key.Saved, key.CreatedAt.UTC()).
		Query()

	if _, err := s.exec(ctx, query, args); err != nil {
		return fmt.Errorf("failed to insert conversation key: %w", err)
	}
	return nil
}

var keyColumns = []string{colKey, colUserID, colPreset, colModel, colTopic, colTitle, colSaved, colCreatedAt}

func scanKey(rows *entsql.Rows) (*conversation.Key, error) {
	var (
		k         conversation.Key
		createdAt any
	)
	if err := rows.Scan(&k.Key, &k.UserID, &k.Preset, &k.Model, &k.Topic, &k.Title, &k.Saved, &createdAt); err != nil {
		return nil, fmt.Errorf("failed to scan conversation key: %w", err)
	}

	t, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	k.CreatedAt = t
	return &k, nil
}

func (s *Store) queryKeys(ctx context.Context, where *entsql.Predicate) ([]*conversation.Key, error) {
	query, args := s.builder().Select(keyColumns...).
		From(entsql.Table(keysTable)).
		Where(entsql.And(where, entsql.IsNull(colDeletedAt))).
		OrderBy(colCreatedAt, colKey).
		Query()

	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("failed to query conversation keys: %w", err)
	}
	defer rows.Close()

	var keys []*conversation.Key
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// GetKey retrieves a live conversation key.
func (s *Store) GetKey(ctx context.Context, key string) (*conversation.Key, error) {
	keys, err := s.queryKeys(ctx, entsql.EQ(colKey, key))
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, storage.NotFoundError{Resource: "key", ID: key}
	}
	return keys[0], nil
}

// ListKeys returns the live keys owned by userID, oldest first.
func (s *Store) ListKeys(ctx context.Context, userID string) ([]*conversation.Key, error) {
	return s.queryKeys(ctx, entsql.EQ(colUserID, userID))
}

// CountKeys returns the number of live keys owned by userID.
func (s *Store) CountKeys(ctx context.Context, userID string) (int, error) {
	query, args := s.builder().Select(entsql.Count("*")).
		From(entsql.Table(keysTable)).
		Where(entsql.And(entsql.EQ(colUserID, userID), entsql.IsNull(colDeletedAt))).
		Query()

	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, query, args, rows); err != nil {
		return 0, fmt.Errorf("failed to count conversation keys: %w", err)
	}
	defer rows.Close()

	var n int
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, fmt.Errorf("failed to scan count: %w", err)
		}
	}
	return n, rows.Err()
}

// liveKeyPredicate matches a key that has not been soft-deleted.
func liveKeyPredicate(key string) *entsql.Predicate {
	return entsql.And(entsql.EQ(colKey, key), entsql.IsNull(colDeletedAt))
}

// SetSaved toggles the saved flag on a key and on all of its turns.
func (s *Store) SetSaved(ctx context.Context, key string, saved bool) error {
	return s.withTx(ctx, func(tx dialect.ExecQuerier) error {
		query, args := s.builder().Update(keysTable).
			Set(colSaved, saved).
			Where(liveKeyPredicate(key)).
			Query()

		var res stdsql.Result
		if err := tx.Exec(ctx, query, args, &res); err != nil {
			return fmt.Errorf("failed to update conversation key: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return storage.NotFoundError{Resource: "key", ID: key}
		}

		query, args = s.builder().Update(turnsTable).
			Set(colSaved, saved).
			Where(entsql.EQ(colConversationKey, key)).
			Query()
		if err := tx.Exec(ctx, query, args, nil); err != nil {
			return fmt.Errorf("failed to update conversation turns: %w", err)
		}
		return nil
	})
}

// DeleteKey soft-deletes a key.
func (s *Store) DeleteKey(ctx context.Context, key string) error {
	query, args := s.builder().Update(keysTable).
		Set(colDeletedAt, s.now()).
		Where(liveKeyPredicate(key)).
		Query()

	res, err := s.exec(ctx, query, args)
	if err != nil {
		return fmt.Errorf("failed to delete conversation key: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.NotFoundError{Resource: "key", ID: key}
	}
	return nil
}

// CreateTurn appends a turn to a live key.
func (s *Store) CreateTurn(ctx context.Context, turn *conversation.Turn) (*conversation.Turn, error) {
	if turn == nil {
		return nil, errors.New("cannot store nil turn")
	}
	if _, err := s.GetKey(ctx, turn.ConversationKey); err != nil {
		return nil, err
	}

	out := *turn
	if out.CreatedAt.IsZero() {
		out.CreatedAt = s.now()
	}

	query, args := s.builder().Insert(turnsTable).
		Columns(colConversationKey, colQuestion, colResponse, colSaved, colCreatedAt).
		Values(out.ConversationKey, out.Question, out.Response, out.Saved, out.CreatedAt.UTC()).
		Returning(colID).
		Query()

	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("failed to insert conversation turn: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to insert conversation turn: %w", err)
		}
		return nil, errors.New("failed to insert conversation turn: no id returned")
	}
	if err := rows.Scan(&out.ID); err != nil {
		return nil, fmt.Errorf("failed to scan turn id: %w", err)
	}
	return &out, nil
}

// FillResponse sets the response of a pending turn exactly once.
func (s *Store) FillResponse(ctx context.Context, id int64, response string) error {
	if response == "" {
		return errors.New("cannot fill turn with an empty response")
	}

	query, args := s.builder().Update(turnsTable).
		Set(colResponse, response).
		Where(entsql.And(entsql.EQ(colID, id), entsql.EQ(colResponse, ""))).
		Query()

	res, err := s.exec(ctx, query, args)
	if err != nil {
		return fmt.Errorf("failed to fill turn response: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		return nil
	}

	exists, err := s.turnExists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return storage.NotFoundError{Resource: "turn", ID: strconv.FormatInt(id, 10)}
	}
	return storage.ErrResponseAlreadySet
}

func (s *Store) turnExists(ctx context.Context, id int64) (bool, error) {
	query, args := s.builder().Select(colID).
		From(entsql.Table(turnsTable)).
		Where(entsql.EQ(colID, id)).
		Query()

	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, query, args, rows); err != nil {
		return false, fmt.Errorf("failed to check turn existence: %w", err)
	}
	defer rows.Close()
	return rows.Next(), rows.Err()
}

// DeleteTurn removes a turn.
func (s *Store) DeleteTurn(ctx context.Context, id int64) error {
	query, args := s.builder().Delete(turnsTable).
		Where(entsql.EQ(colID, id)).
		Query()

	res, err := s.exec(ctx, query, args)
	if err != nil {
		return fmt.Errorf("failed to delete conversation turn: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.NotFoundError{Resource: "turn", ID: strconv.FormatInt(id, 10)}
	}
	return nil
}

var turnColumns = []string{colID, colConversationKey, colQuestion, colResponse, colSaved, colCreatedAt}

func scanTurns(rows *entsql.Rows) ([]*conversation.Turn, error) {
	var turns []*conversation.Turn
	for rows.Next() {
		var (
			t         conversation.Turn
			createdAt any
		)
		if err := rows.Scan(&t.ID, &t.ConversationKey, &t.Question, &t.Response, &t.Saved, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation turn: %w", err)
		}

		ts, err := parseTime(createdAt)
		if err != nil {
			return nil, err
		}
		t.CreatedAt = ts
		turns = append(turns, &t)
	}
	return turns, rows.Err()
}

// Turns returns every turn of a live key ordered by (created_at, id).
func (s *Store) Turns(ctx context.Context, key string) ([]*conversation.Turn, error) {
	if _, err := s.GetKey(ctx, key); err != nil {
		return nil, err
	}

	query, args := s.builder().Select(turnColumns...).
		From(entsql.Table(turnsTable)).
		Where(entsql.EQ(colConversationKey, key)).
		OrderBy(colCreatedAt, colID).
		Query()

	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("failed to query conversation turns: %w", err)
	}
	defer rows.Close()

	return scanTurns(rows)
}

// WindowTurns returns the first keep and last keep answered turns of a live
// key. The ranking runs inside the database so only the window is read.
func (s *Store) WindowTurns(ctx context.Context, key string, keep int) ([]*conversation.Turn, error) {
	if _, err := s.GetKey(ctx, key); err != nil {
		return nil, err
	}
	if keep < 1 {
		keep = window.DefaultKeep
	}

	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, s.windowQuery(), []any{key, keep, keep}, rows); err != nil {
		return nil, fmt.Errorf("failed to query windowed turns: %w", err)
	}
	defer rows.Close()

	return scanTurns(rows)
}

// windowQuery ranks the answered turns of one key and keeps the ranks that
// pass window.InWindow.
func (s *Store) windowQuery() string {
	return fmt.Sprintf(`SELECT id, conversation_key, question, response, saved, created_at FROM (
	SELECT id, conversation_key, question, response, saved, created_at,
		ROW_NUMBER() OVER (ORDER BY created_at, id) AS turn_rank,
		COUNT(*) OVER () AS turn_total
	FROM %s
	WHERE conversation_key = %s AND response <> ''
) ranked
WHERE turn_rank <= %s OR turn_rank > turn_total - %s
ORDER BY turn_rank`, turnsTable, s.placeholder(1), s.placeholder(2), s.placeholder(3))
}

func (s *Store) placeholder(n int) string {
	if s.dialect == dialect.Postgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

func (s *Store) withTx(ctx context.Context, fn func(tx dialect.ExecQuerier) error) error {
	tx, err := s.drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return fmt.Errorf("%w: rolling back: %w", err, rerr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DB returns the underlying database handle.
func (s *Store) DB() *stdsql.DB {
	return s.drv.DB()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.drv.Close()
}
