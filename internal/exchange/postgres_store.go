package exchange

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// NotifyChannel is the LISTEN/NOTIFY channel fired by the exchange_records trigger.
const NotifyChannel = "exchange_records_changed"

const recordColumns = `id::text, name, question, reply, created_at, is_from_stuart, read, question_length, reply_at, reply_sid, standalone`

type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// notificationSource opens a dedicated LISTEN session.
type notificationSource interface {
	Listen(ctx context.Context, channel string) (notificationStream, error)
}

type notificationStream interface {
	Wait(ctx context.Context) error
	Close()
}

// PostgresStore stores records in the exchange_records table.
type PostgresStore struct {
	db       pgQuerier
	listener notificationSource
	tracer   trace.Tracer
}

// NewPostgresStore initializes a store backed by pgxpool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("exchange: pgx pool required")
	}
	return newPostgresStore(pool, poolListener{pool: pool})
}

func newPostgresStore(db pgQuerier, listener notificationSource) *PostgresStore {
	return &PostgresStore{
		db:       db,
		listener: listener,
		tracer:   otel.Tracer("askstuart.internal.exchange.postgres"),
	}
}

var _ Store = (*PostgresStore)(nil)

// Create inserts a visitor question; created_at comes from the database clock.
func (s *PostgresStore) Create(ctx context.Context, q Question) (*Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	ctx, span := s.tracer.Start(ctx, "exchange.postgres.create")
	defer span.End()

	length := QuestionLength(q.Question)
	rec := Record{Name: q.Name, Question: q.Question, QuestionLength: length}
	err := s.db.QueryRow(ctx, `
		INSERT INTO exchange_records (name, question, is_from_stuart, read, question_length)
		VALUES ($1, $2, false, false, $3)
		RETURNING id::text, created_at
	`, q.Name, q.Question, length).Scan(&rec.ID, &rec.Timestamp)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("exchange: postgres create: %w", mapPgErr(err))
	}
	return &rec, nil
}

// LatestPending uses the (is_from_stuart, read, created_at) index.
func (s *PostgresStore) LatestPending(ctx context.Context) (*Record, error) {
	ctx, span := s.tracer.Start(ctx, "exchange.postgres.latest_pending")
	defer span.End()

	row := s.db.QueryRow(ctx, `SELECT `+recordColumns+`
		FROM exchange_records
		WHERE is_from_stuart = false AND read = false
		ORDER BY created_at DESC
		LIMIT 1`)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("exchange: postgres latest pending: %w", mapPgErr(err))
	}
	return &rec, nil
}

// Answer updates one row that has no reply yet. When nothing is updated a
// follow-up read tells an unknown id apart from an answered one.
func (s *PostgresStore) Answer(ctx context.Context, id string, a Answer) error {
	ctx, span := s.tracer.Start(ctx, "exchange.postgres.answer")
	defer span.End()

	var at *time.Time
	if !a.At.IsZero() {
		at = &a.At
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE exchange_records
		SET reply = $2, is_from_stuart = true, read = true,
		    reply_at = COALESCE($3, now()), reply_sid = COALESCE(NULLIF($4, ''), reply_sid)
		WHERE id::text = $1 AND COALESCE(reply, '') = ''
	`, id, a.Body, at, a.SID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("exchange: postgres answer %s: %w", id, mapPgErr(err))
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var answered bool
	err = s.db.QueryRow(ctx, `SELECT COALESCE(reply, '') <> '' FROM exchange_records WHERE id::text = $1`, id).Scan(&answered)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return ErrNotFound
	case err != nil:
		span.RecordError(err)
		return fmt.Errorf("exchange: postgres answer %s: %w", id, mapPgErr(err))
	case answered:
		return ErrAlreadyAnswered
	}
	return fmt.Errorf("exchange: postgres answer %s: no row updated", id)
}

// CreateStandalone inserts a reply-only row.
func (s *PostgresStore) CreateStandalone(ctx context.Context, a Answer) (*Record, error) {
	ctx, span := s.tracer.Start(ctx, "exchange.postgres.create_standalone")
	defer span.End()

	rec := Record{
		Name:         StandaloneName,
		Question:     StandaloneQuestion,
		Reply:        a.Body,
		IsFromStuart: true,
		Read:         true,
		ReplySID:     a.SID,
		Standalone:   true,
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO exchange_records (name, question, reply, is_from_stuart, read, reply_at, reply_sid, standalone)
		VALUES ($1, $2, $3, true, true, now(), NULLIF($4, ''), true)
		RETURNING id::text, created_at
	`, StandaloneName, StandaloneQuestion, a.Body, a.SID).Scan(&rec.ID, &rec.Timestamp)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("exchange: postgres create standalone: %w", mapPgErr(err))
	}
	ts := rec.Timestamp
	rec.ReplyTimestamp = &ts
	return &rec, nil
}

// List returns rows ordered by created_at.
func (s *PostgresStore) List(ctx context.Context, since time.Time) ([]Record, error) {
	ctx, span := s.tracer.Start(ctx, "exchange.postgres.list")
	defer span.End()

	var (
		rows pgx.Rows
		err  error
	)
	if since.IsZero() {
		rows, err = s.db.Query(ctx, `SELECT `+recordColumns+` FROM exchange_records ORDER BY created_at ASC, id ASC`)
	} else {
		rows, err = s.db.Query(ctx, `SELECT `+recordColumns+` FROM exchange_records WHERE created_at > $1 ORDER BY created_at ASC, id ASC`, since)
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("exchange: postgres list: %w", mapPgErr(err))
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("exchange: postgres scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("exchange: postgres list: %w", mapPgErr(err))
	}
	return out, nil
}

// Subscribe LISTENs for trigger notifications and re-reads the ordered set on each one.
func (s *PostgresStore) Subscribe(ctx context.Context, since time.Time) (<-chan Snapshot, error) {
	stream, err := s.listener.Listen(ctx, NotifyChannel)
	if err != nil {
		return nil, fmt.Errorf("exchange: postgres listen: %w", mapPgErr(err))
	}
	out := make(chan Snapshot, 1)

	go func() {
		defer close(out)
		defer stream.Close()
		for {
			recs, err := s.List(ctx, since)
			if err != nil {
				if ctx.Err() == nil {
					deliver(ctx, out, Snapshot{Err: err})
				}
				return
			}
			if !deliver(ctx, out, Snapshot{Records: recs}) {
				return
			}
			if err := stream.Wait(ctx); err != nil {
				if ctx.Err() == nil {
					deliver(ctx, out, Snapshot{Err: fmt.Errorf("exchange: postgres notification: %w", mapPgErr(err))})
				}
				return
			}
		}
	}()
	return out, nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec     Record
		reply   pgtype.Text
		replyAt pgtype.Timestamptz
		sid     pgtype.Text
	)
	err := row.Scan(&rec.ID, &rec.Name, &rec.Question, &reply, &rec.Timestamp,
		&rec.IsFromStuart, &rec.Read, &rec.QuestionLength, &replyAt, &sid, &rec.Standalone)
	if err != nil {
		return Record{}, err
	}
	rec.Reply = reply.String
	rec.ReplySID = sid.String
	if replyAt.Valid {
		t := replyAt.Time
		rec.ReplyTimestamp = &t
	}
	return rec, nil
}

func mapPgErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "42501" {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return err
}

type poolListener struct {
	pool *pgxpool.Pool
}

func (l poolListener) Listen(ctx context.Context, channel string) (notificationStream, error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		conn.Release()
		return nil, err
	}
	return &pooledStream{conn: conn}, nil
}

type pooledStream struct {
	conn *pgxpool.Conn
}

func (s *pooledStream) Wait(ctx context.Context) error {
	_, err := s.conn.Conn().WaitForNotification(ctx)
	return err
}

func (s *pooledStream) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := s.conn.Exec(ctx, "UNLISTEN *"); err != nil {
		// Connection state is unknown; drop it instead of returning it to the pool.
		_ = s.conn.Conn().Close(ctx)
	}
	s.conn.Release()
}
