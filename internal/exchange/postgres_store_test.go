package exchange

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var recordColumnNames = []string{
	"id", "name", "question", "reply", "created_at", "is_from_stuart",
	"read", "question_length", "reply_at", "reply_sid", "standalone",
}

type fakeListener struct {
	stream *fakeStream
	err    error
}

func (l *fakeListener) Listen(ctx context.Context, channel string) (notificationStream, error) {
	if l.err != nil {
		return nil, l.err
	}
	return l.stream, nil
}

type fakeStream struct {
	notify chan error
	closed chan struct{}
}

func newFakeStream() *fakeStream {
	return &fakeStream{notify: make(chan error, 4), closed: make(chan struct{})}
}

func (s *fakeStream) Wait(ctx context.Context) error {
	select {
	case err := <-s.notify:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *fakeStream) Close() { close(s.closed) }

func newMockStore(t *testing.T, listener notificationSource) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return newPostgresStore(mock, listener), mock
}

func TestPostgresStoreCreate(t *testing.T) {
	store, mock := newMockStore(t, nil)
	created := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO exchange_records").
		WithArgs("Ann", "What about super?", 17).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow("r1", created))

	rec, err := store.Create(context.Background(), Question{Name: "Ann", Question: "What about super?"})
	require.NoError(t, err)
	assert.Equal(t, "r1", rec.ID)
	assert.Equal(t, created, rec.Timestamp)
	assert.Equal(t, 17, rec.QuestionLength)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreCreateRejectsInvalid(t *testing.T) {
	store, mock := newMockStore(t, nil)
	_, err := store.Create(context.Background(), Question{Name: "Ann"})
	assert.ErrorIs(t, err, ErrMissingFields)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreLatestPending(t *testing.T) {
	store, mock := newMockStore(t, nil)
	created := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("WHERE is_from_stuart = false AND read = false").
		WillReturnRows(pgxmock.NewRows(recordColumnNames).
			AddRow("r2", "Bob", "Is it fair?", nil, created, false, false, 11, nil, nil, false))

	rec, err := store.LatestPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "r2", rec.ID)
	assert.Empty(t, rec.Reply)
	assert.Nil(t, rec.ReplyTimestamp)
	assert.True(t, rec.Pending())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreLatestPendingNone(t *testing.T) {
	store, mock := newMockStore(t, nil)
	mock.ExpectQuery("WHERE is_from_stuart = false AND read = false").
		WillReturnRows(pgxmock.NewRows(recordColumnNames))

	_, err := store.LatestPending(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStoreAnswer(t *testing.T) {
	store, mock := newMockStore(t, nil)

	mock.ExpectExec("UPDATE exchange_records").
		WithArgs("r1", "Yes it is", pgxmock.AnyArg(), "SM123").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, store.Answer(context.Background(), "r1", Answer{Body: "Yes it is", SID: "SM123"}))

	mock.ExpectExec("UPDATE exchange_records").
		WithArgs("nope", "x", pgxmock.AnyArg(), "").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT COALESCE\\(reply, ''\\) <> ''").
		WithArgs("nope").
		WillReturnRows(pgxmock.NewRows([]string{"answered"}))
	assert.ErrorIs(t, store.Answer(context.Background(), "nope", Answer{Body: "x"}), ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreAnswerRefusesSecondReply(t *testing.T) {
	store, mock := newMockStore(t, nil)

	mock.ExpectExec("AND COALESCE\\(reply, ''\\) = ''").
		WithArgs("r1", "second", pgxmock.AnyArg(), "").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT COALESCE\\(reply, ''\\) <> ''").
		WithArgs("r1").
		WillReturnRows(pgxmock.NewRows([]string{"answered"}).AddRow(true))

	err := store.Answer(context.Background(), "r1", Answer{Body: "second"})
	assert.ErrorIs(t, err, ErrAlreadyAnswered)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreCreateStandalone(t *testing.T) {
	store, mock := newMockStore(t, nil)
	created := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO exchange_records").
		WithArgs(StandaloneName, StandaloneQuestion, "Ring me", "SM5").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow("s1", created))

	rec, err := store.CreateStandalone(context.Background(), Answer{Body: "Ring me", SID: "SM5"})
	require.NoError(t, err)
	assert.True(t, rec.Standalone)
	assert.Equal(t, "Ring me", rec.Reply)
	require.NotNil(t, rec.ReplyTimestamp)
	assert.Equal(t, created, *rec.ReplyTimestamp)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreList(t *testing.T) {
	store, mock := newMockStore(t, nil)
	t1 := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)

	mock.ExpectQuery("FROM exchange_records ORDER BY created_at ASC").
		WillReturnRows(pgxmock.NewRows(recordColumnNames).
			AddRow("r1", "Ann", "Q1", pgtype.Text{String: "A1", Valid: true}, t1, true, true, 2,
				pgtype.Timestamptz{Time: t2, Valid: true}, pgtype.Text{String: "SM1", Valid: true}, false).
			AddRow("r2", "Bob", "Q2", nil, t2, false, false, 2, nil, nil, false))

	recs, err := store.List(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "A1", recs[0].Reply)
	assert.Equal(t, "SM1", recs[0].ReplySID)
	require.NotNil(t, recs[0].ReplyTimestamp)
	assert.Equal(t, t2, *recs[0].ReplyTimestamp)
	assert.Equal(t, "r2", recs[1].ID)

	mock.ExpectQuery(`WHERE created_at > \$1`).
		WithArgs(t1).
		WillReturnRows(pgxmock.NewRows(recordColumnNames).
			AddRow("r2", "Bob", "Q2", nil, t2, false, false, 2, nil, nil, false))

	recs, err = store.List(context.Background(), t1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStorePermissionDenied(t *testing.T) {
	store, mock := newMockStore(t, nil)
	mock.ExpectQuery("FROM exchange_records").
		WillReturnError(&pgconn.PgError{Code: "42501", Message: "permission denied for table exchange_records"})

	_, err := store.List(context.Background(), time.Time{})
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestPostgresStoreSubscribe(t *testing.T) {
	stream := newFakeStream()
	store, mock := newMockStore(t, &fakeListener{stream: stream})
	t1 := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM exchange_records").
		WillReturnRows(pgxmock.NewRows(recordColumnNames))
	mock.ExpectQuery("FROM exchange_records").
		WillReturnRows(pgxmock.NewRows(recordColumnNames).
			AddRow("r1", "Ann", "Q1", nil, t1, false, false, 2, nil, nil, false))

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := store.Subscribe(ctx, time.Time{})
	require.NoError(t, err)

	first := <-ch
	require.NoError(t, first.Err)
	assert.Empty(t, first.Records)

	stream.notify <- nil
	second := <-ch
	require.NoError(t, second.Err)
	require.Len(t, second.Records, 1)

	cancel()
	_, ok := <-ch
	assert.False(t, ok)
	<-stream.closed
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreSubscribeStreamFailure(t *testing.T) {
	stream := newFakeStream()
	store, mock := newMockStore(t, &fakeListener{stream: stream})
	mock.ExpectQuery("FROM exchange_records").
		WillReturnRows(pgxmock.NewRows(recordColumnNames))

	ch, err := store.Subscribe(context.Background(), time.Time{})
	require.NoError(t, err)
	<-ch

	stream.notify <- errors.New("conn reset")
	snap := <-ch
	require.Error(t, snap.Err)
	_, ok := <-ch
	assert.False(t, ok)
}

func TestPostgresStoreSubscribeListenError(t *testing.T) {
	store, _ := newMockStore(t, &fakeListener{err: errors.New("pool closed")})
	_, err := store.Subscribe(context.Background(), time.Time{})
	assert.Error(t, err)
}
