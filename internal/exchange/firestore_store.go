package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceAccount carries the service-account fields read from the environment.
type ServiceAccount struct {
	ProjectID    string
	PrivateKeyID string
	PrivateKey   string
	ClientEmail  string
	ClientID     string
}

// credentialsJSON renders the account in Google's service_account key format.
func (sa ServiceAccount) credentialsJSON() ([]byte, error) {
	return json.Marshal(map[string]string{
		"type":                        "service_account",
		"project_id":                  sa.ProjectID,
		"private_key_id":              sa.PrivateKeyID,
		"private_key":                 sa.PrivateKey,
		"client_email":                sa.ClientEmail,
		"client_id":                   sa.ClientID,
		"auth_uri":                    "https://accounts.google.com/o/oauth2/auth",
		"token_uri":                   "https://oauth2.googleapis.com/token",
		"auth_provider_x509_cert_url": "https://www.googleapis.com/oauth2/v1/certs",
		"universe_domain":             "googleapis.com",
	})
}

// NewFirestoreClient builds a client from explicit service-account fields, or
// from application default credentials when no private key is set.
func NewFirestoreClient(ctx context.Context, sa ServiceAccount) (*firestore.Client, error) {
	if sa.ProjectID == "" {
		return nil, errors.New("exchange: firestore project id is required")
	}
	var opts []option.ClientOption
	if sa.PrivateKey != "" {
		creds, err := sa.credentialsJSON()
		if err != nil {
			return nil, fmt.Errorf("exchange: encode service account: %w", err)
		}
		opts = append(opts, option.WithCredentialsJSON(creds))
	}
	client, err := firestore.NewClient(ctx, sa.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("exchange: creating firestore client: %w", err)
	}
	return client, nil
}

// FirestoreStore keeps one document per record in a single flat collection.
// Reply ingestion needs a composite index on (isFromStuart, read, timestamp desc).
type FirestoreStore struct {
	client     *firestore.Client
	collection string
	tracer     trace.Tracer
}

// NewFirestoreStore wraps a client. collection defaults to "messages".
func NewFirestoreStore(client *firestore.Client, collection string) *FirestoreStore {
	if client == nil {
		panic("exchange: firestore client required")
	}
	if collection == "" {
		collection = "messages"
	}
	return &FirestoreStore{
		client:     client,
		collection: collection,
		tracer:     otel.Tracer("askstuart.internal.exchange.firestore"),
	}
}

var _ Store = (*FirestoreStore)(nil)

type recordDoc struct {
	Name           string     `firestore:"name"`
	Question       string     `firestore:"question"`
	Reply          string     `firestore:"reply"`
	Timestamp      time.Time  `firestore:"timestamp"`
	IsFromStuart   bool       `firestore:"isFromStuart"`
	Read           bool       `firestore:"read"`
	QuestionLength int        `firestore:"questionLength"`
	ReplyTimestamp *time.Time `firestore:"replyTimestamp"`
	ReplySID       string     `firestore:"replySid"`
	Standalone     bool       `firestore:"standalone"`
}

func (d recordDoc) toRecord(id string) Record {
	return Record{
		ID:             id,
		Name:           d.Name,
		Question:       d.Question,
		Reply:          d.Reply,
		Timestamp:      d.Timestamp,
		IsFromStuart:   d.IsFromStuart,
		Read:           d.Read,
		QuestionLength: d.QuestionLength,
		ReplyTimestamp: d.ReplyTimestamp,
		ReplySID:       d.ReplySID,
		Standalone:     d.Standalone,
	}
}

func (s *FirestoreStore) col() *firestore.CollectionRef {
	return s.client.Collection(s.collection)
}

// Create adds a question document stamped with the server time.
func (s *FirestoreStore) Create(ctx context.Context, q Question) (*Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	ctx, span := s.tracer.Start(ctx, "exchange.firestore.create")
	defer span.End()

	length := QuestionLength(q.Question)
	ref, wr, err := s.col().Add(ctx, map[string]interface{}{
		"name":           q.Name,
		"question":       q.Question,
		"timestamp":      firestore.ServerTimestamp,
		"isFromStuart":   false,
		"read":           false,
		"questionLength": length,
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("exchange: firestore create: %w", mapFirestoreErr(err))
	}
	return &Record{
		ID:             ref.ID,
		Name:           q.Name,
		Question:       q.Question,
		Timestamp:      wr.UpdateTime,
		QuestionLength: length,
	}, nil
}

// LatestPending runs the (isFromStuart, read, timestamp desc) query with limit 1.
func (s *FirestoreStore) LatestPending(ctx context.Context) (*Record, error) {
	ctx, span := s.tracer.Start(ctx, "exchange.firestore.latest_pending")
	defer span.End()

	iter := s.col().
		Where("isFromStuart", "==", false).
		Where("read", "==", false).
		OrderBy("timestamp", firestore.Desc).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("exchange: firestore latest pending: %w", mapFirestoreErr(err))
	}
	var doc recordDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("exchange: decode record %s: %w", snap.Ref.ID, err)
	}
	rec := doc.toRecord(snap.Ref.ID)
	return &rec, nil
}

// Answer reads and updates the document in one transaction so a reply is
// never written over an existing one.
func (s *FirestoreStore) Answer(ctx context.Context, id string, a Answer) error {
	ctx, span := s.tracer.Start(ctx, "exchange.firestore.answer")
	defer span.End()

	var at interface{} = firestore.ServerTimestamp
	if !a.At.IsZero() {
		at = a.At
	}
	updates := []firestore.Update{
		{Path: "reply", Value: a.Body},
		{Path: "isFromStuart", Value: true},
		{Path: "read", Value: true},
		{Path: "replyTimestamp", Value: at},
	}
	if a.SID != "" {
		updates = append(updates, firestore.Update{Path: "replySid", Value: a.SID})
	}
	ref := s.col().Doc(id)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var doc recordDoc
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode record %s: %w", id, err)
		}
		if doc.Reply != "" {
			return ErrAlreadyAnswered
		}
		return tx.Update(ref, updates)
	})
	if errors.Is(err, ErrAlreadyAnswered) {
		return ErrAlreadyAnswered
	}
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("exchange: firestore answer %s: %w", id, mapFirestoreErr(err))
	}
	return nil
}

// CreateStandalone adds a reply-only document.
func (s *FirestoreStore) CreateStandalone(ctx context.Context, a Answer) (*Record, error) {
	ctx, span := s.tracer.Start(ctx, "exchange.firestore.create_standalone")
	defer span.End()

	ref, wr, err := s.col().Add(ctx, map[string]interface{}{
		"name":           StandaloneName,
		"question":       StandaloneQuestion,
		"reply":          a.Body,
		"timestamp":      firestore.ServerTimestamp,
		"isFromStuart":   true,
		"read":           true,
		"replyTimestamp": firestore.ServerTimestamp,
		"replySid":       a.SID,
		"standalone":     true,
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("exchange: firestore create standalone: %w", mapFirestoreErr(err))
	}
	ts := wr.UpdateTime
	return &Record{
		ID:             ref.ID,
		Name:           StandaloneName,
		Question:       StandaloneQuestion,
		Reply:          a.Body,
		Timestamp:      ts,
		IsFromStuart:   true,
		Read:           true,
		ReplyTimestamp: &ts,
		ReplySID:       a.SID,
		Standalone:     true,
	}, nil
}

func (s *FirestoreStore) orderedQuery(since time.Time) firestore.Query {
	q := s.col().Query
	if !since.IsZero() {
		q = q.Where("timestamp", ">", since)
	}
	return q.OrderBy("timestamp", firestore.Asc)
}

// List reads the ordered collection once.
func (s *FirestoreStore) List(ctx context.Context, since time.Time) ([]Record, error) {
	ctx, span := s.tracer.Start(ctx, "exchange.firestore.list")
	defer span.End()

	iter := s.orderedQuery(since).Documents(ctx)
	defer iter.Stop()
	docs, err := iter.GetAll()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("exchange: firestore list: %w", mapFirestoreErr(err))
	}
	return decodeSnapshots(docs)
}

// Subscribe attaches a Firestore snapshot listener to the ordered query.
func (s *FirestoreStore) Subscribe(ctx context.Context, since time.Time) (<-chan Snapshot, error) {
	it := s.orderedQuery(since).Snapshots(ctx)
	out := make(chan Snapshot, 1)

	go func() {
		defer close(out)
		defer it.Stop()
		for {
			qs, err := it.Next()
			if err != nil {
				if ctx.Err() != nil || status.Code(err) == codes.Canceled {
					return
				}
				deliver(ctx, out, Snapshot{Err: fmt.Errorf("exchange: firestore listener: %w", mapFirestoreErr(err))})
				return
			}
			docs, err := qs.Documents.GetAll()
			if err == nil {
				var recs []Record
				recs, err = decodeSnapshots(docs)
				if err == nil {
					if !deliver(ctx, out, Snapshot{Records: recs}) {
						return
					}
					continue
				}
			}
			deliver(ctx, out, Snapshot{Err: fmt.Errorf("exchange: firestore snapshot: %w", mapFirestoreErr(err))})
			return
		}
	}()
	return out, nil
}

func decodeSnapshots(docs []*firestore.DocumentSnapshot) ([]Record, error) {
	out := make([]Record, 0, len(docs))
	for _, snap := range docs {
		var doc recordDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode record %s: %w", snap.Ref.ID, err)
		}
		out = append(out, doc.toRecord(snap.Ref.ID))
	}
	return out, nil
}

// deliver sends snap unless ctx is done first.
func deliver(ctx context.Context, out chan<- Snapshot, snap Snapshot) bool {
	select {
	case out <- snap:
		return true
	case <-ctx.Done():
		return false
	}
}

func mapFirestoreErr(err error) error {
	switch status.Code(err) {
	case codes.PermissionDenied:
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	case codes.NotFound:
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	default:
		return err
	}
}
