// Package mongo keeps every document in one MongoDB collection, keyed by
// its full path. Batches run in a multi-document transaction, which needs
// a replica set or a sharded cluster.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"lovemoney/internal/docstore"
)

const collectionName = "documents"

type Store struct {
	client *mongo.Client
	docs   *mongo.Collection
	now    func() time.Time
}

// row is the stored envelope of a document.
type row struct {
	Path       string    `bson:"_id"`
	Collection string    `bson:"collection"`
	DocID      string    `bson:"docId"`
	Fields     bson.M    `bson:"fields"`
	CreatedAt  time.Time `bson:"createdAt"`
	UpdatedAt  time.Time `bson:"updatedAt"`
}

// Open connects, pings and makes sure the indexes exist.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	s := New(client, database)
	if err := s.Ping(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// New wraps a connected client.
func New(client *mongo.Client, database string) *Store {
	return &Store{
		client: client,
		docs:   client.Database(database).Collection(collectionName),
		now:    time.Now,
	}
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.docs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "collection", Value: 1}, {Key: "docId", Value: 1}}},
		{Keys: bson.D{{Key: "collection", Value: 1}, {Key: "fields.chaveUnica", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, ref docstore.DocRef) (docstore.Document, error) {
	var r row
	err := s.docs.FindOne(ctx, bson.M{"_id": ref.Path()}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return docstore.Document{}, fmt.Errorf("%s: %w", ref, docstore.ErrNotFound)
	}
	if err != nil {
		return docstore.Document{}, fmt.Errorf("get %s: %w", ref, err)
	}
	return docstore.Document{ID: r.DocID, Fields: fromBSON(r.Fields)}, nil
}

func (s *Store) Query(ctx context.Context, coll docstore.CollectionRef, q docstore.Query) ([]docstore.Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "docId", Value: 1}})
	cur, err := s.docs.Find(ctx, buildFilter(coll, q), opts)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", coll, err)
	}
	defer cur.Close(ctx)

	var out []docstore.Document
	for cur.Next(ctx) {
		var r row
		if err := cur.Decode(&r); err != nil {
			return nil, fmt.Errorf("decode %s: %w", coll, err)
		}
		out = append(out, docstore.Document{ID: r.DocID, Fields: fromBSON(r.Fields)})
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", coll, err)
	}
	return out, nil
}

var mongoOps = map[docstore.Op]string{
	docstore.OpEq:  "$eq",
	docstore.OpGT:  "$gt",
	docstore.OpGTE: "$gte",
	docstore.OpLT:  "$lt",
	docstore.OpLTE: "$lte",
}

// buildFilter translates q into a filter on the envelope. Conditions on the
// same field are merged into one operator document.
func buildFilter(coll docstore.CollectionRef, q docstore.Query) bson.D {
	filter := bson.D{{Key: "collection", Value: coll.Path()}}
	byField := make(map[string]bson.D)
	var order []string
	for _, f := range q.Filters {
		key := "fields." + f.Field
		if _, seen := byField[key]; !seen {
			order = append(order, key)
		}
		if f.Op == docstore.OpMissing {
			// {field: null} matches absent and null fields alike.
			byField[key] = append(byField[key], bson.E{Key: "$eq", Value: nil})
			continue
		}
		byField[key] = append(byField[key], bson.E{Key: mongoOps[f.Op], Value: f.Value})
	}
	for _, key := range order {
		filter = append(filter, bson.E{Key: key, Value: byField[key]})
	}
	return filter
}

func (s *Store) Create(ctx context.Context, coll docstore.CollectionRef, fields docstore.Fields) (string, error) {
	b := docstore.NewBatch()
	ref := b.Create(coll, fields)
	if err := s.Commit(ctx, b); err != nil {
		return "", err
	}
	return ref.ID, nil
}

func (s *Store) Update(ctx context.Context, ref docstore.DocRef, fields docstore.Fields) error {
	return s.apply(ctx, docstore.Mutation{Type: docstore.MutationUpdate, Ref: ref, Fields: fields}, s.now())
}

func (s *Store) Delete(ctx context.Context, ref docstore.DocRef) error {
	return s.apply(ctx, docstore.Mutation{Type: docstore.MutationDelete, Ref: ref}, s.now())
}

// Commit applies a batch inside a transaction. Single writes skip the
// session since MongoDB writes to one document are already atomic.
func (s *Store) Commit(ctx context.Context, b *docstore.Batch) error {
	muts := b.Mutations()
	now := s.now()
	if len(muts) == 1 {
		return s.apply(ctx, muts[0], now)
	}

	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		for _, m := range muts {
			if err := s.apply(sc, m, now); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

func (s *Store) apply(ctx context.Context, m docstore.Mutation, now time.Time) error {
	switch m.Type {
	case docstore.MutationCreate:
		_, err := s.docs.InsertOne(ctx, row{
			Path:       m.Ref.Path(),
			Collection: m.Ref.Collection.Path(),
			DocID:      m.Ref.ID,
			Fields:     toBSON(m.Fields),
			CreatedAt:  now,
			UpdatedAt:  now,
		})
		if err != nil {
			return fmt.Errorf("create %s: %w", m.Ref, err)
		}

	case docstore.MutationUpdate:
		set := bson.M{"updatedAt": now}
		for k, v := range toBSON(m.Fields) {
			set["fields."+k] = v
		}
		res, err := s.docs.UpdateOne(ctx, bson.M{"_id": m.Ref.Path()}, bson.M{"$set": set})
		if err != nil {
			return fmt.Errorf("update %s: %w", m.Ref, err)
		}
		if res.MatchedCount == 0 {
			return fmt.Errorf("update %s: %w", m.Ref, docstore.ErrNotFound)
		}

	case docstore.MutationDelete:
		if _, err := s.docs.DeleteOne(ctx, bson.M{"_id": m.Ref.Path()}); err != nil {
			return fmt.Errorf("delete %s: %w", m.Ref, err)
		}

	default:
		return fmt.Errorf("unknown mutation %v", m.Type)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func toBSON(f docstore.Fields) bson.M {
	out := make(bson.M, len(f))
	for k, v := range f {
		if t, ok := v.(time.Time); ok {
			v = t.UTC()
		}
		out[k] = v
	}
	return out
}

// fromBSON maps driver types back to docstore field values.
func fromBSON(m bson.M) docstore.Fields {
	out := make(docstore.Fields, len(m))
	for k, v := range m {
		out[k] = fromBSONValue(v)
	}
	return out
}

func fromBSONValue(v any) any {
	switch x := v.(type) {
	case primitive.DateTime:
		return x.Time().UTC()
	case int32:
		return int64(x)
	case primitive.Decimal128:
		if f, err := decimalToFloat(x); err == nil {
			return f
		}
		return x.String()
	case primitive.Null, primitive.Undefined:
		return nil
	}
	return v
}

func decimalToFloat(d primitive.Decimal128) (float64, error) {
	var f float64
	_, err := fmt.Sscan(d.String(), &f)
	return f, err
}
