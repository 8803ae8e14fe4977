package mongodb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vovakirdan/issuechat-server/internal/store"
)

const (
	messageCollection = "messages"
	counterCollection = "counters"
	messageCounterID  = "messages"
)

type messageDoc struct {
	Seq    int64     `bson:"seq"`
	RoomID string    `bson:"room_id"`
	Sender string    `bson:"sender"`
	Body   string    `bson:"message"`
	Time   time.Time `bson:"time"`
}

type counterDoc struct {
	ID  string `bson:"_id"`
	Seq int64  `bson:"seq"`
}

// MessageLog implements store.MessageLog on a MongoDB collection.
// BSON dates carry milliseconds, so stamps are truncated to that precision
// and the per-database counter orders messages sharing a millisecond.
type MessageLog struct {
	client   *mongo.Client
	messages *mongo.Collection
	counters *mongo.Collection
	appendMu sync.Mutex
	timeline *store.Timeline
}

// Connect dials MongoDB, verifies the connection and ensures indexes.
func Connect(ctx context.Context, uri, database string) (*MessageLog, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(database)
	l := &MessageLog{
		client:   client,
		messages: db.Collection(messageCollection),
		counters: db.Collection(counterCollection),
		timeline: store.NewTimeline(nil, time.Millisecond),
	}

	_, err = l.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "room_id", Value: 1}, {Key: "time", Value: 1}, {Key: "seq", Value: 1}},
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("create message index: %w", err)
	}
	return l, nil
}

// Close disconnects the client.
func (l *MessageLog) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return l.client.Disconnect(ctx)
}

// Append inserts a message document.
func (l *MessageLog) Append(ctx context.Context, room, sender, body string) (*store.Message, error) {
	l.appendMu.Lock()
	defer l.appendMu.Unlock()

	if !l.timeline.Known(room) {
		latest, err := l.latest(ctx, room)
		if err != nil {
			return nil, err
		}
		if !latest.IsZero() {
			l.timeline.Observe(room, latest)
		}
	}

	seq, err := l.nextSeq(ctx)
	if err != nil {
		return nil, err
	}
	doc := messageDoc{
		Seq:    seq,
		RoomID: room,
		Sender: sender,
		Body:   body,
		Time:   l.timeline.Stamp(room),
	}
	if _, err := l.messages.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return toMessage(doc), nil
}

// History returns the room messages sorted by time, then sequence.
func (l *MessageLog) History(ctx context.Context, room string) ([]*store.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "time", Value: 1}, {Key: "seq", Value: 1}})
	cursor, err := l.messages.Find(ctx, bson.M{"room_id": room}, opts)
	if err != nil {
		return nil, fmt.Errorf("find messages: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []messageDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}

	messages := make([]*store.Message, 0, len(docs))
	for _, d := range docs {
		messages = append(messages, toMessage(d))
	}
	return messages, nil
}

func (l *MessageLog) nextSeq(ctx context.Context) (int64, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var counter counterDoc
	err := l.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": messageCounterID},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return counter.Seq, nil
}

func (l *MessageLog) latest(ctx context.Context, room string) (time.Time, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "time", Value: -1}, {Key: "seq", Value: -1}})
	return latestTime(l.messages.FindOne(ctx, bson.M{"room_id": room}, opts))
}

type decoder interface {
	Decode(v interface{}) error
}

// latestTime reads the newest message time from a FindOne result.
// A room with no messages yields the zero time.
func latestTime(res decoder) (time.Time, error) {
	var doc messageDoc
	err := res.Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("find latest message: %w", err)
	}
	return doc.Time.UTC(), nil
}

func toMessage(d messageDoc) *store.Message {
	return &store.Message{
		ID:        d.Seq,
		Room:      d.RoomID,
		Sender:    d.Sender,
		Body:      d.Body,
		CreatedAt: d.Time.UTC(),
	}
}
