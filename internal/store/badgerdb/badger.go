package badgerdb

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"

	"github.com/vovakirdan/issuechat-server/internal/store"
)

const seqKey = "seq:messages"

// record is the CBOR value stored under each message key.
type record struct {
	ID        int64  `cbor:"1,keyasint"`
	Room      string `cbor:"2,keyasint"`
	Sender    string `cbor:"3,keyasint"`
	Body      string `cbor:"4,keyasint"`
	CreatedAt int64  `cbor:"5,keyasint"`
}

// MessageLog implements store.MessageLog on top of BadgerDB.
//
// Keys are "msg:{hex(room)}:{unixnano, 19 digits}:{seq, 20 digits}" so a
// prefix scan yields a room's messages sorted by time, then by sequence.
// The room is hex encoded to keep one room's prefix from matching another.
type MessageLog struct {
	db       *badger.DB
	seq      *badger.Sequence
	enc      cbor.EncMode
	appendMu sync.Mutex
	timeline *store.Timeline
	ownsDB   bool
}

// Open opens a BadgerDB directory. An empty dir gives an in-memory database.
func Open(dir string) (*MessageLog, error) {
	opts := badger.DefaultOptions(dir).WithLoggingLevel(badger.WARNING)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	l, err := New(db, nil)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	l.ownsDB = true
	return l, nil
}

// New wraps an already opened database. The caller keeps ownership of db.
func New(db *badger.DB, now func() time.Time) (*MessageLog, error) {
	seq, err := db.GetSequence([]byte(seqKey), 128)
	if err != nil {
		return nil, fmt.Errorf("acquire sequence: %w", err)
	}
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("cbor encoder: %w", err)
	}
	return &MessageLog{
		db:       db,
		seq:      seq,
		enc:      enc,
		timeline: store.NewTimeline(now, 0),
	}, nil
}

// Close releases the sequence lease and, when opened by Open, the database.
func (l *MessageLog) Close() error {
	if err := l.seq.Release(); err != nil {
		return fmt.Errorf("release sequence: %w", err)
	}
	if l.ownsDB {
		return l.db.Close()
	}
	return nil
}

// Append persists a message under a time-ordered key.
func (l *MessageLog) Append(_ context.Context, room, sender, body string) (*store.Message, error) {
	l.appendMu.Lock()
	defer l.appendMu.Unlock()

	if !l.timeline.Known(room) {
		latest, err := l.latest(room)
		if err != nil {
			return nil, err
		}
		if !latest.IsZero() {
			l.timeline.Observe(room, latest)
		}
	}

	n, err := l.seq.Next()
	if err != nil {
		return nil, fmt.Errorf("next sequence: %w", err)
	}
	msg := &store.Message{
		ID:        int64(n) + 1,
		Room:      room,
		Sender:    sender,
		Body:      body,
		CreatedAt: l.timeline.Stamp(room),
	}

	value, err := l.enc.Marshal(record{
		ID:        msg.ID,
		Room:      msg.Room,
		Sender:    msg.Sender,
		Body:      msg.Body,
		CreatedAt: msg.CreatedAt.UnixNano(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}

	err = l.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(room, msg.CreatedAt, msg.ID), value)
	})
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

// History scans the room prefix in key order.
func (l *MessageLog) History(_ context.Context, room string) ([]*store.Message, error) {
	messages := make([]*store.Message, 0)
	prefix := roomPrefix(room)

	err := l.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			msg, err := decode(it.Item())
			if err != nil {
				return err
			}
			messages = append(messages, msg)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan messages: %w", err)
	}
	return messages, nil
}

func (l *MessageLog) latest(room string) (time.Time, error) {
	var latest time.Time
	prefix := roomPrefix(room)

	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		it.Seek(append(append([]byte{}, prefix...), 0xff))
		if !it.ValidForPrefix(prefix) {
			return nil
		}
		msg, err := decode(it.Item())
		if err != nil {
			return err
		}
		latest = msg.CreatedAt
		return nil
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("scan latest message: %w", err)
	}
	return latest, nil
}

func decode(item *badger.Item) (*store.Message, error) {
	var rec record
	err := item.Value(func(val []byte) error {
		return cbor.Unmarshal(val, &rec)
	})
	if err != nil {
		return nil, fmt.Errorf("decode message %q: %w", item.Key(), err)
	}
	return &store.Message{
		ID:        rec.ID,
		Room:      rec.Room,
		Sender:    rec.Sender,
		Body:      rec.Body,
		CreatedAt: time.Unix(0, rec.CreatedAt).UTC(),
	}, nil
}

func roomPrefix(room string) []byte {
	return []byte("msg:" + hex.EncodeToString([]byte(room)) + ":")
}

func messageKey(room string, at time.Time, id int64) []byte {
	return fmt.Appendf(roomPrefix(room), "%019d:%020d", at.UnixNano(), id)
}
