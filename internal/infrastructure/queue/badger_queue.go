// Package queue keeps stage tasks in a Badger-backed visibility-timeout queue
// and runs them on a pool of polling workers.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"MarketNewsroom/internal/ports"
)

var (
	// ErrNoMessage is returned by Receive when nothing is visible.
	ErrNoMessage = errors.New("no message")
	// ErrAttemptsExhausted is the cause passed to the discard handler for expired messages.
	ErrAttemptsExhausted = errors.New("delivery attempts exhausted")
)

// DiscardHandler is told about every task the queue gives up on.
type DiscardHandler func(ctx context.Context, task ports.StageTask, cause error)

type storedMessage struct {
	ID           string          `json:"id"`
	Task         ports.StageTask `json:"task"`
	EnqueuedAt   time.Time       `json:"enqueued_at"`
	VisibleAt    time.Time       `json:"visible_at"`
	ReceiveCount int             `json:"receive_count"`
}

// Delivery is a received task. Task.Attempt equals the receive count.
type Delivery struct {
	ID   string
	Task ports.StageTask
}

// BadgerQueue stores messages at queue:{name}:msg:{id} and orders them through
// a visibility index at queue:{name}:index:{visibleAt}:{id}.
type BadgerQueue struct {
	db                *badger.DB
	name              string
	visibilityTimeout time.Duration
	maxReceive        int
	now               func() time.Time
	onDiscard         DiscardHandler
}

var _ ports.TaskQueue = (*BadgerQueue)(nil)

// NewBadgerQueue builds a queue on an open database.
func NewBadgerQueue(db *badger.DB, name string, visibilityTimeout time.Duration, maxReceive int) (*BadgerQueue, error) {
	if db == nil {
		return nil, errors.New("badger db is required")
	}
	if name == "" || strings.Contains(name, ":") {
		return nil, fmt.Errorf("invalid queue name %q", name)
	}
	if visibilityTimeout <= 0 {
		visibilityTimeout = 5 * time.Minute
	}
	if maxReceive <= 0 {
		maxReceive = 3
	}
	return &BadgerQueue{
		db:                db,
		name:              name,
		visibilityTimeout: visibilityTimeout,
		maxReceive:        maxReceive,
		now:               time.Now,
	}, nil
}

// OnDiscard registers fn to run after a task is dropped for good.
func (q *BadgerQueue) OnDiscard(fn DiscardHandler) { q.onDiscard = fn }

// Discard deletes a message whose task will not be retried and reports it.
func (q *BadgerQueue) Discard(ctx context.Context, id string, task ports.StageTask, cause error) error {
	if err := q.Delete(ctx, id); err != nil {
		return err
	}
	q.discarded(ctx, task, cause)
	return nil
}

func (q *BadgerQueue) discarded(ctx context.Context, task ports.StageTask, cause error) {
	if q.onDiscard != nil {
		q.onDiscard(context.WithoutCancel(ctx), task, cause)
	}
}

// MaxReceive is the number of deliveries a message gets before it is dropped.
func (q *BadgerQueue) MaxReceive() int { return q.maxReceive }

// Enqueue stores task as immediately visible.
func (q *BadgerQueue) Enqueue(ctx context.Context, task ports.StageTask) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := q.now()
	msg := storedMessage{
		ID:         uuid.New().String(),
		Task:       task,
		EnqueuedAt: now,
		VisibleAt:  now,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal queue message: %w", err)
	}

	return q.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(q.msgKey(msg.ID), data); err != nil {
			return err
		}
		return txn.Set(q.indexKey(msg.VisibleAt, msg.ID), nil)
	})
}

// Receive claims the oldest visible message and hides it for the visibility
// timeout. Messages already delivered maxReceive times are discarded.
func (q *BadgerQueue) Receive(ctx context.Context) (Delivery, error) {
	if err := ctx.Err(); err != nil {
		return Delivery{}, err
	}

	var (
		claimed storedMessage
		found   bool
		expired []ports.StageTask
	)
	err := q.db.Update(func(txn *badger.Txn) error {
		found, expired = false, nil
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := q.indexPrefix()
		it := txn.NewIterator(opts)
		defer it.Close()

		now := q.now()
		var oldIndex []byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			visibleAt, id, err := q.parseIndexKey(key)
			if err != nil {
				continue
			}
			if visibleAt.After(now) {
				break
			}

			msg, err := q.load(txn, id)
			if errors.Is(err, badger.ErrKeyNotFound) {
				if err := txn.Delete(key); err != nil {
					return err
				}
				continue
			}
			if err != nil {
				return err
			}
			if msg.ReceiveCount >= q.maxReceive {
				if err := txn.Delete(key); err != nil {
					return err
				}
				if err := txn.Delete(q.msgKey(id)); err != nil {
					return err
				}
				task := msg.Task
				task.Attempt = msg.ReceiveCount
				expired = append(expired, task)
				continue
			}

			claimed = msg
			oldIndex = key
			break
		}
		// purges above must commit even when nothing is claimed
		if oldIndex == nil {
			return nil
		}

		found = true
		claimed.ReceiveCount++
		claimed.VisibleAt = now.Add(q.visibilityTimeout)
		if err := q.store(txn, claimed); err != nil {
			return err
		}
		if err := txn.Delete(oldIndex); err != nil {
			return err
		}
		return txn.Set(q.indexKey(claimed.VisibleAt, claimed.ID), nil)
	})
	if err != nil {
		return Delivery{}, err
	}

	for _, task := range expired {
		q.discarded(ctx, task, ErrAttemptsExhausted)
	}
	if !found {
		return Delivery{}, ErrNoMessage
	}

	task := claimed.Task
	task.Attempt = claimed.ReceiveCount
	return Delivery{ID: claimed.ID, Task: task}, nil
}

// Delete removes an acknowledged message.
func (q *BadgerQueue) Delete(_ context.Context, id string) error {
	return q.db.Update(func(txn *badger.Txn) error {
		msg, err := q.load(txn, id)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := txn.Delete(q.indexKey(msg.VisibleAt, id)); err != nil {
			return err
		}
		return txn.Delete(q.msgKey(id))
	})
}

// Release makes a received message visible again after delay.
func (q *BadgerQueue) Release(_ context.Context, id string, delay time.Duration) error {
	return q.db.Update(func(txn *badger.Txn) error {
		msg, err := q.load(txn, id)
		if err != nil {
			return err
		}
		if err := txn.Delete(q.indexKey(msg.VisibleAt, id)); err != nil {
			return err
		}
		msg.VisibleAt = q.now().Add(delay)
		if err := q.store(txn, msg); err != nil {
			return err
		}
		return txn.Set(q.indexKey(msg.VisibleAt, id), nil)
	})
}

// Len counts stored messages, visible or not.
func (q *BadgerQueue) Len(_ context.Context) (int, error) {
	count := 0
	err := q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := q.indexPrefix()
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

func (q *BadgerQueue) load(txn *badger.Txn, id string) (storedMessage, error) {
	var msg storedMessage
	item, err := txn.Get(q.msgKey(id))
	if err != nil {
		return msg, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &msg)
	})
	return msg, err
}

func (q *BadgerQueue) store(txn *badger.Txn, msg storedMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return txn.Set(q.msgKey(msg.ID), data)
}

func (q *BadgerQueue) msgKey(id string) []byte {
	return []byte(fmt.Sprintf("queue:%s:msg:%s", q.name, id))
}

func (q *BadgerQueue) indexPrefix() []byte {
	return []byte(fmt.Sprintf("queue:%s:index:", q.name))
}

func (q *BadgerQueue) indexKey(visibleAt time.Time, id string) []byte {
	return []byte(fmt.Sprintf("queue:%s:index:%020d:%s", q.name, visibleAt.UnixNano(), id))
}

func (q *BadgerQueue) parseIndexKey(key []byte) (time.Time, string, error) {
	rest := strings.TrimPrefix(string(key), string(q.indexPrefix()))
	ts, id, ok := strings.Cut(rest, ":")
	if !ok || id == "" {
		return time.Time{}, "", fmt.Errorf("malformed index key %q", key)
	}
	nanos, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("malformed index key %q: %w", key, err)
	}
	return time.Unix(0, nanos), id, nil
}
