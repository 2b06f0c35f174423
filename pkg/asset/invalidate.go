// invalidate.go - media_updated_at signals. Admin uploads publish one; every resolver
// watching the channel drops its caches.
package asset

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the signal name shared by publishers and watchers.
const DefaultChannel = "media_updated_at"

// Invalidator delivers media update signals.
type Invalidator interface {
	// Signals streams one value per update until ctx is done.
	Signals(ctx context.Context) (<-chan struct{}, error)
	// Publish announces an update to every watcher.
	Publish(ctx context.Context) error
}

// ── In-process ──

// LocalInvalidator fans signals out to in-process watchers.
type LocalInvalidator struct {
	mu   sync.Mutex
	subs map[chan struct{}]struct{}
}

// NewLocalInvalidator creates an empty in-process invalidator.
func NewLocalInvalidator() *LocalInvalidator {
	return &LocalInvalidator{subs: make(map[chan struct{}]struct{})}
}

func (l *LocalInvalidator) Signals(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	l.mu.Lock()
	l.subs[ch] = struct{}{}
	l.mu.Unlock()

	go func() {
		<-ctx.Done()
		l.mu.Lock()
		delete(l.subs, ch)
		l.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

func (l *LocalInvalidator) Publish(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ch := range l.subs {
		// A pending signal already covers this one.
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

// ── Redis pub/sub ──

// RedisInvalidator carries signals over a Redis pub/sub channel so every server
// instance sees uploads made through any of them.
type RedisInvalidator struct {
	client  *redis.Client
	channel string
}

// NewRedisInvalidator creates an invalidator on channel (DefaultChannel when empty).
func NewRedisInvalidator(client *redis.Client, channel string) *RedisInvalidator {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisInvalidator{client: client, channel: channel}
}

func (r *RedisInvalidator) Signals(ctx context.Context) (<-chan struct{}, error) {
	sub := r.client.Subscribe(ctx, r.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", r.channel, err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}

func (r *RedisInvalidator) Publish(ctx context.Context) error {
	stamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	if err := r.client.Publish(ctx, r.channel, stamp).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", r.channel, err)
	}
	return nil
}
