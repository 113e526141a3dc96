package telegram

import (
	"context"
	"sync"
	"time"
)

// captureKey identifies a force-reply prompt: replies are matched by the
// chat they arrive in and the prompt they answer.
type captureKey struct {
	chatID    int64
	messageID int
}

type replyHandler func(b *Bot, ctx context.Context, ev *event) (responses, error)

type pendingReply struct {
	handler replyHandler
	timer   *time.Timer
}

// replyRegistry holds one-shot reply handlers. An entry is removed when its
// reply is taken or when its ttl runs out, whichever comes first.
type replyRegistry struct {
	mu      sync.Mutex
	ttl     time.Duration
	pending map[captureKey]*pendingReply
}

func newReplyRegistry(ttl time.Duration) *replyRegistry {
	return &replyRegistry{
		ttl:     ttl,
		pending: make(map[captureKey]*pendingReply),
	}
}

func (r *replyRegistry) arm(key captureKey, h replyHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.pending[key]; ok {
		old.timer.Stop()
	}
	p := &pendingReply{handler: h}
	p.timer = time.AfterFunc(r.ttl, func() { r.expire(key, p) })
	r.pending[key] = p
}

// take removes and returns the handler waiting on key.
func (r *replyRegistry) take(key captureKey) (replyHandler, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pending[key]
	if !ok {
		return nil, false
	}
	p.timer.Stop()
	delete(r.pending, key)
	return p.handler, true
}

func (r *replyRegistry) expire(key captureKey, p *pendingReply) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// the key may have been re-armed since this timer started
	if r.pending[key] == p {
		delete(r.pending, key)
	}
}

func (r *replyRegistry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

func (r *replyRegistry) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, p := range r.pending {
		p.timer.Stop()
		delete(r.pending, key)
	}
}
