package session

import "sync"

// playbackState tracks assistant audio between the event loop and the
// outbound writer. pending counts frames enqueued but not yet written (or
// skipped); version changes on every enqueue so the drain check can tell a
// queue that emptied and refilled from one that stayed empty.
type playbackState struct {
	mu            sync.Mutex
	currentTurn   string
	pending       int
	version       uint64
	canceled      map[string]bool
	canceledOrder []string
}

func newPlaybackState() *playbackState {
	return &playbackState{canceled: make(map[string]bool)}
}

// beginTurn names the assistant turn whose audio is about to stream. Earlier
// cancellations stay recorded so late frames from old turns are still dropped.
func (p *playbackState) beginTurn(turnID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.currentTurn = turnID
}

func (p *playbackState) turn() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentTurn
}

func (p *playbackState) enqueue() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending++
	p.version++
}

// frameDone is called by the writer for every dequeued audio frame, written
// or skipped.
func (p *playbackState) frameDone() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending > 0 {
		p.pending--
	}
}

const maxCanceledTurns = 64

// cancelTurn makes the writer drop every remaining frame of the turn. The
// cancellation set is bounded; the oldest entries are evicted in recording
// order once it fills.
func (p *playbackState) cancelTurn(turnID string) {
	if turnID == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.canceled[turnID] {
		return
	}
	p.canceled[turnID] = true
	p.canceledOrder = append(p.canceledOrder, turnID)
	if len(p.canceledOrder) > maxCanceledTurns {
		evict := p.canceledOrder[0]
		p.canceledOrder = p.canceledOrder[1:]
		delete(p.canceled, evict)
	}
}

func (p *playbackState) isCanceled(turnID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.canceled[turnID]
}

// observe returns the pending count and the enqueue version together, for
// the two-sample drain confirmation.
func (p *playbackState) observe() (pending int, version uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending, p.version
}
