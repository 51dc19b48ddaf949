// Package sse implements the Server-Sent Events broker that pushes state
// snapshots to subscribers.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/starford/dagaz/internal/state"
)

// SnapshotFunc produces a fresh snapshot of the given kind. The broker calls
// it once per init and once per update broadcast.
type SnapshotFunc func(ctx context.Context, kind state.Kind) (any, error)

type subReq struct {
	kind state.Kind
	ch   chan []byte
}

type countReq struct {
	kind state.Kind
	resp chan int
}

// Broker manages snapshot subscriptions per state kind and broadcasts a
// freshly recomputed snapshot to each kind's subscribers whenever a batch
// commits.
//
// Concurrency model: a single internal event loop (goroutine) owns the
// subscriber registries. Public methods communicate with this loop through
// channels, so no mutexes are required. The loop also serializes snapshot
// computation with delivery, which gives each connection commit-ordered
// updates.
type Broker struct {
	snapshot SnapshotFunc

	subscribeCh   chan subReq
	unsubscribeCh chan chan []byte
	notifyCh      chan []state.Kind
	countReqCh    chan countReq

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker that computes snapshots with fn.
func NewBroker(fn SnapshotFunc) *Broker {
	b := &Broker{
		snapshot:      fn,
		subscribeCh:   make(chan subReq),
		unsubscribeCh: make(chan chan []byte),
		notifyCh:      make(chan []state.Kind, 256),
		countReqCh:    make(chan countReq),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[state.Kind]map[chan []byte]struct{})
	kindOf := make(map[chan []byte]state.Kind)

	format := func(event string, kind state.Kind) ([]byte, error) {
		snap, err := b.snapshot(context.Background(), kind)
		if err != nil {
			return nil, err
		}
		payload, err := json.Marshal(snap)
		if err != nil {
			return nil, err
		}
		return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event, payload)), nil
	}

	drop := func(ch chan []byte) {
		if kind, ok := kindOf[ch]; ok {
			delete(clients[kind], ch)
			delete(kindOf, ch)
			close(ch)
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range kindOf {
				close(ch)
			}
			return

		case req := <-b.subscribeCh:
			// One init event with a fresh snapshot before any update.
			msg, err := format("init", req.kind)
			if err != nil {
				slog.Error("sse: init snapshot failed",
					slog.String("kind", string(req.kind)),
					slog.String("error", err.Error()))
				close(req.ch)
				continue
			}
			req.ch <- msg
			if clients[req.kind] == nil {
				clients[req.kind] = make(map[chan []byte]struct{})
			}
			clients[req.kind][req.ch] = struct{}{}
			kindOf[req.ch] = req.kind

		case ch := <-b.unsubscribeCh:
			drop(ch)

		case kinds := <-b.notifyCh:
			// Coalesce everything queued into one dirty set. Updates are
			// full snapshots, so collapsing a backlog loses nothing: each
			// dirty kind gets one broadcast with the latest state.
			dirty := make(map[state.Kind]struct{}, len(kinds))
			for _, kind := range kinds {
				dirty[kind] = struct{}{}
			}
		drain:
			for {
				select {
				case more := <-b.notifyCh:
					for _, kind := range more {
						dirty[kind] = struct{}{}
					}
				default:
					break drain
				}
			}
			for _, kind := range []state.Kind{state.KindTask, state.KindApp, state.KindDisplay} {
				if _, ok := dirty[kind]; !ok {
					continue
				}
				if len(clients[kind]) == 0 {
					continue
				}
				msg, err := format("update", kind)
				if err != nil {
					slog.Error("sse: update snapshot failed",
						slog.String("kind", string(kind)),
						slog.String("error", err.Error()))
					continue
				}
				for ch := range clients[kind] {
					select {
					case ch <- msg:
					default:
						// Stuck subscriber: close it rather than block the
						// broadcast loop. The client must resubscribe.
						drop(ch)
					}
				}
			}

		case req := <-b.countReqCh:
			req.resp <- len(clients[req.kind])
		}
	}
}

// Close gracefully stops the broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a new client for the given kind and returns its
// channel. The first message on the channel is the init snapshot.
func (b *Broker) Subscribe(kind state.Kind) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subReq{kind: kind, ch: ch}:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of subscribers of the given kind.
func (b *Broker) ClientCount(kind state.Kind) int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- countReq{kind: kind, resp: resp}:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// StateChanged schedules an update broadcast for the given kinds. It is
// fire-and-forget: the mutation path is never blocked or failed by
// subscriber delivery. When the queue is full, the oldest pending entry is
// merged into this one, so the latest change is never the one lost.
func (b *Broker) StateChanged(kinds ...state.Kind) {
	if b.closed.Load() || len(kinds) == 0 {
		return
	}
	select {
	case b.notifyCh <- kinds:
		return
	case <-b.stopped:
		return
	default:
	}

	select {
	case old := <-b.notifyCh:
		kinds = mergeKinds(old, kinds)
	default:
	}
	select {
	case b.notifyCh <- kinds:
	case <-b.stopped:
	default:
		slog.Warn("sse: notify queue full, dropping broadcast")
	}
}

func mergeKinds(a, b []state.Kind) []state.Kind {
	seen := make(map[state.Kind]struct{}, len(a)+len(b))
	out := make([]state.Kind, 0, len(a)+len(b))
	for _, k := range append(a, b...) {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// Handler returns the SSE endpoint handler for one snapshot kind.
func (b *Broker) Handler(kind state.Kind) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		ch := b.Subscribe(kind)
		defer b.Unsubscribe(ch)

		ctx := r.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				_, _ = w.Write(msg)
				flusher.Flush()
			}
		}
	})
}
