package hardware

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"sync"
)

// ErrWorkerClosed is returned for requests submitted after Close.
var ErrWorkerClosed = errors.New("register worker closed")

// transact runs one command over an already open session.
func transact(s Session, cmd Command) (int64, error) {
	reply, err := s.Call(cmd.Payload())
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", cmd.Mode, cmd, err)
	}
	return ParseReply(reply)
}

// AdhocChannel opens a fresh session for every transaction. Sessions cannot
// move between threads, so nothing is cached.
type AdhocChannel struct {
	open SessionOpener
}

// NewAdhocChannel returns a channel that uses open for each transaction.
func NewAdhocChannel(open SessionOpener) *AdhocChannel {
	return &AdhocChannel{open: open}
}

// Transact opens a session, performs exactly one exchange and closes it.
func (c *AdhocChannel) Transact(cmd Command) (int64, error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	s, err := c.open()
	if err != nil {
		return 0, err
	}
	defer s.Close()
	return transact(s, cmd)
}

type workerReq struct {
	cmd   Command
	reply chan workerResp // nil for fire-and-forget commands
}

type workerResp struct {
	value int64
	err   error
}

// Worker owns one session on one OS thread for its whole lifetime and
// serves commands from a queue.
type Worker struct {
	open  SessionOpener
	reqQ  chan workerReq
	done  chan struct{}
	ready chan error

	closeOnce sync.Once
	cancel    context.CancelFunc
}

// NewWorker creates a worker with a request queue of size queue.
func NewWorker(open SessionOpener, queue int) *Worker {
	if queue <= 0 {
		queue = 8
	}
	return &Worker{
		open:  open,
		reqQ:  make(chan workerReq, queue),
		done:  make(chan struct{}),
		ready: make(chan error, 1),
	}
}

// Start launches the owner goroutine and waits until its session is open.
func (w *Worker) Start(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)
	go w.run(ctx)
	select {
	case err := <-w.ready:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	s, err := w.open()
	w.ready <- err
	if err != nil {
		return
	}
	defer s.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-w.reqQ:
			v, err := transact(s, req.cmd)
			if req.reply != nil {
				req.reply <- workerResp{value: v, err: err}
				continue
			}
			if err != nil {
				log.Printf("Register worker: %v", err)
			} else {
				log.Printf("Register worker: %s -> %d", req.cmd, v)
			}
		}
	}
}

// Submit queues a command whose reply is only logged. It returns false when
// the queue is full or the worker has stopped.
func (w *Worker) Submit(cmd Command) bool {
	select {
	case <-w.done:
		return false
	default:
	}
	select {
	case w.reqQ <- workerReq{cmd: cmd}:
		return true
	default:
		return false
	}
}

// Transact sends cmd to the owner thread and waits for its reply.
func (w *Worker) Transact(cmd Command) (int64, error) {
	reply := make(chan workerResp, 1)
	select {
	case w.reqQ <- workerReq{cmd: cmd, reply: reply}:
	case <-w.done:
		return 0, ErrWorkerClosed
	}
	select {
	case r := <-reply:
		return r.value, r.err
	case <-w.done:
		return 0, ErrWorkerClosed
	}
}

// Close stops the owner goroutine and waits for its session to close.
func (w *Worker) Close() {
	w.closeOnce.Do(func() {
		if w.cancel != nil {
			w.cancel()
			<-w.done
		}
	})
}
