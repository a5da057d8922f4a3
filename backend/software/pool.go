package software

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// groupPool runs work-groups on a fixed set of goroutines.
//
// Each worker owns a queue and steals from the others when its own runs
// dry, so uneven groups (the last, partial group of a domain) do not leave
// workers idle.
type groupPool struct {
	workers int
	queues  []chan func()
	done    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool
}

// newGroupPool starts a pool. Zero or negative workers means GOMAXPROCS.
func newGroupPool(workers int) *groupPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	depth := max(workers*4, 8)

	p := &groupPool{
		workers: workers,
		queues:  make([]chan func(), workers),
		done:    make(chan struct{}),
	}
	for i := range p.queues {
		p.queues[i] = make(chan func(), depth)
	}
	p.running.Store(true)

	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

func (p *groupPool) worker(id int) {
	defer p.wg.Done()
	own := p.queues[id]
	for {
		select {
		case <-p.done:
			p.drain(own)
			return
		case fn := <-own:
			fn()
		default:
			if fn := p.steal(id); fn != nil {
				fn()
				continue
			}
			select {
			case <-p.done:
				p.drain(own)
				return
			case fn := <-own:
				fn()
			}
		}
	}
}

func (p *groupPool) drain(q chan func()) {
	for {
		select {
		case fn := <-q:
			fn()
		default:
			return
		}
	}
}

func (p *groupPool) steal(id int) func() {
	for i := range p.workers {
		if i == id {
			continue
		}
		select {
		case fn := <-p.queues[i]:
			return fn
		default:
		}
	}
	return nil
}

// run calls fn(i) for every i in [0, n) and waits. It returns false when
// the pool was closed before every call was scheduled; calls that were
// not scheduled do not run.
func (p *groupPool) run(n int, fn func(i int)) bool {
	if n == 0 {
		return true
	}
	if !p.running.Load() {
		return false
	}

	var wg sync.WaitGroup
	wg.Add(n)
	ok := true
	for i := range n {
		task := func() {
			defer wg.Done()
			fn(i)
		}
		select {
		case p.queues[i%p.workers] <- task:
		case <-p.done:
			ok = false
			wg.Done()
		}
	}
	wg.Wait()
	return ok
}

// Workers returns the number of worker goroutines.
func (p *groupPool) Workers() int { return p.workers }

// close stops the workers after queued groups have run. It is idempotent.
func (p *groupPool) close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}
