package systems

import (
	"runtime"
	"sync"
)

// parallelRowThreshold is the minimum grid height to shard diffusion.
// Below this, single-threaded is faster due to goroutine overhead.
const parallelRowThreshold = 64

// rowChunk represents a range of rows for a worker to diffuse.
type rowChunk struct {
	f      *Field
	y0, y1 int
	rate   float32
}

// rowPool is a persistent set of diffusion workers. Every worker reads only
// the pre-pass grid and writes disjoint rows of the scratch buffer, so the
// result does not depend on scheduling.
type rowPool struct {
	numWorkers int

	workChan chan rowChunk  // sends work to workers
	doneChan chan struct{}  // workers signal completion
	stopChan chan struct{}  // signals workers to exit
	wg       sync.WaitGroup // tracks active workers
	running  bool
}

func newRowPool(n int) *rowPool {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	return &rowPool{numWorkers: n}
}

// start launches persistent worker goroutines.
func (p *rowPool) start() {
	if p.running {
		return
	}

	p.workChan = make(chan rowChunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// stop signals all workers to exit and waits for them.
func (p *rowPool) stop() {
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

func (p *rowPool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			chunk.f.diffuseRows(chunk.y0, chunk.y1, chunk.rate)
			p.doneChan <- struct{}{}
		}
	}
}

// run diffuses all interior rows of f and blocks until every chunk is done.
func (p *rowPool) run(f *Field, rate float32) {
	p.start()

	rows := f.H - 2
	chunkSize := (rows + p.numWorkers - 1) / p.numWorkers
	if chunkSize < 1 {
		chunkSize = 1
	}

	sent := 0
	for y := 1; y < f.H-1; y += chunkSize {
		end := y + chunkSize
		if end > f.H-1 {
			end = f.H - 1
		}
		p.workChan <- rowChunk{f: f, y0: y, y1: end, rate: rate}
		sent++
	}

	for i := 0; i < sent; i++ {
		<-p.doneChan
	}
}
