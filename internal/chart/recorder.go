package chart

import "sync"

// Recorder is an Engine that draws nothing and records every call. It backs
// controller and API tests.
type Recorder struct {
	mu     sync.Mutex
	charts []*RecordedChart
	// Err, when set, makes Generate fail.
	Err error
}

// Generate records cfg and returns a RecordedChart.
func (r *Recorder) Generate(cfg Config) (Chart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	st, err := newState(cfg)
	if err != nil {
		return nil, err
	}
	c := &RecordedChart{state: st, mu: &r.mu}
	r.charts = append(r.charts, c)
	return c, nil
}

// Charts returns every chart generated so far.
func (r *Recorder) Charts() []*RecordedChart {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*RecordedChart(nil), r.charts...)
}

// Last returns the most recently generated chart, or nil.
func (r *Recorder) Last() *RecordedChart {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.charts) == 0 {
		return nil
	}
	return r.charts[len(r.charts)-1]
}

// RecordedChart keeps the calls made against one generated chart.
type RecordedChart struct {
	*state
	mu          *sync.Mutex
	loadCalls   []LoadRequest
	updateCalls []UpdateDescriptor
	destroyCall bool
}

func (c *RecordedChart) Load(req LoadRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadCalls = append(c.loadCalls, req)
	c.load(req)
	return nil
}

func (c *RecordedChart) Update(d UpdateDescriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updateCalls = append(c.updateCalls, d)
	c.update(d)
}

func (c *RecordedChart) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

func (c *RecordedChart) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.destroyCall = true
}

// Config returns the configuration the chart was generated with.
func (c *RecordedChart) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// Loads returns the recorded loads in call order.
func (c *RecordedChart) Loads() []LoadRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]LoadRequest(nil), c.loadCalls...)
}

// Updates returns the recorded updates in call order.
func (c *RecordedChart) Updates() []UpdateDescriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]UpdateDescriptor(nil), c.updateCalls...)
}

// Destroyed reports whether Destroy was called.
func (c *RecordedChart) Destroyed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyCall
}
