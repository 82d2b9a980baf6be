package progress

import (
	"sync"
	"time"
)

// Options configures the simulated ramp.
type Options struct {
	Step     int           `json:"step" yaml:"step"`
	Interval time.Duration `json:"interval" yaml:"interval"`
	// Ceiling is the highest value reachable before Finish(true). It is kept below 100.
	Ceiling int `json:"ceiling" yaml:"ceiling"`
}

// DefaultOptions ramps by 10 every 500ms up to 90.
func DefaultOptions() Options {
	return Options{Step: 10, Interval: 500 * time.Millisecond, Ceiling: 90}
}

func (o Options) normalize() Options {
	d := DefaultOptions()
	if o.Step <= 0 {
		o.Step = d.Step
	}
	if o.Interval <= 0 {
		o.Interval = d.Interval
	}
	if o.Ceiling <= 0 {
		o.Ceiling = d.Ceiling
	}
	if o.Ceiling >= 100 {
		o.Ceiling = 99
	}
	return o
}

// Controller owns the progress percentage of one submission run.
// Between Start and Finish the percentage never decreases and never reaches 100.
type Controller struct {
	opts     Options
	onChange func(percent int)

	// emitMu orders change notifications; mu guards state. Listeners may call Percent.
	emitMu sync.Mutex
	mu     sync.Mutex

	percent int
	running bool
	ramping bool
	stop    chan struct{}
	done    chan struct{}
}

// NewController creates a controller. onChange may be nil.
func NewController(opts Options, onChange func(percent int)) *Controller {
	return &Controller{
		opts:     opts.normalize(),
		onChange: onChange,
	}
}

// Start resets the percentage to 0 and begins the ramp, cancelling any ramp already running.
func (c *Controller) Start() {
	c.stopRamp()

	stop := make(chan struct{})
	done := make(chan struct{})

	c.emitMu.Lock()
	c.mu.Lock()
	c.percent = 0
	c.running = true
	c.ramping = true
	c.stop = stop
	c.done = done
	c.mu.Unlock()
	c.emit(0)
	c.emitMu.Unlock()

	go c.ramp(stop, done)
}

// ReportReal merges genuine transfer progress. Values are capped at the ceiling
// and ignored when lower than the current percentage or when no run is active.
func (c *Controller) ReportReal(percent int) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	if percent > c.opts.Ceiling {
		percent = c.opts.Ceiling
	}
	if percent <= c.percent {
		c.mu.Unlock()
		return
	}
	c.percent = percent
	c.mu.Unlock()

	c.emit(percent)
}

// Finish stops the ramp and sets the percentage to 100 on success or 0 otherwise.
// It returns only after the ramp goroutine has exited.
func (c *Controller) Finish(success bool) {
	c.stopRamp()

	final := 0
	if success {
		final = 100
	}

	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	c.running = false
	c.percent = final
	c.mu.Unlock()

	c.emit(final)
}

// Percent returns the current percentage.
func (c *Controller) Percent() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.percent
}

// Ramping reports whether the ramp timer is active.
func (c *Controller) Ramping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ramping
}

func (c *Controller) stopRamp() {
	c.mu.Lock()
	stop, done := c.stop, c.done
	c.stop, c.done = nil, nil
	c.ramping = false
	c.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (c *Controller) ramp(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !c.advance(stop) {
				return
			}
		}
	}
}

// advance applies one ramp step and reports whether the ramp should keep going.
func (c *Controller) advance(stop <-chan struct{}) bool {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	select {
	case <-stop:
		return false
	default:
	}

	c.mu.Lock()
	next := c.percent + c.opts.Step
	if next > c.opts.Ceiling {
		next = c.opts.Ceiling
	}
	changed := next != c.percent
	c.percent = next
	atCeiling := next >= c.opts.Ceiling
	if atCeiling {
		c.ramping = false
	}
	c.mu.Unlock()

	if changed {
		c.emit(next)
	}
	return !atCeiling
}

func (c *Controller) emit(percent int) {
	if c.onChange != nil {
		c.onChange(percent)
	}
}
