package timing

import "time"

// Delayer blocks for a number of microseconds.
// ICSP setup/hold windows are a few microseconds wide, so implementations
// must not yield to the scheduler for short waits.
type Delayer interface {
	DelayMicroseconds(us int)
}

// NewNoOpDelayer returns a delayer that never waits (for simulated targets).
func NewNoOpDelayer() Delayer {
	return &noOpDelayer{}
}

type noOpDelayer struct{}

func (n *noOpDelayer) DelayMicroseconds(us int) {}

// sleepThreshold is the wait length above which BusyWait sleeps for the
// bulk of the interval before spinning.
const sleepThreshold = 2 * time.Millisecond

// BusyWait combines sleep for efficiency with busy-waiting for accuracy.
type BusyWait struct{}

func NewBusyWait() *BusyWait {
	return &BusyWait{}
}

func (b *BusyWait) DelayMicroseconds(us int) {
	if us <= 0 {
		return
	}

	d := time.Duration(us) * time.Microsecond
	deadline := time.Now().Add(d)

	if d >= sleepThreshold {
		time.Sleep(d - time.Millisecond)
	}
	for time.Now().Before(deadline) {
		// busy-wait, higher accuracy.
	}
}

// Virtual is a simulated clock: waits advance it instead of blocking.
type Virtual struct {
	elapsed time.Duration
}

func (v *Virtual) DelayMicroseconds(us int) {
	if us > 0 {
		v.elapsed += time.Duration(us) * time.Microsecond
	}
}

// Elapsed returns the total simulated time waited so far.
func (v *Virtual) Elapsed() time.Duration {
	return v.elapsed
}

func (v *Virtual) Reset() {
	v.elapsed = 0
}
