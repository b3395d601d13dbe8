// Package progress carries the status of long running transfers to the user
// or to a controlling program.
package progress

// Reporter receives whole percent steps of a running operation.
type Reporter interface {
	Progress(percent int)
	Done()
}

// Nop discards all progress.
type Nop struct{}

func (Nop) Progress(int) {}
func (Nop) Done()        {}

// Recorder keeps every reported value. It is meant for tests.
type Recorder struct {
	Values []int
	Dones  int
}

func (r *Recorder) Progress(percent int) {
	r.Values = append(r.Values, percent)
}

func (r *Recorder) Done() {
	r.Dones++
}

// Tracker turns done/total counters into a non-decreasing sequence of
// percentages without repeats, clamped to 0..100.
type Tracker struct {
	reporter Reporter
	last     int
}

func NewTracker(reporter Reporter) *Tracker {
	if reporter == nil {
		reporter = Nop{}
	}
	return &Tracker{reporter: reporter, last: -1}
}

// Start reports 0%.
func (t *Tracker) Start() {
	t.emit(0)
}

// Update reports done/total if it crossed a whole percent boundary.
func (t *Tracker) Update(done, total int) {
	if total <= 0 {
		return
	}
	t.emit(done * 100 / total)
}

// Finish reports 100% (if not reported yet) followed by Done.
func (t *Tracker) Finish() {
	t.emit(100)
	t.reporter.Done()
}

// Done ends the operation without forcing 100%.
func (t *Tracker) Done() {
	t.reporter.Done()
}

func (t *Tracker) emit(percent int) {
	if percent > 100 {
		percent = 100
	}
	if percent <= t.last {
		return
	}
	t.last = percent
	t.reporter.Progress(percent)
}
