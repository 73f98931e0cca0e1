package vm

import "time"

// Clock is the time source that paces the execution loop.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// cadence converts elapsed time into a count of whole periods of a fixed
// rate, and back.
type cadence struct {
	hz int
}

func (c cadence) periods(elapsed time.Duration) uint64 {
	if elapsed <= 0 {
		return 0
	}
	hz := uint64(c.hz)
	sec, rem := uint64(elapsed/time.Second), uint64(elapsed%time.Second)
	return sec*hz + rem*hz/uint64(time.Second)
}

// at is the earliest offset by which n periods have elapsed. It rounds up
// so that periods(at(n)) == n.
func (c cadence) at(n uint64) time.Duration {
	hz := uint64(c.hz)
	sec, rem := n/hz, n%hz
	return time.Duration(sec)*time.Second + time.Duration((rem*uint64(time.Second)+hz-1)/hz)
}
