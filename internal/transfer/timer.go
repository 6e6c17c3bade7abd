package transfer

import "time"

// stepTimer is a restartable timer. A zero duration disables it, in which
// case C never fires.
type stepTimer struct {
	d     time.Duration
	t     *time.Timer
	armed bool
}

func newStepTimer(d time.Duration) *stepTimer {
	return &stepTimer{d: d}
}

func (st *stepTimer) C() <-chan time.Time {
	if st.t == nil {
		return nil
	}
	return st.t.C
}

func (st *stepTimer) reset() {
	if st.d <= 0 {
		return
	}
	st.armed = true
	if st.t == nil {
		st.t = time.NewTimer(st.d)
		return
	}
	st.t.Reset(st.d)
}

// restart re-arms the timer only when progress was made or it is not
// running yet, so traffic that changes nothing cannot keep a stalled
// transfer alive.
func (st *stepTimer) restart(progressed bool) {
	if progressed || !st.armed {
		st.reset()
	}
}

func (st *stepTimer) stop() {
	st.armed = false
	if st.t != nil {
		st.t.Stop()
	}
}
