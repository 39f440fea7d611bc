package cssstyle

import "sync/atomic"

// share is a declaration value with a Destroy hook. The layer or query that
// compiled the value holds the first reference and every Style that resolved
// it holds one more. The last holder to let go destroys the value.
type share struct {
	value Value
	ptype *PropertyType
	refs  atomic.Int32
}

func newShare(v Value, pt *PropertyType) *share {
	if pt == nil || pt.Destroy == nil {
		return nil
	}
	s := &share{value: v, ptype: pt}
	s.refs.Store(1)
	return s
}

func (s *share) acquire() {
	if s != nil {
		s.refs.Add(1)
	}
}

func (s *share) release() {
	if s != nil && s.refs.Add(-1) == 0 {
		s.ptype.Destroy(s.value)
	}
}

// styleRefs are the shares held by one Style.
type styleRefs struct {
	done   atomic.Bool
	shares []*share
}

func (r *styleRefs) drop() {
	if r.done.Swap(true) {
		return
	}
	for _, s := range r.shares {
		s.release()
	}
}
