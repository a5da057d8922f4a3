package interop

// scope tracks device objects created through a context so that teardown
// releases each exactly once, newest first, on every exit path.
type scope struct {
	items []*scoped
}

// scoped is one tracked object.
type scoped struct {
	name    string
	release func()
	done    bool
}

func (s *scope) add(name string, release func()) *scoped {
	h := &scoped{name: name, release: release}
	s.items = append(s.items, h)
	return h
}

// Release releases the object if it has not been released yet.
func (h *scoped) Release() {
	if h == nil || h.done {
		return
	}
	h.done = true
	if h.release != nil {
		h.release()
	}
}

// live returns the number of objects not yet released.
func (s *scope) live() int {
	n := 0
	for _, h := range s.items {
		if !h.done {
			n++
		}
	}
	return n
}

// releaseAll releases every live object in reverse creation order.
func (s *scope) releaseAll() {
	for i := len(s.items) - 1; i >= 0; i-- {
		h := s.items[i]
		if !h.done {
			slogger().Debug("interop: release", "object", h.name)
		}
		h.Release()
	}
	s.items = nil
}
