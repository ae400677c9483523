package notification

import "github.com/securebank/txwatch/internal/domain"

// Subscribe registers a listener for newly recorded notifications. Delivery
// never blocks Record: when the channel buffer is full the push is dropped
// for that listener, and the entry is still available from List. The
// returned cancel func closes the channel and is safe to call more than once.
func (s *Sink) Subscribe(buffer int) (<-chan domain.Notification, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan domain.Notification, buffer)

	s.subsMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subsMu.Unlock()

	cancel := func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Close detaches all listeners. Used when the owning session ends.
func (s *Sink) Close() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for id, c := range s.subs {
		delete(s.subs, id)
		close(c)
	}
}

func (s *Sink) publish(n domain.Notification) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, c := range s.subs {
		select {
		case c <- n:
		default:
		}
	}
}
