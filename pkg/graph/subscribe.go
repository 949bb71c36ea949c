package graph

// Subscribe registers a listener for notifications. The returned cancel func
// unregisters it and closes the channel. Notifications are dropped for a
// subscriber whose buffer is full.
func (s *Store) Subscribe() (<-chan Notification, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan Notification, s.subBuffer)
	s.subs[id] = ch

	var once bool
	return ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if once {
			return
		}
		once = true
		delete(s.subs, id)
		close(ch)
	}
}

func (s *Store) broadcast(n Notification) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- n:
		default:
			s.logger.Debug("subscriber buffer full, notification dropped", "revision", n.Revision)
		}
	}
}
