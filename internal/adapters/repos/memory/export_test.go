package memory

// Reset empties the store and rewinds its id sequence so each conformance
// scenario starts from id 1.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.registrations)
	s.lastID = 0
}
