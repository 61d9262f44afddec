package editor

// ============================================================
// Sides
// ============================================================

// SetActiveSide переключает сторону: видимы и выбираемы ровно объекты
// новой стороны, выделение снимается безусловно.
func (s *Session) SetActiveSide(side Side) error {
	if !side.Valid() {
		return invalid("side", "must be front or back")
	}
	s.applySide(side)
	s.log.Debug("active side changed", "side", side)
	return nil
}

func (s *Session) applySide(side Side) {
	s.engine.Batch(func() {
		for _, obj := range s.engine.Objects() {
			tag, ok := s.tags.TagFor(obj.Handle)
			on := ok && tag.Side == side
			_ = s.engine.SetFlags(obj.Handle, on, on)
		}
		s.engine.Deselect()
		s.activeSide = side
	})
}
