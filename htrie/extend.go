package htrie

import "fmt"

// ExtendRec appends one chunk of size bytes to rec's varlen chunk chain,
// returning the offset of the newly allocated chunk. A size below the
// oversize threshold (4096) is capped at one chunk's maximum payload
// (2048 bytes); see arena.DCache.AppendChunk. It is only meaningful
// in ModeVarlen; rec.DataOff must already address a chain allocated by a
// prior Insert.
func (s *Store) ExtendRec(rec Record, size int) (uint32, error) {
	if s.mode != ModeVarlen {
		return 0, fmt.Errorf("%w: extend_rec requires variable-length mode", ErrInvalidConfig)
	}
	if size <= 0 {
		return 0, ErrEmptyRecord
	}

	tailOff, err := s.dcache.Tail(rec.DataOff)
	if err != nil {
		return 0, fmt.Errorf("htrie: extend_rec: %w", err)
	}

	newOff, err := s.dcache.AppendChunk(tailOff, size)
	if err != nil {
		return 0, fmt.Errorf("htrie: extend_rec: %w", ErrOOM)
	}
	return newOff, nil
}
