package cache

import "time"

// SetClock replaces the store's time source.
func SetClock(s *Store, now func() time.Time) {
	s.now = now
}

// SetSchemaVersion overwrites the recorded schema version.
func SetSchemaVersion(s *Store, version int) error {
	_, err := s.db.Exec("UPDATE schema_version SET version = ?", version)
	return err
}
