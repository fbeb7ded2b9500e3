package store

import (
	"os"
	"time"
)

// CleanupError records a best-effort file removal that failed during expiry
// cleanup. Callers log these; they never abort the enclosing operation.
type CleanupError struct {
	ID  string
	Err error
}

// Sweep removes every record whose validity window has passed at now together
// with its backing files. File removals are best-effort; failures are
// collected and returned for logging. The store is persisted once at the end
// when at least one record was removed.
func (s *Store) Sweep(now time.Time) (removed []string, errs []CleanupError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, r := range s.records {
		if !r.Expired(now) {
			continue
		}
		errs = append(errs, s.removeLocked(id)...)
		removed = append(removed, id)
	}
	if len(removed) > 0 {
		if err := s.saveLocked(); err != nil {
			errs = append(errs, CleanupError{ID: "store", Err: err})
		}
	}
	return removed, errs
}

// Remove deletes a single record and its backing files, persisting the store
// before returning. Used for lazy cleanup when an expired id is accessed.
func (s *Store) Remove(id string) (errs []CleanupError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return nil
	}
	errs = s.removeLocked(id)
	if err := s.saveLocked(); err != nil {
		errs = append(errs, CleanupError{ID: "store", Err: err})
	}
	return errs
}

func (s *Store) removeLocked(id string) (errs []CleanupError) {
	r := s.records[id]
	for _, p := range []string{r.SourcePath, r.OutputPath} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			errs = append(errs, CleanupError{ID: id, Err: err})
		}
	}
	delete(s.records, id)
	return errs
}
