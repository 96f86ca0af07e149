package store

import (
	"sort"
	"sync"
	"time"

	"github.com/AngelCh415/adforecast/internal/models"
)

type MemoryStore struct {
	mu      sync.RWMutex
	days    map[time.Time]models.DailyRecord
	version uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{days: make(map[time.Time]models.DailyRecord)}
}

// Upsert stores r under its UTC calendar day, replacing any earlier record
// for that day. It reports whether the day was new.
func (s *MemoryStore) Upsert(r models.DailyRecord) bool {
	r.Date = Day(r.Date)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.days[r.Date]
	s.days[r.Date] = r
	s.version++
	return !existed
}

// Version changes on every write; callers use it to key derived results.
func (s *MemoryStore) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.days)
}

// All returns every record ordered by date.
func (s *MemoryStore) All() []models.DailyRecord {
	s.mu.RLock()
	out := make([]models.DailyRecord, 0, len(s.days))
	for _, v := range s.days {
		out = append(out, v)
	}
	s.mu.RUnlock()
	sortByDate(out)
	return out
}

// Query returns the records in [from, to] ordered by date. A zero bound is open.
func (s *MemoryStore) Query(from, to time.Time, f func(models.DailyRecord) bool) []models.DailyRecord {
	s.mu.RLock()
	var out []models.DailyRecord
	for d, v := range s.days {
		if !from.IsZero() && d.Before(Day(from)) {
			continue
		}
		if !to.IsZero() && d.After(Day(to)) {
			continue
		}
		if f == nil || f(v) {
			out = append(out, v)
		}
	}
	s.mu.RUnlock()
	sortByDate(out)
	return out
}

// Range returns the first and last stored day.
func (s *MemoryStore) Range() (first, last time.Time, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for d := range s.days {
		if !ok || d.Before(first) {
			first = d
		}
		if !ok || d.After(last) {
			last = d
		}
		ok = true
	}
	return first, last, ok
}

// Gaps lists the days between the first and last record that have no record.
func (s *MemoryStore) Gaps() []time.Time {
	first, last, ok := s.Range()
	if !ok {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var gaps []time.Time
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		if _, ok := s.days[d]; !ok {
			gaps = append(gaps, d)
		}
	}
	return gaps
}

// Contiguous fills every gap day with a record whose clicks are missing (NaN)
// and other counters zero, so weekly buckets line up with calendar weeks.
func Contiguous(recs []models.DailyRecord, missing float64) []models.DailyRecord {
	if len(recs) == 0 {
		return nil
	}
	sorted := append([]models.DailyRecord(nil), recs...)
	sortByDate(sorted)
	out := make([]models.DailyRecord, 0, len(sorted))
	next := Day(sorted[0].Date)
	for _, r := range sorted {
		d := Day(r.Date)
		for next.Before(d) {
			out = append(out, models.DailyRecord{Date: next, Clicks: missing})
			next = next.AddDate(0, 0, 1)
		}
		if d.Before(next) {
			continue // duplicate day
		}
		out = append(out, r)
		next = d.AddDate(0, 0, 1)
	}
	return out
}

// Series extracts one field from recs; ok is false for an unknown field.
func Series(recs []models.DailyRecord, field string) ([]float64, bool) {
	out := make([]float64, len(recs))
	for i, r := range recs {
		v, ok := r.Value(field)
		if !ok {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sortByDate(rs []models.DailyRecord) {
	sort.Slice(rs, func(i, j int) bool { return rs[i].Date.Before(rs[j].Date) })
}
