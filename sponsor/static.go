package sponsor

import (
	"context"
	"time"
)

// StaticInventory serves a fixed list of records, first active one wins.
type StaticInventory struct {
	records []Record
}

func NewStaticInventory(records ...Record) *StaticInventory {
	return &StaticInventory{records: records}
}

func (s *StaticInventory) CheckActive(_ context.Context, now time.Time) (Availability, error) {
	for _, r := range s.records {
		if r.ActiveAt(now) {
			ad := r
			return Availability{Available: true, Ad: &ad}, nil
		}
	}
	return Availability{}, nil
}
