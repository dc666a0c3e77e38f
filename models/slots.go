package models

import "time"

// Slot is a bookable tutoring window owned by one provider. The hold fields
// form a soft lock with a TTL; they are absent whenever IsBooked is true.
type Slot struct {
	ID         string     `bson:"id" json:"id"`
	ProviderID string     `bson:"providerId" json:"providerId"`
	Start      time.Time  `bson:"start" json:"start"`
	End        time.Time  `bson:"end" json:"end"`
	Subject    string     `bson:"subject" json:"subject"`
	Level      string     `bson:"level" json:"level"`                                 // e.g. "gcse", "alevel"
	ExamBoards []string   `bson:"examBoards,omitempty" json:"examBoards,omitempty"` // e.g. "AQA", "Edexcel"
	IsBooked   bool       `bson:"isBooked" json:"isBooked"`
	BookedBy   string     `bson:"bookedBy,omitempty" json:"bookedBy,omitempty"` // booking that consumed the slot
	HoldBy     string     `bson:"holdBy,omitempty" json:"holdBy,omitempty"`
	HoldUntil  *time.Time `bson:"holdUntil,omitempty" json:"holdUntil,omitempty"`
	Version    int        `bson:"version" json:"version"`
}

// HoldLive reports whether the slot carries a hold that has not expired at now.
func (s *Slot) HoldLive(now time.Time) bool {
	return s.HoldBy != "" && s.HoldUntil != nil && s.HoldUntil.After(now)
}

// HoldExpired reports whether the slot carries a hold whose expiry has passed.
func (s *Slot) HoldExpired(now time.Time) bool {
	return s.HoldUntil != nil && !s.HoldUntil.After(now)
}

// ClearHold removes both hold fields.
func (s *Slot) ClearHold() {
	s.HoldBy = ""
	s.HoldUntil = nil
}

// Clone returns a deep copy so callers can mutate a slot inside a transaction
// without touching the stored document.
func (s *Slot) Clone() *Slot {
	if s == nil {
		return nil
	}
	c := *s
	if s.HoldUntil != nil {
		t := *s.HoldUntil
		c.HoldUntil = &t
	}
	if s.ExamBoards != nil {
		c.ExamBoards = append([]string(nil), s.ExamBoards...)
	}
	return &c
}
