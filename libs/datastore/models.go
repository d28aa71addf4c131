package datastore

import "time"

// Timestamps are the created/updated bookkeeping fields carried by persisted
// records. Writes go through the Touch helpers rather than each datastore
// maintaining the fields by hand.
type Timestamps struct {
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Timestamped is implemented by records carrying Timestamps.
type Timestamped interface {
	SetCreatedAt(time.Time)
	SetUpdatedAt(time.Time)
}

// SetCreatedAt sets the creation time
func (t *Timestamps) SetCreatedAt(at time.Time) {
	t.CreatedAt = at
}

// SetUpdatedAt sets the last update time
func (t *Timestamps) SetUpdatedAt(at time.Time) {
	t.UpdatedAt = at
}

// TouchCreate stamps both timestamps for a fresh insert
func TouchCreate(r Timestamped) {
	now := time.Now().UTC()
	r.SetCreatedAt(now)
	r.SetUpdatedAt(now)
}

// TouchUpdate stamps the update timestamp ahead of a write
func TouchUpdate(r Timestamped) {
	r.SetUpdatedAt(time.Now().UTC())
}
