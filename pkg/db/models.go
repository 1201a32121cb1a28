package db

import "time"

// Record is a row of the key-value table.
type Record struct {
	Key       string
	Value     []byte
	UpdatedAt time.Time
}

// UpdateRun is an audit row written after each knowledge cache update that
// processed at least one study event.
type UpdateRun struct {
	ID        int64     `json:"id"`
	RanAt     time.Time `json:"ran_at"`
	Watermark time.Time `json:"watermark"`
	Eligible  int       `json:"eligible"`
	Matched   int       `json:"matched"`
	Added     int       `json:"added"`
}
