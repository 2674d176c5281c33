package domain

import "time"

// Note represents a single comment on an issue. Notes are append-only
// from the engine's point of view: the rules create and delete their
// own notes but never touch anyone else's.
type Note struct {
	ID        int
	Author    User
	Body      string
	System    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
