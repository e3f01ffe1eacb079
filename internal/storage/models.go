package storage

import "time"

// User is someone who has talked to the bot at least once.
type User struct {
	TGID      int64
	Username  string
	FirstSeen time.Time
}

// GroupTarget binds a label type to the chat that receives its files.
type GroupTarget struct {
	Label  string
	ChatID int64
}
