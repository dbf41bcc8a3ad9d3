package model

import (
	"encoding/json"
	"time"
)

// OnlineTimeout is how recently a session must have been seen to count as online.
const OnlineTimeout = 120 * time.Second

// PlayerSession is the last-known state of one player behind a user key.
type PlayerSession struct {
	UserKey      string   `json:"-"`
	PlayerID     int64    `json:"-"`
	PublicID     string   `json:"public_id"`
	Username     string   `json:"username"`
	LastSeen     int64    `json:"last_seen"`
	CurrentHoney *float64 `json:"current_honey"`
}

// LeaderboardEntry is one ranked user.
type LeaderboardEntry struct {
	Rank         int     `json:"rank"`
	PublicID     string  `json:"public_id"`
	Username     string  `json:"username"`
	Score        float64 `json:"score"`
	LastActivity int64   `json:"last_activity"`
}

// SharedConfig is a published configuration blob.
type SharedConfig struct {
	Key       string          `json:"key" bson:"_id"`
	UserKey   string          `json:"-" bson:"user_key"`
	Payload   json.RawMessage `json:"config" bson:"payload"`
	CreatedAt int64           `json:"created_at" bson:"created_at"`
}

// Command is a queued control command for the automation script.
type Command struct {
	ID        string          `json:"id"`
	Payload   json.RawMessage `json:"command"`
	CreatedAt int64           `json:"created_at"`
}

// ControlState is the latest state reported for a user key.
type ControlState struct {
	State     json.RawMessage `json:"state"`
	UpdatedAt int64           `json:"updated_at"`
}
