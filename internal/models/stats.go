package models

import "time"

// HostStats aggregates the dashboard counters for one host.
type HostStats struct {
	Properties    int64
	Conversations int64
	Unread        int64
	Messages24h   int64
	LastActivity  *time.Time
}
