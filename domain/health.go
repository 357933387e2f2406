package domain

import "time"

// HealthSnapshot is the last process and presence sample taken by the heartbeat.
type HealthSnapshot struct {
	PID           int32          `json:"pid"`
	ProcessStatus string         `json:"processStatus"`
	CPUPercent    float64        `json:"cpuPercent"`
	RSSBytes      uint64         `json:"rssBytes"`
	Presence      map[Status]int `json:"presence"`
	SampledAt     time.Time      `json:"sampledAt"`
}
