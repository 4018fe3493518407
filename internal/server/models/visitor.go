package models

import "time"

// Visit is one recorded page view.
type Visit struct {
	ID        string    `json:"id"`
	IP        string    `json:"ip"`
	Path      string    `json:"path"`
	UserAgent string    `json:"userAgent,omitempty"`
	Referrer  string    `json:"referrer,omitempty"`
	SessionID string    `json:"sessionId"`
	Device    string    `json:"device"`
	Browser   string    `json:"browser"`
	OS        string    `json:"os"`
	CreatedAt time.Time `json:"createdAt"`
}

type DailyVisits struct {
	Day      time.Time `json:"day"`
	Views    int64     `json:"views"`
	Visitors int64     `json:"visitors"`
}

type PathVisits struct {
	Path  string `json:"path"`
	Views int64  `json:"views"`
}

// VisitSummary aggregates visits over the trailing Days days. A visitor is a
// distinct IP per UTC calendar day.
type VisitSummary struct {
	Days           int           `json:"days"`
	TotalViews     int64         `json:"totalViews"`
	UniqueVisitors int64         `json:"uniqueVisitors"`
	Daily          []DailyVisits `json:"daily"`
	TopPaths       []PathVisits  `json:"topPaths"`
}
