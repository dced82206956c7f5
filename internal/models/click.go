package models

import "time"

// ClickDayFormat is the layout used for daily click buckets. Buckets are
// computed in UTC so totals are stable regardless of server timezone.
const ClickDayFormat = "2006-01-02"

// ClickStat is the aggregated click count for one link on one UTC day.
// Individual click events are never stored.
type ClickStat struct {
	LinkID string `json:"link_id"`
	Day    string `json:"day"`
	Clicks int64  `json:"clicks"`
}

// ClickDay returns the UTC day bucket for the given time.
func ClickDay(t time.Time) string {
	return t.UTC().Format(ClickDayFormat)
}
