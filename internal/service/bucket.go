package service

import (
	"sort"
	"time"

	"github.com/pesio-ai/be-app-crm/internal/repository"
)

// Buckets classifies leads by their latest follow-up
type Buckets struct {
	Today     []*repository.LeadDetail `json:"todays_calls"`
	Pending   []*repository.LeadDetail `json:"pending_calls"`
	Upcoming  []*repository.LeadDetail `json:"upcoming_calls"`
	Completed []*repository.LeadDetail `json:"completed_calls"`
}

// LatestPerLead keeps the highest-id detail of each lead
func LatestPerLead(details []*repository.LeadDetail) []*repository.LeadDetail {
	latest := make(map[int64]*repository.LeadDetail, len(details))
	for _, d := range details {
		if cur, ok := latest[d.LeadID]; !ok || d.ID > cur.ID {
			latest[d.LeadID] = d
		}
	}

	out := make([]*repository.LeadDetail, 0, len(latest))
	for _, d := range latest {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// BucketDetails sorts each lead into at most one call queue using its latest
// detail. Dates are compared as calendar days in loc.
func BucketDetails(details []*repository.LeadDetail, now time.Time, loc *time.Location) Buckets {
	b := Buckets{
		Today:     []*repository.LeadDetail{},
		Pending:   []*repository.LeadDetail{},
		Upcoming:  []*repository.LeadDetail{},
		Completed: []*repository.LeadDetail{},
	}
	today := calendarDay(now, loc)

	for _, d := range LatestPerLead(details) {
		if d.CalledAt != nil {
			b.Completed = append(b.Completed, d)
			continue
		}
		if d.NextCallDate == nil {
			continue
		}

		switch day := calendarDay(*d.NextCallDate, loc); {
		case day.Equal(today):
			b.Today = append(b.Today, d)
		case day.Before(today):
			b.Pending = append(b.Pending, d)
		default:
			b.Upcoming = append(b.Upcoming, d)
		}
	}

	byNextCall(b.Today)
	byNextCall(b.Pending)
	byNextCall(b.Upcoming)
	sort.SliceStable(b.Completed, func(i, j int) bool {
		return b.Completed[i].CalledAt.After(*b.Completed[j].CalledAt)
	})

	return b
}

func calendarDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func byNextCall(details []*repository.LeadDetail) {
	sort.Slice(details, func(i, j int) bool {
		a, b := details[i].NextCallDate, details[j].NextCallDate
		if !a.Equal(*b) {
			return a.Before(*b)
		}
		return details[i].ID < details[j].ID
	})
}
