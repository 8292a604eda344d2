package templates

import (
	"sort"
	"time"

	"github.com/fenwick-ai/sessionguard/internal/core"
)

// Summary is the read-only aggregate returned by analytics.summary
// (spec.md §4.5): counts by status and by project across every session on
// disk.
type Summary struct {
	TotalSessions int            `json:"total_sessions"`
	ByStatus      map[string]int `json:"by_status"`
	ByProject     map[string]int `json:"by_project"`
}

// Summarize scans every session file and tallies status/project counts.
func Summarize(mgr *core.SessionManager) (*Summary, error) {
	sessions, err := mgr.ListSessions(0)
	if err != nil {
		return nil, err
	}
	s := &Summary{ByStatus: map[string]int{}, ByProject: map[string]int{}}
	for _, sess := range sessions {
		s.TotalSessions++
		s.ByStatus[string(sess.Status)]++
		s.ByProject[sess.Project]++
	}
	return s, nil
}

// ProjectStats is the per-project detail returned by analytics.project.
type ProjectStats struct {
	Project       string         `json:"project"`
	TotalSessions int            `json:"total_sessions"`
	ByStatus      map[string]int `json:"by_status"`
	Tags          map[string]int `json:"tags"`
}

// ProjectReport aggregates every session belonging to project.
func ProjectReport(mgr *core.SessionManager, project string) (*ProjectStats, error) {
	sessions, err := mgr.SearchSessions(core.SearchQuery{Project: project})
	if err != nil {
		return nil, err
	}
	r := &ProjectStats{Project: project, ByStatus: map[string]int{}, Tags: map[string]int{}}
	for _, sess := range sessions {
		r.TotalSessions++
		r.ByStatus[string(sess.Status)]++
		for _, tag := range sess.Tags {
			r.Tags[tag]++
		}
	}
	return r, nil
}

// DayActivity is one day's bucket in a timeline histogram.
type DayActivity struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Timeline buckets sessions updated within the last days days by calendar
// date (UTC), oldest first.
func Timeline(mgr *core.SessionManager, days int) ([]DayActivity, error) {
	if days <= 0 {
		days = 30
	}
	sessions, err := mgr.ListSessions(0)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	counts := map[string]int{}
	for _, sess := range sessions {
		if sess.UpdatedAt.Before(cutoff) {
			continue
		}
		day := sess.UpdatedAt.Format("2006-01-02")
		counts[day]++
	}

	out := make([]DayActivity, 0, len(counts))
	for day, count := range counts {
		out = append(out, DayActivity{Date: day, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// TagUsage is one tag's session count in a tag-usage ranking.
type TagUsage struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// TagRanking ranks every tag across all sessions by how many sessions use
// it, most-used first.
func TagRanking(mgr *core.SessionManager) ([]TagUsage, error) {
	sessions, err := mgr.ListSessions(0)
	if err != nil {
		return nil, err
	}
	counts := map[string]int{}
	for _, sess := range sessions {
		for _, tag := range sess.Tags {
			counts[tag]++
		}
	}
	out := make([]TagUsage, 0, len(counts))
	for tag, count := range counts {
		out = append(out, TagUsage{Tag: tag, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	return out, nil
}
