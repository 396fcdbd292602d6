package processor

import (
	"math"
	"sort"

	"github.com/mounikasaka1/hackai/internal/domain"
)

// recentHighSeverityLimit caps Summary.RecentHighSeverity.
const recentHighSeverityLimit = 5

// Summary aggregates a classified batch.
type Summary struct {
	TotalMessages      int             `json:"total_messages"`
	Failed             int             `json:"failed"`
	PotentialCrimes    int             `json:"potential_crimes"`
	AverageSeverity    float64         `json:"average_severity"`
	ByIncidentType     map[string]int  `json:"by_incident_type"`
	ByEmotion          map[string]int  `json:"by_emotion"`
	BySeverity         map[int]int     `json:"by_severity"`
	BySender           map[string]int  `json:"by_sender"`
	RecentHighSeverity []domain.Record `json:"recent_high_severity"`
}

// Summarize computes totals over the classified items. Failed items are
// counted but otherwise ignored. RecentHighSeverity holds up to five
// records with severity of at least the crime threshold, newest first;
// messages without a parsed timestamp sort last.
func Summarize(items []Item) Summary {
	s := Summary{
		ByIncidentType: make(map[string]int),
		ByEmotion:      make(map[string]int),
		BySeverity:     make(map[int]int),
		BySender:       make(map[string]int),
	}

	var (
		severitySum int
		high        []Item
	)
	for _, it := range items {
		if it.Err != nil || it.Result == nil {
			s.Failed++
			continue
		}
		r := it.Result
		s.TotalMessages++
		severitySum += r.Severity
		if r.IsCrime() {
			s.PotentialCrimes++
		}
		s.ByIncidentType[r.IncidentType.String()]++
		s.ByEmotion[r.EmotionalState.String()]++
		s.BySeverity[r.Severity]++
		s.BySender[it.Message.SenderID]++

		if r.Severity >= domain.CrimeSeverityThreshold {
			high = append(high, it)
		}
	}

	if s.TotalMessages > 0 {
		avg := float64(severitySum) / float64(s.TotalMessages)
		s.AverageSeverity = math.Round(avg*100) / 100
	}

	sort.SliceStable(high, func(i, j int) bool {
		ti, tj := high[i].Message.Timestamp, high[j].Message.Timestamp
		switch {
		case ti.IsZero() != tj.IsZero():
			return tj.IsZero()
		default:
			return ti.After(tj)
		}
	})
	if len(high) > recentHighSeverityLimit {
		high = high[:recentHighSeverityLimit]
	}
	s.RecentHighSeverity = make([]domain.Record, len(high))
	for i, it := range high {
		s.RecentHighSeverity[i] = domain.ToRecord(it.Message, it.Result)
	}

	return s
}
