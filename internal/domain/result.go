package domain

import (
	"strconv"
	"strings"
	"time"
)

// Source identifies which backend produced a result.
type Source string

const (
	SourceRule  Source = "rule"
	SourceModel Source = "model"
)

// Crime flag values.
const (
	CrimeYes = "Y"
	CrimeNo  = "N"
)

// Severity bounds.
const (
	MinSeverity = 1
	MaxSeverity = 5
	// CrimeSeverityThreshold is the lowest severity that flags potential crime.
	CrimeSeverityThreshold = 4
)

// ClassificationResult is the unified output of both classification paths.
type ClassificationResult struct {
	IncidentType   Category  `json:"incident_type"`
	EmotionalState Emotion   `json:"emotional_state"`
	Severity       int       `json:"severity_score"`
	PotentialCrime string    `json:"potential_crime"`
	Confidence     float64   `json:"confidence_score"`
	Source         Source    `json:"source"`
	ClassifiedAt   time.Time `json:"classified_at"`
}

// IsCrime reports whether the crime flag is set.
func (r *ClassificationResult) IsCrime() bool {
	return r.PotentialCrime == CrimeYes
}

// CrimeFlag derives the crime flag from severity and category.
func CrimeFlag(category Category, severity int) string {
	if severity >= CrimeSeverityThreshold || category.IsThreat() {
		return CrimeYes
	}
	return CrimeNo
}

// ClampSeverity forces s into [MinSeverity, MaxSeverity].
func ClampSeverity(s int) int {
	if s < MinSeverity {
		return MinSeverity
	}
	if s > MaxSeverity {
		return MaxSeverity
	}
	return s
}

// Record is the batch output row: the input fields plus the classification.
type Record struct {
	TimeStamp          string  `json:"time_stamp"`
	UserName           string  `json:"user_name"`
	NarrativeEntry     string  `json:"narrative_entry"`
	IncidentType       string  `json:"incident_type"`
	UserEmotionalState string  `json:"user_emotional_state"`
	SeverityScore      int     `json:"severity_score"`
	PotentialCrime     string  `json:"potential_crime"`
	ConfidenceScore    float64 `json:"confidence_score"`
	FormattedTimestamp string  `json:"formatted_timestamp"`
}

// RecordColumns is the header order used when writing records.
var RecordColumns = []string{
	"time_stamp",
	"user_name",
	"narrative_entry",
	"incident_type",
	"user_emotional_state",
	"severity_score",
	"potential_crime",
	"confidence_score",
	"formatted_timestamp",
}

// ToRecord projects a result onto the batch output shape.
func ToRecord(msg Message, r *ClassificationResult) Record {
	return Record{
		TimeStamp:          msg.RawTimestamp,
		UserName:           msg.SenderID,
		NarrativeEntry:     msg.Text,
		IncidentType:       r.IncidentType.String(),
		UserEmotionalState: r.EmotionalState.String(),
		SeverityScore:      r.Severity,
		PotentialCrime:     r.PotentialCrime,
		ConfidenceScore:    r.Confidence,
		FormattedTimestamp: msg.FormattedTimestamp(),
	}
}

// Row returns the record's values in RecordColumns order.
func (r Record) Row() []string {
	return []string{
		r.TimeStamp,
		r.UserName,
		r.NarrativeEntry,
		r.IncidentType,
		r.UserEmotionalState,
		strconv.Itoa(r.SeverityScore),
		r.PotentialCrime,
		strconv.FormatFloat(r.ConfidenceScore, 'f', 2, 64),
		r.FormattedTimestamp,
	}
}

// Behavior is the perpetrator-centric vocabulary of the analyze endpoint.
type Behavior string

const (
	BehaviorThreatening  Behavior = "Threatening"
	BehaviorStalking     Behavior = "Stalking"
	BehaviorControlling  Behavior = "Controlling"
	BehaviorManipulative Behavior = "Manipulative"
	BehaviorMonitoring   Behavior = "Monitoring"
	BehaviorEscalating   Behavior = "Escalating"
	BehaviorNormal       Behavior = "Normal"
)

var categoryBehavior = map[Category]Behavior{
	CategoryDeathThreat:           BehaviorThreatening,
	CategoryStalking:              BehaviorStalking,
	CategoryCoerciveControl:       BehaviorControlling,
	CategoryEmotionalManipulation: BehaviorManipulative,
	CategoryLocationMonitoring:    BehaviorMonitoring,
	CategoryNormal:                BehaviorNormal,
	CategoryFriendly:              BehaviorNormal,
}

// Analysis is the response body of the analyze endpoint.
type Analysis struct {
	IsCrime             bool     `json:"isCrime"`
	SeverityScore       int      `json:"severityScore"`
	ReceiverEmotion     string   `json:"receiverEmotion"`
	PerpetratorBehavior Behavior `json:"perpetratorBehavior"`
}

// ToAnalysis projects a result onto the endpoint shape. A concerning message
// that both asks and exclaims is reported as escalating.
func ToAnalysis(r *ClassificationResult, text string) Analysis {
	behavior, ok := categoryBehavior[r.IncidentType]
	if !ok {
		behavior = BehaviorNormal
	}
	if r.IncidentType.IsConcerning() && strings.Contains(text, "?") && strings.Contains(text, "!") {
		behavior = BehaviorEscalating
	}

	return Analysis{
		IsCrime:             r.IsCrime(),
		SeverityScore:       r.Severity,
		ReceiverEmotion:     r.EmotionalState.String(),
		PerpetratorBehavior: behavior,
	}
}
