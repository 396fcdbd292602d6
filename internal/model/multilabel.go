package model

import (
	"context"
	"fmt"
	"sort"

	"github.com/mounikasaka1/hackai/internal/domain"
	"github.com/mounikasaka1/hackai/internal/features"
)

// Target column names, shared with the training CSV header.
const (
	TargetIncidentType   = "incident_type"
	TargetEmotionalState = "user_emotional_state"
	TargetSeverity       = "severity_score"
	TargetPotentialCrime = "potential_crime"
)

// Targets lists the predicted columns in output order.
func Targets() []string {
	return []string{TargetIncidentType, TargetEmotionalState, TargetSeverity, TargetPotentialCrime}
}

// Prediction is one multi-target model output in label space.
type Prediction struct {
	IncidentType   string `json:"incident_type"`
	EmotionalState string `json:"user_emotional_state"`
	Severity       int    `json:"severity_score"`
	PotentialCrime string `json:"potential_crime"`
}

// Labels holds the training targets column-wise; every slice is aligned
// with the feature rows.
type Labels struct {
	IncidentType   []string
	EmotionalState []string
	Severity       []int
	PotentialCrime []string
}

// Len returns the row count, or -1 if the columns disagree.
func (l Labels) Len() int {
	n := len(l.IncidentType)
	if len(l.EmotionalState) != n || len(l.Severity) != n || len(l.PotentialCrime) != n {
		return -1
	}
	return n
}

// Subset returns the labels at rows.
func (l Labels) Subset(rows []int) Labels {
	out := Labels{
		IncidentType:   make([]string, len(rows)),
		EmotionalState: make([]string, len(rows)),
		Severity:       make([]int, len(rows)),
		PotentialCrime: make([]string, len(rows)),
	}
	for i, r := range rows {
		out.IncidentType[i] = l.IncidentType[r]
		out.EmotionalState[i] = l.EmotionalState[r]
		out.Severity[i] = l.Severity[r]
		out.PotentialCrime[i] = l.PotentialCrime[r]
	}
	return out
}

// Row returns the labels of one row as a Prediction.
func (l Labels) Row(i int) Prediction {
	return Prediction{
		IncidentType:   l.IncidentType[i],
		EmotionalState: l.EmotionalState[i],
		Severity:       l.Severity[i],
		PotentialCrime: l.PotentialCrime[i],
	}
}

// MultiLabel is one independent forest per target. Categorical targets are
// encoded with a frozen LabelEncoding; severity is predicted as a class over
// the distinct integer values seen in training.
type MultiLabel struct {
	Forests        map[string]*Forest        `json:"forests"`
	Encodings      map[string]*LabelEncoding `json:"-"`
	SeverityValues []int                     `json:"severity_values"`
}

// Train fits every target on x.
func Train(ctx context.Context, x []features.Vector, labels Labels, params Params) (*MultiLabel, error) {
	n := labels.Len()
	if n < 0 {
		return nil, &domain.TrainingDataError{Reason: "label columns have different lengths"}
	}
	if n != len(x) || n == 0 {
		return nil, &domain.TrainingDataError{Reason: fmt.Sprintf("%d feature rows for %d label rows", len(x), n)}
	}

	m := &MultiLabel{
		Forests:   make(map[string]*Forest, 4),
		Encodings: make(map[string]*LabelEncoding, 3),
	}

	categorical := map[string][]string{
		TargetIncidentType:   labels.IncidentType,
		TargetEmotionalState: labels.EmotionalState,
		TargetPotentialCrime: labels.PotentialCrime,
	}
	for _, target := range Targets() {
		var (
			y        []int
			nClasses int
		)
		if target == TargetSeverity {
			m.SeverityValues = distinctInts(labels.Severity)
			y = make([]int, n)
			for i, s := range labels.Severity {
				y[i] = sort.SearchInts(m.SeverityValues, s)
			}
			nClasses = len(m.SeverityValues)
		} else {
			enc, err := FitEncoding(target, categorical[target])
			if err != nil {
				return nil, err
			}
			y, err = enc.EncodeAll(categorical[target])
			if err != nil {
				return nil, err
			}
			m.Encodings[target] = enc
			nClasses = enc.Len()
		}

		forest, err := FitForest(ctx, x, y, nClasses, params)
		if err != nil {
			return nil, fmt.Errorf("train %s: %w", target, err)
		}
		m.Forests[target] = forest
	}

	return m, nil
}

// Predict runs every forest on v and decodes the results.
func (m *MultiLabel) Predict(v features.Vector) (Prediction, error) {
	var p Prediction
	for _, target := range Targets() {
		forest, ok := m.Forests[target]
		if !ok {
			return Prediction{}, fmt.Errorf("no forest for target %s", target)
		}
		code := forest.Predict(v)

		if target == TargetSeverity {
			if code >= len(m.SeverityValues) {
				return Prediction{}, &domain.UnseenLabelError{Target: target, Label: fmt.Sprintf("#%d", code)}
			}
			p.Severity = m.SeverityValues[code]
			continue
		}

		enc, ok := m.Encodings[target]
		if !ok {
			return Prediction{}, fmt.Errorf("no encoding for target %s", target)
		}
		label, err := enc.Decode(code)
		if err != nil {
			return Prediction{}, err
		}
		switch target {
		case TargetIncidentType:
			p.IncidentType = label
		case TargetEmotionalState:
			p.EmotionalState = label
		case TargetPotentialCrime:
			p.PotentialCrime = label
		}
	}
	return p, nil
}

func distinctInts(xs []int) []int {
	set := make(map[int]struct{}, len(xs))
	for _, x := range xs {
		set[x] = struct{}{}
	}
	out := make([]int, 0, len(set))
	for x := range set {
		out = append(out, x)
	}
	sort.Ints(out)
	return out
}
