package model

import "github.com/mounikasaka1/hackai/internal/features"

// Accuracy is the per-target share of exact matches on a held-out set.
type Accuracy map[string]float64

// Evaluate predicts every row of x and compares against labels.
func Evaluate(m *MultiLabel, x []features.Vector, labels Labels) (Accuracy, error) {
	hits := make(map[string]int, 4)
	for i, v := range x {
		p, err := m.Predict(v)
		if err != nil {
			return nil, err
		}
		want := labels.Row(i)
		if p.IncidentType == want.IncidentType {
			hits[TargetIncidentType]++
		}
		if p.EmotionalState == want.EmotionalState {
			hits[TargetEmotionalState]++
		}
		if p.Severity == want.Severity {
			hits[TargetSeverity]++
		}
		if p.PotentialCrime == want.PotentialCrime {
			hits[TargetPotentialCrime]++
		}
	}

	acc := make(Accuracy, 4)
	for _, target := range Targets() {
		if len(x) > 0 {
			acc[target] = float64(hits[target]) / float64(len(x))
		}
	}
	return acc, nil
}
