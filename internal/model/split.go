package model

import (
	"math"
	"math/rand"
	"sort"
)

// StratifiedSplit partitions row indices into train and test sets so each
// label keeps roughly its share in both. Classes with a single row stay in
// train. Output indices are sorted.
func StratifiedSplit(labels []string, testSize float64, seed int64) ([]int, []int) {
	byLabel := make(map[string][]int)
	for i, l := range labels {
		byLabel[l] = append(byLabel[l], i)
	}
	keys := make([]string, 0, len(byLabel))
	for k := range byLabel {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rng := rand.New(rand.NewSource(seed))
	var train, test []int
	for _, k := range keys {
		rows := byLabel[k]
		rng.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })

		nTest := int(math.Round(float64(len(rows)) * testSize))
		if nTest >= len(rows) {
			nTest = len(rows) - 1
		}
		if nTest < 0 {
			nTest = 0
		}
		test = append(test, rows[:nTest]...)
		train = append(train, rows[nTest:]...)
	}

	sort.Ints(train)
	sort.Ints(test)
	return train, test
}
