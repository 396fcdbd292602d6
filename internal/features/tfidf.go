package features

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
)

// Options controls vocabulary construction.
type Options struct {
	NGramMin int `json:"ngram_min" yaml:"ngram_min"`
	NGramMax int `json:"ngram_max" yaml:"ngram_max"`
	// MinDF below 1 is a proportion of documents; 1 or more is an absolute count.
	MinDF float64 `json:"min_df" yaml:"min_df"`
	// MaxDF is a proportion of documents in (0, 1].
	MaxDF       float64 `json:"max_df"       yaml:"max_df"`
	MaxFeatures int     `json:"max_features" yaml:"max_features"`
	StopWords   bool    `json:"stop_words"   yaml:"stop_words"`
}

// DefaultOptions mirrors the historical preprocessing settings.
func DefaultOptions() Options {
	return Options{
		NGramMin:    1,
		NGramMax:    2,
		MinDF:       5,
		MaxDF:       0.95,
		MaxFeatures: 1000,
	}
}

// Errors returned by Fit.
var (
	ErrEmptyCorpus     = errors.New("features: corpus is empty")
	ErrEmptyVocabulary = errors.New("features: no terms left after document-frequency pruning")
)

// Vector is a sparse feature vector with indices in ascending order.
type Vector struct {
	Indices []int
	Values  []float64
}

// Get returns the weight at feature index i.
func (v Vector) Get(i int) float64 {
	k := sort.SearchInts(v.Indices, i)
	if k < len(v.Indices) && v.Indices[k] == i {
		return v.Values[k]
	}
	return 0
}

// Len is the number of non-zero entries.
func (v Vector) Len() int { return len(v.Indices) }

// Vectorizer is a fitted, frozen TF-IDF transform. It is never mutated after
// Fit or unmarshalling and is safe for concurrent Transform calls.
type Vectorizer struct {
	opts  Options
	terms []string
	idf   []float64
	index map[string]int
}

// Fit learns the vocabulary and IDF weights from corpus.
func Fit(corpus []string, opts Options) (*Vectorizer, error) {
	if len(corpus) == 0 {
		return nil, ErrEmptyCorpus
	}
	opts = withDefaults(opts)

	n := len(corpus)
	df := make(map[string]int)
	tf := make(map[string]int)
	for _, doc := range corpus {
		seen := make(map[string]bool)
		for _, g := range NGrams(Tokenize(doc, opts.StopWords), opts.NGramMin, opts.NGramMax) {
			tf[g]++
			if !seen[g] {
				seen[g] = true
				df[g]++
			}
		}
	}

	minCount, maxCount, err := dfBounds(opts, n)
	if err != nil {
		return nil, err
	}

	kept := make([]string, 0, len(df))
	for term, d := range df {
		if d >= minCount && d <= maxCount {
			kept = append(kept, term)
		}
	}
	if len(kept) == 0 {
		return nil, ErrEmptyVocabulary
	}

	if opts.MaxFeatures > 0 && len(kept) > opts.MaxFeatures {
		sort.Slice(kept, func(i, j int) bool {
			if tf[kept[i]] != tf[kept[j]] {
				return tf[kept[i]] > tf[kept[j]]
			}
			return kept[i] < kept[j]
		})
		kept = kept[:opts.MaxFeatures]
	}
	sort.Strings(kept)

	idf := make([]float64, len(kept))
	for i, term := range kept {
		idf[i] = math.Log(float64(1+n)/float64(1+df[term])) + 1
	}

	return newVectorizer(opts, kept, idf), nil
}

func withDefaults(opts Options) Options {
	if opts.NGramMin < 1 {
		opts.NGramMin = 1
	}
	if opts.NGramMax < opts.NGramMin {
		opts.NGramMax = opts.NGramMin
	}
	if opts.MinDF <= 0 {
		opts.MinDF = 1
	}
	if opts.MaxDF <= 0 || opts.MaxDF > 1 {
		opts.MaxDF = 1
	}
	return opts
}

func dfBounds(opts Options, n int) (int, int, error) {
	minCount := int(opts.MinDF)
	if opts.MinDF < 1 {
		minCount = int(math.Ceil(opts.MinDF * float64(n)))
	}
	maxCount := int(math.Floor(opts.MaxDF * float64(n)))
	if maxCount < minCount {
		return 0, 0, fmt.Errorf("features: max_df %.2f leaves fewer documents (%d) than min_df requires (%d)",
			opts.MaxDF, maxCount, minCount)
	}
	return minCount, maxCount, nil
}

func newVectorizer(opts Options, terms []string, idf []float64) *Vectorizer {
	index := make(map[string]int, len(terms))
	for i, t := range terms {
		index[t] = i
	}
	return &Vectorizer{opts: opts, terms: terms, idf: idf, index: index}
}

// Transform maps text onto the frozen vocabulary. Unknown terms are ignored;
// the result is L2-normalised.
func (v *Vectorizer) Transform(text string) Vector {
	counts := make(map[int]int)
	for _, g := range NGrams(Tokenize(text, v.opts.StopWords), v.opts.NGramMin, v.opts.NGramMax) {
		if i, ok := v.index[g]; ok {
			counts[i]++
		}
	}
	if len(counts) == 0 {
		return Vector{}
	}

	indices := make([]int, 0, len(counts))
	for i := range counts {
		indices = append(indices, i)
	}
	sort.Ints(indices)

	values := make([]float64, len(indices))
	var norm float64
	for k, i := range indices {
		w := float64(counts[i]) * v.idf[i]
		values[k] = w
		norm += w * w
	}
	norm = math.Sqrt(norm)
	for k := range values {
		values[k] /= norm
	}

	return Vector{Indices: indices, Values: values}
}

// TransformAll transforms every text in order.
func (v *Vectorizer) TransformAll(texts []string) []Vector {
	out := make([]Vector, len(texts))
	for i, t := range texts {
		out[i] = v.Transform(t)
	}
	return out
}

// NumFeatures is the vocabulary size.
func (v *Vectorizer) NumFeatures() int { return len(v.terms) }

// Terms returns the vocabulary in index order.
func (v *Vectorizer) Terms() []string { return append([]string(nil), v.terms...) }

// Options returns the options the vectorizer was fitted with.
func (v *Vectorizer) Options() Options { return v.opts }

type vectorizerJSON struct {
	Options Options   `json:"options"`
	Terms   []string  `json:"terms"`
	IDF     []float64 `json:"idf"`
}

// MarshalJSON implements json.Marshaler.
func (v *Vectorizer) MarshalJSON() ([]byte, error) {
	return json.Marshal(vectorizerJSON{Options: v.opts, Terms: v.terms, IDF: v.idf})
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Vectorizer) UnmarshalJSON(b []byte) error {
	var raw vectorizerJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw.Terms) != len(raw.IDF) {
		return fmt.Errorf("features: %d terms but %d idf weights", len(raw.Terms), len(raw.IDF))
	}
	*v = *newVectorizer(raw.Options, raw.Terms, raw.IDF)
	return nil
}
