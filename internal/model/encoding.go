package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mounikasaka1/hackai/internal/domain"
)

// LabelEncoding is a frozen bidirectional mapping between the labels of one
// categorical target and integer codes. Codes follow the lexical order of
// the labels.
type LabelEncoding struct {
	target  string
	classes []string
	codes   map[string]int
}

// FitEncoding builds an encoding from every label observed for target.
func FitEncoding(target string, labels []string) (*LabelEncoding, error) {
	set := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			return nil, &domain.TrainingDataError{Reason: fmt.Sprintf("empty %s label", target)}
		}
		set[l] = struct{}{}
	}
	if len(set) == 0 {
		return nil, &domain.TrainingDataError{Reason: fmt.Sprintf("no %s labels", target)}
	}

	classes := make([]string, 0, len(set))
	for l := range set {
		classes = append(classes, l)
	}
	sort.Strings(classes)

	return newEncoding(target, classes), nil
}

func newEncoding(target string, classes []string) *LabelEncoding {
	codes := make(map[string]int, len(classes))
	for i, c := range classes {
		codes[c] = i
	}
	return &LabelEncoding{target: target, classes: classes, codes: codes}
}

// Target is the column this encoding belongs to.
func (e *LabelEncoding) Target() string { return e.target }

// Classes returns the labels in code order.
func (e *LabelEncoding) Classes() []string { return append([]string(nil), e.classes...) }

// Len is the number of classes.
func (e *LabelEncoding) Len() int { return len(e.classes) }

// Encode returns the code for label or an UnseenLabelError.
func (e *LabelEncoding) Encode(label string) (int, error) {
	code, ok := e.codes[strings.TrimSpace(label)]
	if !ok {
		return 0, &domain.UnseenLabelError{Target: e.target, Label: label}
	}
	return code, nil
}

// EncodeAll encodes labels in order, failing on the first unseen label.
func (e *LabelEncoding) EncodeAll(labels []string) ([]int, error) {
	out := make([]int, len(labels))
	for i, l := range labels {
		code, err := e.Encode(l)
		if err != nil {
			return nil, err
		}
		out[i] = code
	}
	return out, nil
}

// Decode returns the label for code.
func (e *LabelEncoding) Decode(code int) (string, error) {
	if code < 0 || code >= len(e.classes) {
		return "", &domain.UnseenLabelError{Target: e.target, Label: fmt.Sprintf("#%d", code)}
	}
	return e.classes[code], nil
}

type encodingJSON struct {
	Target  string   `json:"target"`
	Classes []string `json:"classes"`
}

// MarshalJSON implements json.Marshaler.
func (e *LabelEncoding) MarshalJSON() ([]byte, error) {
	return json.Marshal(encodingJSON{Target: e.target, Classes: e.classes})
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *LabelEncoding) UnmarshalJSON(b []byte) error {
	var raw encodingJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw.Classes) == 0 {
		return fmt.Errorf("encoding %q has no classes", raw.Target)
	}
	*e = *newEncoding(raw.Target, raw.Classes)
	return nil
}
