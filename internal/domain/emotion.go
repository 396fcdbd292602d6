package domain

import (
	"fmt"
	"strings"
)

// Emotion is the inferred emotional state of the recipient. The numeric
// order is the tie-break order used by the inferencer.
type Emotion int

const (
	EmotionNeutral Emotion = iota
	EmotionConcerned
	EmotionAnxious
	EmotionFearful
	EmotionManipulated
	EmotionDistressed
)

var emotionNames = [...]string{
	"Neutral",
	"Concerned",
	"Anxious",
	"Fearful",
	"Manipulated",
	"Distressed",
}

// Emotions returns the emotions in tie-break order.
func Emotions() []Emotion {
	return []Emotion{
		EmotionNeutral,
		EmotionConcerned,
		EmotionAnxious,
		EmotionFearful,
		EmotionManipulated,
		EmotionDistressed,
	}
}

func (e Emotion) String() string {
	if e.Valid() {
		return emotionNames[e]
	}
	return "Unknown"
}

// Valid reports whether e is a declared emotion.
func (e Emotion) Valid() bool {
	return e >= EmotionNeutral && int(e) < len(emotionNames)
}

// ParseEmotion parses an emotion name case-insensitively.
func ParseEmotion(s string) (Emotion, error) {
	key := strings.TrimSpace(s)
	for i, name := range emotionNames {
		if strings.EqualFold(name, key) {
			return Emotion(i), nil
		}
	}
	return EmotionNeutral, fmt.Errorf("unknown emotional state %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (e Emotion) MarshalText() ([]byte, error) {
	if !e.Valid() {
		return nil, fmt.Errorf("invalid emotion %d", int(e))
	}
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Emotion) UnmarshalText(b []byte) error {
	parsed, err := ParseEmotion(string(b))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}
