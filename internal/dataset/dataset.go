// Package dataset reads and writes the CSV files consumed and produced by the
// batch, labelling and training commands.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mounikasaka1/hackai/internal/domain"
	"github.com/mounikasaka1/hackai/internal/model"
)

// Input column names.
const (
	ColumnTimestamp = "time_stamp"
	ColumnSender    = "user_name"
	ColumnText      = "narrative_entry"
)

// TrainingColumns is the header of a labelled training file.
var TrainingColumns = append([]string{ColumnTimestamp, ColumnSender, ColumnText}, model.Targets()...)

// header maps lower-cased column names to their position.
type header map[string]int

func readHeader(r *csv.Reader) (header, error) {
	row, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("csv has no header row")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	h := make(header, len(row))
	for i, name := range row {
		// strip a UTF-8 BOM left by spreadsheet exports
		name = strings.TrimPrefix(name, "\ufeff")
		h[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return h, nil
}

func (h header) missing(cols ...string) []string {
	var out []string
	for _, c := range cols {
		if _, ok := h[c]; !ok {
			out = append(out, c)
		}
	}
	return out
}

func (h header) get(row []string, col string) string {
	i, ok := h[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr
}

// ReadMessages parses a message CSV. Column order is free and header names
// are matched case-insensitively; only narrative_entry is required.
func ReadMessages(r io.Reader) ([]domain.Message, error) {
	cr := newReader(r)
	h, err := readHeader(cr)
	if err != nil {
		return nil, err
	}
	if m := h.missing(ColumnText); len(m) > 0 {
		return nil, &domain.InputError{Field: ColumnText, Reason: "column not found in header"}
	}

	var msgs []domain.Message
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(msgs)+2, err)
		}
		msgs = append(msgs, domain.NewMessage(
			h.get(row, ColumnTimestamp),
			h.get(row, ColumnSender),
			h.get(row, ColumnText),
		))
	}
	return msgs, nil
}

// ReadMessagesFile opens path and calls ReadMessages.
func ReadMessagesFile(path string) ([]domain.Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadMessages(f)
}

// WriteRecords writes classified records with a RecordColumns header.
func WriteRecords(w io.Writer, records []domain.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(domain.RecordColumns); err != nil {
		return err
	}
	for _, rec := range records {
		if err := cw.Write(rec.Row()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// TrainingSet is a labelled corpus.
type TrainingSet struct {
	Texts  []string
	Labels model.Labels
}

// Len is the number of examples.
func (s TrainingSet) Len() int { return len(s.Texts) }

// ReadTraining parses a labelled CSV. The text column and every target column
// are required; a missing one yields a *domain.TrainingDataError naming it.
// Rows with empty text are skipped.
func ReadTraining(r io.Reader) (*TrainingSet, error) {
	cr := newReader(r)
	h, err := readHeader(cr)
	if err != nil {
		return nil, &domain.TrainingDataError{Reason: err.Error()}
	}
	required := append([]string{ColumnText}, model.Targets()...)
	if m := h.missing(required...); len(m) > 0 {
		return nil, &domain.TrainingDataError{Missing: m, Reason: "required columns not found"}
	}

	set := &TrainingSet{}
	line := 1
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, &domain.TrainingDataError{Reason: fmt.Sprintf("line %d: %v", line, err)}
		}

		text := h.get(row, ColumnText)
		if text == "" {
			continue
		}
		severity, err := strconv.Atoi(h.get(row, model.TargetSeverity))
		if err != nil {
			return nil, &domain.TrainingDataError{
				Reason: fmt.Sprintf("line %d: severity_score %q is not an integer", line, h.get(row, model.TargetSeverity)),
			}
		}

		set.Texts = append(set.Texts, text)
		set.Labels.IncidentType = append(set.Labels.IncidentType, h.get(row, model.TargetIncidentType))
		set.Labels.EmotionalState = append(set.Labels.EmotionalState, h.get(row, model.TargetEmotionalState))
		set.Labels.Severity = append(set.Labels.Severity, severity)
		set.Labels.PotentialCrime = append(set.Labels.PotentialCrime, h.get(row, model.TargetPotentialCrime))
	}

	if set.Len() == 0 {
		return nil, &domain.TrainingDataError{Reason: "no labelled rows"}
	}
	return set, nil
}

// ReadTrainingFile opens path and calls ReadTraining.
func ReadTrainingFile(path string) (*TrainingSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.TrainingDataError{Reason: fmt.Sprintf("open %s: %v", path, err)}
	}
	defer f.Close()
	return ReadTraining(f)
}

// WriteTraining writes messages with their labels in TrainingColumns order.
func WriteTraining(w io.Writer, msgs []domain.Message, labels []model.Prediction) error {
	if len(msgs) != len(labels) {
		return fmt.Errorf("%d messages but %d labels", len(msgs), len(labels))
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(TrainingColumns); err != nil {
		return err
	}
	for i, m := range msgs {
		l := labels[i]
		if err := cw.Write([]string{
			m.RawTimestamp,
			m.SenderID,
			m.Text,
			l.IncidentType,
			l.EmotionalState,
			strconv.Itoa(l.Severity),
			l.PotentialCrime,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
