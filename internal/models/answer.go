package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// AnswerKind discriminates the AnswerValue union.
type AnswerKind string

const (
	AnswerText        AnswerKind = "text"
	AnswerChoice      AnswerKind = "choice"
	AnswerMultiChoice AnswerKind = "multiChoice"
	AnswerScale       AnswerKind = "scale"
)

// AnswerValue holds exactly one of Text, Choices or Scale depending on Kind.
// AnswerChoice uses Text for the selected option.
type AnswerValue struct {
	Kind    AnswerKind `bson:"kind"`
	Text    string     `bson:"text,omitempty"`
	Choices []string   `bson:"choices,omitempty"`
	Scale   float64    `bson:"scale,omitempty"`
}

func TextValue(s string) AnswerValue   { return AnswerValue{Kind: AnswerText, Text: s} }
func ChoiceValue(s string) AnswerValue { return AnswerValue{Kind: AnswerChoice, Text: s} }
func ScaleValue(v float64) AnswerValue { return AnswerValue{Kind: AnswerScale, Scale: v} }
func MultiChoiceValue(ss ...string) AnswerValue {
	return AnswerValue{Kind: AnswerMultiChoice, Choices: ss}
}

// Empty reports whether the value carries no usable answer.
func (v AnswerValue) Empty() bool {
	switch v.Kind {
	case AnswerText, AnswerChoice:
		return strings.TrimSpace(v.Text) == ""
	case AnswerMultiChoice:
		for _, c := range v.Choices {
			if strings.TrimSpace(c) != "" {
				return false
			}
		}
		return true
	case AnswerScale:
		return false
	}
	return true
}

// Selected returns the chosen options of a choice or multi-choice value.
func (v AnswerValue) Selected() []string {
	switch v.Kind {
	case AnswerChoice:
		return []string{v.Text}
	case AnswerMultiChoice:
		return v.Choices
	}
	return nil
}

// String renders the value for exports and summaries.
func (v AnswerValue) String() string {
	switch v.Kind {
	case AnswerText, AnswerChoice:
		return v.Text
	case AnswerMultiChoice:
		return strings.Join(v.Choices, "; ")
	case AnswerScale:
		return strconv.FormatFloat(v.Scale, 'f', -1, 64)
	}
	return ""
}

// MarshalJSON emits the plain wire value: a string, a string array or a number.
func (v AnswerValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case AnswerText, AnswerChoice:
		return json.Marshal(v.Text)
	case AnswerMultiChoice:
		if v.Choices == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.Choices)
	case AnswerScale:
		return json.Marshal(v.Scale)
	}
	return []byte("null"), nil
}

// ErrNoValue is returned by DecodeAnswerValue when the raw value is absent or null.
var ErrNoValue = errors.New("no value")

// DecodeAnswerValue decodes an untyped wire value according to the type of
// the question it answers.
//
//	text           -> JSON string
//	multipleChoice -> JSON string or array of strings
//	scale          -> JSON number (or numeric string) within [ScaleMin, ScaleMax]
func DecodeAnswerValue(qt QuestionType, raw json.RawMessage) (AnswerValue, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return AnswerValue{}, ErrNoValue
	}
	switch qt {
	case QuestionText:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return AnswerValue{}, errors.New("expected a string")
		}
		return TextValue(s), nil
	case QuestionMultipleChoice:
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return ChoiceValue(s), nil
		}
		var ss []string
		if err := json.Unmarshal(raw, &ss); err != nil {
			return AnswerValue{}, errors.New("expected a string or an array of strings")
		}
		return MultiChoiceValue(ss...), nil
	case QuestionScale:
		n, err := decodeNumber(raw)
		if err != nil {
			return AnswerValue{}, err
		}
		if n < ScaleMin || n > ScaleMax {
			return AnswerValue{}, fmt.Errorf("expected a number between %d and %d", ScaleMin, ScaleMax)
		}
		return ScaleValue(n), nil
	}
	return AnswerValue{}, fmt.Errorf("unsupported question type %q", qt)
}

func decodeNumber(raw json.RawMessage) (float64, error) {
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, errors.New("expected a finite number")
		}
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, perr := strconv.ParseFloat(strings.TrimSpace(s), 64); perr == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return f, nil
		}
	}
	return 0, errors.New("expected a number")
}

// Answer pairs a question id with its decoded value.
type Answer struct {
	QuestionID string      `json:"questionId" bson:"questionId"`
	Value      AnswerValue `json:"value" bson:"value"`
}

type answerJSON struct {
	QuestionID string          `json:"questionId"`
	Kind       AnswerKind      `json:"kind"`
	Value      json.RawMessage `json:"value"`
}

// MarshalJSON keeps the kind next to the plain value so stored documents
// decode back into the same union member.
func (a Answer) MarshalJSON() ([]byte, error) {
	val, err := a.Value.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return json.Marshal(answerJSON{QuestionID: a.QuestionID, Kind: a.Value.Kind, Value: val})
}

func (a *Answer) UnmarshalJSON(data []byte) error {
	var aux answerJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	a.QuestionID = aux.QuestionID
	a.Value = AnswerValue{Kind: aux.Kind}
	if len(aux.Value) == 0 || bytes.Equal(bytes.TrimSpace(aux.Value), []byte("null")) {
		return nil
	}
	switch aux.Kind {
	case AnswerText, AnswerChoice:
		return json.Unmarshal(aux.Value, &a.Value.Text)
	case AnswerMultiChoice:
		return json.Unmarshal(aux.Value, &a.Value.Choices)
	case AnswerScale:
		return json.Unmarshal(aux.Value, &a.Value.Scale)
	}
	return fmt.Errorf("unknown answer kind %q", aux.Kind)
}
