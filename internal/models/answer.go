package models

import (
	"encoding/json"
)

// Answer is one recorded response. Value's JSON shape depends on Type:
// bool, index, index set, string, ordered string sequence, or id->value map.
// Grading decodes it leniently - a shape that does not decode is simply wrong,
// never an error.
type Answer struct {
	Type  QuestionType    `json:"type"`
	Value json.RawMessage `json:"value"`
}

// AnswerSet maps question id to the latest recorded answer. Last write wins
// per question; the set only grows during a session.
type AnswerSet map[string]Answer

// EliminationSet maps question id to struck-out option indices. Purely a
// display affordance for choice questions; grading never reads it.
type EliminationSet map[string][]int

// ===== TYPED CONSTRUCTORS =====

func BoolAnswer(v bool) Answer {
	raw, _ := json.Marshal(v)
	return Answer{Type: TrueFalse, Value: raw}
}

func IndexAnswer(i int) Answer {
	raw, _ := json.Marshal(i)
	return Answer{Type: SingleChoice, Value: raw}
}

func IndexSetAnswer(indices []int) Answer {
	raw, _ := json.Marshal(indices)
	return Answer{Type: MultipleChoice, Value: raw}
}

func TextAnswer(text string) Answer {
	raw, _ := json.Marshal(text)
	return Answer{Type: OpenEnded, Value: raw}
}

func BlanksAnswer(values []string) Answer {
	raw, _ := json.Marshal(values)
	return Answer{Type: FillBlanks, Value: raw}
}

func OrderAnswer(items []string) Answer {
	raw, _ := json.Marshal(items)
	return Answer{Type: SortAnswer, Value: raw}
}

func PairsAnswer(pairs map[string]string) Answer {
	raw, _ := json.Marshal(pairs)
	return Answer{Type: Matching, Value: raw}
}

// ===== LENIENT ACCESSORS =====

func (a Answer) AsBool() (bool, bool) {
	var v bool
	if err := json.Unmarshal(a.Value, &v); err != nil {
		return false, false
	}
	return v, true
}

func (a Answer) AsIndex() (int, bool) {
	var v int
	if err := json.Unmarshal(a.Value, &v); err != nil {
		return 0, false
	}
	return v, true
}

func (a Answer) AsIndexSet() ([]int, bool) {
	var v []int
	if err := json.Unmarshal(a.Value, &v); err != nil {
		return nil, false
	}
	return v, true
}

func (a Answer) AsText() (string, bool) {
	var v string
	if err := json.Unmarshal(a.Value, &v); err != nil {
		return "", false
	}
	return v, true
}

func (a Answer) AsStrings() ([]string, bool) {
	var v []string
	if err := json.Unmarshal(a.Value, &v); err != nil {
		return nil, false
	}
	return v, true
}

func (a Answer) AsPairs() (map[string]string, bool) {
	var v map[string]string
	if err := json.Unmarshal(a.Value, &v); err != nil {
		return nil, false
	}
	return v, true
}

// IsEmpty reports whether no value was recorded.
func (a Answer) IsEmpty() bool {
	return len(a.Value) == 0 || string(a.Value) == "null"
}
