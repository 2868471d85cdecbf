package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Phase is the lifecycle position of a recommendation request.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseProcessing Phase = "processing"
	PhaseReady      Phase = "ready"
	PhaseError      Phase = "error"
)

// AnswerValue is a questionnaire answer: a single choice / free text, or a
// set of choices.
type AnswerValue struct {
	Single  string
	Multi   []string
	IsMulti bool
}

func Single(v string) AnswerValue { return AnswerValue{Single: v} }

func Multi(v ...string) AnswerValue { return AnswerValue{Multi: v, IsMulti: true} }

// Empty reports whether the answer carries nothing.
func (a AnswerValue) Empty() bool {
	if a.IsMulti {
		return len(a.Multi) == 0
	}
	return a.Single == ""
}

// Contains reports whether a multi-choice answer includes v, or a single
// answer equals v.
func (a AnswerValue) Contains(v string) bool {
	if a.IsMulti {
		return slices.Contains(a.Multi, v)
	}
	return a.Single == v
}

func (a AnswerValue) String() string {
	if a.IsMulti {
		return strings.Join(a.Multi, ", ")
	}
	return a.Single
}

func (a AnswerValue) MarshalJSON() ([]byte, error) {
	if a.IsMulti {
		if a.Multi == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(a.Multi)
	}
	return json.Marshal(a.Single)
}

func (a *AnswerValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*a = AnswerValue{}
	case data[0] == '[':
		var v []string
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("decode multi-choice answer: %w", err)
		}
		*a = AnswerValue{Multi: v, IsMulti: true}
	default:
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("decode answer: %w", err)
		}
		*a = AnswerValue{Single: v}
	}
	return nil
}

// Answers maps question ids to answers.
type Answers map[string]AnswerValue

// Clone returns a deep copy.
func (a Answers) Clone() Answers {
	if a == nil {
		return nil
	}
	out := make(Answers, len(a))
	for k, v := range a {
		if v.IsMulti {
			v.Multi = slices.Clone(v.Multi)
		}
		out[k] = v
	}
	return out
}

// QueryState is the observable state of the query controller.
type QueryState struct {
	Phase          Phase   `json:"phase"`
	Answers        Answers `json:"answers,omitempty"`
	RefinementText string  `json:"refinement_text,omitempty"`
	ResultLabel    string  `json:"result_label,omitempty"`
	Error          string  `json:"error,omitempty"`
}

// QuerySnapshot is what survives a restart. Raw answers are deliberately
// absent.
type QuerySnapshot struct {
	Phase       Phase  `json:"phase"`
	ResultLabel string `json:"result_label,omitempty"`
	Error       string `json:"error,omitempty"`
}

// QueryRequest is the body of POST /query. Exactly one field is set.
type QueryRequest struct {
	Answers     Answers `json:"answers,omitempty"`
	CustomQuery string  `json:"custom_query,omitempty"`
}

// QuestionKind mirrors the questionnaire's input types.
type QuestionKind string

const (
	SingleChoice QuestionKind = "single-choice"
	MultiChoice  QuestionKind = "multi-choice"
	TextInput    QuestionKind = "text"
)

// OtherOption is the choice that unlocks a free-text custom input.
const OtherOption = "Other"

// Draft is an unsubmitted questionnaire.
type Draft struct {
	Answers      Answers           `json:"answers"`
	CustomInputs map[string]string `json:"customInputs"`
}
