package domain

import (
	"encoding/json"
	"strings"
)

// QuestionKind enumerates the closed set of live question variants.
type QuestionKind string

const (
	SingleChoice   QuestionKind = "SINGLE_CHOICE"
	MultipleChoice QuestionKind = "MULTIPLE_CHOICE"
	TrueFalse      QuestionKind = "TRUE_FALSE"
	TextInput      QuestionKind = "TEXT_INPUT"
)

// Question is a tagged union over the four live question kinds. Only the
// fields matching Kind are meaningful; Evaluate is the single place that
// interprets them.
type Question struct {
	Kind           QuestionKind `json:"kind"`
	Text           string       `json:"text"`
	Options        []string     `json:"options,omitempty"`
	CorrectOptions []int        `json:"correctOptions,omitempty"`
	CorrectBool    bool         `json:"correctBool,omitempty"`
	AcceptedTexts  []string     `json:"acceptedTexts,omitempty"`
	TimeLimitSec   int          `json:"timeLimitSec"`
}

// Submission is the raw client answer for one question. Value is decoded per
// question kind at evaluation time; DontKnow skips evaluation entirely.
type Submission struct {
	Value    json.RawMessage `json:"value,omitempty"`
	DontKnow bool            `json:"dontKnow"`
}

// Evaluate reports whether the submitted value answers the question
// correctly. A malformed value or an unrecognized kind is never correct.
func (q Question) Evaluate(sub Submission) bool {
	switch q.Kind {
	case SingleChoice:
		var idx int
		if err := json.Unmarshal(sub.Value, &idx); err != nil {
			return false
		}
		return len(q.CorrectOptions) == 1 && idx == q.CorrectOptions[0]

	case MultipleChoice:
		var idxs []int
		if err := json.Unmarshal(sub.Value, &idxs); err != nil {
			return false
		}
		return sameIndexSet(idxs, q.CorrectOptions)

	case TrueFalse:
		var v bool
		if err := json.Unmarshal(sub.Value, &v); err != nil {
			return false
		}
		return v == q.CorrectBool

	case TextInput:
		var text string
		if err := json.Unmarshal(sub.Value, &text); err != nil {
			return false
		}
		text = strings.TrimSpace(text)
		for _, accepted := range q.AcceptedTexts {
			if strings.EqualFold(text, strings.TrimSpace(accepted)) {
				return true
			}
		}
		return false
	}
	return false
}

// sameIndexSet compares two index lists as sets (order-independent,
// duplicates collapse). No partial credit: the sets must be equal.
func sameIndexSet(got, want []int) bool {
	if len(want) == 0 {
		return false
	}
	gotSet := make(map[int]struct{}, len(got))
	for _, i := range got {
		gotSet[i] = struct{}{}
	}
	wantSet := make(map[int]struct{}, len(want))
	for _, i := range want {
		wantSet[i] = struct{}{}
	}
	if len(gotSet) != len(wantSet) {
		return false
	}
	for i := range wantSet {
		if _, ok := gotSet[i]; !ok {
			return false
		}
	}
	return true
}

// speedRankPoints awards decreasing points by arrival order among correct
// answers: first 5, then 3, 2, 1, and 0 from the fifth on.
var speedRankPoints = []int{5, 3, 2, 1}

// PointsForRank returns the points awarded to the correct answer arriving at
// the given 0-indexed rank.
func PointsForRank(rank int) int {
	if rank < 0 || rank >= len(speedRankPoints) {
		return 0
	}
	return speedRankPoints[rank]
}

// IncorrectPenalty is applied to incorrect, non-don't-know answers.
const IncorrectPenalty = -1
