package inference

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// leafNode marks a leaf in the children arrays.
const leafNode = -1

// Tree is one regression tree in the flat array layout produced by the
// training export: node i splits on Feature[i] at Threshold[i], going left
// when the value is <= the threshold. Leaves have ChildrenLeft[i] == -1 and
// carry their output in Value[i].
type Tree struct {
	Feature       []int     `json:"feature"`
	Threshold     []float64 `json:"threshold"`
	ChildrenLeft  []int     `json:"children_left"`
	ChildrenRight []int     `json:"children_right"`
	Value         []float64 `json:"value"`
}

func (t Tree) validate(numFeatures int) error {
	n := len(t.Value)
	if n == 0 {
		return errors.New("empty tree")
	}
	if len(t.Feature) != n || len(t.Threshold) != n || len(t.ChildrenLeft) != n || len(t.ChildrenRight) != n {
		return errors.New("node arrays differ in length")
	}
	for i := 0; i < n; i++ {
		l, r := t.ChildrenLeft[i], t.ChildrenRight[i]
		if l == leafNode {
			continue
		}
		// Children always follow their parent in the export, which also
		// rules out cycles.
		if l <= i || r <= i || l >= n || r >= n {
			return fmt.Errorf("node %d has invalid children %d/%d", i, l, r)
		}
		if f := t.Feature[i]; f < 0 || f >= numFeatures {
			return fmt.Errorf("node %d splits on unknown feature %d", i, f)
		}
	}
	return nil
}

func (t Tree) eval(x []float64) float64 {
	i := 0
	for t.ChildrenLeft[i] != leafNode {
		if x[t.Feature[i]] <= t.Threshold[i] {
			i = t.ChildrenLeft[i]
		} else {
			i = t.ChildrenRight[i]
		}
	}
	return t.Value[i]
}

// ClassifierSpec is a multi-class boosted ensemble: Stages[s][c] is the tree
// for class c at boosting stage s. Scores are Init + LearningRate * sum and
// are turned into probabilities with softmax.
type ClassifierSpec struct {
	Init         [NumClasses]float64 `json:"init"`
	LearningRate float64             `json:"learning_rate"`
	Stages       [][]Tree            `json:"stages"`
}

// RegressorSpec is a boosted regression ensemble.
type RegressorSpec struct {
	Init         float64 `json:"init"`
	LearningRate float64 `json:"learning_rate"`
	Trees        []Tree  `json:"trees"`
}

// Model is a parsed and validated model artifact. It is immutable and safe
// for concurrent use.
type Model struct {
	Version    string         `json:"version"`
	Features   int            `json:"n_features"`
	Classifier ClassifierSpec `json:"classifier"`
	Regressor  RegressorSpec  `json:"regressor"`
}

// ParseModel decodes a JSON model artifact and validates its structure.
func ParseModel(data []byte) (*Model, error) {
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("inference: decode model: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("inference: invalid model %q: %w", m.Version, err)
	}
	return &m, nil
}

func (m *Model) validate() error {
	if m.Features != NumFeatures {
		return fmt.Errorf("model expects %d features, want %d", m.Features, NumFeatures)
	}
	if len(m.Classifier.Stages) == 0 {
		return errors.New("classifier has no stages")
	}
	for s, stage := range m.Classifier.Stages {
		if len(stage) != NumClasses {
			return fmt.Errorf("classifier stage %d has %d trees, want %d", s, len(stage), NumClasses)
		}
		for c, t := range stage {
			if err := t.validate(m.Features); err != nil {
				return fmt.Errorf("classifier stage %d class %d: %w", s, c, err)
			}
		}
	}
	for i, t := range m.Regressor.Trees {
		if err := t.validate(m.Features); err != nil {
			return fmt.Errorf("regressor tree %d: %w", i, err)
		}
	}
	return nil
}

// Predict runs both ensembles over one feature row.
func (m *Model) Predict(x [NumFeatures]float64) Raw {
	row := x[:]

	var scores [NumClasses]float64
	for c := range scores {
		scores[c] = m.Classifier.Init[c]
	}
	for _, stage := range m.Classifier.Stages {
		for c, t := range stage {
			scores[c] += m.Classifier.LearningRate * t.eval(row)
		}
	}

	recovery := m.Regressor.Init
	for _, t := range m.Regressor.Trees {
		recovery += m.Regressor.LearningRate * t.eval(row)
	}

	return Raw{Probabilities: softmax(scores), RecoveryHours: recovery}
}

func softmax(scores [NumClasses]float64) [NumClasses]float64 {
	hi := scores[0]
	for _, s := range scores[1:] {
		hi = math.Max(hi, s)
	}
	var out [NumClasses]float64
	var sum float64
	for i, s := range scores {
		out[i] = math.Exp(s - hi)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
