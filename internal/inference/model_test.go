package inference

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leaf(v float64) Tree {
	return Tree{
		Feature:       []int{-2},
		Threshold:     []float64{-2},
		ChildrenLeft:  []int{leafNode},
		ChildrenRight: []int{leafNode},
		Value:         []float64{v},
	}
}

func stump(feature int, threshold, left, right float64) Tree {
	return Tree{
		Feature:       []int{feature, -2, -2},
		Threshold:     []float64{threshold, -2, -2},
		ChildrenLeft:  []int{1, leafNode, leafNode},
		ChildrenRight: []int{2, leafNode, leafNode},
		Value:         []float64{0, left, right},
	}
}

// testModel is a one-stage model: delayed above 15 m/s wind, suspended
// above 20 m/s, recovery 1.5h (6.5h above 3 cm/h snowfall).
func testModel() Model {
	return Model{
		Version:  "test-1",
		Features: NumFeatures,
		Classifier: ClassifierSpec{
			LearningRate: 1,
			Stages: [][]Tree{{
				leaf(0),
				stump(2, 15, 0, 1),
				stump(2, 20, -1, 3),
			}},
		},
		Regressor: RegressorSpec{
			Init:         0.5,
			LearningRate: 1,
			Trees:        []Tree{stump(5, 3, 1, 6)},
		},
	}
}

func testModelJSON(t *testing.T) []byte {
	t.Helper()
	data, err := json.Marshal(testModel())
	require.NoError(t, err)
	return data
}

func TestParseModel_Valid(t *testing.T) {
	m, err := ParseModel(testModelJSON(t))
	require.NoError(t, err)
	assert.Equal(t, "test-1", m.Version)
	assert.Len(t, m.Classifier.Stages, 1)
}

func TestParseModel_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m *Model)
		errMsg string
	}{
		{
			name:   "wrong feature count",
			mutate: func(m *Model) { m.Features = 9 },
			errMsg: "expects 9 features",
		},
		{
			name:   "no stages",
			mutate: func(m *Model) { m.Classifier.Stages = nil },
			errMsg: "no stages",
		},
		{
			name:   "missing class tree",
			mutate: func(m *Model) { m.Classifier.Stages[0] = m.Classifier.Stages[0][:2] },
			errMsg: "has 2 trees",
		},
		{
			name: "backward child",
			mutate: func(m *Model) {
				m.Regressor.Trees[0].ChildrenLeft[0] = 0
			},
			errMsg: "invalid children",
		},
		{
			name: "unknown feature",
			mutate: func(m *Model) {
				m.Classifier.Stages[0][1].Feature[0] = NumFeatures
			},
			errMsg: "unknown feature",
		},
		{
			name: "ragged arrays",
			mutate: func(m *Model) {
				m.Regressor.Trees[0].Threshold = m.Regressor.Trees[0].Threshold[:1]
			},
			errMsg: "differ in length",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := testModel()
			tt.mutate(&m)
			data, err := json.Marshal(m)
			require.NoError(t, err)

			_, err = ParseModel(data)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestParseModel_BadJSON(t *testing.T) {
	_, err := ParseModel([]byte("{not json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode model")
}

func TestModelPredict(t *testing.T) {
	m, err := ParseModel(testModelJSON(t))
	require.NoError(t, err)

	t.Run("calm", func(t *testing.T) {
		raw := m.Predict(Features{WindSpeed: 5}.Vector())
		assert.InDelta(t, 0.4223, raw.Probabilities[StatusNormal], 1e-4)
		assert.InDelta(t, 0.4223, raw.Probabilities[StatusDelayed], 1e-4)
		assert.InDelta(t, 0.1554, raw.Probabilities[StatusSuspended], 1e-4)
		assert.InDelta(t, 1.5, raw.RecoveryHours, 1e-9)
	})

	t.Run("storm with snow", func(t *testing.T) {
		raw := m.Predict(Features{WindSpeed: 25, Snowfall: 4}.Vector())
		assert.InDelta(t, 0.8438, raw.Probabilities[StatusSuspended], 1e-4)
		assert.InDelta(t, 0.1142, raw.Probabilities[StatusDelayed], 1e-4)
		assert.InDelta(t, 6.5, raw.RecoveryHours, 1e-9)
	})
}

func TestSoftmax_SumsToOne(t *testing.T) {
	for _, scores := range [][NumClasses]float64{
		{0, 0, 0},
		{1000, 0, -1000},
		{-3.5, 2.25, 0.1},
	} {
		p := softmax(scores)
		assert.InDelta(t, 1.0, p[0]+p[1]+p[2], 1e-9)
	}
}
