// Package inference runs the trained status classifier and recovery
// regressor against a fixed-order feature vector.
//
// A gradient-boosted tree ensemble is loaded lazily from a local file or S3
// (optionally zstd-compressed) and shared by every request. A remote HTTP
// backend can be substituted through the Backend interface.
package inference

import (
	"fmt"
	"math"
)

// ModelStatus is the class predicted by the status classifier. The numeric
// values match the class order of the trained model.
type ModelStatus int

const (
	StatusNormal ModelStatus = iota
	StatusDelayed
	StatusSuspended
)

// NumClasses is the number of status classes.
const NumClasses = 3

func (s ModelStatus) String() string {
	switch s {
	case StatusNormal:
		return "normal"
	case StatusDelayed:
		return "delayed"
	case StatusSuspended:
		return "suspended"
	default:
		return fmt.Sprintf("ModelStatus(%d)", int(s))
	}
}

// Raw is an unvalidated backend output: class probabilities in ModelStatus
// order and the regressor's recovery estimate in hours.
type Raw struct {
	Probabilities [NumClasses]float64 `json:"probabilities"`
	RecoveryHours float64             `json:"recovery_hours"`
}

// Inference is a validated model result.
type Inference struct {
	Status        ModelStatus
	Probabilities [NumClasses]float64
	// RecoveryHours is 0 when Status is StatusNormal.
	RecoveryHours float64
}

// Probability maps the class distribution onto a 0..100 suspension
// probability. A delay counts as half a suspension.
func (i Inference) Probability() int {
	p := 100 * (i.Probabilities[StatusSuspended] + 0.5*i.Probabilities[StatusDelayed])
	return int(math.Max(0, math.Min(100, math.Round(p))))
}

// InferenceError reports any failure on the model path. Callers fall back
// to the rule-based evaluator when they see one.
type InferenceError struct {
	Op  string
	Err error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference: %s: %v", e.Op, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }
