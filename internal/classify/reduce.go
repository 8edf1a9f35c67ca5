package classify

import "fmt"

// Known class names emitted by the predict endpoint.
const (
	NonDemented      = "NonDemented"
	VeryMildDemented = "VeryMildDemented"
	MildDemented     = "MildDemented"
	ModerateDemented = "ModerateDemented"
)

// KnownClasses is the fixed order used by score breakdowns and stats.
var KnownClasses = []string{NonDemented, VeryMildDemented, MildDemented, ModerateDemented}

// ScoreBreakdown carries one percentage per known class.
type ScoreBreakdown struct {
	NonDemented      float64 `json:"non_demented"`
	VeryMildDemented float64 `json:"very_mild_demented"`
	MildDemented     float64 `json:"mild_demented"`
	ModerateDemented float64 `json:"moderate_demented"`
}

// Of returns the percentage for a known class, 0 for anything else.
func (s ScoreBreakdown) Of(class string) float64 {
	switch class {
	case NonDemented:
		return s.NonDemented
	case VeryMildDemented:
		return s.VeryMildDemented
	case MildDemented:
		return s.MildDemented
	case ModerateDemented:
		return s.ModerateDemented
	}
	return 0
}

// Result is what the console renders for one upload.
type Result struct {
	TopClass          string         `json:"top_class"`
	ConfidencePercent float64        `json:"confidence_percent"`
	Scores            ScoreBreakdown `json:"score_breakdown"`
}

// EmptyInputError is returned by Reduce when the backend sent no classes.
type EmptyInputError struct{}

func (*EmptyInputError) Error() string {
	return "empty prediction from server"
}

// InvalidProbabilityError marks a NaN or infinite probability.
type InvalidProbabilityError struct {
	Class string
	Value float64
}

func (e *InvalidProbabilityError) Error() string {
	return fmt.Sprintf("probability for %q is not finite: %v", e.Class, e.Value)
}

// Reduce picks the top class and converts probabilities to percentages.
//
// The scan keeps the first key and only replaces it on a strictly greater
// probability, so on a tie the class that came first in the response wins.
// Known classes absent from probs score 0. Classes outside the known set can
// still be the top class but never appear in the breakdown. A class listed
// twice counts once, at its first position with its last value.
func Reduce(probs ProbabilityMap) (Result, error) {
	if len(probs) == 0 {
		return Result{}, &EmptyInputError{}
	}
	probs = probs.compact()

	top := probs[0]
	for _, e := range probs[1:] {
		if e.Probability > top.Probability {
			top = e
		}
	}

	pct := func(class string) float64 {
		v, _ := probs.Get(class)
		return v * 100
	}

	return Result{
		TopClass:          top.Class,
		ConfidencePercent: top.Probability * 100,
		Scores: ScoreBreakdown{
			NonDemented:      pct(NonDemented),
			VeryMildDemented: pct(VeryMildDemented),
			MildDemented:     pct(MildDemented),
			ModerateDemented: pct(ModerateDemented),
		},
	}, nil
}
