package classify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Entry is a single class probability as returned by the predict endpoint.
type Entry struct {
	Class       string
	Probability float64
}

// ProbabilityMap holds class probabilities in the order the backend sent them.
// A Go map would lose that order, and the order decides ties in Reduce.
type ProbabilityMap []Entry

// Get returns the probability recorded for class. A repeated class reports
// its last value, as decoding does.
func (p ProbabilityMap) Get(class string) (v float64, ok bool) {
	for _, e := range p {
		if e.Class == class {
			v, ok = e.Probability, true
		}
	}
	return v, ok
}

// Set updates class in place, or appends it when it is new.
func (p *ProbabilityMap) Set(class string, prob float64) {
	for i := range *p {
		if (*p)[i].Class == class {
			(*p)[i].Probability = prob
			return
		}
	}
	*p = append(*p, Entry{Class: class, Probability: prob})
}

// compact merges repeated classes: each keeps its first position and its
// last value. p is not modified.
func (p ProbabilityMap) compact() ProbabilityMap {
	out := make(ProbabilityMap, 0, len(p))
	for _, e := range p {
		out.Set(e.Class, e.Probability)
	}
	return out
}

// Classes lists the keys in insertion order.
func (p ProbabilityMap) Classes() []string {
	out := make([]string, 0, len(p))
	for _, e := range p {
		out = append(out, e.Class)
	}
	return out
}

// Validate reports the first entry that is not a finite number.
func (p ProbabilityMap) Validate() error {
	for _, e := range p {
		if math.IsNaN(e.Probability) || math.IsInf(e.Probability, 0) {
			return &InvalidProbabilityError{Class: e.Class, Value: e.Probability}
		}
	}
	return nil
}

// UnmarshalJSON decodes a JSON object keeping its key order. A repeated key
// keeps its first position and takes the last value.
func (p *ProbabilityMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("probabilities: expected JSON object, got %v", tok)
	}
	out := make(ProbabilityMap, 0, 4)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("probabilities: unexpected key %v", tok)
		}
		var v float64
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("probabilities: value for %q: %w", key, err)
		}
		out.Set(key, v)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*p = out
	return nil
}

// MarshalJSON writes the entries as a JSON object in insertion order.
func (p ProbabilityMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Class)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(e.Probability)
		if err != nil {
			return nil, fmt.Errorf("probabilities: value for %q: %w", e.Class, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
