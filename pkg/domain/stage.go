package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// StageID names one step of the toolchain.
type StageID string

const (
	Preprocess     StageID = "preprocess"
	TrainExtractor StageID = "train-extractor"
	Extract        StageID = "extract"
	TrainProjector StageID = "train-projector"
	Project        StageID = "project"
	TrainEnroler   StageID = "train-enroler"
	Enrol          StageID = "enrol"
	Score          StageID = "score"
	ZTNorm         StageID = "zt-norm"
	Concatenate    StageID = "concatenate"
)

var stages = []StageID{
	Preprocess, TrainExtractor, Extract, TrainProjector, Project,
	TrainEnroler, Enrol, Score, ZTNorm, Concatenate,
}

// Stages lists every stage in execution order.
func Stages() []StageID {
	return append([]StageID{}, stages...)
}

func AsStageID(s string) (StageID, error) {
	for _, st := range stages {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown stage: %q", s)
}

// ModelType is N for client models and T for T-norm cohort models.
type ModelType string

const (
	NormalModel ModelType = "N"
	TNormModel  ModelType = "T"
)

func AsModelType(s string) (ModelType, error) {
	switch ModelType(s) {
	case NormalModel, TNormModel:
		return ModelType(s), nil
	}
	return "", fmt.Errorf("unknown model type: %q (N or T)", s)
}

// ScoreType selects one of the four score matrices.
//
//	A: models   x probes
//	B: models   x Z-probes
//	C: T-models x probes
//	D: T-models x Z-probes
type ScoreType string

const (
	ScoreA ScoreType = "A"
	ScoreB ScoreType = "B"
	ScoreC ScoreType = "C"
	ScoreD ScoreType = "D"
)

func AsScoreType(s string) (ScoreType, error) {
	switch ScoreType(s) {
	case ScoreA, ScoreB, ScoreC, ScoreD:
		return ScoreType(s), nil
	}
	return "", fmt.Errorf("unknown score type: %q (A, B, C or D)", s)
}

// Range is the half open interval [Begin, End) of a list.
type Range struct {
	Begin int `json:"begin"`
	End   int `json:"end"`
}

func (r Range) String() string {
	return fmt.Sprintf("%d:%d", r.Begin, r.End)
}

// Len is the number of items in the range.
func (r Range) Len() int {
	if r.End < r.Begin {
		return 0
	}
	return r.End - r.Begin
}

// ParseRange reads "BEGIN:END".
func ParseRange(s string) (Range, error) {
	b, e, ok := strings.Cut(s, ":")
	if !ok {
		return Range{}, fmt.Errorf("range should be BEGIN:END: %q", s)
	}
	begin, err := strconv.Atoi(strings.TrimSpace(b))
	if err != nil {
		return Range{}, fmt.Errorf("range begin: %w", err)
	}
	end, err := strconv.Atoi(strings.TrimSpace(e))
	if err != nil {
		return Range{}, fmt.Errorf("range end: %w", err)
	}
	r := Range{Begin: begin, End: end}
	if err := r.Validate(); err != nil {
		return Range{}, err
	}
	return r, nil
}

// Validate tells r is 0 <= Begin <= End.
func (r Range) Validate() error {
	if r.Begin < 0 || r.End < r.Begin {
		return fmt.Errorf("range should be 0 <= BEGIN <= END: %s", r)
	}
	return nil
}

// Slice returns the part of items covered by r, clamped to items.
//
// A nil range covers everything. A negative Begin counts from 0.
func Slice[T any](items []T, r *Range) []T {
	if r == nil {
		return items
	}
	begin, end := max(r.Begin, 0), r.End
	if len(items) < end {
		end = len(items)
	}
	if end <= begin {
		return items[:0]
	}
	return items[begin:end]
}

// Split partitions [0, n) into ranges of at most chunk items.
//
// chunk <= 0 yields a single range.
func Split(n int, chunk int) []Range {
	if n <= 0 {
		return []Range{}
	}
	if chunk <= 0 || n <= chunk {
		return []Range{{Begin: 0, End: n}}
	}
	ranges := make([]Range, 0, (n+chunk-1)/chunk)
	for b := 0; b < n; b += chunk {
		e := b + chunk
		if n < e {
			e = n
		}
		ranges = append(ranges, Range{Begin: b, End: e})
	}
	return ranges
}
