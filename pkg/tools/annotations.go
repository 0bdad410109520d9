package tools

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	xe "github.com/pombredanne/facereclib/pkg/errors"
)

// Point is a location in image coordinates.
type Point struct {
	X float64
	Y float64
}

// Annotations are eye positions of a face.
//
// The right eye is the eye of the subject's right, at the smaller x.
type Annotations struct {
	RightEye Point
	LeftEye  Point
}

// ReadAnnotations reads an eye position file.
//
// It skips the first `skip` whitespace separated tokens, then reads
// right eye x, right eye y, left eye x and left eye y.
func ReadAnnotations(path string, skip int) (*Annotations, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	return ParseAnnotations(string(content), skip)
}

func ParseAnnotations(content string, skip int) (*Annotations, error) {
	tokens := strings.Fields(content)
	if len(tokens) < skip+4 {
		return nil, fmt.Errorf("annotation has %d tokens, but %d required", len(tokens), skip+4)
	}

	values := make([]float64, 4)
	for i := range values {
		v, err := strconv.ParseFloat(tokens[skip+i], 64)
		if err != nil {
			return nil, fmt.Errorf("annotation token #%d: %w", skip+i, err)
		}
		values[i] = v
	}
	return &Annotations{
		RightEye: Point{X: values[0], Y: values[1]},
		LeftEye:  Point{X: values[2], Y: values[3]},
	}, nil
}
