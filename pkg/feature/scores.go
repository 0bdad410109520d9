package feature

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	xe "github.com/pombredanne/facereclib/pkg/errors"
)

// Score of a probe against a model.
type Score struct {
	ProbeID string
	Value   float64
}

// WriteScores writes one "<probe_id> <score>" line per score.
func WriteScores(path string, scores []Score) error {
	return WriteFile(path, func(w io.Writer) error {
		for _, s := range scores {
			if _, err := fmt.Fprintf(w, "%s %s\n", s.ProbeID, FormatScore(s.Value)); err != nil {
				return xe.Wrap(err)
			}
		}
		return nil
	})
}

// FormatScore formats a score with the shortest exact representation.
func FormatScore(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func ReadScores(path string) ([]Score, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer f.Close()

	scores := []Score{}
	sc := bufio.NewScanner(f)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("%w: %s l%d: expected 2 columns", xe.ErrMisaligned, path, n)
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s l%d: %v", xe.ErrMisaligned, path, n, err)
		}
		scores = append(scores, Score{ProbeID: fields[0], Value: v})
	}
	if err := sc.Err(); err != nil {
		return nil, xe.Wrap(err)
	}
	return scores, nil
}

// ReadAligned reads a score file whose lines must be probeIDs, in order.
//
// Otherwise it returns xe.ErrMisaligned.
func ReadAligned(path string, probeIDs []string) ([]float64, error) {
	scores, err := ReadScores(path)
	if err != nil {
		return nil, err
	}
	if len(scores) != len(probeIDs) {
		return nil, fmt.Errorf(
			"%w: %s has %d scores for %d probes", xe.ErrMisaligned, path, len(scores), len(probeIDs),
		)
	}
	values := make([]float64, len(scores))
	for i, s := range scores {
		if s.ProbeID != probeIDs[i] {
			return nil, fmt.Errorf(
				"%w: %s l%d is %s, but %s expected", xe.ErrMisaligned, path, i+1, s.ProbeID, probeIDs[i],
			)
		}
		values[i] = s.Value
	}
	return values, nil
}

// ResultLine is a line of a concatenated result file.
type ResultLine struct {
	ModelID       string
	ProbeClientID string
	ProbeID       string
	Score         float64
}

func (l ResultLine) String() string {
	return fmt.Sprintf("%s %s %s %s", l.ModelID, l.ProbeClientID, l.ProbeID, FormatScore(l.Score))
}

// WriteResult writes "<model_id> <probe_client_id> <probe_id> <score>" lines.
func WriteResult(path string, lines []ResultLine) error {
	return WriteFile(path, func(w io.Writer) error {
		for _, l := range lines {
			if _, err := fmt.Fprintln(w, l.String()); err != nil {
				return xe.Wrap(err)
			}
		}
		return nil
	})
}

func ReadResult(path string) ([]ResultLine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	defer f.Close()

	lines := []ResultLine{}
	sc := bufio.NewScanner(f)
	for n := 1; sc.Scan(); n++ {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 4 {
			return nil, fmt.Errorf("%w: %s l%d: expected 4 columns", xe.ErrMisaligned, path, n)
		}
		v, err := strconv.ParseFloat(fields[3], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s l%d: %v", xe.ErrMisaligned, path, n, err)
		}
		lines = append(lines, ResultLine{
			ModelID: fields[0], ProbeClientID: fields[1], ProbeID: fields[2], Score: v,
		})
	}
	return lines, xe.Wrap(sc.Err())
}
