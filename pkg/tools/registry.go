package tools

import (
	"fmt"
	"sort"

	xe "github.com/pombredanne/facereclib/pkg/errors"
)

// Params names a tool and decodes its parameters.
type Params interface {
	Name() string
	Decode(v any) error
}

type Factory[T any] func(Params) (T, error)

// Registry builds tools by name.
type Registry struct {
	preprocessors map[string]Factory[Preprocessor]
	extractors    map[string]Factory[Extractor]
	scorers       map[string]Factory[Scorer]
}

func NewRegistry() *Registry {
	return &Registry{
		preprocessors: map[string]Factory[Preprocessor]{},
		extractors:    map[string]Factory[Extractor]{},
		scorers:       map[string]Factory[Scorer]{},
	}
}

func (r *Registry) RegisterPreprocessor(name string, f Factory[Preprocessor]) *Registry {
	r.preprocessors[name] = f
	return r
}

func (r *Registry) RegisterExtractor(name string, f Factory[Extractor]) *Registry {
	r.extractors[name] = f
	return r
}

func (r *Registry) RegisterScorer(name string, f Factory[Scorer]) *Registry {
	r.scorers[name] = f
	return r
}

func build[T any](kind string, factories map[string]Factory[T], p Params) (T, error) {
	f, ok := factories[p.Name()]
	if !ok {
		names := make([]string, 0, len(factories))
		for n := range factories {
			names = append(names, n)
		}
		sort.Strings(names)
		return *new(T), fmt.Errorf("%w: %s %q (known: %v)", xe.ErrUnknownTool, kind, p.Name(), names)
	}
	t, err := f(p)
	if err != nil {
		return *new(T), xe.Configuration("%s %q: %v", kind, p.Name(), err)
	}
	return t, nil
}

func (r *Registry) Preprocessor(p Params) (Preprocessor, error) {
	return build("preprocessor", r.preprocessors, p)
}

func (r *Registry) Extractor(p Params) (Extractor, error) {
	return build("extractor", r.extractors, p)
}

func (r *Registry) Scorer(p Params) (Scorer, error) {
	return build("tool", r.scorers, p)
}
