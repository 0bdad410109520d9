// Package dataset builds a small synthetic face database for tests.
//
// It has 3 world identities with 2 images each, 3 dev models with one
// enrolment image each, 5 dev probes compared with every model, one T-norm
// model and 3 Z-norm probes, one of them of the T-norm identity.
package dataset

import (
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/pombredanne/facereclib/pkg/database"
	"github.com/pombredanne/facereclib/pkg/database/filelist"
	"gopkg.in/yaml.v3"
)

const (
	Width  = 24
	Height = 24

	Protocol = "synthetic"
)

type Dataset struct {
	Root     string
	Original string
	Entries  []filelist.Entry
	DB       *filelist.DB
}

// Entries of the synthetic database.
func Entries() []filelist.Entry {
	e := func(id, client, group, purpose string, attrs map[string]string) filelist.Entry {
		return filelist.Entry{ID: id, Client: client, Group: group, Purpose: purpose, Attributes: attrs}
	}
	frontal := map[string]string{"pose": "frontal"}
	left := map[string]string{"pose": "left"}

	return []filelist.Entry{
		e("world/w1/1", "w1", database.World, database.PurposeWorld, frontal),
		e("world/w1/2", "w1", database.World, database.PurposeWorld, left),
		e("world/w2/1", "w2", database.World, database.PurposeWorld, frontal),
		e("world/w2/2", "w2", database.World, database.PurposeWorld, left),
		e("world/w3/1", "w3", database.World, database.PurposeWorld, frontal),
		e("world/w3/2", "w3", database.World, database.PurposeWorld, left),

		e("dev/c1/enrol", "c1", database.Dev, database.PurposeEnrol, frontal),
		e("dev/c2/enrol", "c2", database.Dev, database.PurposeEnrol, frontal),
		e("dev/c3/enrol", "c3", database.Dev, database.PurposeEnrol, frontal),

		e("dev/c1/probe1", "c1", database.Dev, database.PurposeProbe, frontal),
		e("dev/c1/probe2", "c1", database.Dev, database.PurposeProbe, left),
		e("dev/c2/probe1", "c2", database.Dev, database.PurposeProbe, frontal),
		e("dev/c2/probe2", "c2", database.Dev, database.PurposeProbe, left),
		e("dev/c3/probe1", "c3", database.Dev, database.PurposeProbe, frontal),

		e("dev/t1/enrol", "t1", database.Dev, database.PurposeTNorm, frontal),

		e("dev/t1/zprobe", "t1", database.Dev, database.PurposeZNorm, frontal),
		e("dev/z2/zprobe", "z2", database.Dev, database.PurposeZNorm, frontal),
		e("dev/z3/zprobe", "z3", database.Dev, database.PurposeZNorm, left),
	}
}

// New writes original images and a file list under a temporary directory.
func New(t *testing.T) *Dataset {
	t.Helper()

	root := t.TempDir()
	original := filepath.Join(root, "original")
	entries := Entries()

	for n, e := range entries {
		path := filepath.Join(original, e.ID+".png")
		if err := os.MkdirAll(filepath.Dir(path), os.FileMode(0o755)); err != nil {
			t.Fatal(err)
		}
		if err := imaging.Save(Face(e.Client, n), path); err != nil {
			t.Fatal(err)
		}
	}

	buf, err := yaml.Marshal(map[string]any{"name": "synthetic", "files": entries})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "files.yaml"), buf, os.FileMode(0o644)); err != nil {
		t.Fatal(err)
	}

	db, err := filelist.New("synthetic", entries)
	if err != nil {
		t.Fatal(err)
	}
	return &Dataset{Root: root, Original: original, Entries: entries, DB: db}
}

// Face draws a gray image whose pattern is determined by the identity.
// sample adds a small deterministic variation.
func Face(client string, sample int) *image.Gray {
	h := fnv.New32a()
	h.Write([]byte(client))
	seed := h.Sum32()

	fx := 0.2 + float64(seed%7)*0.05
	fy := 0.15 + float64((seed/7)%5)*0.06
	phase := float64(seed%360) * math.Pi / 180

	img := image.NewGray(image.Rect(0, 0, Width, Height))
	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			v := 128 + 80*math.Sin(float64(x)*fx+float64(y)*fy+phase)
			v += float64((sample*7+x*3+y)%5) - 2
			img.SetGray(x, y, color.Gray{Y: uint8(math.Max(0, math.Min(255, v)))})
		}
	}
	return img
}

// FileList is the path of the file list written by New.
func (d *Dataset) FileList() string {
	return filepath.Join(d.Root, "files.yaml")
}

// Config returns an experiment config in yaml for this dataset.
//
// preprocessor, features and tool are yaml flow mappings like "{name: pixels}".
func (d *Dataset) Config(preprocessor, features, tool string) string {
	return fmt.Sprintf(`
name: synthetic
database:
  name: synthetic
  kind: filelist
  fileList: %s
  protocol: %s
  originalDirectory: %s
  originalExtension: .png
preprocessor: %s
features: %s
tool: %s
directories:
  temp: %s
  user: %s
grid:
  chunks:
    images: 4
    features: 4
    projections: 4
    modelsPerEnrolJob: 2
    modelsPerScoreJob: 2
`,
		d.FileList(), Protocol, d.Original,
		preprocessor, features, tool,
		filepath.Join(d.Root, "temp"), filepath.Join(d.Root, "user"),
	)
}
