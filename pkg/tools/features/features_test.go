package features_test

import (
	"context"
	"image"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/google/go-cmp/cmp"
	"github.com/pombredanne/facereclib/pkg/database"
	"github.com/pombredanne/facereclib/pkg/feature"
	"github.com/pombredanne/facereclib/pkg/tools/features"
)

func flat(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func TestPixels(t *testing.T) {
	t.Run("it scales intensities into 0..1", func(t *testing.T) {
		testee, err := features.NewPixels(features.PixelsParams{})
		if err != nil {
			t.Fatal(err)
		}
		img := image.NewGray(image.Rect(0, 0, 2, 1))
		img.Pix[0], img.Pix[1] = 0, 255

		got, err := testee.Extract(img)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(feature.Vector{0, 1}, got); diff != "" {
			t.Errorf("(-expected +actual)\n%s", diff)
		}
	})

	t.Run("it resizes images", func(t *testing.T) {
		testee, err := features.NewPixels(features.PixelsParams{Width: 4, Height: 3})
		if err != nil {
			t.Fatal(err)
		}
		got, err := testee.Extract(flat(16, 16, 51))
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 12 {
			t.Errorf("length: %d", len(got))
		}
	})

	t.Run("it rejects only one of width and height", func(t *testing.T) {
		if _, err := features.NewPixels(features.PixelsParams{Width: 3}); err == nil {
			t.Error("error is expected")
		}
	})
}

func TestMeanFace(t *testing.T) {
	dir := t.TempDir()
	files := []database.File{}
	for i, v := range []uint8{0, 102} {
		path := filepath.Join(dir, string(rune('a'+i))+".png")
		if err := imaging.Save(flat(2, 2, v), path); err != nil {
			t.Fatal(err)
		}
		files = append(files, database.File{ID: path, Path: path})
	}

	testee, err := features.NewMeanFace(features.PixelsParams{})
	if err != nil {
		t.Fatal(err)
	}

	t.Run("it can not extract before loading", func(t *testing.T) {
		if _, err := testee.Extract(flat(2, 2, 0)); err == nil {
			t.Error("error is expected")
		}
	})

	model := filepath.Join(dir, "Extractor.fvec")
	if err := testee.TrainExtractor(context.Background(), files, model); err != nil {
		t.Fatal(err)
	}
	if err := testee.LoadExtractor(model); err != nil {
		t.Fatal(err)
	}

	t.Run("it subtracts the mean face", func(t *testing.T) {
		got, err := testee.Extract(flat(2, 2, 102))
		if err != nil {
			t.Fatal(err)
		}
		for i, v := range got {
			if d := v - 0.2; d < -1e-9 || 1e-9 < d {
				t.Errorf("element %d: %f", i, v)
			}
		}
	})

	t.Run("it fails without training images", func(t *testing.T) {
		if err := testee.TrainExtractor(context.Background(), nil, model); err == nil {
			t.Error("error is expected")
		}
	})
}
