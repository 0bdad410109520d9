package preprocessing_test

import (
	"context"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/pombredanne/facereclib/pkg/tools"
	"github.com/pombredanne/facereclib/pkg/tools/preprocessing"
)

// face draws two dark eyes on a bright background.
func face(w, h int, right, left image.Point) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: 200})
		}
	}
	for _, eye := range []image.Point{right, left} {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				img.SetGray(eye.X+dx, eye.Y+dy, color.Gray{Y: 0})
			}
		}
	}
	return img
}

func TestFaceCrop(t *testing.T) {
	params := preprocessing.FaceCropParams{
		Width: 32, Height: 40,
		RightEye: tools.Point{X: 8, Y: 10},
		LeftEye:  tools.Point{X: 24, Y: 10},
	}
	testee, err := preprocessing.NewFaceCrop(params)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("it moves annotated eyes to configured positions", func(t *testing.T) {
		src := face(100, 100, image.Pt(30, 40), image.Pt(62, 40))
		got, err := testee.Crop(src, &tools.Annotations{
			RightEye: tools.Point{X: 30, Y: 40},
			LeftEye:  tools.Point{X: 62, Y: 40},
		})
		if err != nil {
			t.Fatal(err)
		}
		if b := got.Bounds(); b.Dx() != 32 || b.Dy() != 40 {
			t.Fatalf("unexpected size: %v", b)
		}
		for _, eye := range []image.Point{image.Pt(8, 10), image.Pt(24, 10)} {
			if v := got.GrayAt(eye.X, eye.Y).Y; 100 < v {
				t.Errorf("eye at %v is not dark: %d", eye, v)
			}
		}
		if v := got.GrayAt(16, 30).Y; v < 150 {
			t.Errorf("background is not bright: %d", v)
		}
	})

	t.Run("it rejects annotations with eyes at the same position", func(t *testing.T) {
		src := face(100, 100, image.Pt(30, 40), image.Pt(62, 40))
		p := tools.Point{X: 30, Y: 40}
		if _, err := testee.Crop(src, &tools.Annotations{RightEye: p, LeftEye: p}); err == nil {
			t.Error("error is expected")
		}
	})

	t.Run("it resizes the whole image without annotations", func(t *testing.T) {
		src := face(64, 80, image.Pt(16, 20), image.Pt(48, 20))
		got, err := testee.Crop(src, nil)
		if err != nil {
			t.Fatal(err)
		}
		if b := got.Bounds(); b.Dx() != 32 || b.Dy() != 40 {
			t.Fatalf("unexpected size: %v", b)
		}
	})

	t.Run("it writes a cropped png", func(t *testing.T) {
		dir := t.TempDir()
		input := filepath.Join(dir, "in.png")
		if err := imaging.Save(face(100, 100, image.Pt(30, 40), image.Pt(62, 40)), input); err != nil {
			t.Fatal(err)
		}
		output := filepath.Join(dir, "out", "face.png")
		annot := &tools.Annotations{
			RightEye: tools.Point{X: 30, Y: 40},
			LeftEye:  tools.Point{X: 62, Y: 40},
		}
		if err := testee.Preprocess(context.Background(), input, annot, output); err != nil {
			t.Fatal(err)
		}
		got, err := tools.LoadGray(output)
		if err != nil {
			t.Fatal(err)
		}
		if b := got.Bounds(); b.Dx() != 32 || b.Dy() != 40 {
			t.Errorf("unexpected size: %v", b)
		}
	})

	t.Run("it rejects broken parameters", func(t *testing.T) {
		for name, p := range map[string]preprocessing.FaceCropParams{
			"zero width":      {Width: 0, Height: 10, RightEye: tools.Point{X: 1}, LeftEye: tools.Point{X: 2}},
			"eyes overlapped": {Width: 10, Height: 10},
		} {
			if _, err := preprocessing.NewFaceCrop(p); err == nil {
				t.Errorf("%s: error is expected", name)
			}
		}
	})
}

func TestSelfQuotient(t *testing.T) {
	params := preprocessing.DefaultSelfQuotientParams()
	params.Width, params.Height = 16, 16
	params.RightEye = tools.Point{X: 4, Y: 4}
	params.LeftEye = tools.Point{X: 12, Y: 4}
	testee, err := preprocessing.NewSelfQuotient(params)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("it stretches the quotient into full range", func(t *testing.T) {
		src := face(16, 16, image.Pt(4, 4), image.Pt(12, 4))
		got := testee.Quotient(src)

		lo, hi := uint8(255), uint8(0)
		for _, v := range got.Pix {
			lo = min(lo, v)
			hi = max(hi, v)
		}
		if lo != 0 || hi != 255 {
			t.Errorf("range is [%d, %d]", lo, hi)
		}
	})

	t.Run("it makes flat image flat", func(t *testing.T) {
		src := image.NewGray(image.Rect(0, 0, 16, 16))
		for i := range src.Pix {
			src.Pix[i] = 90
		}
		got := testee.Quotient(src)
		for i, v := range got.Pix {
			if v != 0 {
				t.Fatalf("pixel %d is %d", i, v)
			}
		}
	})

	t.Run("it rejects non positive sigma", func(t *testing.T) {
		p := preprocessing.DefaultSelfQuotientParams()
		p.Sigma = 0
		if _, err := preprocessing.NewSelfQuotient(p); err == nil {
			t.Error("error is expected")
		}
	})
}
