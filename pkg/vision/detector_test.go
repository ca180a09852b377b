package vision

import (
	"context"
	"image"
	"image/color"
	"testing"
)

// createTestImage creates a flat background with a high contrast block on the right
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			// checkerboard subject in the right half
			if x > width/2 && x < 7*width/8 && y > height/4 && y < 3*height/4 {
				if (x/4+y/4)%2 == 0 {
					img.Set(x, y, color.RGBA{255, 255, 255, 255})
				} else {
					img.Set(x, y, color.RGBA{0, 0, 0, 255})
				}
			} else {
				img.Set(x, y, color.RGBA{40, 40, 40, 255})
			}
		}
	}

	return img
}

func TestNew(t *testing.T) {
	detector := New()
	if detector == nil {
		t.Fatal("New() returned nil")
	}

	if detector.config.EdgeThreshold != 0.01 {
		t.Errorf("Expected edge threshold 0.01, got %f", detector.config.EdgeThreshold)
	}
}

func TestNewWithConfig(t *testing.T) {
	cfg := DetectionConfig{
		EdgeThreshold:   0.2,
		ContrastWeight:  0.4,
		ColorWeight:     0.3,
		MinSubjectRatio: 0.2,
	}

	detector := NewWithConfig(cfg)
	if detector.config.EdgeThreshold != 0.2 {
		t.Errorf("Expected edge threshold 0.2, got %f", detector.config.EdgeThreshold)
	}
	if detector.config.AnalysisSize != 256 {
		t.Errorf("Expected default analysis size 256, got %d", detector.config.AnalysisSize)
	}
}

func TestRegionCenter(t *testing.T) {
	region := Region{X: 10, Y: 20, Width: 100, Height: 80}

	centerX, centerY := region.Center()
	if centerX != 60 || centerY != 60 {
		t.Errorf("Expected center (60, 60), got (%d, %d)", centerX, centerY)
	}
}

func TestRegionArea(t *testing.T) {
	region := Region{X: 10, Y: 20, Width: 100, Height: 80}
	if area := region.Area(); area != 8000 {
		t.Errorf("Expected area 8000, got %d", area)
	}
}

func TestDetectSubjects(t *testing.T) {
	detector := New()
	img := createTestImage(200, 200)

	regions, err := detector.DetectSubjects(img)
	if err != nil {
		t.Fatalf("DetectSubjects failed: %v", err)
	}

	if len(regions) == 0 {
		t.Fatal("Expected to detect at least one region")
	}

	for i, region := range regions {
		if region.Width <= 0 || region.Height <= 0 {
			t.Errorf("Region %d has invalid dimensions: %dx%d", i, region.Width, region.Height)
		}
		if i > 0 && region.Score > regions[i-1].Score {
			t.Errorf("Regions are not sorted by score at %d", i)
		}
	}
}

func TestLocateFindsSubject(t *testing.T) {
	box, err := New().Locate(context.Background(), createTestImage(400, 400))
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}

	center := box.Center()
	cx, cy := center.X, center.Y
	if cx <= 0.5 {
		t.Errorf("Expected subject in the right half, got center x %f", cx)
	}
	if cy < 0.2 || cy > 0.8 {
		t.Errorf("Expected subject near the vertical middle, got center y %f", cy)
	}
	if box.X < 0 || box.Y < 0 || box.X+box.W > 1.0001 || box.Y+box.H > 1.0001 {
		t.Errorf("Box is not normalized: %+v", box)
	}
}

func TestLocateFlatImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	box, err := New().Locate(context.Background(), img)
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if box != centeredBox {
		t.Errorf("Expected centered fallback box, got %+v", box)
	}
}

func TestLocateCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().Locate(ctx, createTestImage(50, 50)); err == nil {
		t.Error("Expected error for canceled context")
	}
}

func TestCalculateSaliencyMap(t *testing.T) {
	detector := New()
	img := createTestImage(100, 100)

	saliencyMap := detector.calculateSaliencyMap(img)
	if len(saliencyMap) != 100 || len(saliencyMap[0]) != 100 {
		t.Fatalf("Expected 100x100 saliency map, got %dx%d", len(saliencyMap[0]), len(saliencyMap))
	}

	sum := func(x0, y0 int) float64 {
		var s float64
		for y := y0; y < y0+20; y++ {
			for x := x0; x < x0+20; x++ {
				s += saliencyMap[y][x]
			}
		}
		return s
	}
	if sum(60, 40) <= sum(5, 40) {
		t.Error("Expected the textured subject to be more salient than the background")
	}
}

func BenchmarkLocate(b *testing.B) {
	detector := New()
	img := createTestImage(1200, 1600)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		detector.Locate(ctx, img)
	}
}
