package vision

import (
	"context"
	"image"
	"math"
	"sort"

	"github.com/disintegration/imaging"

	"github.com/deutschvfx-create/EduFlow-2026-Platform-sub000/pkg/types"
)

// SubjectDetector finds the most salient region of a photo without a model.
// It is the offline fallback for centering the passport crop on a face.
type SubjectDetector struct {
	config DetectionConfig
}

// DetectionConfig holds configuration for subject detection
type DetectionConfig struct {
	EdgeThreshold   float64
	ContrastWeight  float64
	ColorWeight     float64
	CenterWeight    float64 // bias towards the middle of the frame
	MinSubjectRatio float64
	AnalysisSize    int // long side the image is reduced to before analysis
}

// New creates a new SubjectDetector with default configuration
func New() *SubjectDetector {
	return &SubjectDetector{
		config: DetectionConfig{
			EdgeThreshold:   0.01,
			ContrastWeight:  0.3,
			ColorWeight:     0.2,
			CenterWeight:    0.5,
			MinSubjectRatio: 0.02,
			AnalysisSize:    256,
		},
	}
}

// NewWithConfig creates a new SubjectDetector with custom configuration
func NewWithConfig(config DetectionConfig) *SubjectDetector {
	if config.AnalysisSize <= 0 {
		config.AnalysisSize = 256
	}
	return &SubjectDetector{config: config}
}

// Region represents a rectangular region of interest in pixels
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
	Score  float64
}

// Center returns the center point of the region
func (r Region) Center() (int, int) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Area returns the area of the region
func (r Region) Area() int {
	return r.Width * r.Height
}

// Locate returns the normalized box of the strongest subject, or a centered
// box when nothing stands out.
func (d *SubjectDetector) Locate(ctx context.Context, img image.Image) (types.Box, error) {
	if err := ctx.Err(); err != nil {
		return types.Box{}, err
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return centeredBox, nil
	}

	small := imaging.Fit(img, d.config.AnalysisSize, d.config.AnalysisSize, imaging.Box)
	regions, err := d.DetectSubjects(small)
	if err != nil {
		return types.Box{}, err
	}
	if len(regions) == 0 {
		return centeredBox, nil
	}

	sw, sh := float64(small.Bounds().Dx()), float64(small.Bounds().Dy())
	best := regions[0]
	return types.Box{
		X: float64(best.X) / sw,
		Y: float64(best.Y) / sh,
		W: float64(best.Width) / sw,
		H: float64(best.Height) / sh,
	}, nil
}

var centeredBox = types.Box{X: 0.25, Y: 0.25, W: 0.5, H: 0.5}

// DetectSubjects analyzes an image and returns regions of interest, best first
func (d *SubjectDetector) DetectSubjects(img image.Image) ([]Region, error) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	saliencyMap := d.calculateSaliencyMap(img)
	regions := d.findImportantRegions(saliencyMap, width, height)
	filtered := d.filterAndScoreRegions(regions, width, height)

	const maxRegions = 10
	if len(filtered) > maxRegions {
		filtered = filtered[:maxRegions]
	}
	return filtered, nil
}

func (d *SubjectDetector) calculateSaliencyMap(img image.Image) [][]float64 {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	saliencyMap := make([][]float64, height)
	for i := range saliencyMap {
		saliencyMap[i] = make([]float64, width)
	}

	neighbors := [8][2]int{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1}}
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			r1, g1, b1, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()

			var edgeStrength float64
			for _, offset := range neighbors {
				r2, g2, b2, _ := img.At(x+offset[0]+bounds.Min.X, y+offset[1]+bounds.Min.Y).RGBA()
				dr := float64(r1) - float64(r2)
				dg := float64(g1) - float64(g2)
				db := float64(b1) - float64(b2)
				edgeStrength += math.Sqrt(dr*dr + dg*dg + db*db)
			}
			edgeStrength /= 8.0 * 65535.0

			brightness := (float64(r1) + float64(g1) + float64(b1)) / (3.0 * 65535.0)
			saliencyMap[y][x] = d.config.ContrastWeight*edgeStrength + d.config.ColorWeight*brightness
		}
	}

	return saliencyMap
}

func (d *SubjectDetector) findImportantRegions(saliencyMap [][]float64, width, height int) []Region {
	var regions []Region

	// portrait-shaped windows, as faces and shoulders are taller than wide
	for _, div := range []int{8, 6, 4, 3} {
		windowW := width / div
		windowH := windowW * 4 / 3
		if windowW < 4 || windowH > height {
			continue
		}
		step := maxInt(1, windowW/4)

		for y := 0; y <= height-windowH; y += step {
			for x := 0; x <= width-windowW; x += step {
				score := d.calculateRegionScore(saliencyMap, x, y, windowW, windowH)
				score *= d.centerPrior(x+windowW/2, y+windowH/2, width, height)

				if score > d.config.EdgeThreshold {
					regions = append(regions, Region{X: x, Y: y, Width: windowW, Height: windowH, Score: score})
				}
			}
		}
	}

	return regions
}

func (d *SubjectDetector) calculateRegionScore(saliencyMap [][]float64, x, y, width, height int) float64 {
	var totalScore float64
	count := 0

	for ry := y; ry < y+height && ry < len(saliencyMap); ry++ {
		for rx := x; rx < x+width && rx < len(saliencyMap[ry]); rx++ {
			totalScore += saliencyMap[ry][rx]
			count++
		}
	}

	if count == 0 {
		return 0
	}
	return totalScore / float64(count)
}

// centerPrior is 1 at the image center and falls to 1-CenterWeight at the corners
func (d *SubjectDetector) centerPrior(cx, cy, width, height int) float64 {
	dx := (float64(cx) - float64(width)/2) / (float64(width) / 2)
	dy := (float64(cy) - float64(height)/2) / (float64(height) / 2)
	dist := math.Sqrt(dx*dx+dy*dy) / math.Sqrt2
	return 1 - d.config.CenterWeight*dist
}

func (d *SubjectDetector) filterAndScoreRegions(regions []Region, imageWidth, imageHeight int) []Region {
	minArea := int(float64(imageWidth*imageHeight) * d.config.MinSubjectRatio)

	var filtered []Region
	for _, region := range regions {
		if region.Area() >= minArea {
			filtered = append(filtered, region)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Score > filtered[j].Score
	})
	return filtered
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
