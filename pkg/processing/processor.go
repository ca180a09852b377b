package processing

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/deutschvfx-create/EduFlow-2026-Platform-sub000/pkg/cropper"
	"github.com/deutschvfx-create/EduFlow-2026-Platform-sub000/pkg/types"
)

// OutputWidth is the pixel width of every baked passport photo
const OutputWidth = 512

// Config holds output settings for baked photos
type Config struct {
	Width      int
	Aspect     cropper.AspectRatio
	Format     string // jpg|png|webp
	Quality    int    // 1-100, for jpg and webp
	Lossless   bool   // webp only
	Background color.Color
}

// DefaultConfig returns 512 px wide passport-aspect JPEGs at quality 90 on white
func DefaultConfig() Config {
	return Config{
		Width:      OutputWidth,
		Aspect:     cropper.Passport,
		Format:     "jpg",
		Quality:    90,
		Background: color.White,
	}
}

// Processor handles image processing operations
type Processor struct {
	config Config
}

// NewProcessor creates a new image processor with default configuration
func NewProcessor() *Processor {
	return &Processor{config: DefaultConfig()}
}

// NewProcessorWithConfig creates a new image processor with custom configuration
func NewProcessorWithConfig(config Config) *Processor {
	if config.Background == nil {
		config.Background = color.White
	}
	return &Processor{config: config}
}

// OutputSize returns the fixed output dimensions: width × round(width·h/w) of the aspect.
func OutputSize(width int, aspect cropper.AspectRatio) (int, int) {
	return width, int(math.Round(float64(width) * float64(aspect.Height) / float64(aspect.Width)))
}

// OutputSize returns the dimensions of images produced by Bake
func (p *Processor) OutputSize() (int, int) {
	return OutputSize(p.config.Width, p.config.Aspect)
}

// Bake rasterizes the crop area of src, rotated clockwise by deg degrees, into
// a fixed-size canvas filled with the background color. The area is given in
// the coordinate space of the rotated bounding box and is scaled to fill the
// whole output. Parts of the area not covered by the rotated source stay white.
func (p *Processor) Bake(src image.Image, deg float64, area types.Area) (*image.NRGBA, error) {
	if src == nil {
		return nil, errors.New("no source image")
	}
	b := src.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("invalid source dimensions %dx%d", b.Dx(), b.Dy())
	}
	if area.Width <= 0 || area.Height <= 0 {
		return nil, fmt.Errorf("invalid crop area %dx%d", area.Width, area.Height)
	}

	// imaging rotates counter-clockwise
	rotated := imaging.Rotate(src, -deg, color.Transparent)

	// imaging sizes its canvas on integer pixel corners; align its center with
	// the exact bounding box the crop area was computed against
	bw, bh := cropper.RotatedSize(b.Dx(), b.Dy(), deg)
	ox := int(math.Round((bw - float64(rotated.Bounds().Dx())) / 2))
	oy := int(math.Round((bh - float64(rotated.Bounds().Dy())) / 2))

	region := imaging.New(area.Width, area.Height, color.Transparent)
	region = imaging.Paste(region, rotated, image.Pt(ox-area.X, oy-area.Y))

	outW, outH := p.OutputSize()
	scaled := imaging.Resize(region, outW, outH, imaging.Lanczos)

	out := imaging.New(outW, outH, p.config.Background)
	return imaging.Overlay(out, scaled, image.Pt(0, 0), 1.0), nil
}

// BakeDataURL bakes and encodes the result as a data URL in the configured format.
// Every failure is reported as types.ErrPhotoSaveFailed.
func (p *Processor) BakeDataURL(src image.Image, deg float64, area types.Area) (string, error) {
	out, err := p.Bake(src, deg, area)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrPhotoSaveFailed, err)
	}
	data, mime, err := p.EncodeBytes(out, p.config.Format, p.config.Quality, p.config.Lossless)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrPhotoSaveFailed, err)
	}
	return EncodeDataURL(data, mime), nil
}

// Encode writes img to w in the given format
func (p *Processor) Encode(w io.Writer, img image.Image, format string, quality int, lossless bool) error {
	switch strings.ToLower(format) {
	case "webp":
		return webp.Encode(w, img, &webp.Options{Lossless: lossless, Quality: float32(quality)})
	case "png":
		return imaging.Encode(w, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression))
	case "jpg", "jpeg", "":
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// EncodeBytes encodes img and returns the bytes with their MIME type
func (p *Processor) EncodeBytes(img image.Image, format string, quality int, lossless bool) ([]byte, string, error) {
	var buf bytes.Buffer
	if err := p.Encode(&buf, img, format, quality, lossless); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), MIMEType(format), nil
}

// MIMEType returns the MIME type for an output format name
func MIMEType(format string) string {
	switch strings.ToLower(format) {
	case "png":
		return "image/png"
	case "webp":
		return "image/webp"
	case "gif":
		return "image/gif"
	case "bmp":
		return "image/bmp"
	case "tiff":
		return "image/tiff"
	default:
		return "image/jpeg"
	}
}

// EncodeDataURL builds a base64 data URL
func EncodeDataURL(data []byte, mime string) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL splits a base64 data URL into its payload and MIME type
func DecodeDataURL(dataURL string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return nil, "", errors.New("not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", errors.New("malformed data URL")
	}
	mime, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return nil, "", errors.New("data URL is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode data URL: %w", err)
	}
	return data, mime, nil
}

// LoadPhoto loads a stored photo given as a data URL, an http(s) URL or a file path
func (p *Processor) LoadPhoto(ctx context.Context, ref string) (image.Image, error) {
	switch {
	case strings.HasPrefix(ref, "data:"):
		data, _, err := DecodeDataURL(ref)
		if err != nil {
			return nil, err
		}
		return decodeImageFromBytes(data)
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return p.LoadImageFromURL(ctx, ref)
	default:
		img, err := imaging.Open(ref)
		if err != nil {
			return nil, fmt.Errorf("failed to open photo: %w", err)
		}
		return img, nil
	}
}

// LoadImageFromURL downloads and decodes an image
func (p *Processor) LoadImageFromURL(ctx context.Context, imageURL string) (image.Image, error) {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %s (only http and https are supported)", parsedURL.Scheme)
	}

	client := &http.Client{Timeout: 30 * time.Second}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "EduFlow-Passport/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: HTTP %d %s", resp.StatusCode, resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("URL does not point to an image (Content-Type: %s)", contentType)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return decodeImageFromBytes(imageData)
}

// decodeImageFromBytes decodes an image from byte data with WebP support
func decodeImageFromBytes(data []byte) (image.Image, error) {
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	return nil, fmt.Errorf("image: unknown or unsupported format")
}

// PrepareImageForModel converts an image to base64 for sending to vision models
func (p *Processor) PrepareImageForModel(img image.Image, format string, maxDim int, quality int) (string, error) {
	if maxDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > maxDim || h > maxDim {
			if w >= h {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
			}
		}
	}

	var buf bytes.Buffer
	switch strings.ToLower(format) {
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return "", err
		}
	default: // jpg
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return "", err
		}
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// SaveImage saves an image to a file with the specified format and quality
func (p *Processor) SaveImage(img image.Image, path, format string, quality int, lossless bool) error {
	switch strings.ToLower(format) {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		return p.Encode(f, img, "webp", quality, lossless)
	case "png":
		return imaging.Save(img, path)
	default: // jpg/jpeg
		return imaging.Save(img, path, imaging.JPEGQuality(quality))
	}
}

// CreateDebugOverlay renders the rotated source on a neutral background with the
// crop frame and its center marked, as the editor shows it.
func (p *Processor) CreateDebugOverlay(src image.Image, deg float64, area types.Area) image.Image {
	b := src.Bounds()
	bw, bh := cropper.RotatedSize(b.Dx(), b.Dy(), deg)
	w, h := int(math.Round(bw)), int(math.Round(bh))

	rotated := imaging.Rotate(src, -deg, color.Transparent)
	canvas := imaging.New(w, h, color.NRGBA{200, 200, 200, 255})
	canvas = imaging.Overlay(canvas, rotated, image.Pt((w-rotated.Bounds().Dx())/2, (h-rotated.Bounds().Dy())/2), 1.0)

	gold := color.NRGBA{255, 204, 0, 255}                   // crop frame
	red := color.NRGBA{255, 0, 0, 255}                      // crop center
	blue := color.NRGBA{0, 170, 255, 255}                   // image center
	stroke := int(math.Max(2, 0.004*float64(minInt(w, h)))) // ~0.4% of min side
	cross := int(math.Max(4, 0.01*float64(minInt(w, h))))   // ~1% of min side

	drawRect(canvas, area.Rect(), gold, stroke)

	px, py := area.X+area.Width/2, area.Y+area.Height/2
	drawHLine(canvas, py, px-cross, px+cross, red)
	drawVLine(canvas, px, py-cross, py+cross, red)

	ix, iy := w/2, h/2
	drawHLine(canvas, iy, ix-6, ix+6, blue)
	drawVLine(canvas, ix, iy-6, iy+6, blue)

	return canvas
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func drawRect(img *image.NRGBA, r image.Rectangle, c color.NRGBA, stroke int) {
	if r.Dx() <= 0 || r.Dy() <= 0 {
		return
	}
	for s := 0; s < stroke; s++ {
		drawHLine(img, r.Min.Y+s, r.Min.X, r.Max.X, c)
		drawHLine(img, r.Max.Y-1-s, r.Min.X, r.Max.X, c)
		drawVLine(img, r.Min.X+s, r.Min.Y, r.Max.Y, c)
		drawVLine(img, r.Max.X-1-s, r.Min.Y, r.Max.Y, c)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if x1 <= 0 || x0 >= img.Bounds().Dx() {
		return
	}
	if x0 < 0 {
		x0 = 0
	}
	if x1 > img.Bounds().Dx() {
		x1 = img.Bounds().Dx()
	}
	i := y*img.Stride + x0*4
	for x := x0; x < x1; x++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	if y1 <= 0 || y0 >= img.Bounds().Dy() {
		return
	}
	if y0 < 0 {
		y0 = 0
	}
	if y1 > img.Bounds().Dy() {
		y1 = img.Bounds().Dy()
	}
	i := y0*img.Stride + x*4
	for y := y0; y < y1; y++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += img.Stride
	}
}
