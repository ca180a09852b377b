// Package ingest turns uploaded files into decoded source images for a photo
// edit session. It enforces the upload size limit and converts HEIC/HEIF
// photos, as produced by phone cameras, to JPEG before decoding.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/gen2brain/heic"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/deutschvfx-create/EduFlow-2026-Platform-sub000/internal/utils"
	"github.com/deutschvfx-create/EduFlow-2026-Platform-sub000/pkg/processing"
	"github.com/deutschvfx-create/EduFlow-2026-Platform-sub000/pkg/types"
)

// MaxUploadSize is the largest accepted upload, inclusive
const MaxUploadSize = 5 * 1024 * 1024

// Upload is a file chosen by the user
type Upload struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Source is a decoded upload, owned by a single edit session
type Source struct {
	Image     image.Image
	Format    string // decoded format after any conversion, e.g. "jpeg"
	DataURL   string
	Width     int
	Height    int
	Converted bool // true when a HEIC/HEIF upload was converted
}

// Config holds configuration for ingestion
type Config struct {
	MaxUploadSize    int64
	ConvertQuality   int
	SupportedFormats []string
	MinImageSize     int
}

// Ingester validates and decodes uploads
type Ingester struct {
	config Config
}

// DefaultConfig returns the 5 MiB limit and the formats browsers can display
func DefaultConfig() Config {
	return Config{
		MaxUploadSize:    MaxUploadSize,
		ConvertQuality:   90,
		SupportedFormats: []string{"jpeg", "png", "gif", "webp", "bmp", "tiff"},
		MinImageSize:     1,
	}
}

// New creates a new Ingester with default configuration
func New() *Ingester {
	return &Ingester{config: DefaultConfig()}
}

// NewWithConfig creates a new Ingester with custom configuration
func NewWithConfig(config Config) *Ingester {
	if config.MaxUploadSize <= 0 {
		config.MaxUploadSize = MaxUploadSize
	}
	if config.ConvertQuality <= 0 {
		config.ConvertQuality = 90
	}
	if len(config.SupportedFormats) == 0 {
		config.SupportedFormats = DefaultConfig().SupportedFormats
	}
	return &Ingester{config: config}
}

// AcceptedTypes returns the file picker accept list
func AcceptedTypes() string {
	return "image/*,.heic,.heif"
}

// IsLegacyFormat reports whether an upload is HEIC/HEIF, judged by MIME type or extension
func IsLegacyFormat(name, mimeType string) bool {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "image/heic", "image/heif", "image/heic-sequence", "image/heif-sequence":
		return true
	}
	switch utils.GetFileExtension(name) {
	case "heic", "heif":
		return true
	}
	return false
}

// LoadFile reads an upload from disk. Oversized files are rejected before reading.
func (i *Ingester) LoadFile(path string) (Upload, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Upload{}, fmt.Errorf("failed to stat upload: %w", err)
	}
	if err := i.checkSize(info.Size()); err != nil {
		return Upload{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Upload{}, fmt.Errorf("failed to read upload: %w", err)
	}
	return Upload{
		Name:     filepath.Base(path),
		MIMEType: mime.TypeByExtension(filepath.Ext(path)),
		Data:     data,
	}, nil
}

// Ingest validates the upload size, converts legacy formats and decodes the image
func (i *Ingester) Ingest(ctx context.Context, u Upload) (*Source, error) {
	if err := i.checkSize(int64(len(u.Data))); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data := u.Data
	converted := false
	if IsLegacyFormat(u.Name, u.MIMEType) {
		jpg, err := i.ConvertLegacy(data)
		if err != nil {
			return nil, err
		}
		data, converted = jpg, true
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, format, err := i.decode(data)
	if err != nil {
		return nil, err
	}
	if err := i.ValidateImage(img); err != nil {
		return nil, err
	}

	b := img.Bounds()
	return &Source{
		Image:     img,
		Format:    format,
		DataURL:   processing.EncodeDataURL(data, processing.MIMEType(format)),
		Width:     b.Dx(),
		Height:    b.Dy(),
		Converted: converted,
	}, nil
}

// ConvertLegacy decodes HEIC/HEIF data and re-encodes it as JPEG
func (i *Ingester) ConvertLegacy(data []byte) (out []byte, err error) {
	// malformed input must surface as ErrUnsupportedFormat, even if the decoder panics
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("%w: heic conversion failed: %v", types.ErrUnsupportedFormat, r)
		}
	}()

	img, err := heic.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: heic conversion failed: %v", types.ErrUnsupportedFormat, err)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(i.config.ConvertQuality)); err != nil {
		return nil, fmt.Errorf("%w: heic re-encode failed: %v", types.ErrUnsupportedFormat, err)
	}
	return buf.Bytes(), nil
}

// ValidateImage checks if an image meets minimum requirements
func (i *Ingester) ValidateImage(img image.Image) error {
	bounds := img.Bounds()
	if bounds.Dx() < i.config.MinImageSize || bounds.Dy() < i.config.MinImageSize {
		return fmt.Errorf("%w: image too small: %dx%d (minimum: %d)",
			types.ErrUnsupportedFormat, bounds.Dx(), bounds.Dy(), i.config.MinImageSize)
	}
	return nil
}

func (i *Ingester) checkSize(n int64) error {
	if n > i.config.MaxUploadSize {
		return fmt.Errorf("%w: %s exceeds the %s limit", types.ErrFileTooLarge,
			utils.FormatFileSize(n), utils.FormatFileSize(i.config.MaxUploadSize))
	}
	return nil
}

func (i *Ingester) decode(data []byte) (image.Image, string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		// some WebP variants only decode with libwebp
		if img, werr := webp.Decode(bytes.NewReader(data)); werr == nil {
			return img, "webp", nil
		}
		return nil, "", fmt.Errorf("%w: %v", types.ErrUnsupportedFormat, err)
	}
	if !i.isFormatSupported(format) {
		return nil, "", fmt.Errorf("%w: %s", types.ErrUnsupportedFormat, format)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", types.ErrUnsupportedFormat, err)
	}
	return img, format, nil
}

func (i *Ingester) isFormatSupported(format string) bool {
	for _, supported := range i.config.SupportedFormats {
		if strings.EqualFold(format, supported) {
			return true
		}
	}
	return false
}
