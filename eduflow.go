// Package eduflow is the passport photo pipeline of the EduFlow school
// dashboard.
//
// A photo edit goes through four steps:
//
//  1. Ingest (pkg/ingest): size check, HEIC/HEIF conversion and decoding
//  2. Edit (pkg/session): crop center, zoom and rotation against the fixed
//     165:230 passport frame
//  3. Bake (pkg/processing): rasterize the crop into a 512×714 white-backed
//     JPEG and hand its data URL to the profile store (pkg/store)
//  4. Card (pkg/card): render, export or print the passport card with a
//     verification QR code
//
// Basic usage:
//
//	editor, err := eduflow.New(config.Default(), store.NewMemory(), logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	sess, err := editor.Open(ctx, org, ref, upload)
//	if err != nil {
//		log.Fatal(err)
//	}
//	sess.SetZoom(1.5)
//	sess.SetRotation(15)
//
//	if _, err := editor.Commit(ctx, sess); err != nil {
//		log.Fatal(err)
//	}
//
// The initial crop is centered on the face when a locator is configured:
// the local saliency detector (pkg/vision) or a vision model served by
// Ollama or llama.cpp (pkg/detection).
package eduflow

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"

	"go.uber.org/zap"

	"github.com/deutschvfx-create/EduFlow-2026-Platform-sub000/internal/config"
	"github.com/deutschvfx-create/EduFlow-2026-Platform-sub000/internal/logging"
	"github.com/deutschvfx-create/EduFlow-2026-Platform-sub000/pkg/card"
	"github.com/deutschvfx-create/EduFlow-2026-Platform-sub000/pkg/cropper"
	"github.com/deutschvfx-create/EduFlow-2026-Platform-sub000/pkg/detection"
	"github.com/deutschvfx-create/EduFlow-2026-Platform-sub000/pkg/ingest"
	"github.com/deutschvfx-create/EduFlow-2026-Platform-sub000/pkg/llamacpp"
	"github.com/deutschvfx-create/EduFlow-2026-Platform-sub000/pkg/ollama"
	"github.com/deutschvfx-create/EduFlow-2026-Platform-sub000/pkg/processing"
	"github.com/deutschvfx-create/EduFlow-2026-Platform-sub000/pkg/session"
	"github.com/deutschvfx-create/EduFlow-2026-Platform-sub000/pkg/store"
	"github.com/deutschvfx-create/EduFlow-2026-Platform-sub000/pkg/types"
	"github.com/deutschvfx-create/EduFlow-2026-Platform-sub000/pkg/vision"
)

// Version of the passport photo library
const Version = "1.0.0"

// Editor wires ingestion, editing, persistence and card rendering together
type Editor struct {
	cfg       *config.Config
	ingester  *ingest.Ingester
	cropper   *cropper.Cropper
	processor *processing.Processor
	renderer  *card.Renderer
	locator   session.Locator
	saver     store.PhotoSaver
	logger    *zap.Logger
}

// New creates an Editor. A nil cfg uses config.Default and a nil logger logs nothing.
func New(cfg *config.Config, saver store.PhotoSaver, logger *zap.Logger) (*Editor, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if saver == nil {
		return nil, errors.New("a photo saver is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	crop, err := cropper.NewWithConfig(cropper.CropConfig{
		Aspect:      cropper.Passport,
		MinZoom:     cfg.Cropper.MinZoom,
		MaxZoom:     cfg.Cropper.MaxZoom,
		MaxRotation: cfg.Cropper.MaxRotation,
	})
	if err != nil {
		return nil, err
	}

	renderer, err := card.NewRenderer(cfg.Card.Scale, cfg.Card.Origin)
	if err != nil {
		return nil, err
	}

	locator, err := NewLocator(cfg.Locator)
	if err != nil {
		return nil, err
	}

	return &Editor{
		cfg: cfg,
		ingester: ingest.NewWithConfig(ingest.Config{
			MaxUploadSize:    cfg.Ingest.MaxUploadSize,
			ConvertQuality:   cfg.Ingest.ConvertQuality,
			SupportedFormats: cfg.Ingest.SupportedFormats,
			MinImageSize:     cfg.Ingest.MinImageSize,
		}),
		cropper: crop,
		processor: processing.NewProcessorWithConfig(processing.Config{
			Width:      cfg.Output.Width,
			Aspect:     cropper.Passport,
			Format:     cfg.Output.Format,
			Quality:    cfg.Output.Quality,
			Lossless:   cfg.Output.Lossless,
			Background: color.White,
		}),
		renderer: renderer,
		locator:  locator,
		saver:    saver,
		logger:   logger,
	}, nil
}

// NewLocator builds the subject locator selected by cfg.Mode. Mode "none" returns nil.
func NewLocator(cfg config.LocatorConfig) (session.Locator, error) {
	opts := detection.DefaultOptions(cfg.Model)
	if cfg.MaxDimension > 0 {
		opts.MaxDimension = cfg.MaxDimension
	}
	opts.MinConfidence = cfg.MinConfidence

	switch cfg.Mode {
	case "", "none":
		return nil, nil
	case "saliency":
		return vision.New(), nil
	case "ollama":
		c, err := ollama.NewClient(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("ollama client: %w", err)
		}
		return detection.NewDetector(c, opts), nil
	case "llamacpp":
		c, err := llamacpp.NewClient(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("llama.cpp client: %w", err)
		}
		return detection.NewDetector(c, opts), nil
	}
	return nil, fmt.Errorf("unknown locator mode %q", cfg.Mode)
}

// SetLocator replaces the subject locator; nil disables auto centering
func (e *Editor) SetLocator(l session.Locator) {
	e.locator = l
}

// Processor returns the bake and encode pipeline
func (e *Editor) Processor() *processing.Processor {
	return e.processor
}

// Renderer returns the card renderer
func (e *Editor) Renderer() *card.Renderer {
	return e.renderer
}

// Open ingests an upload and starts an edit session for the profile ref.
// The crop starts centered on the face when a locator is set; a locator
// failure only leaves the crop centered.
func (e *Editor) Open(ctx context.Context, org types.Organization, ref types.ProfileRef, upload ingest.Upload) (*session.Session, error) {
	log := logging.WithOperation(e.logger, "open", "").With(
		zap.String("org_id", org.ID),
		zap.String("role", ref.Role.String()),
		zap.String("profile_id", ref.ID),
		zap.String("file", upload.Name))

	src, err := e.ingester.Ingest(ctx, upload)
	if err != nil {
		log.Warn("ingest failed", zap.Error(err))
		return nil, logging.NewOperationError("open", "", err)
	}

	sess, err := session.New(src, ref,
		session.WithCropper(e.cropper),
		session.WithProcessor(e.processor),
		session.WithLogger(e.logger))
	if err != nil {
		return nil, logging.NewOperationError("open", "", err)
	}

	if e.locator != nil {
		if _, err := sess.AutoCenter(ctx, e.locator); err != nil {
			log.Warn("auto centering failed", zap.String("session_id", sess.ID()), zap.Error(err))
		}
	}

	log.Info("session opened",
		zap.String("session_id", sess.ID()),
		zap.String("format", src.Format),
		zap.Int("width", src.Width),
		zap.Int("height", src.Height),
		zap.Bool("converted", src.Converted))
	return sess, nil
}

// Commit bakes the session's crop and saves it on the profile
func (e *Editor) Commit(ctx context.Context, sess *session.Session) (string, error) {
	dataURL, err := sess.Save(ctx, e.saver)
	if err != nil {
		logging.WithOperation(e.logger, "commit", sess.ID()).Warn("commit failed", zap.Error(err))
		return "", logging.NewOperationError("commit", sess.ID(), err)
	}
	return dataURL, nil
}

// Cancel discards the session; the stored photo stays as it was
func (e *Editor) Cancel(sess *session.Session) {
	sess.Cancel()
}

// RenderCard renders the passport card of p using its stored photo, if any
func (e *Editor) RenderCard(ctx context.Context, org types.Organization, p types.Profile) (*image.NRGBA, error) {
	renderer := e.renderer
	if org.Origin != "" {
		r, err := card.NewRenderer(e.cfg.Card.Scale, org.Origin)
		if err != nil {
			return nil, logging.NewOperationError("render_card", "", err)
		}
		renderer = r
	}

	var photo image.Image
	if p.PhotoURL != "" {
		img, err := e.processor.LoadPhoto(ctx, p.PhotoURL)
		if err != nil {
			return nil, logging.NewOperationError("render_card", "", fmt.Errorf("load photo: %w", err))
		}
		photo = img
	}

	out, err := renderer.Render(org, p, photo)
	if err != nil {
		return nil, logging.NewOperationError("render_card", "", err)
	}
	return out, nil
}

// ExportCard renders the card and writes it into dir as <ROLE>_<LASTNAME>_<FIRSTNAME>.png
func (e *Editor) ExportCard(ctx context.Context, org types.Organization, p types.Profile, dir string) (string, error) {
	img, err := e.RenderCard(ctx, org, p)
	if err != nil {
		return "", err
	}
	path, err := e.renderer.ExportFile(dir, p, img)
	if err != nil {
		return "", logging.NewOperationError("export_card", "", err)
	}
	e.logger.Info("card exported", zap.String("path", path))
	return path, nil
}

// PrintCard renders the card and sends it to printer
func (e *Editor) PrintCard(ctx context.Context, org types.Organization, p types.Profile, printer card.Printer) error {
	img, err := e.RenderCard(ctx, org, p)
	if err != nil {
		return err
	}
	if err := printer.Print(ctx, img); err != nil {
		return logging.NewOperationError("print_card", "", err)
	}
	return nil
}
