// Package session holds the state of one passport photo edit: the decoded
// source, the crop center, zoom and rotation. Every setter recomputes the crop
// area from scratch, so the area is always a pure function of the state.
package session

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/deutschvfx-create/EduFlow-2026-Platform-sub000/pkg/cropper"
	"github.com/deutschvfx-create/EduFlow-2026-Platform-sub000/pkg/ingest"
	"github.com/deutschvfx-create/EduFlow-2026-Platform-sub000/pkg/processing"
	"github.com/deutschvfx-create/EduFlow-2026-Platform-sub000/pkg/store"
	"github.com/deutschvfx-create/EduFlow-2026-Platform-sub000/pkg/types"
)

// Locator finds the subject of a photo as a normalized box in source coordinates.
type Locator interface {
	Locate(ctx context.Context, img image.Image) (types.Box, error)
}

// State is a snapshot of the editable parameters
type State struct {
	Center    types.Point     `json:"center"`
	Transform types.Transform `json:"transform"`
	Area      types.Area      `json:"area"`
}

// Session is one edit of one profile photo. Setters are safe for concurrent
// use; at most one Bake or Save runs at a time.
type Session struct {
	id        string
	ref       types.ProfileRef
	cropper   *cropper.Cropper
	processor *processing.Processor
	logger    *zap.Logger

	mu        sync.Mutex
	src       *ingest.Source
	center    types.Point
	transform types.Transform
	closed    bool

	busy sync.Mutex
}

// Option configures a Session
type Option func(*Session)

// WithCropper sets the crop geometry
func WithCropper(c *cropper.Cropper) Option {
	return func(s *Session) { s.cropper = c }
}

// WithProcessor sets the bake and encode settings
func WithProcessor(p *processing.Processor) Option {
	return func(s *Session) { s.processor = p }
}

// WithLogger sets the session logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// New starts a session on a decoded source for the given profile
func New(src *ingest.Source, ref types.ProfileRef, opts ...Option) (*Session, error) {
	if src == nil || src.Image == nil {
		return nil, fmt.Errorf("%w: no source image", types.ErrUnsupportedFormat)
	}
	if err := types.Validate(ref); err != nil {
		return nil, err
	}

	s := &Session{
		id:        uuid.NewString(),
		ref:       ref,
		cropper:   cropper.New(),
		processor: processing.NewProcessor(),
		logger:    zap.NewNop(),
		src:       src,
		center:    types.Centered,
		transform: types.Identity,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("session_id", s.id))
	return s, nil
}

// ID returns the session identifier
func (s *Session) ID() string { return s.id }

// Ref returns the profile the session edits
func (s *Session) Ref() types.ProfileRef { return s.ref }

// Source returns the decoded upload, or nil after Cancel
func (s *Session) Source() *ingest.Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src
}

// areaLocked must be called with mu held
func (s *Session) areaLocked() types.Area {
	return s.cropper.CropArea(s.src.Width, s.src.Height, s.center, s.transform)
}

func (s *Session) update(fn func()) (types.Area, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return types.Area{}, types.ErrSessionClosed
	}
	fn()
	return s.areaLocked(), nil
}

// Area returns the current crop rectangle in rotated-source pixels
func (s *Session) Area() (types.Area, error) {
	return s.update(func() {})
}

// State returns a snapshot of the editable parameters
func (s *Session) State() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return State{}, types.ErrSessionClosed
	}
	return State{Center: s.center, Transform: s.transform, Area: s.areaLocked()}, nil
}

// SetCenter moves the crop center, given normalized in the rotated source
func (s *Session) SetCenter(p types.Point) (types.Area, error) {
	return s.update(func() { s.center = cropper.ClampCenter(p) })
}

// SetZoom sets the zoom factor, clamped to the cropper's range
func (s *Session) SetZoom(z float64) (types.Area, error) {
	return s.update(func() { s.transform.Zoom = s.cropper.ClampZoom(z) })
}

// SetRotation sets the clockwise rotation in degrees, clamped to the cropper's range
func (s *Session) SetRotation(deg float64) (types.Area, error) {
	return s.update(func() { s.transform.Rotation = s.cropper.ClampRotation(deg) })
}

// Nudge drags the crop by dx, dy rotated-source pixels. The center snaps to
// where the crop actually ends up, so dragging past an edge does not build up.
func (s *Session) Nudge(dx, dy float64) (types.Area, error) {
	return s.update(func() {
		bw, bh := cropper.RotatedSize(s.src.Width, s.src.Height, s.transform.Rotation)
		s.center = cropper.ClampCenter(types.Point{
			X: s.center.X + dx/bw,
			Y: s.center.Y + dy/bh,
		})
		s.center = cropper.CenterOf(s.areaLocked(), s.src.Width, s.src.Height, s.transform.Rotation)
	})
}

// Reset restores zoom 1, rotation 0 and a centered crop
func (s *Session) Reset() (types.Area, error) {
	return s.update(func() {
		s.center = types.Centered
		s.transform = types.Identity
	})
}

// AutoCenter asks the locator for the subject and centers the crop on it
func (s *Session) AutoCenter(ctx context.Context, loc Locator) (types.Area, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return types.Area{}, types.ErrSessionClosed
	}
	img := s.src.Image
	s.mu.Unlock()

	box, err := loc.Locate(ctx, img)
	if err != nil {
		return types.Area{}, fmt.Errorf("locate subject: %w", err)
	}

	return s.update(func() {
		s.center = cropper.RotatePoint(box.Center(), s.src.Width, s.src.Height, s.transform.Rotation)
		s.logger.Debug("auto centered",
			zap.Float64("x", s.center.X),
			zap.Float64("y", s.center.Y))
	})
}

// Bake rasterizes the current crop and returns the encoded data URL.
// It fails with ErrSessionBusy while another Bake or Save is running and
// with ErrPhotoSaveFailed when drawing or encoding fails; the state is kept.
func (s *Session) Bake(ctx context.Context) (string, error) {
	if !s.busy.TryLock() {
		return "", types.ErrSessionBusy
	}
	defer s.busy.Unlock()
	return s.bake(ctx)
}

func (s *Session) bake(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", types.ErrSessionClosed
	}
	img, deg, area := s.src.Image, s.transform.Rotation, s.areaLocked()
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", types.ErrPhotoSaveFailed, err)
	}
	return s.processor.BakeDataURL(img, deg, area)
}

// Save bakes the crop and hands it to saver for the session's profile.
// A session canceled while baking never reaches the saver.
func (s *Session) Save(ctx context.Context, saver store.PhotoSaver) (string, error) {
	if !s.busy.TryLock() {
		return "", types.ErrSessionBusy
	}
	defer s.busy.Unlock()

	dataURL, err := s.bake(ctx)
	if err != nil {
		s.logger.Warn("bake failed", zap.Error(err))
		return "", err
	}

	if s.Closed() {
		return "", types.ErrSessionClosed
	}
	if err := saver.SavePhoto(ctx, s.ref, dataURL); err != nil {
		s.logger.Warn("save failed", zap.Error(err))
		return "", fmt.Errorf("%w: %w", types.ErrPhotoSaveFailed, err)
	}

	s.logger.Info("photo saved",
		zap.String("role", s.ref.Role.String()),
		zap.String("profile_id", s.ref.ID),
		zap.Int("bytes", len(dataURL)))
	return dataURL, nil
}

// Preview draws the rotated source with the current crop frame
func (s *Session) Preview() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, types.ErrSessionClosed
	}
	return s.processor.CreateDebugOverlay(s.src.Image, s.transform.Rotation, s.areaLocked()), nil
}

// Cancel discards the session. Nothing is saved and later calls fail with ErrSessionClosed.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.src = nil
	s.center = types.Centered
	s.transform = types.Identity
	s.logger.Info("session canceled")
}

// Closed reports whether Cancel was called
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
