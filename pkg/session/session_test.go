package session

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deutschvfx-create/EduFlow-2026-Platform-sub000/pkg/ingest"
	"github.com/deutschvfx-create/EduFlow-2026-Platform-sub000/pkg/processing"
	"github.com/deutschvfx-create/EduFlow-2026-Platform-sub000/pkg/store"
	"github.com/deutschvfx-create/EduFlow-2026-Platform-sub000/pkg/types"
)

var student = types.ProfileRef{Role: types.RoleStudent, ID: "stu-42"}

// newSource builds a uniformly filled source without going through decoding
func newSource(w, h int) *ingest.Source {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 90, 140, 200, 255
	}
	return &ingest.Source{Image: img, Format: "png", Width: w, Height: h}
}

func newSession(t *testing.T, w, h int) *Session {
	t.Helper()
	s, err := New(newSource(w, h), student)
	require.NoError(t, err)
	return s
}

type fixedLocator struct {
	box types.Box
	err error
}

func (l fixedLocator) Locate(context.Context, image.Image) (types.Box, error) {
	return l.box, l.err
}

func TestNewDefaults(t *testing.T) {
	s := newSession(t, 1650, 2300)
	assert.NotEmpty(t, s.ID())
	assert.Equal(t, student, s.Ref())

	st, err := s.State()
	require.NoError(t, err)
	assert.Equal(t, types.Centered, st.Center)
	assert.Equal(t, types.Identity, st.Transform)
	assert.Equal(t, types.Area{X: 0, Y: 0, Width: 1650, Height: 2300}, st.Area)
}

func TestNewErrors(t *testing.T) {
	_, err := New(nil, student)
	assert.True(t, errors.Is(err, types.ErrUnsupportedFormat))

	_, err = New(newSource(10, 10), types.ProfileRef{Role: "parent", ID: "x"})
	assert.Error(t, err)
}

func TestSettersRecomputeArea(t *testing.T) {
	s := newSession(t, 1650, 2300)

	area, err := s.SetZoom(5)
	require.NoError(t, err)
	assert.Equal(t, 550, area.Width, "zoom is clamped to 3")

	again, err := s.SetZoom(5)
	require.NoError(t, err)
	assert.Equal(t, area, again)

	_, err = s.SetRotation(200)
	require.NoError(t, err)
	st, _ := s.State()
	assert.Equal(t, 180.0, st.Transform.Rotation)

	area, err = s.SetCenter(types.Point{X: -1, Y: 2})
	require.NoError(t, err)
	assert.Equal(t, 0, area.X)
	assert.Equal(t, 2300-area.Height, area.Y)
}

func TestNudgeDoesNotBuildUpPastEdges(t *testing.T) {
	s := newSession(t, 1650, 2300)
	_, err := s.SetZoom(2)
	require.NoError(t, err)

	area, err := s.Nudge(10000, 0)
	require.NoError(t, err)
	assert.Equal(t, 825, area.X)
	assert.Equal(t, 825, area.Width)

	area, err = s.Nudge(-100, 0)
	require.NoError(t, err)
	assert.Equal(t, 725, area.X)
}

func TestReset(t *testing.T) {
	s := newSession(t, 1650, 2300)
	s.SetZoom(2)
	s.SetRotation(30)
	s.Nudge(50, 50)

	area, err := s.Reset()
	require.NoError(t, err)
	assert.Equal(t, types.Area{Width: 1650, Height: 2300}, area)
}

func TestAutoCenter(t *testing.T) {
	s := newSession(t, 3000, 4000)
	s.SetZoom(1.5)

	_, err := s.AutoCenter(context.Background(), fixedLocator{box: types.Box{X: 0.6, Y: 0.1, W: 0.2, H: 0.2}})
	require.NoError(t, err)

	st, err := s.State()
	require.NoError(t, err)
	assert.InDelta(t, 0.7, st.Center.X, 1e-9)
	assert.InDelta(t, 0.2, st.Center.Y, 1e-9)

	_, err = s.AutoCenter(context.Background(), fixedLocator{err: errors.New("model offline")})
	assert.ErrorContains(t, err, "model offline")
	after, _ := s.State()
	assert.Equal(t, st, after, "a failed locate keeps the state")
}

func TestBake(t *testing.T) {
	s := newSession(t, 600, 800)
	s.SetRotation(15)
	s.SetZoom(1.5)

	dataURL, err := s.Bake(context.Background())
	require.NoError(t, err)

	data, mime, err := processing.DecodeDataURL(dataURL)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mime)

	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 512, img.Bounds().Dx())
	assert.Equal(t, 714, img.Bounds().Dy())

	again, err := s.Bake(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dataURL, again)
}

func TestBakeBusy(t *testing.T) {
	s := newSession(t, 100, 100)
	s.busy.Lock()
	defer s.busy.Unlock()

	_, err := s.Bake(context.Background())
	assert.True(t, errors.Is(err, types.ErrSessionBusy))

	_, err = s.Save(context.Background(), store.NewMemory())
	assert.True(t, errors.Is(err, types.ErrSessionBusy))
}

func TestBakeCanceledContext(t *testing.T) {
	s := newSession(t, 100, 100)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Bake(ctx)
	assert.True(t, errors.Is(err, types.ErrPhotoSaveFailed))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestSave(t *testing.T) {
	mem := store.NewMemory()
	s := newSession(t, 330, 460)

	dataURL, err := s.Save(context.Background(), mem)
	require.NoError(t, err)

	photo, ok := mem.Photo(student)
	require.True(t, ok)
	assert.Equal(t, dataURL, photo)
}

func TestSaveFailureKeepsState(t *testing.T) {
	s := newSession(t, 330, 460)
	s.SetZoom(2)
	s.SetRotation(-10)
	before, _ := s.State()

	failing := store.SaverFunc(func(context.Context, types.ProfileRef, string) error {
		return errors.New("quota exceeded")
	})
	_, err := s.Save(context.Background(), failing)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrPhotoSaveFailed))
	assert.ErrorContains(t, err, "quota exceeded")

	after, err := s.State()
	require.NoError(t, err)
	assert.Equal(t, before, after)

	mem := store.NewMemory()
	_, err = s.Save(context.Background(), mem)
	require.NoError(t, err, "the user can retry")
	assert.Equal(t, 1, mem.Saves())
}

func TestCancelLeavesStoredPhotoUnchanged(t *testing.T) {
	mem := store.NewMemory()
	require.NoError(t, mem.SavePhoto(context.Background(), student, "data:image/jpeg;base64,OLD"))

	s := newSession(t, 400, 400)
	s.SetZoom(2)
	s.SetRotation(45)
	s.Cancel()
	s.Cancel()

	assert.True(t, s.Closed())
	assert.Nil(t, s.Source())

	_, err := s.Save(context.Background(), mem)
	assert.True(t, errors.Is(err, types.ErrSessionClosed))
	_, err = s.Bake(context.Background())
	assert.True(t, errors.Is(err, types.ErrSessionClosed))
	_, err = s.SetZoom(1)
	assert.True(t, errors.Is(err, types.ErrSessionClosed))
	_, err = s.Preview()
	assert.True(t, errors.Is(err, types.ErrSessionClosed))

	photo, ok := mem.Photo(student)
	require.True(t, ok)
	assert.Equal(t, "data:image/jpeg;base64,OLD", photo)
	assert.Equal(t, 1, mem.Saves())
}

func TestPreview(t *testing.T) {
	s := newSession(t, 200, 100)
	s.SetRotation(90)

	img, err := s.Preview()
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 200, img.Bounds().Dy())
}

func TestPassportScenario(t *testing.T) {
	if testing.Short() {
		t.Skip("large image")
	}
	src := newSource(3000, 4000)
	s, err := New(src, student)
	require.NoError(t, err)

	s.SetRotation(15)
	s.SetZoom(1.5)
	_, err = s.AutoCenter(context.Background(), fixedLocator{box: types.Box{X: 0.35, Y: 0.35, W: 0.3, H: 0.3}})
	require.NoError(t, err)

	dataURL, err := s.Bake(context.Background())
	require.NoError(t, err)
	data, _, err := processing.DecodeDataURL(dataURL)
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 512, 714), img.Bounds())

	// a centered face keeps the rotated source over the whole crop, so no white letterbox
	for _, p := range []image.Point{{5, 5}, {506, 5}, {5, 708}, {506, 708}} {
		r, _, b, _ := img.At(p.X, p.Y).RGBA()
		assert.Less(t, r>>8, uint32(150), "pixel %v", p)
		assert.Greater(t, b>>8, uint32(150), "pixel %v", p)
	}
}
