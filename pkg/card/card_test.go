package card

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deutschvfx-create/EduFlow-2026-Platform-sub000/pkg/types"
)

func birth(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func studentProfile() types.Profile {
	return types.Profile{
		ID:        "stu-42",
		Role:      types.RoleStudent,
		FirstName: "Anna",
		LastName:  "Müller",
		BirthDate: birth(2011, time.March, 4),
		Gender:    "female",
		Status:    "active",
	}
}

func TestVerifyURL(t *testing.T) {
	tests := []struct {
		origin string
		ref    types.ProfileRef
		want   string
	}{
		{"https://eduflow.app", types.ProfileRef{Role: types.RoleStudent, ID: "abc123"}, "https://eduflow.app/verify/student/abc123"},
		{"https://eduflow.app/", types.ProfileRef{Role: types.RoleTeacher, ID: "t-1"}, "https://eduflow.app/verify/teacher/t-1"},
		{"http://localhost:3000", types.ProfileRef{Role: types.RoleStudent, ID: "a b"}, "http://localhost:3000/verify/student/a%20b"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, VerifyURL(tt.origin, tt.ref))
	}
}

func TestExportFilename(t *testing.T) {
	tests := []struct {
		profile types.Profile
		want    string
	}{
		{studentProfile(), "STUDENT_MÜLLER_ANNA.png"},
		{types.Profile{Role: types.RoleTeacher, FirstName: "Jan", LastName: "van der Berg"}, "TEACHER_VAN_DER_BERG_JAN.png"},
		{types.Profile{Role: types.RoleTeacher, FirstName: "Jörg", LastName: "Groß"}, "TEACHER_GROSS_JÖRG.png"},
		{types.Profile{Role: types.RoleStudent, FirstName: "A/B", LastName: "C:D"}, "STUDENT_C_D_A_B.png"},
		{types.Profile{}, "CARD.png"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExportFilename(tt.profile))
	}
}

func TestFieldsFor(t *testing.T) {
	fields := FieldsFor(studentProfile())
	require.Len(t, fields, 5)
	assert.Equal(t, Field{"Name", "Anna Müller"}, fields[0])
	assert.Equal(t, Field{"Date of birth", "04.03.2011"}, fields[1])
	assert.Equal(t, Field{"Student no.", "stu-42"}, fields[4])

	teacher := types.Profile{ID: "t-1", Role: types.RoleTeacher, FirstName: "Jan", LastName: "Berg"}
	fields = FieldsFor(teacher)
	require.Len(t, fields, 4)
	assert.Equal(t, "-", fields[1].Value)
	for _, f := range fields {
		assert.NotEqual(t, "Gender", f.Label)
	}
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "STUDENT ID", Title(types.RoleStudent))
	assert.Equal(t, "TEACHER ID", Title(types.RoleTeacher))
}

func solidPhoto(c color.NRGBA) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, 512, 714))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func TestRender(t *testing.T) {
	r, err := NewRenderer(0, "https://eduflow.app")
	require.NoError(t, err)

	red := color.NRGBA{220, 20, 20, 255}
	card, err := r.Render(types.Organization{Name: "Lycée Nord"}, studentProfile(), solidPhoto(red))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 1020, 642), card.Bounds())

	// photo box center
	c := card.NRGBAAt(r.px(55), r.px(103))
	assert.InDelta(t, red.R, c.R, 2)
	assert.InDelta(t, red.G, c.G, 2)
	assert.InDelta(t, red.B, c.B, 2)

	// header band
	assert.Equal(t, colorHeader, card.NRGBAAt(r.px(200), r.px(2)))

	// the QR code has both dark and light modules
	var dark, light int
	box := r.rect(qrRect)
	for y := box.Min.Y; y < box.Max.Y; y += 3 {
		for x := box.Min.X; x < box.Max.X; x += 3 {
			if card.NRGBAAt(x, y).R < 128 {
				dark++
			} else {
				light++
			}
		}
	}
	assert.Greater(t, dark, 100)
	assert.Greater(t, light, 100)

	again, err := r.Render(types.Organization{Name: "Lycée Nord"}, studentProfile(), solidPhoto(red))
	require.NoError(t, err)
	assert.Equal(t, card.Pix, again.Pix)
}

func TestRenderWithoutPhoto(t *testing.T) {
	r, err := NewRenderer(1, "https://eduflow.app")
	require.NoError(t, err)

	card, err := r.Render(types.Organization{}, studentProfile(), nil)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 340, 214), card.Bounds())
	assert.Equal(t, colorEmpty, card.NRGBAAt(55, 103))
}

func TestRenderInvalidProfile(t *testing.T) {
	r, err := NewRenderer(1, "")
	require.NoError(t, err)
	_, err = r.Render(types.Organization{}, types.Profile{ID: "x", Role: types.RoleStudent}, nil)
	assert.Error(t, err)
}

func TestFit(t *testing.T) {
	r, err := NewRenderer(1, "")
	require.NoError(t, err)
	face, err := r.face(r.regular, 10)
	require.NoError(t, err)
	defer face.Close()

	assert.Equal(t, "short", fit(face, "short", 1000))
	got := fit(face, strings.Repeat("long name ", 20), 60)
	assert.True(t, strings.HasSuffix(got, "…"))
	assert.Less(t, len([]rune(got)), 200)
}

func TestExport(t *testing.T) {
	r, err := NewRenderer(1, "https://eduflow.app")
	require.NoError(t, err)
	card, err := r.Render(types.Organization{Name: "EduFlow"}, studentProfile(), nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Export(&buf, card))
	decoded, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, card.Bounds(), decoded.Bounds())

	path, err := r.ExportFile(filepath.Join(t.TempDir(), "cards"), studentProfile(), card)
	require.NoError(t, err)
	assert.Equal(t, "STUDENT_MÜLLER_ANNA.png", filepath.Base(path))
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestLPPrinterArgs(t *testing.T) {
	assert.Equal(t, []string{"-o", "fit-to-page", "-t", "passport-card", "-"}, LPPrinter{}.args())
	assert.Equal(t,
		[]string{"-d", "office", "-n", "2", "-o", "fit-to-page", "-t", "passport-card", "-"},
		LPPrinter{Destination: "office", Copies: 2}.args())
}

func TestLPPrinterPipesPNG(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	dir := t.TempDir()
	out := filepath.Join(dir, "printed.png")
	script := filepath.Join(dir, "fake-lp")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\ncat > \""+out+"\"\n"), 0755))

	card := solidPhoto(color.NRGBA{0, 0, 255, 255})
	require.NoError(t, LPPrinter{Command: script}.Print(context.Background(), card))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, card.Bounds(), img.Bounds())
}

func TestLPPrinterFailure(t *testing.T) {
	err := LPPrinter{Command: filepath.Join(t.TempDir(), "missing-lp")}.Print(context.Background(), solidPhoto(color.NRGBA{A: 255}))
	assert.Error(t, err)
}
