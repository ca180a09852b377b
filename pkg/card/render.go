package card

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/skip2/go-qrcode"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/deutschvfx-create/EduFlow-2026-Platform-sub000/internal/utils"
	"github.com/deutschvfx-create/EduFlow-2026-Platform-sub000/pkg/types"
)

// Logical card size, in CSS-like units. The raster is Scale times larger.
const (
	Width  = 340
	Height = 214
)

// DefaultScale is the export pixel density
const DefaultScale = 3

var (
	colorHeader = color.NRGBA{0x1f, 0x3a, 0x68, 0xff}
	colorLabel  = color.NRGBA{0x6b, 0x72, 0x80, 0xff}
	colorText   = color.NRGBA{0x11, 0x18, 0x27, 0xff}
	colorFrame  = color.NRGBA{0xd1, 0xd5, 0xdb, 0xff}
	colorEmpty  = color.NRGBA{0xf3, 0xf4, 0xf6, 0xff}
)

// layout in logical units
var (
	headerRect = image.Rect(0, 0, Width, 34)
	photoRect  = image.Rect(14, 46, 96, 160) // 82×114, close to 165:230
	qrRect     = image.Rect(262, 132, 330, 200)
	fieldsX    = 108
	fieldsTop  = 58
	fieldsStep = 20
)

// Renderer draws passport cards
type Renderer struct {
	scale   int
	origin  string
	regular *opentype.Font
	bold    *opentype.Font
}

// NewRenderer creates a renderer. scale <= 0 uses DefaultScale; origin is the
// base of the verification URL.
func NewRenderer(scale int, origin string) (*Renderer, error) {
	if scale <= 0 {
		scale = DefaultScale
	}
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse regular font: %w", err)
	}
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse bold font: %w", err)
	}
	return &Renderer{scale: scale, origin: origin, regular: regular, bold: bold}, nil
}

// Size returns the pixel size of rendered cards
func (r *Renderer) Size() (int, int) {
	return Width * r.scale, Height * r.scale
}

func (r *Renderer) px(v int) int { return v * r.scale }

func (r *Renderer) rect(rc image.Rectangle) image.Rectangle {
	return image.Rect(r.px(rc.Min.X), r.px(rc.Min.Y), r.px(rc.Max.X), r.px(rc.Max.Y))
}

func (r *Renderer) face(f *opentype.Font, size float64) (font.Face, error) {
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size * float64(r.scale),
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// Render draws the card for profile p. photo may be nil, which leaves an
// empty photo box.
func (r *Renderer) Render(org types.Organization, p types.Profile, photo image.Image) (*image.NRGBA, error) {
	if err := types.Validate(p); err != nil {
		return nil, err
	}

	w, h := r.Size()
	canvas := imaging.New(w, h, color.White)

	draw.Draw(canvas, r.rect(headerRect), image.NewUniform(colorHeader), image.Point{}, draw.Src)

	titleFace, err := r.face(r.bold, 13)
	if err != nil {
		return nil, err
	}
	defer titleFace.Close()
	smallFace, err := r.face(r.regular, 7)
	if err != nil {
		return nil, err
	}
	defer smallFace.Close()
	valueFace, err := r.face(r.bold, 9.5)
	if err != nil {
		return nil, err
	}
	defer valueFace.Close()

	orgName := org.Name
	if orgName == "" {
		orgName = "EduFlow"
	}
	title := Title(p.Role)
	titleW := font.MeasureString(titleFace, title).Ceil()
	r.text(canvas, titleFace, color.White, title, w-r.px(14)-titleW, r.px(22), titleW)
	r.text(canvas, titleFace, color.White, orgName, r.px(14), r.px(22), w-titleW-r.px(42))

	r.drawPhoto(canvas, photo)

	y := fieldsTop
	maxW := r.px(qrRect.Min.X - fieldsX - 6)
	for _, f := range FieldsFor(p) {
		r.text(canvas, smallFace, colorLabel, f.Label, r.px(fieldsX), r.px(y-10), maxW)
		r.text(canvas, valueFace, colorText, f.Value, r.px(fieldsX), r.px(y), maxW)
		y += fieldsStep
	}

	verify := VerifyURL(r.origin, p.Ref())
	if err := r.drawQR(canvas, verify); err != nil {
		return nil, err
	}
	r.text(canvas, smallFace, colorLabel, "Scan to verify", r.px(qrRect.Min.X), r.px(qrRect.Max.Y+9), r.px(qrRect.Dx()+20))

	return canvas, nil
}

func (r *Renderer) drawPhoto(canvas *image.NRGBA, photo image.Image) {
	box := r.rect(photoRect)
	frame := box.Inset(-r.scale)
	draw.Draw(canvas, frame, image.NewUniform(colorFrame), image.Point{}, draw.Src)
	if photo == nil {
		draw.Draw(canvas, box, image.NewUniform(colorEmpty), image.Point{}, draw.Src)
		return
	}
	draw.CatmullRom.Scale(canvas, box, photo, photo.Bounds(), draw.Src, nil)
}

func (r *Renderer) drawQR(canvas *image.NRGBA, content string) error {
	q, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return fmt.Errorf("encode verification code: %w", err)
	}
	box := r.rect(qrRect)
	code := q.Image(box.Dx())
	draw.Draw(canvas, box, code, code.Bounds().Min, draw.Src)
	return nil
}

// text draws s with its baseline at (x, y), shortened with an ellipsis to fit maxW pixels
func (r *Renderer) text(dst draw.Image, face font.Face, c color.Color, s string, x, y, maxW int) {
	s = fit(face, s, maxW)
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func fit(face font.Face, s string, maxW int) string {
	if maxW <= 0 || font.MeasureString(face, s).Ceil() <= maxW {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		t := string(runes) + "…"
		if font.MeasureString(face, t).Ceil() <= maxW {
			return t
		}
	}
	return ""
}

// Export writes the card as PNG
func (r *Renderer) Export(w io.Writer, card image.Image) error {
	if err := imaging.Encode(w, card, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression)); err != nil {
		return fmt.Errorf("encode card: %w", err)
	}
	return nil
}

// ExportFile writes the card into dir under ExportFilename(p) and returns the path
func (r *Renderer) ExportFile(dir string, p types.Profile, card image.Image) (string, error) {
	if err := utils.EnsureDir(dir); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, ExportFilename(p))
	if err := imaging.Save(card, path); err != nil {
		return "", fmt.Errorf("save card: %w", err)
	}
	return path, nil
}
