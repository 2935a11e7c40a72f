package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"

	"github.com/park285/concentration/internal/concentration"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	Columns = 13
	Rows    = concentration.DeckSize / Columns

	cardW      = 56
	cardH      = 80
	gap        = 8
	sideMargin = 24
	topMargin  = 56
	bottom     = 24
	suitW      = 20
	suitH      = 24
)

var (
	tableColor   = color.RGBA{22, 94, 62, 255}
	headerColor  = color.NRGBA{R: 236, G: 239, B: 255, A: 255}
	indexColor   = color.NRGBA{R: 200, G: 228, B: 210, A: 255}
	matchedShade = color.NRGBA{R: 22, G: 94, B: 62, A: 170}
	revealRing   = color.NRGBA{R: 255, G: 214, B: 90, A: 255}
	redText      = color.NRGBA{R: 200, G: 16, B: 46, A: 255}
	blackText    = color.NRGBA{R: 27, G: 27, B: 31, A: 255}
)

// Options controls what the board shows besides face-down cards.
type Options struct {
	// Reveal lists slot indices drawn face up.
	Reveal []int
	Header string
}

type BoardRenderer interface {
	RenderPNG(ctx context.Context, current, initial concentration.DeckState, opts Options) ([]byte, error)
}

type pngBoardRenderer struct{}

func NewBoardRenderer() BoardRenderer { return &pngBoardRenderer{} }

// RenderPNG draws the 52 slots as a 4×13 grid. Matched slots show the dealt card dimmed.
func (r *pngBoardRenderer) RenderPNG(ctx context.Context, current, initial concentration.DeckState, opts Options) ([]byte, error) {
	if len(current) != concentration.DeckSize {
		return nil, fmt.Errorf("deck has %d slots", len(current))
	}
	if len(initial) != concentration.DeckSize {
		initial = nil
	}

	width := sideMargin*2 + Columns*cardW + (Columns-1)*gap
	height := topMargin + bottom + Rows*cardH + (Rows-1)*gap
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(tableColor), image.Point{}, imagedraw.Src)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	drawer := &font.Drawer{Dst: img, Face: basicfont.Face7x13}
	if opts.Header != "" {
		drawer.Src = image.NewUniform(headerColor)
		drawer.Dot = fixed.P(sideMargin, 30)
		drawer.DrawString(opts.Header)
	}

	reveal := make(map[int]bool, len(opts.Reveal))
	for _, i := range opts.Reveal {
		reveal[i] = true
	}

	for i, slot := range current {
		rect := slotRect(i)
		var err error
		switch {
		case slot.Matched():
			err = drawMatched(img, rect, initial, i)
		case reveal[i]:
			c, _ := slot.Card()
			err = drawFace(img, drawer, rect, c)
		default:
			err = drawSprite(img, rect, "back", cardBackSVG)
		}
		if err != nil {
			return nil, err
		}
		if reveal[i] {
			drawRing(img, rect, revealRing)
		}
		drawer.Src = image.NewUniform(indexColor)
		drawCenteredText(drawer, fmt.Sprint(i), rect.Min.X+cardW/2, rect.Min.Y-2)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func slotRect(i int) image.Rectangle {
	row, col := i/Columns, i%Columns
	x := sideMargin + col*(cardW+gap)
	y := topMargin + row*(cardH+gap)
	return image.Rect(x, y, x+cardW, y+cardH)
}

func drawSprite(dst *image.RGBA, rect image.Rectangle, name, svg string) error {
	sprite, err := rasterize(name, svg, rect.Dx(), rect.Dy())
	if err != nil {
		return err
	}
	imagedraw.Draw(dst, rect, sprite, image.Point{}, imagedraw.Over)
	return nil
}

func drawFace(dst *image.RGBA, drawer *font.Drawer, rect image.Rectangle, c concentration.Card) error {
	if err := drawSprite(dst, rect, "face", cardFaceSVG); err != nil {
		return err
	}
	suitRect := image.Rect(0, 0, suitW, suitH).Add(image.Pt(rect.Min.X+(cardW-suitW)/2, rect.Min.Y+(cardH-suitH)/2+6))
	if err := drawSprite(dst, suitRect, "suit-"+string(rune(c.Suit)), suitSVG(c.Suit)); err != nil {
		return err
	}
	clr := blackText
	if c.Color() == concentration.Red {
		clr = redText
	}
	drawer.Src = image.NewUniform(clr)
	drawer.Dot = fixed.P(rect.Min.X+6, rect.Min.Y+16)
	drawer.DrawString(string(c.Rank))
	return nil
}

func drawMatched(dst *image.RGBA, rect image.Rectangle, initial concentration.DeckState, i int) error {
	if initial != nil {
		if c, ok := initial[i].Card(); ok {
			drawer := &font.Drawer{Dst: dst, Face: basicfont.Face7x13}
			if err := drawFace(dst, drawer, rect, c); err != nil {
				return err
			}
		}
	}
	imagedraw.Draw(dst, rect, image.NewUniform(matchedShade), image.Point{}, imagedraw.Over)
	return nil
}

func drawRing(dst *image.RGBA, rect image.Rectangle, clr color.Color) {
	const w = 3
	u := image.NewUniform(clr)
	r := rect.Inset(-w)
	imagedraw.Draw(dst, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+w), u, image.Point{}, imagedraw.Over)
	imagedraw.Draw(dst, image.Rect(r.Min.X, r.Max.Y-w, r.Max.X, r.Max.Y), u, image.Point{}, imagedraw.Over)
	imagedraw.Draw(dst, image.Rect(r.Min.X, r.Min.Y+w, r.Min.X+w, r.Max.Y-w), u, image.Point{}, imagedraw.Over)
	imagedraw.Draw(dst, image.Rect(r.Max.X-w, r.Min.Y+w, r.Max.X, r.Max.Y-w), u, image.Point{}, imagedraw.Over)
}

func drawCenteredText(drawer *font.Drawer, text string, centerX, baseline int) {
	width := drawer.MeasureString(text).Ceil()
	drawer.Dot = fixed.P(centerX-width/2, baseline)
	drawer.DrawString(text)
}
