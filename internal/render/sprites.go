package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"github.com/park285/concentration/internal/concentration"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

const (
	cardBackSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 56 80" width="56" height="80">
<rect x="1" y="1" width="54" height="78" rx="6" ry="6" fill="#1f3a93" stroke="#0b1a4a" stroke-width="2"/>
<rect x="7" y="7" width="42" height="66" rx="4" ry="4" fill="none" stroke="#e8ecff" stroke-width="2"/>
<polygon points="28,22 40,40 28,58 16,40" fill="#e8ecff"/>
<circle cx="28" cy="40" r="5" fill="#1f3a93"/>
</svg>`

	cardFaceSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 56 80" width="56" height="80">
<rect x="1" y="1" width="54" height="78" rx="6" ry="6" fill="#fbfbf8" stroke="#9aa0ad" stroke-width="2"/>
</svg>`

	heartPath   = `<path d="M10 22 C4 16 0 12 0 7 C0 3 3 0 6 0 C8 0 9.5 1.5 10 3 C10.5 1.5 12 0 14 0 C17 0 20 3 20 7 C20 12 16 16 10 22 Z" fill="%s"/>`
	diamondPath = `<polygon points="10,0 20,12 10,24 0,12" fill="%s"/>`
	spadePath   = `<path d="M10 0 C4 6 0 10 0 14 C0 17 2.5 19 5 19 C7 19 8.5 18 9 17 L8 24 L12 24 L11 17 C11.5 18 13 19 15 19 C17.5 19 20 17 20 14 C20 10 16 6 10 0 Z" fill="%s"/>`
	clubPath    = `<g fill="%[1]s"><circle cx="10" cy="6" r="5"/><circle cx="5" cy="13" r="5"/><circle cx="15" cy="13" r="5"/><polygon points="9,12 11,12 12,24 8,24"/></g>`
)

var (
	redSuit   = "#c8102e"
	blackSuit = "#1b1b1f"
)

func suitSVG(s concentration.Suit) string {
	fill := blackSuit
	if s.Color() == concentration.Red {
		fill = redSuit
	}
	var body string
	switch s {
	case concentration.Hearts:
		body = fmt.Sprintf(heartPath, fill)
	case concentration.Diamonds:
		body = fmt.Sprintf(diamondPath, fill)
	case concentration.Clubs:
		body = fmt.Sprintf(clubPath, fill)
	default:
		body = fmt.Sprintf(spadePath, fill)
	}
	return `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 20 24" width="20" height="24">` + body + `</svg>`
}

type spriteKey struct {
	name string
	w, h int
}

var (
	spriteCache   = map[spriteKey]image.Image{}
	spriteCacheMu sync.RWMutex
)

// rasterize renders svg into a w×h image, caching by name.
func rasterize(name, svg string, w, h int) (image.Image, error) {
	key := spriteKey{name: name, w: w, h: h}

	spriteCacheMu.RLock()
	if img, ok := spriteCache[key]; ok {
		spriteCacheMu.RUnlock()
		return img, nil
	}
	spriteCacheMu.RUnlock()

	icon, err := oksvg.ReadIconStream(bytes.NewReader([]byte(svg)))
	if err != nil {
		return nil, fmt.Errorf("parse %s svg: %w", name, err)
	}
	icon.SetTarget(0, 0, float64(w), float64(h))

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	raster := rasterx.NewDasher(w, h, scanner)
	icon.Draw(raster, 1.0)

	spriteCacheMu.Lock()
	spriteCache[key] = img
	spriteCacheMu.Unlock()
	return img, nil
}
