package render

import (
	"bytes"
	"errors"
	"image/color"
	"math"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/skip2/go-qrcode"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"spinwin/internal/wheel"
)

const (
	DefaultQRSize    = 400
	DefaultWheelSize = 512
	minSize          = 64
	maxSize          = 2048
)

var (
	colorOutline = color.RGBA{32, 34, 37, 255}
	colorPointer = color.RGBA{220, 38, 38, 255}
	colorHub     = color.RGBA{72, 162, 86, 255}
	colorEmpty   = color.RGBA{229, 231, 235, 255}
)

var ErrEmptyPayload = errors.New("qr payload is empty")

// QRPNG encodes payload as a PNG QR code.
func QRPNG(payload string, size int) ([]byte, error) {
	if payload == "" {
		return nil, ErrEmptyPayload
	}
	return qrcode.Encode(payload, qrcode.Medium, clampSize(size, DefaultQRSize))
}

var (
	fontOnce sync.Once
	fontTTF  *truetype.Font
)

func labelFace(points float64) font.Face {
	fontOnce.Do(func() {
		fontTTF, _ = truetype.Parse(goregular.TTF)
	})
	if fontTTF == nil {
		return nil
	}
	return truetype.NewFace(fontTTF, &truetype.Options{Size: points, Hinting: font.HintingFull})
}

// WheelPNG draws segments turned clockwise by rotation degrees, with the
// pointer at twelve o'clock. Segment angles are measured clockwise from the
// pointer, so the segment under the pointer matches the resolver's target.
func WheelPNG(segments []wheel.Segment, rotation float64, size int) ([]byte, error) {
	size = clampSize(size, DefaultWheelSize)
	dc := gg.NewContext(size, size)
	cx, cy := float64(size)/2, float64(size)/2
	radius := float64(size)/2 - float64(size)*0.06
	inner := radius * 0.95

	dc.SetColor(colorOutline)
	dc.DrawCircle(cx, cy, radius)
	dc.Fill()

	if len(segments) == 0 {
		dc.SetColor(colorEmpty)
		dc.DrawCircle(cx, cy, inner)
		dc.Fill()
	}
	if face := labelFace(float64(size) / 32); face != nil {
		dc.SetFontFace(face)
	}
	for _, seg := range segments {
		start := screenAngle(seg.StartAngle, rotation)
		end := start + gg.Radians(seg.SweepAngle)

		dc.MoveTo(cx, cy)
		dc.DrawArc(cx, cy, inner, start, end)
		dc.ClosePath()
		dc.SetHexColor(seg.Color)
		dc.Fill()

		mid := (start + end) / 2
		dc.Push()
		dc.Translate(cx+math.Cos(mid)*inner*0.62, cy+math.Sin(mid)*inner*0.62)
		dc.Rotate(mid + math.Pi/2)
		dc.SetColor(labelColor(seg.Color))
		dc.DrawStringWrapped(seg.Label, 0, 0, 0.5, 0.5, inner*0.5, 1.1, gg.AlignCenter)
		dc.Pop()
	}

	dc.SetLineWidth(2)
	dc.SetColor(colorOutline)
	for _, seg := range segments {
		a := screenAngle(seg.StartAngle, rotation)
		dc.MoveTo(cx, cy)
		dc.LineTo(cx+math.Cos(a)*inner, cy+math.Sin(a)*inner)
		dc.Stroke()
	}

	dc.SetColor(colorHub)
	dc.DrawCircle(cx, cy, radius*0.15)
	dc.Fill()

	tip := cy - inner + float64(size)*0.04
	half := float64(size) * 0.03
	dc.SetColor(colorPointer)
	dc.MoveTo(cx, tip)
	dc.LineTo(cx-half, cy-radius-half)
	dc.LineTo(cx+half, cy-radius-half)
	dc.ClosePath()
	dc.Fill()

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// labelColor picks dark text on light segments and white text otherwise.
func labelColor(hex string) color.Color {
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.White
	}
	if l, _, _ := c.Lab(); l > 0.7 {
		return colorOutline
	}
	return color.White
}

// screenAngle converts a clockwise-from-top wheel angle into gg's radians,
// which start at three o'clock and also run clockwise on screen.
func screenAngle(deg, rotation float64) float64 {
	return gg.Radians(math.Mod(deg+rotation, wheel.FullTurn) - 90)
}

func clampSize(size, def int) int {
	if size <= 0 {
		return def
	}
	if size < minSize {
		return minSize
	}
	if size > maxSize {
		return maxSize
	}
	return size
}
