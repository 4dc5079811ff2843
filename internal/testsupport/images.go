package testsupport

import (
	"image"
	"image/color"
	"testing"
)

// Synthetic evidence geometry. The anchor sits inside the default profile
// panel at a stride-aligned offset so an exact template hit is possible.
const (
	EvidenceWidth  = 400
	EvidenceHeight = 300
	AnchorSize     = 28
	AnchorX        = 30
	AnchorY        = 60
	backgroundGray = 220
)

// AnchorFragment returns the reference fragment used by the synthetic
// evidence: a 28x28 block pattern of black and white 4px cells.
func AnchorFragment() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, AnchorSize, AnchorSize))
	for y := 0; y < AnchorSize; y++ {
		for x := 0; x < AnchorSize; x++ {
			v := uint8(0)
			if ((x/4)+(y/4))%2 == 0 {
				v = 255
			}
			if x/4 == 3 && y/4 == 3 {
				v = 0
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

// EvidenceImage draws a plain profile capture. With anchor true the anchor
// fragment is painted into the profile panel, as a genuine capture would
// carry it.
func EvidenceImage(anchor bool) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, EvidenceWidth, EvidenceHeight))
	bg := color.NRGBA{R: backgroundGray, G: backgroundGray, B: backgroundGray, A: 255}
	for y := 0; y < EvidenceHeight; y++ {
		for x := 0; x < EvidenceWidth; x++ {
			img.SetNRGBA(x, y, bg)
		}
	}
	// A dark text-like bar across the identifier panel.
	for y := 70; y < 90; y++ {
		for x := 120; x < 200; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 20, G: 20, B: 20, A: 255})
		}
	}
	if anchor {
		frag := AnchorFragment()
		for y := 0; y < AnchorSize; y++ {
			for x := 0; x < AnchorSize; x++ {
				v := frag.GrayAt(x, y).Y
				img.SetNRGBA(AnchorX+x, AnchorY+y, color.NRGBA{R: v, G: v, B: v, A: 255})
			}
		}
	}
	return img
}

// EvidencePNG returns EvidenceImage encoded as PNG.
func EvidencePNG(t testing.TB, anchor bool) []byte {
	t.Helper()
	return EncodePNG(t, EvidenceImage(anchor))
}
