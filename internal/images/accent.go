package images

import (
	"bytes"
	"fmt"
	"image"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// DefaultAccent is used when no usable color can be extracted.
const DefaultAccent = "#374151"

// AccentHex extracts a dominant, darkened hex color from image bytes for
// card theming. Best effort: any decode problem yields DefaultAccent.
// Parameters:
//   - data: encoded image bytes (jpeg, png, gif or webp).
// Returns:
//   - string: "#rrggbb" accent color.
func AccentHex(data []byte) string {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return DefaultAccent
	}

	bounds := img.Bounds()
	if bounds.Empty() {
		return DefaultAccent
	}

	// Sample a coarse grid; full resolution adds nothing for one color.
	stepX := bounds.Dx() / 64
	stepY := bounds.Dy() / 64
	if stepX < 1 {
		stepX = 1
	}
	if stepY < 1 {
		stepY = 1
	}

	// Quantize to 32-unit buckets so near-identical pixels pool together.
	type bucket struct{ r, g, b uint32 }
	counts := make(map[bucket]int)
	sums := make(map[bucket][3]uint64)

	for y := bounds.Min.Y; y < bounds.Max.Y; y += stepY {
		for x := bounds.Min.X; x < bounds.Max.X; x += stepX {
			r, g, b, a := img.At(x, y).RGBA()
			if a < 0x8000 {
				continue
			}
			r8, g8, b8 := r>>8, g>>8, b>>8

			// Skip washed-out and near-black pixels; they make bad accents.
			lum := (299*r8 + 587*g8 + 114*b8) / 1000
			if lum < 24 || lum > 224 {
				continue
			}

			k := bucket{r8 >> 5, g8 >> 5, b8 >> 5}
			counts[k]++
			s := sums[k]
			s[0] += uint64(r8)
			s[1] += uint64(g8)
			s[2] += uint64(b8)
			sums[k] = s
		}
	}

	var best bucket
	bestCount := 0
	for k, c := range counts {
		if c > bestCount {
			best, bestCount = k, c
		}
	}
	if bestCount == 0 {
		return DefaultAccent
	}

	s := sums[best]
	n := uint64(bestCount)
	r := uint8(s[0] / n)
	g := uint8(s[1] / n)
	b := uint8(s[2] / n)

	// Darken so white text stays readable on the accent.
	r = uint8(uint32(r) * 70 / 100)
	g = uint8(uint32(g) * 70 / 100)
	b = uint8(uint32(b) * 70 / 100)

	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}
