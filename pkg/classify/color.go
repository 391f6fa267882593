// Package classify turns raw vision annotations into the coarse pill
// attributes used for lookup: a color name, a shape name and an imprint code.
// All functions are pure.
package classify

import "math"

// ScoredColor is one dominant color reported for an image, channels in 0..255.
type ScoredColor struct {
	Red           float64 `json:"red"`
	Green         float64 `json:"green"`
	Blue          float64 `json:"blue"`
	Score         float64 `json:"score"`
	PixelFraction float64 `json:"pixelFraction"`
}

type colorRule struct {
	name  string
	match func(r, g, b float64) bool
}

// Order matters: the first matching rule names the color.
var colorRules = []colorRule{
	{"red", func(r, g, b float64) bool { return r > 200 && g < 100 && b < 100 }},
	{"green", func(r, g, b float64) bool { return r < 100 && g > 200 && b < 100 }},
	{"blue", func(r, g, b float64) bool { return r < 100 && g < 100 && b > 200 }},
	{"yellow", func(r, g, b float64) bool { return r > 200 && g > 200 && b < 100 }},
	{"orange", func(r, g, b float64) bool { return r > 200 && g > 100 && b < 100 }},
	{"purple", func(r, g, b float64) bool { return r > 150 && g < 100 && b > 150 }},
	{"white", func(r, g, b float64) bool { return r > 200 && g > 200 && b > 200 }},
	{"black", func(r, g, b float64) bool { return r < 50 && g < 50 && b < 50 }},
	{"gray", isGray},
	{"brown", func(r, g, b float64) bool { return r > 150 && g > 100 && b > 50 }},
	{"pink", func(r, g, b float64) bool { return r > 200 && g > 150 && b > 150 }},
}

// neutralSpread is the widest channel spread still read as a neutral mid-tone.
const neutralSpread = 20

func isGray(r, g, b float64) bool {
	if r > 150 && g > 150 && b > 150 {
		return true
	}
	lo := math.Min(r, math.Min(g, b))
	hi := math.Max(r, math.Max(g, b))
	return lo > 100 && hi-lo <= neutralSpread
}

// Luminance is the perceptual brightness of an RGB triple.
func Luminance(r, g, b float64) float64 {
	return 0.299*r + 0.587*g + 0.114*b
}

// ColorName names the most prominent color in colors (colors[0]). When no
// palette entry matches it falls back to "light" or "dark". It reports false
// only for empty input.
func ColorName(colors []ScoredColor) (string, bool) {
	if len(colors) == 0 {
		return "", false
	}
	c := colors[0]
	r, g, b := c.Red, c.Green, c.Blue
	for _, rule := range colorRules {
		if rule.match(r, g, b) {
			return rule.name, true
		}
	}
	if Luminance(r, g, b) > 125 {
		return "light", true
	}
	return "dark", true
}
