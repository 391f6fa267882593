package classify

import (
	"math"
	"strings"
)

// Vertex is a bounding polygon vertex normalized to 0..1.
type Vertex struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Detection is one localized object.
type Detection struct {
	Name     string   `json:"name"`
	Score    float64  `json:"score"`
	Vertices []Vertex `json:"vertices,omitempty"`
}

var shapeVocabulary = []string{"circle", "oval", "rectangle", "square", "triangle", "pill", "capsule", "tablet"}

// Checked in this order against the winning label.
var shapeNames = []struct {
	keyword string
	shape   string
}{
	{"circle", "round"},
	{"oval", "oval"},
	{"rectangle", "rectangle"},
	{"square", "square"},
	{"triangle", "triangle"},
	{"capsule", "capsule"},
}

// ShapeName picks the highest scoring shape-like detection (first one wins a
// tie) and maps it to a pill shape. Generic "pill"/"tablet" labels are
// resolved from the bounding box aspect ratio.
func ShapeName(detections []Detection) (string, bool) {
	best := -1
	for i, d := range detections {
		if !isShapeLabel(d.Name) {
			continue
		}
		if best < 0 || d.Score > detections[best].Score {
			best = i
		}
	}
	if best < 0 {
		return "", false
	}
	winner := detections[best]
	name := strings.ToLower(winner.Name)
	for _, m := range shapeNames {
		if strings.Contains(name, m.keyword) {
			return m.shape, true
		}
	}
	if strings.Contains(name, "pill") || strings.Contains(name, "tablet") {
		return shapeFromBox(winner.Vertices)
	}
	return "", false
}

func isShapeLabel(name string) bool {
	name = strings.ToLower(name)
	for _, word := range shapeVocabulary {
		if strings.Contains(name, word) {
			return true
		}
	}
	return false
}

// shapeFromBox assumes the quad starts at the top-left corner and walks the
// edges in order, so v0->v1 is the top edge and v1->v2 the right edge.
func shapeFromBox(v []Vertex) (string, bool) {
	if len(v) != 4 {
		return "", false
	}
	width := math.Abs(v[1].X - v[0].X)
	height := math.Abs(v[2].Y - v[1].Y)
	if height == 0 || math.IsNaN(width) || math.IsNaN(height) {
		return "", false
	}
	ratio := width / height
	if math.IsInf(ratio, 0) || math.IsNaN(ratio) {
		return "", false
	}
	switch {
	case ratio > 1.5:
		return "oval", true
	case ratio >= 0.8 && ratio <= 1.2:
		return "round", true
	default:
		return "rectangle", true
	}
}
