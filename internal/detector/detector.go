// Package detector wraps external face detection models behind a single
// capability: given a decoded image, return the faces found in it.
//
// Backends are constructed once through a Loader and the resulting Model is
// shared by every caller for the life of the process.
package detector

import (
	"context"
	"image"
	"sort"
)

// Point is a landmark coordinate in image pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Box is an axis aligned face bounding box in image pixels.
type Box struct {
	XMin   float64 `json:"x_min"`
	YMin   float64 `json:"y_min"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Face is one detected face. Keypoints are empty for backends without landmarks.
type Face struct {
	Box       Box     `json:"box"`
	Keypoints []Point `json:"keypoints,omitempty"`
	Score     float64 `json:"score"`
}

// Options configure model construction.
type Options struct {
	// MaxFaces caps the number of faces returned per image.
	MaxFaces int
	// RefineLandmarks asks backends that support it for refined eye and lip landmarks.
	RefineLandmarks bool
}

// Model is a loaded detector handle.
type Model interface {
	Name() string
	EstimateFaces(ctx context.Context, img image.Image) ([]Face, error)
}

// Backend constructs models. Create is the expensive step and is called at
// most once per successful load.
type Backend interface {
	Name() string
	Create(ctx context.Context, opts Options) (Model, error)
}

// limitFaces keeps the highest scoring faces when more than maxFaces were found.
func limitFaces(faces []Face, maxFaces int) []Face {
	if maxFaces <= 0 || len(faces) <= maxFaces {
		return faces
	}
	sort.SliceStable(faces, func(i, j int) bool {
		return faces[i].Score > faces[j].Score
	})
	return faces[:maxFaces]
}

// boxFromCorners converts [x1, y1, x2, y2] into a Box.
func boxFromCorners(c []float64) Box {
	if len(c) != 4 {
		return Box{}
	}
	return Box{
		XMin:   c[0],
		YMin:   c[1],
		Width:  c[2] - c[0],
		Height: c[3] - c[1],
	}
}
