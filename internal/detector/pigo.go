package detector

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"

	pigo "github.com/esimov/pigo/core"
	"github.com/kozaktomas/face-check/internal/config"
)

// minCascadeSize covers the header pigo reads before the tree data.
const minCascadeSize = 16

// PigoBackend runs the pigo cascade classifier in process.
type PigoBackend struct {
	params config.PigoConfig
}

// NewPigoBackend creates a backend that loads the cascade file named in params.
func NewPigoBackend(params config.PigoConfig) *PigoBackend {
	return &PigoBackend{params: params}
}

func (b *PigoBackend) Name() string {
	return "pigo"
}

// Create reads and unpacks the cascade file.
func (b *PigoBackend) Create(ctx context.Context, opts Options) (Model, error) {
	if b.params.CascadePath == "" {
		return nil, errors.New("PIGO_CASCADE_PATH is not set")
	}
	cascadeFile, err := os.ReadFile(b.params.CascadePath)
	if err != nil {
		return nil, fmt.Errorf("error reading the cascade file: %w", err)
	}
	if len(cascadeFile) < minCascadeSize {
		return nil, fmt.Errorf("cascade file %s is too short (%d bytes)", b.params.CascadePath, len(cascadeFile))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	classifier, err := pigo.NewPigo().Unpack(cascadeFile)
	if err != nil {
		return nil, fmt.Errorf("error unpacking the cascade file: %w", err)
	}

	return &pigoModel{classifier: classifier, params: b.params, opts: opts}, nil
}

type pigoModel struct {
	classifier *pigo.Pigo
	params     config.PigoConfig
	opts       Options
}

func (m *pigoModel) Name() string {
	return "pigo"
}

func (m *pigoModel) EstimateFaces(ctx context.Context, img image.Image) ([]Face, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src := pigo.ImgToNRGBA(img)
	pixels := pigo.RgbToGrayscale(src)
	cols, rows := src.Bounds().Max.X, src.Bounds().Max.Y

	cParams := pigo.CascadeParams{
		MinSize:     m.params.MinSize,
		MaxSize:     m.params.MaxSize,
		ShiftFactor: m.params.ShiftFactor,
		ScaleFactor: m.params.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pixels,
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	// The result contains row, column, scale and detection score per candidate.
	dets := m.classifier.RunCascade(cParams, 0.0)
	dets = m.classifier.ClusterDetections(dets, m.params.IoUThreshold)

	return limitFaces(facesFromDetections(dets, m.params.MinQuality), m.opts.MaxFaces), nil
}

// facesFromDetections keeps detections above minQuality and converts the
// center/scale representation into boxes.
func facesFromDetections(dets []pigo.Detection, minQuality float32) []Face {
	faces := make([]Face, 0, len(dets))
	for _, det := range dets {
		if det.Q < minQuality {
			continue
		}
		half := float64(det.Scale) / 2
		faces = append(faces, Face{
			Box: Box{
				XMin:   float64(det.Col) - half,
				YMin:   float64(det.Row) - half,
				Width:  float64(det.Scale),
				Height: float64(det.Scale),
			},
			Score: float64(det.Q),
		})
	}
	return faces
}
