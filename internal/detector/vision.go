package detector

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
)

//go:embed prompts/face_boxes.txt
var faceBoxesPrompt string

// buildFaceBoxesPrompt returns the face detection prompt shared by the vision model backends.
func buildFaceBoxesPrompt(maxFaces int) string {
	if maxFaces <= 0 {
		maxFaces = 10
	}
	return fmt.Sprintf(faceBoxesPrompt, maxFaces)
}

// visionResponse is the JSON shape the vision models are asked to produce
type visionResponse struct {
	Faces []struct {
		Box   []float64 `json:"box"`
		Score float64   `json:"score"`
	} `json:"faces"`
}

// parseVisionFaces parses a vision model reply. Boxes are scaled by scale to
// map them back to the original image. Code fences around the JSON are tolerated
// and boxes the model reported twice are merged.
func parseVisionFaces(content string, scale float64, maxFaces int) ([]Face, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var resp visionResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse faces JSON: %w (response: %s)", err, content)
	}

	faces := make([]Face, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		if len(f.Box) != 4 {
			continue
		}
		faces = append(faces, Face{
			Box:   scaleBox(boxFromCorners(f.Box), scale),
			Score: f.Score,
		})
	}
	return limitFaces(dropOverlaps(faces, visionOverlapIoU), maxFaces), nil
}
