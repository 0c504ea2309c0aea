package detector

import "slices"

// visionOverlapIoU is the overlap above which two vision-model boxes count as the same face.
const visionOverlapIoU = 0.5

// iou calculates Intersection over Union between two boxes.
func iou(a, b Box) float64 {
	x1 := max(a.XMin, b.XMin)
	y1 := max(a.YMin, b.YMin)
	x2 := min(a.XMin+a.Width, b.XMin+b.Width)
	y2 := min(a.YMin+a.Height, b.YMin+b.Height)

	if x2 <= x1 || y2 <= y1 {
		return 0
	}

	intersection := (x2 - x1) * (y2 - y1)
	union := a.Width*a.Height + b.Width*b.Height - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}

// dropOverlaps keeps the best scoring face of every group of boxes that
// overlap by more than threshold. The result is ordered by score.
func dropOverlaps(faces []Face, threshold float64) []Face {
	sorted := slices.Clone(faces)
	slices.SortStableFunc(sorted, func(a, b Face) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})

	kept := make([]Face, 0, len(sorted))
	for _, f := range sorted {
		duplicate := false
		for _, k := range kept {
			if iou(f.Box, k.Box) > threshold {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, f)
		}
	}
	return kept
}
