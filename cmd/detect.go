package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-check/internal/acquire"
	"github.com/kozaktomas/face-check/internal/config"
	"github.com/kozaktomas/face-check/internal/constants"
	"github.com/kozaktomas/face-check/internal/detector"
	"github.com/kozaktomas/face-check/internal/facedetect"
	"github.com/kozaktomas/face-check/internal/web/view"
)

var detectCmd = &cobra.Command{
	Use:   "detect <image>...",
	Short: "Detect faces in local image files",
	Long: `Run face detection on one or more local images.
The media type is taken from each file's extension; files that are not images
are reported and skipped.

Examples:
  face-check detect portrait.jpg
  face-check detect --backend pigo photos/*.png
  face-check detect --json group.webp`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)

	detectCmd.Flags().Bool("json", false, "Output as JSON")
	detectCmd.Flags().String("backend", "", "Detector backend (embedding, pigo, gemini, openai), overrides DETECTOR_BACKEND")
}

// DetectEntry is the outcome for one file.
type DetectEntry struct {
	File       string          `json:"file"`
	Format     string          `json:"format,omitempty"`
	Width      int             `json:"width,omitempty"`
	Height     int             `json:"height,omitempty"`
	HasFace    bool            `json:"has_face"`
	FaceCount  int             `json:"face_count"`
	Confidence float64         `json:"confidence"`
	Faces      []detector.Face `json:"faces,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// DetectOutput is the JSON document printed by detect --json.
type DetectOutput struct {
	Backend string        `json:"backend"`
	Results []DetectEntry `json:"results"`
}

func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}

// detectFile runs one file through acquisition and the controller.
func detectFile(cmd *cobra.Command, ctrl *facedetect.Controller, path string) DetectEntry {
	entry := DetectEntry{File: path}
	err := acquire.AcceptPath(path, func(img *acquire.UploadedImage) {
		entry.Format = img.Format
		entry.Width = img.Width()
		entry.Height = img.Height()

		r := ctrl.DetectFaces(cmd.Context(), img.Bitmap)
		if r.Error != "" {
			entry.Error = r.Error
			return
		}
		entry.HasFace = r.HasFace
		entry.FaceCount = r.FaceCount
		entry.Confidence = r.Confidence
		entry.Faces = r.Faces
	})
	switch {
	case errors.Is(err, acquire.ErrNotImage):
		entry.Error = constants.MsgNotAnImage
	case err != nil:
		entry.Error = err.Error()
	}
	return entry
}

// printEntry prints one result the way the results card shows it.
func printEntry(e DetectEntry) {
	if e.Error != "" {
		fmt.Printf("%s: %s\n", e.File, e.Error)
		return
	}
	panel := view.Render(facedetect.Result{HasFace: e.HasFace, FaceCount: e.FaceCount, Confidence: e.Confidence}, true)
	if panel.Kind == view.PanelEmpty {
		fmt.Printf("%s (%dx%d %s): No Face Detected\n", e.File, e.Width, e.Height, e.Format)
		return
	}
	fmt.Printf("%s (%dx%d %s): %s %s, confidence %s\n", e.File, e.Width, e.Height, e.Format, panel.Title, panel.Badge, panel.Confidence)
	for i, f := range e.Faces {
		fmt.Printf("  face %d: x=%.0f y=%.0f w=%.0f h=%.0f score=%.2f\n", i+1, f.Box.XMin, f.Box.YMin, f.Box.Width, f.Box.Height, f.Score)
	}
}

func runDetect(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	cfg := config.Load()
	if backend := mustGetString(cmd, "backend"); backend != "" {
		cfg.Detector.Backend = backend
	}

	loader, err := detector.NewLoaderFromConfig(cfg)
	if err != nil {
		return err
	}
	defer loader.Close()

	if !jsonOutput {
		fmt.Printf("Loading %s face detection model...\n", loader.Backend())
	}
	ctrl := facedetect.NewController(loader, cfg.Detector.FaceFoundConfidence)
	defer ctrl.Close()

	ctrl.Initialize(cmd.Context())
	if !ctrl.Loaded() {
		return fmt.Errorf("%s: %w", constants.MsgModelLoadFailed, loader.LastError())
	}

	var bar *progressbar.ProgressBar
	if !jsonOutput && len(args) > 1 {
		bar = progressbar.NewOptions(len(args),
			progressbar.OptionSetDescription("Detecting faces"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("images"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
	}

	entries := make([]DetectEntry, 0, len(args))
	for _, path := range args {
		entries = append(entries, detectFile(cmd, ctrl, path))
		if bar != nil {
			bar.Add(1)
		}
	}
	if bar != nil {
		bar.Finish()
		fmt.Println()
	}

	if jsonOutput {
		return outputJSON(DetectOutput{Backend: loader.Backend(), Results: entries})
	}

	for _, e := range entries {
		printEntry(e)
	}
	return nil
}
