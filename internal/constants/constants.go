// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Detection constants
const (
	// DefaultMaxFaces is the maximum number of faces a detector reports per image
	DefaultMaxFaces = 10

	// FaceFoundConfidence is the fixed confidence reported when at least one face was found.
	// Detectors that only report presence give no usable score.
	FaceFoundConfidence = 0.95

	// MaxImageSize is the maximum dimension (width or height) sent to remote detectors
	MaxImageSize = 1024

	// PreviewSize is the maximum dimension of the preview thumbnail
	PreviewSize = 512
)

// Result record messages shown to the user
const (
	// MsgModelLoadFailed is set when the detector could not be constructed
	MsgModelLoadFailed = "Failed to load face detection model"

	// MsgModelUnavailable is set when detection was requested without a loaded detector
	MsgModelUnavailable = "Face detection model not available"

	// MsgDetectionFailed is set when inference returned an error
	MsgDetectionFailed = "Error during face detection"

	// MsgNotAnImage is the alert shown when a non-image file is uploaded
	MsgNotAnImage = "Please select an image file"

	// MsgModelLoading is the notice shown when an image arrives before the model is ready
	MsgModelLoading = "Please wait for the face detection model to load..."

	// MsgProcessing is the notice shown when an accepted image goes to the detector
	MsgProcessing = "Analyzing image for faces..."

	// MsgSuperseded is the notice shown when a newer upload replaced this one's result
	MsgSuperseded = "A newer image replaced this one"

	// MsgUnreadableImage is the alert shown when an image-typed upload cannot be decoded
	MsgUnreadableImage = "Could not read the image file"
)

// History constants
const (
	// DefaultHistorySize is the number of attempts kept by the in-memory recorder
	DefaultHistorySize = 100

	// DefaultHistoryLimit is the default number of attempts returned by the history endpoint
	DefaultHistoryLimit = 20
)

// Upload and streaming limits
const (
	// MaxUploadSize caps the request body and the bytes fed to the decoder (20MB)
	MaxUploadSize = 20 << 20

	// MaxImagePixels caps width*height of a decoded upload (40 megapixels)
	MaxImagePixels = 40_000_000

	// EventChannelBuffer is the per-subscriber snapshot buffer; a full buffer drops the snapshot
	EventChannelBuffer = 16
)
