package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/face-check/internal/constants"
)

//go:embed detector.yaml
var detectorYAML []byte

type Config struct {
	Detector  DetectorConfig
	Embedding EmbeddingConfig
	OpenAI    OpenAIConfig
	Gemini    GeminiConfig
	Database  DatabaseConfig
	Web       WebConfig
}

// DetectorConfig selects the face detection backend and its limits.
type DetectorConfig struct {
	Backend             string        `yaml:"backend"`
	MaxFaces            int           `yaml:"max_faces"`
	RefineLandmarks     bool          `yaml:"refine_landmarks"`
	FaceFoundConfidence float64       `yaml:"face_found_confidence"`
	LoadTimeout         time.Duration `yaml:"load_timeout"`
	Models              ModelNames    `yaml:"models"`
	Pigo                PigoConfig    `yaml:"pigo"`
}

type ModelNames struct {
	OpenAI string `yaml:"openai"`
	Gemini string `yaml:"gemini"`
}

// PigoConfig holds the cascade parameters for the in-process detector.
type PigoConfig struct {
	CascadePath  string  `yaml:"cascade_path"`
	MinSize      int     `yaml:"min_size"`
	MaxSize      int     `yaml:"max_size"`
	ShiftFactor  float64 `yaml:"shift_factor"`
	ScaleFactor  float64 `yaml:"scale_factor"`
	IoUThreshold float64 `yaml:"iou_threshold"`
	MinQuality   float32 `yaml:"min_quality"`
}

type EmbeddingConfig struct {
	URL string // defaults to http://localhost:8000
}

type OpenAIConfig struct {
	Token string
}

type GeminiConfig struct {
	APIKey string
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL, history is kept in memory when empty
	MaxOpenConns int    // Maximum open connections (default 10)
	MaxIdleConns int    // Maximum idle connections (default 2)
}

type WebConfig struct {
	AllowedOrigins []string // extra CORS origins, localhost is always allowed
}

// envList splits a comma-separated environment variable, dropping blanks.
func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envString returns the environment variable or the default when unset.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envBool parses a boolean environment variable, falling back to the default on error.
func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return defaultVal
	}
	return b
}

// envDuration parses a duration environment variable such as "30s".
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

// DefaultDetectorConfig returns the detector settings from the embedded detector.yaml.
func DefaultDetectorConfig() DetectorConfig {
	var d DetectorConfig
	if err := yaml.Unmarshal(detectorYAML, &d); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded detector.yaml: " + err.Error())
	}
	return d
}

func Load() *Config {
	det := DefaultDetectorConfig()
	det.Backend = envString("DETECTOR_BACKEND", det.Backend)
	det.MaxFaces = envInt("DETECTOR_MAX_FACES", det.MaxFaces)
	if det.MaxFaces <= 0 {
		det.MaxFaces = constants.DefaultMaxFaces
	}
	det.RefineLandmarks = envBool("DETECTOR_REFINE_LANDMARKS", det.RefineLandmarks)
	det.LoadTimeout = envDuration("DETECTOR_LOAD_TIMEOUT", det.LoadTimeout)
	det.Models.OpenAI = envString("OPENAI_MODEL", det.Models.OpenAI)
	det.Models.Gemini = envString("GEMINI_MODEL", det.Models.Gemini)
	det.Pigo.CascadePath = envString("PIGO_CASCADE_PATH", det.Pigo.CascadePath)

	return &Config{
		Detector: det,
		Embedding: EmbeddingConfig{
			URL: os.Getenv("EMBEDDING_URL"),
		},
		OpenAI: OpenAIConfig{
			Token: os.Getenv("OPENAI_TOKEN"),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 2),
		},
		Web: WebConfig{
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
	}
}
