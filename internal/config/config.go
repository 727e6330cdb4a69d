package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"gopkg.in/yaml.v3"
)

//go:embed policy.yaml
var policyYAML []byte

type Config struct {
	Database  DatabaseConfig
	Registry  RegistryConfig
	Embedding EmbeddingConfig
	OpenCV    OpenCVConfig
	Camera    CameraConfig
	Policy    PolicyConfig
	Web       WebConfig
}

type DatabaseConfig struct {
	URL           string // PostgreSQL connection URL, SQLite is used when empty
	Path          string // SQLite database file (default attendance.db)
	MaxOpenConns  int    // Maximum open connections (default 25)
	MaxIdleConns  int    // Maximum idle connections (default 5)
	LogLevel      string // gorm logger level: silent, error, warn, info
	HNSWIndexPath string // Path to persist the identity HNSW graph (optional)
}

// RegistryConfig describes the external roster database used by `person import`.
type RegistryConfig struct {
	DatabaseURL string // MariaDB DSN (e.g., school:school@tcp(mariadb:3306)/school)
	Table       string
	NameColumn  string
	CodeColumn  string
}

type EmbeddingConfig struct {
	Backend      string        // "http" (embedding server) or "opencv" (local DNN)
	URL          string        // defaults to http://localhost:8000
	Model        string        // defaults to VGG-Face
	Detector     string        // defaults to opencv
	Timeout      time.Duration // HTTP client timeout
	MaxFrameSide int           // frames larger than this are downscaled before upload
}

// ModelTag identifies the embedding configuration stored vectors were produced with.
// Vectors from different tags are never compared.
func (c *Config) ModelTag() string {
	if c.Embedding.Backend == "opencv" {
		return c.OpenCV.ModelTag()
	}
	return c.Embedding.ModelTag()
}

// ModelTag is the tag of the embedding server's model and detector pair.
func (c *EmbeddingConfig) ModelTag() string {
	return c.Model + "+" + c.Detector
}

type OpenCVConfig struct {
	DetectorModel      string
	DetectorConfig     string
	RecognizerModel    string
	DetectorConfidence float64
}

// ModelTag is the tag of the local recognizer network, named after its model file.
func (c *OpenCVConfig) ModelTag() string {
	if c.RecognizerModel == "" {
		return "opencv-dnn"
	}
	return "opencv-dnn:" + filepath.Base(c.RecognizerModel)
}

type CameraConfig struct {
	Device string // gocv device id ("0") or stream URL
}

// PolicyConfig holds the recognition and attendance policy knobs.
type PolicyConfig struct {
	DuplicateThreshold   float64       `yaml:"duplicate_threshold"`
	RecognitionThreshold float64       `yaml:"recognition_threshold"`
	FrameSkip            int           `yaml:"frame_skip"`
	LateCutoff           string        `yaml:"late_cutoff"`
	RecognitionCooldown  time.Duration `yaml:"recognition_cooldown"`
}

type WebConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
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

// envFloat reads a positive float, falling back to the default on unset or invalid values.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envDuration reads a non-negative duration such as "30s" or "2m".
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return d
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envList splits a comma separated variable, dropping empty items.
func envList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func Load() *Config {
	var policy PolicyConfig
	if err := yaml.Unmarshal(policyYAML, &policy); err != nil {
		// Embedded file, so this only fails on a broken build.
		panic("failed to unmarshal embedded policy.yaml: " + err.Error())
	}

	policy.DuplicateThreshold = envFloat("DUPLICATE_THRESHOLD", policy.DuplicateThreshold)
	policy.RecognitionThreshold = envFloat("RECOGNITION_THRESHOLD", policy.RecognitionThreshold)
	policy.FrameSkip = envInt("FRAME_SKIP", policy.FrameSkip)
	policy.LateCutoff = envString("LATE_CUTOFF", policy.LateCutoff)
	policy.RecognitionCooldown = envDuration("RECOGNITION_COOLDOWN", policy.RecognitionCooldown)

	return &Config{
		Database: DatabaseConfig{
			URL:           os.Getenv("DATABASE_URL"),
			Path:          envString("DATABASE_PATH", "attendance.db"),
			MaxOpenConns:  envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  envInt("DATABASE_MAX_IDLE_CONNS", 5),
			LogLevel:      envString("DATABASE_LOG_LEVEL", "warn"),
			HNSWIndexPath: os.Getenv("HNSW_INDEX_PATH"),
		},
		Registry: RegistryConfig{
			DatabaseURL: os.Getenv("REGISTRY_DATABASE_URL"),
			Table:       envString("REGISTRY_TABLE", "students"),
			NameColumn:  envString("REGISTRY_NAME_COLUMN", "name"),
			CodeColumn:  envString("REGISTRY_CODE_COLUMN", "roll_no"),
		},
		Embedding: EmbeddingConfig{
			Backend:      envString("EMBEDDING_BACKEND", "http"),
			URL:          envString("EMBEDDING_URL", "http://localhost:8000"),
			Model:        envString("EMBEDDING_MODEL", "VGG-Face"),
			Detector:     envString("EMBEDDING_DETECTOR", "opencv"),
			Timeout:      envDuration("EMBEDDING_TIMEOUT", 30*time.Second),
			MaxFrameSide: envInt("EMBEDDING_MAX_FRAME_SIDE", constants.MaxFrameSide),
		},
		OpenCV: OpenCVConfig{
			DetectorModel:      os.Getenv("OPENCV_DETECTOR_MODEL"),
			DetectorConfig:     os.Getenv("OPENCV_DETECTOR_CONFIG"),
			RecognizerModel:    os.Getenv("OPENCV_RECOGNIZER_MODEL"),
			DetectorConfidence: envFloat("OPENCV_DETECTOR_CONFIDENCE", 0.5),
		},
		Camera: CameraConfig{
			Device: envString("CAMERA_DEVICE", "0"),
		},
		Policy: policy,
		Web: WebConfig{
			Host:           envString("WEB_HOST", "0.0.0.0"),
			Port:           envInt("WEB_PORT", 8080),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
	}
}

// Validate rejects policy values the recognition pipeline cannot work with.
func (p *PolicyConfig) Validate() error {
	if p.DuplicateThreshold <= 0 {
		return errors.New("duplicate threshold must be positive")
	}
	if p.RecognitionThreshold <= 0 || p.RecognitionThreshold > 2 {
		return errors.New("recognition threshold must be in (0, 2]")
	}
	if p.FrameSkip < 1 {
		return errors.New("frame skip must be at least 1")
	}
	if _, _, _, err := p.Cutoff(); err != nil {
		return err
	}
	return nil
}

// Cutoff parses LateCutoff ("15:04" or "15:04:05") into hour, minute and second.
func (p *PolicyConfig) Cutoff() (int, int, int, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, p.LateCutoff); err == nil {
			return t.Hour(), t.Minute(), t.Second(), nil
		}
	}
	return 0, 0, 0, fmt.Errorf("invalid late cutoff %q: expected HH:MM or HH:MM:SS", p.LateCutoff)
}
