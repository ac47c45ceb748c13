// Package config loads server configuration from a YAML file with
// environment-variable overrides. Contract constants (gating bounds, chunk
// size) are deliberately not configurable; see the orchestrator package.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultObstacles is the allow-list of detection labels that count as
// obstacles worth warning about.
var DefaultObstacles = []string{
	"man", "woman", "boy", "girl", "car", "bus",
	"lorry", "truck", "tree", "table", "chair",
	"door", "bicycle", "motorcycle", "bike",
	"traffic light", "traffic sign", "stop sign",
	"parking meter", "bench", "wall", "wardrobe", "bed",
}

// DefaultPromptTemplate is the synthesis prompt; {transcript} is replaced
// with the gated transcript before the call.
const DefaultPromptTemplate = "You are an assistant for a visually impaired person. " +
	"Using the attached image of their surroundings, answer briefly and directly: {transcript}"

// Server configures the HTTP/WebSocket listener.
type Server struct {
	// Addr is the listen address.
	Addr string `yaml:"addr"`

	// BaseURL is the externally reachable root used in resource links.
	BaseURL string `yaml:"base_url"`

	// UploadDir is where url-mode audio answers are written.
	UploadDir string `yaml:"upload_dir"`

	// MetricsAddr is the Prometheus exporter listen address.
	MetricsAddr string `yaml:"metrics_addr"`
}

// Media configures the ffmpeg-based decode pipeline.
type Media struct {
	FFmpegPath    string        `yaml:"ffmpeg_path"`
	FFprobePath   string        `yaml:"ffprobe_path"`
	DecodeTimeout time.Duration `yaml:"decode_timeout"`

	// PoolSize bounds concurrent CPU-bound pipeline work. Zero means
	// GOMAXPROCS.
	PoolSize int `yaml:"pool_size"`
}

// Gateway configures the remote inference provider.
type Gateway struct {
	BaseURL            string   `yaml:"base_url"`
	APIKey             string   `yaml:"api_key"`
	UserID             string   `yaml:"user_id"`
	AppID              string   `yaml:"app_id"`
	RecognitionModel   string   `yaml:"recognition_model"`
	DetectionModel     string   `yaml:"detection_model"`
	TranscriptionModel string   `yaml:"transcription_model"`
	SynthesisWorkflow  string   `yaml:"synthesis_workflow"`
	SelectedConcepts   []string `yaml:"selected_concepts"`
	MaxConcepts        int      `yaml:"max_concepts"`
	MinValue           float64  `yaml:"min_value"`
	RateLimit          float64  `yaml:"rate_limit"`
}

// Detect configures obstacle interpretation. Thresholds keep the fixed
// precedence order; only the values move.
type Detect struct {
	VeryNearArea float64  `yaml:"very_near_area"`
	NearArea     float64  `yaml:"near_area"`
	VeryFarArea  float64  `yaml:"very_far_area"`
	Obstacles    []string `yaml:"obstacles"`
}

// Cache configures the per-session frame cache.
type Cache struct {
	// Backend is "memory" or "redis".
	Backend   string        `yaml:"backend"`
	RedisAddr string        `yaml:"redis_addr"`
	TTL       time.Duration `yaml:"ttl"`
}

// Telemetry configures trace export. An empty endpoint disables it.
type Telemetry struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// Config is the root configuration.
type Config struct {
	Server         Server    `yaml:"server"`
	Media          Media     `yaml:"media"`
	Gateway        Gateway   `yaml:"gateway"`
	Detect         Detect    `yaml:"detect"`
	Cache          Cache     `yaml:"cache"`
	Telemetry      Telemetry `yaml:"telemetry"`
	PromptTemplate string    `yaml:"prompt_template"`
}

// Default returns the configuration used when no file or overrides are
// present.
func Default() *Config {
	return &Config{
		Server: Server{
			Addr:        ":8000",
			BaseURL:     "http://localhost:8000",
			UploadDir:   "uploads",
			MetricsAddr: ":9090",
		},
		Media: Media{
			FFmpegPath:    "ffmpeg",
			FFprobePath:   "ffprobe",
			DecodeTimeout: 30 * time.Second,
		},
		Gateway: Gateway{
			UserID:             "clarifai",
			AppID:              "main",
			RecognitionModel:   "general-image-recognition",
			DetectionModel:     "general-image-detection",
			TranscriptionModel: "asr-wav2vec2-base-960h-english",
			SynthesisWorkflow:  "multimodal-to-speech",
			MaxConcepts:        20,
			MinValue:           0.85,
		},
		Detect: Detect{
			VeryNearArea: 0.5,
			NearArea:     0.05,
			VeryFarArea:  0.02,
			Obstacles:    DefaultObstacles,
		},
		Cache: Cache{
			Backend: "memory",
			TTL:     5 * time.Minute,
		},
		PromptTemplate: DefaultPromptTemplate,
	}
}

// Load reads the YAML file at path (optional, "" skips), applies environment
// overrides, and validates. Missing files are an error; empty path is not.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv layers environment variables over file values.
func (c *Config) applyEnv() {
	setString(&c.Server.Addr, "SIGHTLINE_ADDR")
	setString(&c.Server.BaseURL, "SIGHTLINE_BASE_URL")
	setString(&c.Server.UploadDir, "SIGHTLINE_UPLOAD_DIR")
	setString(&c.Server.MetricsAddr, "SIGHTLINE_METRICS_ADDR")

	setString(&c.Media.FFmpegPath, "SIGHTLINE_FFMPEG_PATH")
	setString(&c.Media.FFprobePath, "SIGHTLINE_FFPROBE_PATH")
	setInt(&c.Media.PoolSize, "SIGHTLINE_POOL_SIZE")

	setString(&c.Gateway.APIKey, "CLARIFAI_API_KEY")
	setString(&c.Gateway.UserID, "CLARIFAI_USER_ID")
	setString(&c.Gateway.AppID, "CLARIFAI_APP_ID")
	setString(&c.Gateway.RecognitionModel, "CLARIFAI_RECOGNITION_MODEL_ID")
	setString(&c.Gateway.DetectionModel, "CLARIFAI_DETECTION_MODEL_ID")
	setString(&c.Gateway.TranscriptionModel, "CLARIFAI_TRANSCRIPTION_MODEL_ID")
	setString(&c.Gateway.SynthesisWorkflow, "CLARIFAI_SYNTHESIS_WORKFLOW_ID")

	setString(&c.Cache.Backend, "SIGHTLINE_CACHE_BACKEND")
	setString(&c.Cache.RedisAddr, "SIGHTLINE_REDIS_ADDR")
	setString(&c.Telemetry.OTLPEndpoint, "SIGHTLINE_OTLP_ENDPOINT")
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config: server.addr is required")
	}
	if c.Gateway.APIKey == "" {
		return fmt.Errorf("config: gateway.api_key is required (or CLARIFAI_API_KEY)")
	}
	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("config: cache.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("config: unknown cache backend %q", c.Cache.Backend)
	}
	if c.Detect.NearArea <= 0 || c.Detect.VeryNearArea <= c.Detect.NearArea {
		return fmt.Errorf("config: detect thresholds must satisfy very_near_area > near_area > 0")
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
