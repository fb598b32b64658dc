package vkframe

import (
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// Config holds the tunables of a Renderer. It is usually decoded from a TOML
// file with LoadConfig.
type Config struct {
	AppName string `toml:"app_name"`
	Width   int    `toml:"width"`
	Height  int    `toml:"height"`

	// MaxFramesInFlight is the number of frame synchronization triples.
	MaxFramesInFlight int `toml:"max_frames_in_flight"`

	// AcquireTimeout is a Go duration string, empty means wait forever.
	AcquireTimeout string `toml:"acquire_timeout"`

	// ShaderDir is where <name>.spv blobs are read from.
	ShaderDir string `toml:"shader_dir"`

	// MaxTextures sizes the combined image sampler pool.
	MaxTextures int `toml:"max_textures"`

	// MaxTextureSize bounds the larger texture dimension; bigger images are
	// downscaled when decoded.
	MaxTextureSize int `toml:"max_texture_size"`

	ClearColor []float32 `toml:"clear_color"`

	Validation bool   `toml:"validation"`
	LogLevel   string `toml:"log_level"`
	Overlay    bool   `toml:"overlay"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		AppName:           "vkframe",
		Width:             1280,
		Height:            720,
		MaxFramesInFlight: 3,
		ShaderDir:         "./Shaders",
		MaxTextures:       16,
		MaxTextureSize:    4096,
		ClearColor:        []float32{0.0, 0.0, 0.0, 1.0},
		LogLevel:          "info",
	}
}

// ParseConfig decodes TOML on top of DefaultConfig and validates the result.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and parses the TOML file at path.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}
	return ParseConfig(data)
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.Width <= 0 || c.Height <= 0:
		return errors.Errorf("config: window size %dx%d must be positive", c.Width, c.Height)
	case c.MaxFramesInFlight < 1:
		return errors.Errorf("config: max_frames_in_flight must be at least 1, got %d", c.MaxFramesInFlight)
	case c.MaxTextures < 1:
		return errors.Errorf("config: max_textures must be at least 1, got %d", c.MaxTextures)
	case c.MaxTextureSize < 1:
		return errors.Errorf("config: max_texture_size must be at least 1, got %d", c.MaxTextureSize)
	case len(c.ClearColor) != 4:
		return errors.Errorf("config: clear_color needs 4 components, got %d", len(c.ClearColor))
	case c.ShaderDir == "":
		return errors.New("config: shader_dir is empty")
	}
	if _, err := c.AcquireTimeoutNanos(); err != nil {
		return err
	}
	return nil
}

// AcquireTimeoutNanos converts AcquireTimeout to the value expected by
// vkAcquireNextImageKHR.
func (c Config) AcquireTimeoutNanos() (uint64, error) {
	if c.AcquireTimeout == "" || c.AcquireTimeout == "infinite" {
		return vk.MaxUint64, nil
	}
	d, err := time.ParseDuration(c.AcquireTimeout)
	if err != nil {
		return 0, errors.Wrap(err, "config: acquire_timeout")
	}
	if d < 0 {
		return 0, errors.Errorf("config: acquire_timeout %s is negative", d)
	}
	return uint64(d.Nanoseconds()), nil
}
