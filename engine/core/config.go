package core

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type LoggingConfig struct {
	/** @brief Minimum level that is written: debug, info, warn, error. */
	Level string `toml:"level"`
}

type RendererConfig struct {
	/** @brief Width in pixels of every texture atlas page. */
	AtlasPageWidth uint32 `toml:"atlas_page_width"`
	/** @brief Height in pixels of every texture atlas page. */
	AtlasPageHeight uint32 `toml:"atlas_page_height"`
	/** @brief Empty pixels kept between two packed images. */
	AtlasPadding uint32 `toml:"atlas_padding"`
	/** @brief Maximum number of atlas pages, 0 means unbounded. */
	AtlasMaxPages int `toml:"atlas_max_pages"`
	/** @brief Initial instance capacity of a freshly created batch. */
	MeshInstanceCapacity int `toml:"mesh_instance_capacity"`
	/** @brief Presents a batch may stay empty before its buffers are released, 0 keeps them forever. */
	IdleFrameLimit int `toml:"idle_frame_limit"`
	/** @brief Pixel size used when rasterizing the default font. */
	DefaultFontSize float64 `toml:"default_font_size"`
}

type AssetsConfig struct {
	Directory       string `toml:"directory"`
	Watch           bool   `toml:"watch"`
	ReloadQueueSize int    `toml:"reload_queue_size"`
}

type Config struct {
	Logging  LoggingConfig  `toml:"logging"`
	Renderer RendererConfig `toml:"renderer"`
	Assets   AssetsConfig   `toml:"assets"`
}

func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level: "info",
		},
		Renderer: RendererConfig{
			AtlasPageWidth:       1024,
			AtlasPageHeight:      1024,
			AtlasPadding:         2,
			AtlasMaxPages:        0,
			MeshInstanceCapacity: 1024,
			IdleFrameLimit:       120,
			DefaultFontSize:      16,
		},
		Assets: AssetsConfig{
			Directory:       "assets",
			Watch:           false,
			ReloadQueueSize: 64,
		},
	}
}

// LoadConfig reads a TOML file. Keys missing from the file keep their
// default value.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return ParseConfig(data)
}

func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("logging.level: unknown level %q", c.Logging.Level)
	}
	r := c.Renderer
	if r.AtlasPageWidth == 0 || r.AtlasPageHeight == 0 {
		return fmt.Errorf("renderer.atlas_page_width and renderer.atlas_page_height must be > 0")
	}
	if r.AtlasPadding*2 >= r.AtlasPageWidth || r.AtlasPadding*2 >= r.AtlasPageHeight {
		return fmt.Errorf("renderer.atlas_padding %d leaves no room in a %dx%d page", r.AtlasPadding, r.AtlasPageWidth, r.AtlasPageHeight)
	}
	if r.AtlasMaxPages < 0 {
		return fmt.Errorf("renderer.atlas_max_pages must be >= 0")
	}
	if r.MeshInstanceCapacity <= 0 {
		return fmt.Errorf("renderer.mesh_instance_capacity must be > 0")
	}
	if r.IdleFrameLimit < 0 {
		return fmt.Errorf("renderer.idle_frame_limit must be >= 0")
	}
	if r.DefaultFontSize <= 0 {
		return fmt.Errorf("renderer.default_font_size must be > 0")
	}
	if c.Assets.Watch && c.Assets.ReloadQueueSize <= 0 {
		return fmt.Errorf("assets.reload_queue_size must be > 0 when assets.watch is enabled")
	}
	return nil
}

// Encode renders the configuration back to TOML.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}
