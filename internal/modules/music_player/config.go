package music_player

import (
	"time"

	"github.com/sglre6355/keyboardcat/internal/modules/music_player/domain"
)

// Config holds the music player module configuration.
type Config struct {
	LavalinkAddress  string `env:"LAVALINK_ADDRESS,notEmpty"`
	LavalinkPassword string `env:"LAVALINK_PASSWORD,notEmpty"`
	LavalinkSecure   bool   `env:"LAVALINK_SECURE" envDefault:"false"`
	LavalinkNodeName string `env:"LAVALINK_NODE_NAME" envDefault:"main"`

	// SearchSource is the Lavalink search prefix for plain-text queries.
	SearchSource string `env:"SEARCH_SOURCE" envDefault:"ytsearch"`

	YouTubeResolverEnabled bool          `env:"YOUTUBE_RESOLVER_ENABLED" envDefault:"true"`
	YouTubeTimeout         time.Duration `env:"YOUTUBE_TIMEOUT" envDefault:"15s"`
	ResolverRateLimit      float64       `env:"RESOLVER_RATE_LIMIT" envDefault:"5"`
	ResolverBurst          int           `env:"RESOLVER_BURST" envDefault:"5"`

	EventBufferSize int `env:"EVENT_BUFFER_SIZE" envDefault:"100"`
}

// searchSource returns the configured search source.
func (c *Config) searchSource() domain.SearchSource {
	return domain.ParseSearchSource(c.SearchSource)
}
