package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dkeye/Meet/internal/adapters/signal"
	"github.com/dkeye/Meet/internal/app/chat"
	"github.com/dkeye/Meet/internal/app/media"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Mode     string `mapstructure:"mode"`
	LogLevel string `mapstructure:"log_level"`

	Signal       signal.Config `mapstructure:",squash"`
	RoomLinkBase string        `mapstructure:"room_link_base"`
	ICEServers   []string      `mapstructure:"ice_servers"`

	Media              media.Config `mapstructure:"media"`
	GlarePolicy        string       `mapstructure:"glare_policy"`
	NegotiationRetries int          `mapstructure:"negotiation_retries"`
	SignalMediaState   bool         `mapstructure:"signal_media_state"`
	Chat               chat.Config  `mapstructure:"chat"`

	ControlAddr string `mapstructure:"control_addr"`
	Room        string `mapstructure:"room"`
	Name        string `mapstructure:"name"`
}

// flagKeys maps command line flags to config keys.
var flagKeys = map[string]string{
	"room":         "room",
	"name":         "name",
	"signal-url":   "signal_url",
	"control-addr": "control_addr",
	"log-level":    "log_level",
	"audio-file":   "media.audio_file",
	"video-file":   "media.video_file",
	"silence":      "media.silence",
	"glare-policy": "glare_policy",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("log_level", "info")
	v.SetDefault("signal_url", "ws://localhost:3001")
	v.SetDefault("room_link_base", "http://localhost:3000/")
	v.SetDefault("ice_servers", []string{"stun:stun.l.google.com:19302", "stun:stun1.l.google.com:19302"})
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("pong_wait", "60s")
	v.SetDefault("write_wait", "5s")
	v.SetDefault("send_buffer", 32)
	v.SetDefault("media.audio_file", "")
	v.SetDefault("media.video_file", "")
	v.SetDefault("media.silence", true)
	v.SetDefault("glare_policy", "polite")
	v.SetDefault("negotiation_retries", 2)
	v.SetDefault("signal_media_state", false)
	v.SetDefault("chat.rate_limit", 5)
	v.SetDefault("chat.rate_interval", "3s")
	v.SetDefault("chat.max_len", chat.DefaultMaxLen)
	v.SetDefault("control_addr", "")
	v.SetDefault("room", "")
	v.SetDefault("name", "")
}

// Load reads defaults, then config/config.<CONFIG_ENV>.yaml (or --config),
// then MEET_* environment variables, then flags from args.
func Load(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("meet", pflag.ContinueOnError)
	configFile := fs.String("config", "", "config file (default config/config.<CONFIG_ENV>.yaml)")
	fs.String("room", "", "room to join on start")
	fs.String("name", "", "display name")
	fs.String("signal-url", "", "signaling server websocket URL")
	fs.String("control-addr", "", "control API listen address, empty disables it")
	fs.String("log-level", "", "log level")
	fs.String("audio-file", "", "Ogg/Opus file to send as audio")
	fs.String("video-file", "", "IVF file to send as video")
	fs.Bool("silence", true, "send generated silence when no audio file is set")
	fs.String("glare-policy", "", "accept or polite")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	fileName := *configFile
	if fileName == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		fileName = fmt.Sprintf("config/config.%s.yaml", env)
	}
	v.SetConfigFile(fileName)
	if err := v.ReadInConfig(); err != nil {
		if *configFile != "" {
			return nil, fmt.Errorf("read config %s: %w", fileName, err)
		}
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	v.SetEnvPrefix("MEET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for flag, key := range flagKeys {
		if f := fs.Lookup(flag); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Str("signal_url", cfg.Signal.URL).
		Str("glare_policy", cfg.GlarePolicy).
		Str("control_addr", cfg.ControlAddr).
		Msg("config ready")
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Signal.URL == "" {
		return errors.New("signal_url is empty")
	}
	if c.NegotiationRetries < 0 {
		return fmt.Errorf("negotiation_retries %d is negative", c.NegotiationRetries)
	}
	if c.Chat.RateLimit > 0 && c.Chat.RateInterval <= 0 {
		return fmt.Errorf("chat.rate_interval must be positive, got %s", c.Chat.RateInterval)
	}
	if c.Signal.PingPeriod > 0 && c.Signal.PongWait > 0 && c.Signal.PingPeriod >= c.Signal.PongWait {
		return fmt.Errorf("ping_period %s must be shorter than pong_wait %s", c.Signal.PingPeriod, c.Signal.PongWait)
	}
	return nil
}
