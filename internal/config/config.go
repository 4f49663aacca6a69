package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode                  string        `mapstructure:"mode"`
	ServerURL             string        `mapstructure:"server_url"`
	PublicID              string        `mapstructure:"public_id"`
	DisplayName           string        `mapstructure:"display_name"`
	AvatarURL             string        `mapstructure:"avatar_url"`
	ControlPort           int           `mapstructure:"control_port"`
	StaticPath            string        `mapstructure:"static_path"`
	ReadLimit             int64         `mapstructure:"read_limit"`
	PingPeriod            time.Duration `mapstructure:"ping_period"`
	Secret                string        `mapstructure:"secret"`
	StunServers           []string      `mapstructure:"stun_servers"`
	RecordDir             string        `mapstructure:"record_dir"`
	MaxBufferedCandidates int           `mapstructure:"max_buffered_candidates"`
	CandidateRetryLimit   int           `mapstructure:"candidate_retry_limit"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("server_url", "ws://localhost:8080/api/ws/signal")
	v.SetDefault("display_name", "Anonymous")
	v.SetDefault("control_port", 8090)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "call-secret")
	v.SetDefault("stun_servers", []string{
		"stun:stun.l.google.com:19302",
		"stun:stun1.l.google.com:19302",
	})
	v.SetDefault("record_dir", ".")
	v.SetDefault("max_buffered_candidates", 64)
	v.SetDefault("candidate_retry_limit", 3)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	fmt.Printf("🧩 Mode: %s | Server: %s | Control: %d\n", cfg.Mode, cfg.ServerURL, cfg.ControlPort)
	return &cfg, nil
}
