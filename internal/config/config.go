// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package config loads the session-server's bootstrap configuration: the
// gRPC/admin listen addresses and the playback tunables (NeedData resend
// delays, underflow watchdog cadence, demand thresholds). Session and
// player code never reads viper directly; it takes a resolved *Config.
package config

import (
	"log"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the fully resolved, validated application configuration.
type Config struct {
	ServiceName string `mapstructure:"service_name" validate:"required"`
	LogLevel    string `mapstructure:"log_level" validate:"required"`
	LogFile     string `mapstructure:"log_file"`

	GRPCAddress  string `mapstructure:"grpc_address" validate:"required"`
	AdminAddress string `mapstructure:"admin_address" validate:"required"`

	SessionStoreDSN string `mapstructure:"session_store_dsn" validate:"required"`

	// NeedDataResendDefault is the default resend delay before a
	// NeedData is re-issued after NO_AVAILABLE_SAMPLES.
	NeedDataResendDefault time.Duration `mapstructure:"need_data_resend_default"`
	// NeedDataResendLowLatency is the resend delay for sources marked
	// immediate-output/low-latency.
	NeedDataResendLowLatency time.Duration `mapstructure:"need_data_resend_low_latency"`

	// PositionReportInterval is the cadence of the position/underflow
	// watchdog timer while PLAYING.
	PositionReportInterval time.Duration `mapstructure:"position_report_interval"`

	// FramesBelowPlaying / FramesPlaying are the default NeedData frame
	// count thresholds.
	FramesBelowPlaying int `mapstructure:"frames_below_playing"`
	FramesPlaying      int `mapstructure:"frames_playing"`

	// WebAudioWriteTimeout bounds the blocking WriteBuffer call.
	WebAudioWriteTimeout time.Duration `mapstructure:"web_audio_write_timeout"`
}

// Load reads configuration from environment variables (and an optional
// .env-style file pointed to by ENV_PATH), applies defaults, then validates.
// Two-pass viper setup: seed defaults, then read the optional file. With
// AutomaticEnv, an environment variable overrides both the file value and
// the default for its key.
func Load() (*Config, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter("__"))
	v.AddConfigPath(".")
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	if path := os.Getenv("ENV_PATH"); path != "" {
		v.SetConfigFile(path)
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		log.Printf("rialto: config: reading from environment variables (%v)", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVICE_NAME", "rialto-session-server")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FILE", "")

	v.SetDefault("GRPC_ADDRESS", "0.0.0.0:8990")
	v.SetDefault("ADMIN_ADDRESS", "0.0.0.0:8991")

	v.SetDefault("SESSION_STORE_DSN", "file:rialto_sessions.db?cache=shared&_fk=1")

	v.SetDefault("NEED_DATA_RESEND_DEFAULT", 100*time.Millisecond)
	v.SetDefault("NEED_DATA_RESEND_LOW_LATENCY", 5*time.Millisecond)
	v.SetDefault("POSITION_REPORT_INTERVAL", 250*time.Millisecond)
	v.SetDefault("FRAMES_BELOW_PLAYING", 3)
	v.SetDefault("FRAMES_PLAYING", 24)
	v.SetDefault("WEB_AUDIO_WRITE_TIMEOUT", 2*time.Second)
}
