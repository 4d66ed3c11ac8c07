package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/simctl/internal/broker"
	"github.com/danmuck/simctl/internal/launcher"
	"github.com/danmuck/simctl/internal/wire"
)

// simctl config.toml key mapping to runtime settings.
type fileConfig struct {
	ListenPort        int      `toml:"listen_port"`
	Sender            string   `toml:"sender"`
	AppName           string   `toml:"app_name"`
	AppVersion        string   `toml:"app_version"`
	ExternalHost      string   `toml:"external_host"`
	ExternalPort      int      `toml:"external_port"`
	ExternalTimeoutMS int      `toml:"external_timeout_ms"`
	StatusAddr        string   `toml:"status_addr"`
	StatusCorsOrigins []string `toml:"status_cors_origins"`
	TranslatorPath    string   `toml:"translator_path"`
	TranslatorConfig  string   `toml:"translator_config"`
	TranslatorArgs    []string `toml:"translator_args"`
}

// runtimeConfig is the assembled configuration for one simulator run.
type runtimeConfig struct {
	Broker      broker.Config
	StatusAddr  string
	CorsOrigins []string
	Translator  launcher.TranslatorConfig
}

func defaultRuntimeConfig() runtimeConfig {
	return runtimeConfig{
		Broker:     broker.DefaultConfig(),
		StatusAddr: "",
	}
}

// simctl loader for TOML config with default overlay.
func loadRuntimeConfig(path string) (runtimeConfig, error) {
	cfg := defaultRuntimeConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return runtimeConfig{}, fmt.Errorf("load simctl config: %w", err)
	}

	if meta.IsDefined("listen_port") {
		cfg.Broker.ListenPort = raw.ListenPort
	}
	if meta.IsDefined("sender") {
		cfg.Broker.Sender = strings.TrimSpace(raw.Sender)
	}
	if meta.IsDefined("app_name") {
		cfg.Broker.AppName = strings.TrimSpace(raw.AppName)
	}
	if meta.IsDefined("app_version") {
		cfg.Broker.AppVersion = strings.TrimSpace(raw.AppVersion)
	}
	if meta.IsDefined("external_host") && meta.IsDefined("external_port") {
		cfg.Broker.External = &wire.Interface{
			Host:      strings.TrimSpace(raw.ExternalHost),
			Port:      raw.ExternalPort,
			TimeoutMS: raw.ExternalTimeoutMS,
		}
	}
	if meta.IsDefined("status_addr") {
		cfg.StatusAddr = strings.TrimSpace(raw.StatusAddr)
	}
	if meta.IsDefined("status_cors_origins") {
		cfg.CorsOrigins = raw.StatusCorsOrigins
	}
	if meta.IsDefined("translator_path") {
		cfg.Translator = launcher.TranslatorConfig{
			Path:           strings.TrimSpace(raw.TranslatorPath),
			ConfigFile:     strings.TrimSpace(raw.TranslatorConfig),
			MiddlewareHost: "127.0.0.1",
			MiddlewarePort: cfg.Broker.ListenPort,
			Extra:          raw.TranslatorArgs,
		}
	}
	return cfg, nil
}
