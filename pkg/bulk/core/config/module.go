package config

import (
	"go.uber.org/fx"
)

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig
	EnvFilePath    string `name:"envFilePath" optional:"true"`
}

// NewConfigProvider is an Fx provider that loads and provides *Config.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	return LoadConfig(params.EnvFilePath, params.EmbeddedConfig)
}

// Module is an Fx module that provides the application configuration.
// Applications supply the embedded YAML via fx.Supply(config.EmbeddedConfig(...)).
var Module = fx.Options(
	fx.Provide(NewConfigProvider),
)
