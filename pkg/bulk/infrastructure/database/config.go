// Package database provides GORM-backed database connectivity for riptide.
// Named connections are declared under the `riptide.database` configuration
// section and resolved through a dialector registry, so new database types can
// be supported by registering a factory.
package database

// PoolConfig holds connection pool settings.
type PoolConfig struct {
	MaxOpenConns    int `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime int `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"` // seconds
}

// DatabaseConfig holds the settings of one named database connection.
type DatabaseConfig struct {
	Type     string     `yaml:"type" mapstructure:"type"` // "postgres", "mysql" or "sqlite"
	Host     string     `yaml:"host" mapstructure:"host"`
	Port     int        `yaml:"port" mapstructure:"port"`
	Database string     `yaml:"database" mapstructure:"database"`
	User     string     `yaml:"user" mapstructure:"user"`
	Password string     `yaml:"password" mapstructure:"password"`
	Sslmode  string     `yaml:"sslmode" mapstructure:"sslmode"`
	Pool     PoolConfig `yaml:"pool" mapstructure:"pool"`
}
