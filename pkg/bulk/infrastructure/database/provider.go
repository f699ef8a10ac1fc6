package database

import (
	"fmt"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"
	"gorm.io/gorm"

	"github.com/tigerroll/riptide/pkg/bulk/core/config"
	"github.com/tigerroll/riptide/pkg/bulk/support/util/logger"
)

// DialectorFactory builds a gorm.Dialector from a DatabaseConfig.
type DialectorFactory func(cfg DatabaseConfig) (gorm.Dialector, error)

var (
	dialectorRegistry = make(map[string]DialectorFactory)
	dialectorMutex    sync.RWMutex
)

// RegisterDialector registers a DialectorFactory for the given database type.
// Driver subpackages call this from their init functions.
func RegisterDialector(dbType string, factory DialectorFactory) {
	dialectorMutex.Lock()
	defer dialectorMutex.Unlock()
	if _, exists := dialectorRegistry[dbType]; exists {
		logger.Warnf("Dialector for type '%s' already registered. Overwriting.", dbType)
	}
	dialectorRegistry[dbType] = factory
}

// GetDialectorFactory retrieves the DialectorFactory for the given DB type.
func GetDialectorFactory(dbType string) (DialectorFactory, error) {
	dialectorMutex.RLock()
	defer dialectorMutex.RUnlock()
	factory, ok := dialectorRegistry[dbType]
	if !ok {
		return nil, fmt.Errorf("no dialector registered for database type: %s", dbType)
	}
	return factory, nil
}

// Provider resolves named GORM connections from the application configuration.
// Connections are established lazily and cached by name.
type Provider struct {
	cfg         *config.Config
	connections map[string]*gorm.DB
	mu          sync.Mutex
}

// NewProvider creates a Provider over the application configuration.
func NewProvider(cfg *config.Config) *Provider {
	return &Provider{
		cfg:         cfg,
		connections: make(map[string]*gorm.DB),
	}
}

// Open returns the connection with the given name, establishing it on first
// use. The connection's type, credentials and pool settings come from the
// `riptide.database.<name>` configuration section.
func (p *Provider) Open(name string) (*gorm.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if db, ok := p.connections[name]; ok {
		return db, nil
	}

	dbConfig, err := p.resolveConfig(name)
	if err != nil {
		return nil, err
	}

	db, err := connect(dbConfig, p.cfg.Riptide.System.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection '%s': %w", name, err)
	}

	p.connections[name] = db
	logger.Infof("Established new DB connection: %s (%s)", name, dbConfig.Type)
	return db, nil
}

// resolveConfig decodes the named entry of the database configuration map.
func (p *Provider) resolveConfig(name string) (DatabaseConfig, error) {
	var dbConfig DatabaseConfig
	raw, ok := p.cfg.Riptide.DatabaseConfigs[name]
	if !ok {
		return dbConfig, fmt.Errorf("database configuration '%s' not found", name)
	}
	if err := mapstructure.Decode(raw, &dbConfig); err != nil {
		return dbConfig, fmt.Errorf("failed to decode database config for '%s': %w", name, err)
	}
	if dbConfig.Type == "" {
		return dbConfig, fmt.Errorf("database configuration '%s' has no type", name)
	}
	return dbConfig, nil
}

// CloseAll closes all cached connections.
func (p *Provider) CloseAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for name, db := range p.connections {
		sqlDB, err := db.DB()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := sqlDB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.connections, name)
		logger.Debugf("Closed DB connection: %s", name)
	}
	return firstErr
}

// connect establishes a GORM connection from a DatabaseConfig.
func connect(dbConfig DatabaseConfig, logLevel string) (*gorm.DB, error) {
	factory, err := GetDialectorFactory(dbConfig.Type)
	if err != nil {
		return nil, err
	}
	dialector, err := factory(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create dialector for %s: %w", dbConfig.Type, err)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: NewGormLogger(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open GORM connection: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if dbConfig.Pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(dbConfig.Pool.MaxOpenConns)
	}
	if dbConfig.Pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(dbConfig.Pool.MaxIdleConns)
	}
	if dbConfig.Pool.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(dbConfig.Pool.ConnMaxLifetime) * time.Second)
	}

	return db, nil
}
