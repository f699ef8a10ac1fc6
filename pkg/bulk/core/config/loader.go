package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tigerroll/riptide/pkg/bulk/support/util/exception"
	"github.com/tigerroll/riptide/pkg/bulk/support/util/logger"
)

const moduleName = "config"

// LoadConfig loads configuration in three layers: engine defaults, the
// embedded YAML document (with ${VAR} placeholders expanded from the
// environment), and finally direct RIPTIDE_* environment variable overrides
// for the job tunables. It is expected to be called once during startup.
//
// envFilePath names an optional .env file loaded before expansion; when empty,
// godotenv looks for ./.env.
func LoadConfig(envFilePath string, embedded EmbeddedConfig) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else {
		if err := godotenv.Load(); err != nil {
			logger.Debugf(".env file not found or could not be loaded: %v", err)
		}
	}

	cfg := NewConfig()

	if len(embedded) > 0 {
		expanded, err := NewOsEnvironmentExpander().Expand(embedded)
		if err != nil {
			return nil, exception.NewBulkError(moduleName, "failed to expand environment placeholders in config", err, false)
		}
		// Unmarshalling over the default-initialized struct leaves absent keys at
		// their defaults, including explicit `false` overrides.
		if err := yaml.Unmarshal(expanded, cfg); err != nil {
			return nil, exception.NewBulkError(moduleName, "failed to unmarshal embedded config", err, false)
		}
	}

	overrideJobFromEnv(&cfg.Riptide.Job)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.SetLogLevel(cfg.Riptide.System.Logging.Level)
	return cfg, nil
}

// overrideJobFromEnv applies direct environment overrides to the job tunables.
// Recognized variables:
//   - RIPTIDE_PUT_BATCH_SIZE
//   - RIPTIDE_DELETE_BATCH_SIZE
//   - RIPTIDE_MAX_EXECUTION_TIME (seconds, fractional allowed)
//   - RIPTIDE_MAX_FAILURES (-1 = unlimited)
//   - RIPTIDE_DELETE_COMPLETED_JOB_DELAY (seconds; 0 = immediate, -1 = never)
//   - RIPTIDE_DELETE_FAILED_JOBS (boolean)
func overrideJobFromEnv(job *JobConfig) {
	job.PutBatchSize = getEnvInt("RIPTIDE_PUT_BATCH_SIZE", job.PutBatchSize)
	job.DeleteBatchSize = getEnvInt("RIPTIDE_DELETE_BATCH_SIZE", job.DeleteBatchSize)
	job.MaxExecutionTime = getEnvFloat("RIPTIDE_MAX_EXECUTION_TIME", job.MaxExecutionTime)
	job.MaxFailures = getEnvInt("RIPTIDE_MAX_FAILURES", job.MaxFailures)
	job.DeleteCompletedJobDelay = getEnvInt("RIPTIDE_DELETE_COMPLETED_JOB_DELAY", job.DeleteCompletedJobDelay)
	job.DeleteFailedJobs = getEnvBool("RIPTIDE_DELETE_FAILED_JOBS", job.DeleteFailedJobs)
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		logger.Warnf("Environment variable %s=%q is not an integer. Keeping %d.", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
		logger.Warnf("Environment variable %s=%q is not a number. Keeping %g.", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
		logger.Warnf("Environment variable %s=%q is not a boolean. Keeping %t.", key, value, defaultValue)
	}
	return defaultValue
}
