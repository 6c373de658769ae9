// Package utils exposes reusable helpers consumed by multiple commands.
//
// It houses the ConfigurationLoader, which layers embedded defaults, configuration
// files and GITLIBS_ environment variables through Viper, and the LoggerFactory,
// which builds zap loggers writing to standard error.
package utils
