package config

import "fmt"

type EnvVars struct {
	server  ServerSettings
	logging LoggingSettings
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	return fmt.Sprintf(":%d", e.server.Port)
}

func (e EnvVars) GetAppName() string {
	return e.server.AppName
}

// GetEnv returns the deployment environment, e.g. DEV or PROD.
func (e EnvVars) GetEnv() string {
	return e.server.Env
}

func (e EnvVars) GetLogLevel() string {
	return e.logging.Level
}

func (e EnvVars) GetLogFormat() string {
	return e.logging.Format
}
