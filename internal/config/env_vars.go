package config

import "strings"

type EnvVars struct {
	APIURL   string `env:"PROPMAN_API_URL,default=http://localhost:8000/api" validate:"required,url"`
	AppName  string `env:"PROPMAN_APP_NAME,default=PropMan"`
	Env      string `env:"PROPMAN_ENV,default=DEV"`
	LogLevel string `env:"PROPMAN_LOG_LEVEL,default=info" validate:"oneof=trace debug info warn error disabled"`
}

var _ EnvConfig = EnvVars{}

// GetAPIURL returns the backend base URL without a trailing slash (e.g. "https://api.example.com/api")
func (e EnvVars) GetAPIURL() string {
	return strings.TrimRight(e.APIURL, "/")
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	return e.Env
}

func (e EnvVars) GetLogLevel() string {
	return e.LogLevel
}
