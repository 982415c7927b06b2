package config

import (
	"fmt"
	"os"
	"strings"
)

const (
	portEnvVar     = "PORT"
	appNameVar     = "APP_NAME"
	envVar         = "ENV"
	logLevelEnvVar = "LOG_LEVEL"
	baseURLVar     = "BASE_URL"

	// EnvProduction is the ENV value that turns on Secure cookies and the
	// __Secure- session cookie name.
	EnvProduction = "PROD"
	// EnvDevelopment is the default ENV value.
	EnvDevelopment = "DEV"
)

type EnvVars struct {
	port string
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := e.port
	if port == "" {
		port = GetEnv(portEnvVar, "8080")
	}
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Session Gateway")
}

func (EnvVars) GetEnv() string {
	env := strings.ToUpper(os.Getenv(envVar))
	switch env {
	case "":
		return EnvDevelopment
	case "PRODUCTION":
		return EnvProduction
	}
	return env
}

func (e EnvVars) IsProduction() bool {
	return e.GetEnv() == EnvProduction
}

func (EnvVars) GetLogLevel() string {
	return GetEnv(logLevelEnvVar, "info")
}

// GetBaseURL returns the public base URL of the application (e.g., "https://app.example.com")
func (EnvVars) GetBaseURL() string {
	return GetEnv(baseURLVar, "http://localhost:8080")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
