package logger

import (
	"fmt"
	"os"
	"runtime"
)

// Config describes where and how the process logs. Rotation settings only
// apply to the "file" output.
type Config struct {
	Level    Level
	Format   string // json, text, console
	Output   string // stdout, stderr, file
	FilePath string

	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool

	// Fields are attached to every entry.
	Fields map[string]string
}

// containerEnv maps environment variables to the field they populate.
var containerEnv = map[string]string{
	"KUBERNETES_NAMESPACE": "k8s_namespace",
	"KUBERNETES_POD_NAME":  "k8s_pod",
	"KUBERNETES_NODE_NAME": "k8s_node",
	"APP_VERSION":          "app_version",
}

// StaticFields describes the running process.
func StaticFields() Fields {
	hostname, _ := os.Hostname()

	fields := Fields{
		"service":    "notification-hub",
		"hostname":   hostname,
		"pid":        os.Getpid(),
		"go_version": runtime.Version(),
	}
	for env, field := range containerEnv {
		if v := os.Getenv(env); v != "" {
			fields[field] = v
		}
	}
	return fields
}

func NewDefaultConfig() *Config {
	config := &Config{
		Level:      LevelInfo,
		Format:     "console",
		Output:     "stdout",
		MaxSizeMB:  100,
		MaxBackups: 3,
		MaxAgeDays: 28,
		Compress:   true,
		Fields:     make(map[string]string),
	}

	for k, v := range StaticFields() {
		config.Fields[k] = fmt.Sprint(v)
	}
	return config
}
