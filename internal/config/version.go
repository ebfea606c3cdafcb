package config

// Build metadata, set with -ldflags "-X github.com/edirooss/ptz-server/internal/config.Version=..."
var (
	Version   = "dev"
	GitCommit = "none"
	BuildDate = "unknown"
)
