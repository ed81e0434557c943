package config

// Constants defining default values for application configuration
const (
	DefaultDBURL        = "./gator.db"
	DefaultFeedsCSVPath = "./feeds.csv"

	ConfigFileName = ".gatorconfig.json"

	DefaultServerPort = 8080
	DefaultServerHost = "" // Empty string means all interfaces

	DefaultWorkerCount    = 1    // Concurrent ingestion workers
	DefaultInterval       = "1m" // Pause between cycles of one worker
	DefaultRequestTimeout = "15s"
	DefaultCycleTimeout   = "2m"
	DefaultBrowseLimit    = 2

	DefaultLogLevel = "info"
)
