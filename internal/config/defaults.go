package config

const (
	defaultConfigPath         = "~/.config/audiogen/config.toml"
	defaultServerURL          = "http://127.0.0.1:5000"
	defaultSocketPath         = "/socket.io/"
	defaultNamespace          = "/"
	defaultUploadPath         = "/upload_melody"
	defaultDialTimeout        = 10
	defaultRequestTimeout     = 30
	defaultFetchConcurrency   = 4
	defaultModel              = "large"
	defaultTopK               = 250
	defaultTopP               = 0.67
	defaultTemperature        = 1.2
	defaultCFGCoef            = 4.0
	defaultDuration           = 30
	defaultSeed               = 123456
	defaultLoudnessHeadroomDB = 18
	defaultFadeMS             = 60
	defaultFinishedRevertMS   = 1200
	defaultStartedPercent     = 2
	defaultColor              = "auto"
	defaultStateDir           = "~/.local/share/audiogen"
	defaultDownloadDir        = "~/Music/audiogen"
	defaultNtfyTimeout        = 10
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Server: Server{
			URL:              defaultServerURL,
			SocketPath:       defaultSocketPath,
			Namespace:        defaultNamespace,
			UploadPath:       defaultUploadPath,
			DialTimeout:      defaultDialTimeout,
			RequestTimeout:   defaultRequestTimeout,
			FetchConcurrency: defaultFetchConcurrency,
		},
		Generation: Generation{
			Model:       defaultModel,
			TopK:        defaultTopK,
			TopP:        defaultTopP,
			Temperature: defaultTemperature,
			CFGCoef:     defaultCFGCoef,
			Duration:    defaultDuration,
		},
		Advanced: Advanced{
			SeedFixed:          true,
			Seed:               defaultSeed,
			LoudnessHeadroomDB: defaultLoudnessHeadroomDB,
			FadeMS:             defaultFadeMS,
		},
		Display: Display{
			FinishedRevertMS: defaultFinishedRevertMS,
			StartedPercent:   defaultStartedPercent,
			Color:            defaultColor,
		},
		Paths: Paths{
			StateDir:    defaultStateDir,
			DownloadDir: defaultDownloadDir,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
