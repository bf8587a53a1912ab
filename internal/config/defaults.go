package config

const (
	defaultProjectRoot         = "."
	defaultReferenceAsset      = "cypress/fixtures/reference.mp3"
	defaultReportsDir          = "cypress/reports"
	defaultStateDir            = "~/.local/share/soundcheck"
	defaultLogDir              = "~/.local/share/soundcheck/logs"
	defaultSocketName          = "soundcheck.sock"
	defaultHistoryName         = "history.db"
	defaultAPIBind             = "127.0.0.1:7531"
	defaultFingerprintSeconds  = 5.0
	defaultSimilarityThreshold = 0.90
	defaultFFmpegBinary        = "ffmpeg"
	defaultFFprobeBinary       = "ffprobe"
	defaultDecodeTimeout       = 120
	defaultReadTimeout         = 15
	defaultReconnectDelayMax   = 2
	defaultUserAgent           = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"
	defaultAccept              = "*/*"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	maxFingerprintSeconds      = 600
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ProjectRoot:    defaultProjectRoot,
			ReferenceAsset: defaultReferenceAsset,
			ReportsDir:     defaultReportsDir,
			StateDir:       defaultStateDir,
			LogDir:         defaultLogDir,
			APIBind:        defaultAPIBind,
		},
		Fingerprint: Fingerprint{
			DefaultSeconds: defaultFingerprintSeconds,
			Threshold:      defaultSimilarityThreshold,
		},
		Decoder: Decoder{
			FFmpegBinary:       defaultFFmpegBinary,
			FFprobeBinary:      defaultFFprobeBinary,
			TimeoutSeconds:     defaultDecodeTimeout,
			ReadTimeoutSeconds: defaultReadTimeout,
			ReconnectDelayMax:  defaultReconnectDelayMax,
			UserAgent:          defaultUserAgent,
			Accept:             defaultAccept,
			NativeFallback:     true,
		},
		Results: Results{
			HistoryEnabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
