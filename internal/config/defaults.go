package config

const (
	defaultConfigPath             = "~/.config/warden/config.toml"
	defaultDataDir                = "~/.local/share/warden"
	defaultLogDir                 = "~/.local/share/warden/logs"
	defaultAPIBind                = "127.0.0.1:7488"
	defaultDirectoryPath          = "~/.config/warden/directory.csv"
	defaultReferencesDir          = "~/.config/warden/references"
	defaultTesseractBinary        = "tesseract"
	defaultTesseractLanguage      = "eng"
	defaultPageSegMode            = 6
	defaultLabelPattern           = `(?:governor\s*)?id`
	defaultMinDigits              = 6
	defaultMaxDigits              = 20
	defaultResizeWidth            = 1400
	defaultContrast               = 20
	defaultSharpen                = 1.0
	defaultThreshold              = 150
	defaultTemplateWidth          = 28
	defaultStride                 = 3
	defaultPixelTolerance         = 25
	defaultSimilarityThreshold    = 0.65
	defaultAnalyzerTimeoutSeconds = 60
	defaultFetchTimeoutSeconds    = 15
	defaultFetchMaxBytes          = 16 << 20
	defaultFetchUserAgent         = "Warden/0.1"
	defaultInitialETASeconds      = 40
	defaultMinETASeconds          = 15
	defaultMaxETASeconds          = 120
	defaultSmoothingFactor        = 0.3
	defaultLedgerBackend          = "sqlite"
	defaultMaxAttempts            = 3
	defaultLockPolicy             = LockPolicyAdmin
	defaultRedisKeyPrefix         = "warden:ledger"
	defaultGatewayMode            = "log"
	defaultGatewayTimeoutSeconds  = 10
	defaultNotifyRequestTimeout   = 10
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultLogRetentionDays       = 30
)

// Lock policies name the ledger state a lockout transitions into.
const (
	LockPolicyAdmin  = "admin"
	LockPolicyRejoin = "rejoin"
)

// DefaultRegions returns the prioritized OCR regions used when none are configured.
// The identifier panel comes first, then the wider profile header, then the full frame.
func DefaultRegions() []Region {
	return []Region{
		{Name: "id_panel", X: 0.05, Y: 0.15, Width: 0.45, Height: 0.25},
		{Name: "profile_header", X: 0, Y: 0, Width: 0.6, Height: 0.4},
		{Name: "full_frame", X: 0, Y: 0, Width: 1, Height: 1},
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		Directory: Directory{
			Path: defaultDirectoryPath,
		},
		Analyzer: Analyzer{
			TesseractBinary:     defaultTesseractBinary,
			Language:            defaultTesseractLanguage,
			PageSegMode:         defaultPageSegMode,
			Regions:             DefaultRegions(),
			LabelPattern:        defaultLabelPattern,
			MinDigits:           defaultMinDigits,
			MaxDigits:           defaultMaxDigits,
			ResizeWidth:         defaultResizeWidth,
			Contrast:            defaultContrast,
			Sharpen:             defaultSharpen,
			Threshold:           defaultThreshold,
			ReferencesDir:       defaultReferencesDir,
			ProfileRegion:       Region{Name: "profile_panel", X: 0, Y: 0, Width: 0.45, Height: 0.55},
			TemplateWidth:       defaultTemplateWidth,
			Stride:              defaultStride,
			PixelTolerance:      defaultPixelTolerance,
			SimilarityThreshold: defaultSimilarityThreshold,
			TimeoutSeconds:      defaultAnalyzerTimeoutSeconds,
		},
		Fetch: Fetch{
			TimeoutSeconds: defaultFetchTimeoutSeconds,
			MaxBytes:       defaultFetchMaxBytes,
			UserAgent:      defaultFetchUserAgent,
		},
		Queue: Queue{
			InitialETASeconds: defaultInitialETASeconds,
			MinETASeconds:     defaultMinETASeconds,
			MaxETASeconds:     defaultMaxETASeconds,
			SmoothingFactor:   defaultSmoothingFactor,
		},
		Ledger: Ledger{
			Backend:        defaultLedgerBackend,
			MaxAttempts:    defaultMaxAttempts,
			StrikeLock:     defaultLockPolicy,
			MismatchLock:   defaultLockPolicy,
			RedisKeyPrefix: defaultRedisKeyPrefix,
		},
		Gateway: Gateway{
			Mode:           defaultGatewayMode,
			TimeoutSeconds: defaultGatewayTimeoutSeconds,
		},
		Notifications: Notifications{
			RequestTimeout:      defaultNotifyRequestTimeout,
			Escalations:         true,
			ConfigurationErrors: true,
			Daemon:              true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
