package config

const (
	defaultBackendURL          = "http://127.0.0.1:8000"
	defaultBackendTimeout      = 30
	defaultTrackingJob         = "facenet_eating_bg"
	defaultBaseOnlyJob         = "bboxes_test"
	defaultRequestRadius       = 1
	defaultStride              = 1
	defaultCategory            = -1
	defaultThreshold           = 0.3
	defaultDebounceMillis      = 50
	defaultTickWidth           = 100
	defaultPlotHeight          = 80
	defaultJumpFrame           = 4600
	defaultPrefetchConcurrency = 4
	defaultViewWidth           = 1280
	defaultViewHeight          = 720
	defaultServerBind          = "127.0.0.1:7600"
	defaultStateDir            = "~/.local/share/scanviewer"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Backend: Backend{
			BaseURL:        defaultBackendURL,
			TimeoutSeconds: defaultBackendTimeout,
			TrackingJobs:   []string{defaultTrackingJob},
		},
		Viewer: Viewer{
			RequestRadius:       defaultRequestRadius,
			Stride:              defaultStride,
			Category:            defaultCategory,
			Threshold:           defaultThreshold,
			DebounceMillis:      defaultDebounceMillis,
			TickWidth:           defaultTickWidth,
			PlotHeight:          defaultPlotHeight,
			JumpFrame:           defaultJumpFrame,
			PrefetchPlots:       true,
			PrefetchConcurrency: defaultPrefetchConcurrency,
			BaseOnlyJobs:        []string{defaultBaseOnlyJob},
			ViewWidth:           defaultViewWidth,
			ViewHeight:          defaultViewHeight,
		},
		Server: Server{
			Bind:     defaultServerBind,
			StateDir: defaultStateDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
