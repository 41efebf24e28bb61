package config

const (
	defaultDownloadDir            = "~/Downloads/ytqueue"
	defaultStateDir               = "~/.local/share/ytqueue/state"
	defaultLogDir                 = "~/.local/share/ytqueue/logs"
	defaultAPIBind                = "127.0.0.1:8081"
	defaultOutputTemplate         = "%(title)s.%(ext)s"
	defaultChapterTemplate        = "%(title)s - %(section_number)02d - %(section_title)s.%(ext)s"
	defaultPlaylistTemplate       = "%(playlist_title)s/%(title)s.%(ext)s"
	defaultChannelTemplate        = "%(channel)s/%(title)s.%(ext)s"
	defaultConcurrency            = ConcurrencyLimited
	defaultMaxConcurrent          = 3
	defaultCustomDirsExcludeRegex = `(^|/)[.@].*$`
	defaultYTDLPBinary            = "yt-dlp"
	defaultSocketTimeout          = 30
	defaultNotifyRequestTimeout   = 10
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

// Concurrency policy names accepted by downloads.concurrency.
const (
	ConcurrencySequential = "sequential"
	ConcurrencyLimited    = "limited"
	ConcurrencyUnlimited  = "unlimited"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DownloadDir: defaultDownloadDir,
			StateDir:    defaultStateDir,
			LogDir:      defaultLogDir,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		Templates: Templates{
			Output:   defaultOutputTemplate,
			Chapter:  defaultChapterTemplate,
			Playlist: defaultPlaylistTemplate,
			Channel:  defaultChannelTemplate,
		},
		Downloads: Downloads{
			Concurrency:            defaultConcurrency,
			MaxConcurrent:          defaultMaxConcurrent,
			CustomDirs:             true,
			CreateCustomDirs:       true,
			CustomDirsExcludeRegex: defaultCustomDirsExcludeRegex,
		},
		YTDLP: YTDLP{
			Binary:        defaultYTDLPBinary,
			SocketTimeout: defaultSocketTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Completed:      true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
