package cfg

type Cfg struct {
	// Storage configuration
	DBPath string

	// Application configuration
	SourcesDir        string
	Port              string
	BaseUrl           string
	WorkerCount       int
	SchedulerInterval int
	APIAccessKey      string

	// Import configuration
	FetchTimeout   int
	SkipOldEvents  bool
	MeetupAPIKey   string
	FacebookToken  string
	MachineTagFile string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
