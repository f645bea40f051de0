package sources

// Config describes one event source seeded from a YAML file in the sources
// directory.
type Config struct {
	Name     string `yaml:"-"` // derived from filename
	Title    string `yaml:"title"`
	URL      string `yaml:"url"`
	Format   string `yaml:"format"` // decoder label, empty for auto-detect
	Settings struct {
		Enabled             bool `yaml:"enabled"`
		ReimportInterval    int  `yaml:"reimport_interval"` // seconds
		ExtractDescriptions bool `yaml:"extract_descriptions"`
	} `yaml:"settings"`
}
