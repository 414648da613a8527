package config

type LoggerConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	TimeFormat string `yaml:"time_format"`
	Caller     bool   `yaml:"caller"`
	Colors     bool   `yaml:"colors"`
}

func loadLoggerConfig() *LoggerConfig {
	return &LoggerConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Format:     getEnv("LOG_FORMAT", "text"),
		Output:     getEnv("LOG_OUTPUT", "stdout"),
		TimeFormat: getEnv("LOG_TIME_FORMAT", "2006-01-02 15:04:05"),
		Caller:     getEnvAsBool("LOG_CALLER", false),
		Colors:     getEnvAsBool("LOG_COLORS", true),
	}
}
