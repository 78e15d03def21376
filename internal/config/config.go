package config

import (
	"os"

	"github.com/go-yaml/yaml"
)

type Config struct {
	Site   Site   `yaml:"site"`
	Server Server `yaml:"server"`
}

type Site struct {
	FQDN               string `yaml:"fqdn"`
	TrialLicense       bool   `yaml:"trialLicense"`
	MinRevertReasonLen int    `yaml:"minRevertReasonLen"`
}

type Server struct {
	Listen           string `yaml:"listen"`
	PostgresDsn      string `yaml:"postgresDsn"`
	RedisAddr        string `yaml:"redisAddr"`
	RedisDB          int    `yaml:"redisDB"`
	MemcachedAddr    string `yaml:"memcachedAddr"`
	IdentityEndpoint string `yaml:"identityEndpoint"`
	FileBucket       string `yaml:"fileBucket"`
	FileRegion       string `yaml:"fileRegion"`
	EnableTrace      bool   `yaml:"enableTrace"`
	TraceEndpoint    string `yaml:"traceEndpoint"`
}

func Load(path string) (Config, error) {

	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	var config Config
	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return Config{}, err
	}

	if config.Server.Listen == "" {
		config.Server.Listen = ":8000"
	}

	return config, nil
}
