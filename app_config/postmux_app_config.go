package app_config

import (
	"io/ioutil"
	"time"

	Logger "github.com/Luismorlan/postmux/utils/log"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreMemory   = "memory"

	DefaultNormalizerWorkers = 4
)

// This is the app config shared by all postmux binaries.
type PostmuxAppConfig struct {
	// IANA timezone used to express record timestamps as epoch seconds. Empty
	// means records carry ISO-8601 timestamps instead.
	LOCALE string `yaml:"LOCALE"`
	// Post-level raw fields copied onto records on top of the defaults.
	EXTRA_POST_FIELDS []string `yaml:"EXTRA_POST_FIELDS"`
	// Author-level raw fields copied as user_<field> on top of the defaults.
	EXTRA_USER_FIELDS []string `yaml:"EXTRA_USER_FIELDS"`
	// Extra record keys appended as CSV columns by the export server.
	EXPORT_EXTRA_FIELDS []string `yaml:"EXPORT_EXTRA_FIELDS"`
	// Boolean record key the export server can require with selected=checked.
	EXPORT_SELECTED_FIELD string `yaml:"EXPORT_SELECTED_FIELD"`
	// Number of goroutines normalizing records in parallel.
	NORMALIZER_WORKERS int `yaml:"NORMALIZER_WORKERS"`
	// One of mongo, postgres or memory.
	STORE string `yaml:"STORE"`
}

func ParsePostmuxAppConfig(path string) PostmuxAppConfig {
	c, err := LoadPostmuxAppConfig(path)
	if err != nil {
		Logger.Log.Fatal("fail to load app config: ", err)
	}
	return c
}

func LoadPostmuxAppConfig(path string) (PostmuxAppConfig, error) {
	yamlFile, err := ioutil.ReadFile(path)
	if err != nil {
		return PostmuxAppConfig{}, errors.Wrapf(err, "cannot read %s", path)
	}
	return ParsePostmuxAppConfigBytes(yamlFile)
}

func ParsePostmuxAppConfigBytes(data []byte) (PostmuxAppConfig, error) {
	c := PostmuxAppConfig{}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, errors.Wrap(err, "cannot unmarshal app config")
	}
	if c.NORMALIZER_WORKERS <= 0 {
		c.NORMALIZER_WORKERS = DefaultNormalizerWorkers
	}
	if c.STORE == "" {
		c.STORE = StoreMemory
	}
	return c, nil
}

// LoadLocation resolves LOCALE against the timezone database. It is meant to
// be called once at startup, the returned location is shared read-only by
// every normalization afterwards. A nil location means no locale.
func (c PostmuxAppConfig) LoadLocation() (*time.Location, error) {
	if c.LOCALE == "" {
		return nil, nil
	}
	loc, err := time.LoadLocation(c.LOCALE)
	if err != nil {
		return nil, errors.Wrapf(err, "unknown LOCALE %s", c.LOCALE)
	}
	return loc, nil
}
