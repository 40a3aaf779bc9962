package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	log "github.com/sirupsen/logrus"
)

const (
	envPrefix = "TRACKER_"
	// apiKeyFallbackEnv is read when no exchange API key was configured under the prefix.
	apiKeyFallbackEnv = "API_CODE"
)

type Application struct {
	DataDir  string   `koanf:"datadir"`
	Store    Store    `koanf:"store"`
	Report   Report   `koanf:"report"`
	Ledger   Ledger   `koanf:"ledger"`
	Exchange Exchange `koanf:"exchange"`
	Currency Currency `koanf:"currency"`
	Log      Log      `koanf:"log"`
}

type Store struct {
	Timeout time.Duration `koanf:"timeout"`
}

type Report struct {
	JoinTimeout time.Duration `koanf:"jointimeout"`
}

type Ledger struct {
	// SettleDelay is how long a budget reset waits before re-reading the ledger.
	SettleDelay time.Duration `koanf:"settledelay"`
}

type Exchange struct {
	BaseURL string        `koanf:"baseurl"`
	APIKey  string        `koanf:"apikey"`
	Timeout time.Duration `koanf:"timeout"`
}

type Currency struct {
	Default string `koanf:"default"`
}

type Log struct {
	File string `koanf:"file"`
}

func Defaults() Application {
	return Application{
		DataDir:  "./users",
		Store:    Store{Timeout: 5 * time.Second},
		Report:   Report{JoinTimeout: 10 * time.Second},
		Exchange: Exchange{BaseURL: "https://v6.exchangerate-api.com/v6", Timeout: 10 * time.Second},
		Currency: Currency{Default: "PKR"},
	}
}

// Load builds the configuration from defaults, the YAML file at path and the environment.
// Variables from envFiles (".env" when none are given) are added to the environment first
// without overriding what is already set. Missing files are not an error.
func Load(path string, envFiles ...string) (Application, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, envFile := range envFiles {
		if err := godotenv.Load(envFile); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				log.Debugf("Env file not found at %s", envFile)
				continue
			}
			log.Errorf("error loading env file %s: %v", envFile, err)
			return Application{}, err
		}
		log.Infof("Loaded environment from file: %s", envFile)
	}

	var k = koanf.New(".")

	err := k.Load(structs.Provider(Defaults(), "koanf"), nil)
	if err != nil {
		log.Errorf("error loading config from structs: %v", err)
		return Application{}, err
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if os.IsNotExist(err) {
			log.Infof("Config file not found at %s, using defaults and environment variables", path)
		} else {
			log.Errorf("error loading config from YAML: %v", err)
			return Application{}, err
		}
	} else {
		log.Infof("Loaded configuration from file: %s", path)
	}

	err = k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(k, v string) (string, any) {
			k = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(k, envPrefix)), "_", ".")
			return k, v
		},
	}), nil)
	if err != nil {
		log.Errorf("error loading config from envs: %v", err)
		return Application{}, err
	}

	var app Application
	if err := k.Unmarshal("", &app); err != nil {
		return Application{}, err
	}

	if app.Exchange.APIKey == "" {
		app.Exchange.APIKey = os.Getenv(apiKeyFallbackEnv)
	}

	return app, nil
}
