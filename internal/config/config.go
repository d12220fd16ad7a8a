package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	log "github.com/sirupsen/logrus"
)

const envPrefix = "SMARTSPEND_"

type Application struct {
	Server    Server    `koanf:"server"`
	Database  Database  `koanf:"db"`
	Redis     Redis     `koanf:"redis"`
	Scheduler Scheduler `koanf:"scheduler"`
	Ledger    Ledger    `koanf:"ledger"`
}

type Server struct {
	Port int `koanf:"port"`
}

type Database struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	User   string `koanf:"user"`
	Pass   string `koanf:"pass"`
	Name   string `koanf:"name"`
	Schema string `koanf:"schema"`
}

type Redis struct {
	Enabled  bool   `koanf:"enabled"`
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type Scheduler struct {
	Enabled bool `koanf:"enabled"`
	// RunAt is the daily HH:MM at which the batch starts.
	RunAt       string        `koanf:"runat"`
	Timezone    string        `koanf:"timezone"`
	Workers     int           `koanf:"workers"`
	PlanTimeout time.Duration `koanf:"plantimeout"`
	PageSize    int           `koanf:"pagesize"`
	LockTTL     time.Duration `koanf:"lockttl"`
	HistorySize int           `koanf:"historysize"`
}

type Ledger struct {
	DefaultCurrency string `koanf:"defaultcurrency"`
	Timezone        string `koanf:"timezone"`
}

func Defaults() Application {
	return Application{
		Server: Server{Port: 8181},
		Database: Database{
			Host:   "localhost",
			Port:   5432,
			User:   "smartspend",
			Pass:   "",
			Name:   "smartspend",
			Schema: "smartspend",
		},
		Redis: Redis{
			Enabled: false,
			Addr:    "localhost:6379",
		},
		Scheduler: Scheduler{
			Enabled:     true,
			RunAt:       "00:00",
			Timezone:    "UTC",
			Workers:     4,
			PlanTimeout: 30 * time.Second,
			PageSize:    500,
			LockTTL:     10 * time.Minute,
			HistorySize: 30,
		},
		Ledger: Ledger{
			DefaultCurrency: "INR",
			Timezone:        "UTC",
		},
	}
}

func Load(path string) (Application, error) {
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
	if err := app.Validate(); err != nil {
		return Application{}, err
	}

	return app, nil
}

// Validate rejects settings the scheduler or ledger could not start with.
func (a Application) Validate() error {
	if _, _, err := a.Scheduler.RunAtClock(); err != nil {
		return err
	}
	if _, err := time.LoadLocation(a.Scheduler.Timezone); err != nil {
		return fmt.Errorf("invalid scheduler.timezone %q: %w", a.Scheduler.Timezone, err)
	}
	if _, err := time.LoadLocation(a.Ledger.Timezone); err != nil {
		return fmt.Errorf("invalid ledger.timezone %q: %w", a.Ledger.Timezone, err)
	}
	if a.Scheduler.Workers < 1 {
		return fmt.Errorf("scheduler.workers must be positive, got %d", a.Scheduler.Workers)
	}
	if a.Scheduler.PageSize < 1 {
		return fmt.Errorf("scheduler.pagesize must be positive, got %d", a.Scheduler.PageSize)
	}
	return nil
}

// RunAtClock parses RunAt into hour and minute.
func (s Scheduler) RunAtClock() (int, int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s.RunAt))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid scheduler.runat %q (expected HH:MM): %w", s.RunAt, err)
	}
	return t.Hour(), t.Minute(), nil
}
