// Package config binds the environment variables named in spec §6 into a
// typed configuration struct via envdecode, the same way the teacher family
// of services does it.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/joeshaw/envdecode"
)

// DeletionPolicy is how long a document stays in each deleted stage before
// advancing, for one collection with deletion enabled.
type DeletionPolicy struct {
	Stage1Days int
	Stage2Days int
}

// Config is the full set of environment-derived settings the service reads
// at startup.
type Config struct {
	Database     string `env:"FOLIVAFY_DATABASE,required"`
	Schema       string `env:"FOLIVAFY_SCHEMA,default=public"`
	JWTIssuer    string `env:"FOLIVAFY_JWT_ISSUER,required"`
	JWTSecret    string `env:"FOLIVAFY_JWT_SECRET"`
	Port         int    `env:"PORT,default=3000"`
	CronInterval int    `env:"FOLIVAFY_CRON_INTERVAL,default=5"`
	EnableDeletionRaw string `env:"FOLIVAFY_ENABLE_DELETION,default="`

	MailHost string `env:"FOLIVAFY_MAIL_HOST"`
	MailPort int    `env:"FOLIVAFY_MAIL_PORT,default=25"`
	MailFrom string `env:"FOLIVAFY_MAIL_FROM"`

	KafkaBrokers      []string `env:"FOLIVAFY_KAFKA_BROKERS,default=localhost:9092"`
	KafkaTopic        string   `env:"FOLIVAFY_KAFKA_TOPIC,default=folivafy-documents"`
	OutboxWorkers     int      `env:"FOLIVAFY_OUTBOX_WORKERS,default=4"`
	OutboxPollSeconds int      `env:"FOLIVAFY_OUTBOX_POLL_SECONDS,default=5"`

	UserdataURL string `env:"USERDATA_URL"`

	// DeletionPolicies is derived from EnableDeletionRaw, not read directly
	// from the environment.
	DeletionPolicies map[string]DeletionPolicy `env:"-"`
}

// Load reads and validates the process environment into a Config.
func Load() (*Config, error) {
	var c Config
	if err := envdecode.Decode(&c); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	policies, err := ParseDeletionPolicies(c.EnableDeletionRaw)
	if err != nil {
		return nil, err
	}
	c.DeletionPolicies = policies
	return &c, nil
}

// ParseDeletionPolicies parses FOLIVAFY_ENABLE_DELETION, a comma-separated
// list of "name:stage1_days:stage2_days" triples.
func ParseDeletionPolicies(raw string) (map[string]DeletionPolicy, error) {
	policies := map[string]DeletionPolicy{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return policies, nil
	}
	for _, triple := range strings.Split(raw, ",") {
		triple = strings.TrimSpace(triple)
		if triple == "" {
			continue
		}
		parts := strings.Split(triple, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("config: malformed FOLIVAFY_ENABLE_DELETION triple %q", triple)
		}
		stage1, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("config: malformed stage1_days in %q: %w", triple, err)
		}
		stage2, err := strconv.Atoi(parts[2])
		if err != nil {
			return nil, fmt.Errorf("config: malformed stage2_days in %q: %w", triple, err)
		}
		policies[parts[0]] = DeletionPolicy{Stage1Days: stage1, Stage2Days: stage2}
	}
	return policies, nil
}
