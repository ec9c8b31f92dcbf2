/*
Copyright 2024 Viralship Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

const DEFAULT_PORT = "5002"

var ConfigStore atomic.Value

type ServerConfig struct {
	Secure    bool   `json:"secure" envconfig:"VIRALSHIP_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"VIRALSHIP_SERVER_SECRET_KEY"`
	Port      string `json:"port" envconfig:"VIRALSHIP_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"VIRALSHIP_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns string `json:"dns" envconfig:"VIRALSHIP_REDIS_DNS"`
}

// ProcessingConfig tunes the transaction processor and scheduler. The lock
// TTL and attempt ceiling varied across the legacy deployments; these are the
// documented defaults, not contracts.
type ProcessingConfig struct {
	LockTTLMinutes   int `json:"lock_ttl_minutes" envconfig:"VIRALSHIP_PROCESSING_LOCK_TTL_MINUTES"`
	MaxAttempts      int `json:"max_attempts" envconfig:"VIRALSHIP_PROCESSING_MAX_ATTEMPTS"`
	BatchLimit       int `json:"batch_limit" envconfig:"VIRALSHIP_PROCESSING_BATCH_LIMIT"`
	ItemDelayMs      int `json:"item_delay_ms" envconfig:"VIRALSHIP_PROCESSING_ITEM_DELAY_MS"`
	IntervalSeconds  int `json:"interval_seconds" envconfig:"VIRALSHIP_PROCESSING_INTERVAL_SECONDS"`
	MaxTargets       int `json:"max_targets" envconfig:"VIRALSHIP_PROCESSING_MAX_TARGETS"`
	LockSweepMinutes int `json:"lock_sweep_minutes" envconfig:"VIRALSHIP_PROCESSING_LOCK_SWEEP_MINUTES"`
}

func (p ProcessingConfig) LockTTL() time.Duration {
	return time.Duration(p.LockTTLMinutes) * time.Minute
}

func (p ProcessingConfig) ItemDelay() time.Duration {
	return time.Duration(p.ItemDelayMs) * time.Millisecond
}

func (p ProcessingConfig) Interval() time.Duration {
	return time.Duration(p.IntervalSeconds) * time.Second
}

func (p ProcessingConfig) LockSweep() time.Duration {
	return time.Duration(p.LockSweepMinutes) * time.Minute
}

type ReconciliationConfig struct {
	IntervalSeconds int `json:"interval_seconds" envconfig:"VIRALSHIP_RECONCILIATION_INTERVAL_SECONDS"`
	BatchLimit      int `json:"batch_limit" envconfig:"VIRALSHIP_RECONCILIATION_BATCH_LIMIT"`
}

func (r ReconciliationConfig) Interval() time.Duration {
	return time.Duration(r.IntervalSeconds) * time.Second
}

type QueueConfig struct {
	TransactionQueue string `json:"transaction_queue" envconfig:"VIRALSHIP_QUEUE_TRANSACTION"`
	WebhookQueue     string `json:"webhook_queue" envconfig:"VIRALSHIP_QUEUE_WEBHOOK"`
	MonitoringPort   string `json:"monitoring_port" envconfig:"VIRALSHIP_QUEUE_MONITORING_PORT"`
}

type MercadoPagoConfig struct {
	APIURL      string `json:"api_url" envconfig:"VIRALSHIP_MERCADOPAGO_API_URL"`
	AccessToken string `json:"access_token" envconfig:"VIRALSHIP_MERCADOPAGO_ACCESS_TOKEN"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"VIRALSHIP_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"VIRALSHIP_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"VIRALSHIP_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url"`
}

type Notification struct {
	Slack   SlackWebhook `json:"slack"`
	Webhook struct {
		Url     string            `json:"url"`
		Headers map[string]string `json:"headers"`
	} `json:"webhook"`
}

type Configuration struct {
	ProjectName    string               `json:"project_name" envconfig:"VIRALSHIP_PROJECT_NAME"`
	Server         ServerConfig         `json:"server"`
	DataSource     DataSourceConfig     `json:"data_source"`
	Redis          RedisConfig          `json:"redis"`
	Processing     ProcessingConfig     `json:"processing"`
	Reconciliation ReconciliationConfig `json:"reconciliation"`
	Queue          QueueConfig          `json:"queue"`
	MercadoPago    MercadoPagoConfig    `json:"mercado_pago"`
	RateLimit      RateLimitConfig      `json:"rate_limit"`
	Notification   Notification         `json:"notification"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}
	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("viralship", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called viralship.json with your config")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		cnf.ProjectName = "Viralship Coordinator"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
	}

	if cnf.Processing.LockTTLMinutes <= 0 {
		cnf.Processing.LockTTLMinutes = 10
	}
	if cnf.Processing.MaxAttempts <= 0 {
		cnf.Processing.MaxAttempts = 3
	}
	if cnf.Processing.BatchLimit <= 0 {
		cnf.Processing.BatchLimit = 50
	}
	if cnf.Processing.ItemDelayMs < 0 {
		cnf.Processing.ItemDelayMs = 0
	} else if cnf.Processing.ItemDelayMs == 0 {
		cnf.Processing.ItemDelayMs = 1000
	}
	if cnf.Processing.IntervalSeconds <= 0 {
		cnf.Processing.IntervalSeconds = 60
	}
	if cnf.Processing.MaxTargets <= 0 {
		cnf.Processing.MaxTargets = 5
	}
	if cnf.Processing.LockSweepMinutes <= 0 {
		cnf.Processing.LockSweepMinutes = 15
	}

	if cnf.Reconciliation.IntervalSeconds <= 0 {
		cnf.Reconciliation.IntervalSeconds = 300
	}
	if cnf.Reconciliation.BatchLimit <= 0 {
		cnf.Reconciliation.BatchLimit = 50
	}

	if cnf.Queue.TransactionQueue == "" {
		cnf.Queue.TransactionQueue = "viralship:process"
	}
	if cnf.Queue.WebhookQueue == "" {
		cnf.Queue.WebhookQueue = "viralship:webhooks"
	}
	if cnf.Queue.MonitoringPort == "" {
		cnf.Queue.MonitoringPort = "5003"
	}

	if cnf.MercadoPago.APIURL == "" {
		cnf.MercadoPago.APIURL = "https://api.mercadopago.com"
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
	}
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	_ = mockConfig.validateMockDefaults()
	ConfigStore.Store(mockConfig)
}

// validateMockDefaults fills in processing defaults for tests without
// requiring a data source.
func (cnf *Configuration) validateMockDefaults() error {
	if cnf.Processing.LockTTLMinutes <= 0 {
		cnf.Processing.LockTTLMinutes = 10
	}
	if cnf.Processing.MaxAttempts <= 0 {
		cnf.Processing.MaxAttempts = 3
	}
	if cnf.Processing.BatchLimit <= 0 {
		cnf.Processing.BatchLimit = 50
	}
	if cnf.Processing.MaxTargets <= 0 {
		cnf.Processing.MaxTargets = 5
	}
	if cnf.Processing.IntervalSeconds <= 0 {
		cnf.Processing.IntervalSeconds = 60
	}
	if cnf.Processing.LockSweepMinutes <= 0 {
		cnf.Processing.LockSweepMinutes = 15
	}
	if cnf.Reconciliation.IntervalSeconds <= 0 {
		cnf.Reconciliation.IntervalSeconds = 300
	}
	if cnf.Reconciliation.BatchLimit <= 0 {
		cnf.Reconciliation.BatchLimit = 50
	}
	if cnf.Queue.TransactionQueue == "" {
		cnf.Queue.TransactionQueue = "viralship:process"
	}
	if cnf.Queue.WebhookQueue == "" {
		cnf.Queue.WebhookQueue = "viralship:webhooks"
	}
	if cnf.Queue.MonitoringPort == "" {
		cnf.Queue.MonitoringPort = "5003"
	}
	return nil
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
