// Package config loads the settings of an SQS repository from a YAML file and
// SQSREPO_ environment variables, and turns them into an AWS SDK config and
// [sqsrepo.Option] values.
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/slackmgr/plugins/sqsrepo"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by [Load].
const EnvPrefix = "SQSREPO"

// ErrInvalidConfig is returned, wrapped, when a loaded configuration is
// incomplete or inconsistent.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds everything needed to build a [sqsrepo.Session].
type Config struct {
	QueueName string `mapstructure:"queue_name"`
	Region    string `mapstructure:"region"`

	// Profile selects a named profile from the shared AWS config files.
	Profile string `mapstructure:"profile"`

	// Static credentials. Both or neither must be set; when neither is, the
	// default AWS credential chain is used.
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`

	// Endpoint overrides the SQS endpoint, e.g. http://localhost:4566 for LocalStack.
	Endpoint string `mapstructure:"endpoint"`

	VisibilityTimeoutSeconds int32 `mapstructure:"visibility_timeout_seconds"`
	ReceiveWaitTimeSeconds   int32 `mapstructure:"receive_wait_time_seconds"`
	DeleteMaxRetries         int   `mapstructure:"delete_max_retries"`
	BatchConcurrency         int   `mapstructure:"batch_concurrency"`
	CreateQueue              bool  `mapstructure:"create_queue"`

	LogLevel string `mapstructure:"log_level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("queue_name", "")
	v.SetDefault("region", "us-east-1")
	v.SetDefault("profile", "")
	v.SetDefault("access_key_id", "")
	v.SetDefault("secret_access_key", "")
	v.SetDefault("endpoint", "")
	v.SetDefault("visibility_timeout_seconds", 0)
	v.SetDefault("receive_wait_time_seconds", 0)
	v.SetDefault("delete_max_retries", 5)
	v.SetDefault("batch_concurrency", 1)
	v.SetDefault("create_queue", true)
	v.SetDefault("log_level", "info")
}

// Load reads the configuration file at path, if path is not empty, applies
// SQSREPO_ environment overrides and validates the result. Environment
// variables take precedence over the file, e.g. SQSREPO_QUEUE_NAME.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the fields that cannot be checked later by
// [sqsrepo.Session.Init].
func (c *Config) Validate() error {
	if c.QueueName == "" {
		return fmt.Errorf("%w: queue_name is required", ErrInvalidConfig)
	}

	if err := sqsrepo.ValidateRegion(c.Region); err != nil {
		return err
	}

	if (c.AccessKeyID == "") != (c.SecretAccessKey == "") {
		return fmt.Errorf("%w: access_key_id and secret_access_key must be set together", ErrInvalidConfig)
	}

	return nil
}

// AWSConfig builds an AWS SDK config for the configured region, profile,
// credentials and endpoint.
func (c *Config) AWSConfig(ctx context.Context) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(c.Region),
	}

	if c.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(c.Profile))
	}

	if c.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if c.Endpoint != "" {
		awsCfg.BaseEndpoint = aws.String(c.Endpoint)
	}

	return awsCfg, nil
}

// Options translates the configuration into session options.
func (c *Config) Options() []sqsrepo.Option {
	return []sqsrepo.Option{
		sqsrepo.WithQueueVisibilityTimeout(c.VisibilityTimeoutSeconds),
		sqsrepo.WithReceiveWaitTimeSeconds(c.ReceiveWaitTimeSeconds),
		sqsrepo.WithDeleteMaxRetries(c.DeleteMaxRetries),
		sqsrepo.WithBatchConcurrency(c.BatchConcurrency),
		sqsrepo.WithCreateQueue(c.CreateQueue),
	}
}
