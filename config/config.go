package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
	"github.com/kasuboski/animez/pkg/source"
	"github.com/spf13/viper"
)

type Config struct {
	Storage     Storage     `json:"storage" yaml:"storage" mapstructure:"storage"`
	Server      Server      `json:"server" yaml:"server" mapstructure:"server"`
	CDN         CDN         `json:"cdn" yaml:"cdn" mapstructure:"cdn"`
	ObjectStore ObjectStore `json:"objectStore" yaml:"objectStore" mapstructure:"objectStore"`
	Source      Source      `json:"source" yaml:"source" mapstructure:"source"`
	Fetch       Fetch       `json:"fetch" yaml:"fetch" mapstructure:"fetch"`
	Ingest      Ingest      `json:"ingest" yaml:"ingest" mapstructure:"ingest"`
	Reconcile   Reconcile   `json:"reconcile" yaml:"reconcile" mapstructure:"reconcile"`
	Manager     Manager     `json:"manager" yaml:"manager" mapstructure:"manager"`
}

// Storage configuration is assumed to be for sqlite database only currently
type Storage struct {
	FilePath string `json:"filePath" yaml:"filePath" mapstructure:"filePath"`
}

type Server struct {
	Port int `json:"port" yaml:"port" mapstructure:"port"`
	// LockFile guards against two daemons working the same database
	LockFile string `json:"lockFile" yaml:"lockFile" mapstructure:"lockFile"`
}

// CDN is the public host canonical urls are built from
type CDN struct {
	Host string `json:"host" yaml:"host" mapstructure:"host" validate:"required,hostname_rfc1123"`
}

type ObjectStore struct {
	Endpoint    string        `json:"endpoint" yaml:"endpoint" mapstructure:"endpoint" validate:"required,url"`
	Zone        string        `json:"zone" yaml:"zone" mapstructure:"zone" validate:"required"`
	AccessKey   string        `json:"accessKey" yaml:"accessKey" mapstructure:"accessKey" validate:"required"`
	MaxRetries  int           `json:"maxRetries" yaml:"maxRetries" mapstructure:"maxRetries" validate:"gte=1"`
	BaseBackoff time.Duration `json:"backoff" yaml:"backoff" mapstructure:"backoff"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

type Source struct {
	BaseURL  string `json:"baseURL" yaml:"baseURL" mapstructure:"baseURL" validate:"required,url"`
	Template string `json:"template" yaml:"template" mapstructure:"template" validate:"sourcetemplate"`
}

type Fetch struct {
	Binary  string        `json:"binary" yaml:"binary" mapstructure:"binary" validate:"required"`
	Retries int           `json:"retries" yaml:"retries" mapstructure:"retries" validate:"gte=0"`
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`
	TempDir string        `json:"tempDir" yaml:"tempDir" mapstructure:"tempDir" validate:"required"`
}

type Ingest struct {
	Concurrency       int  `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency" validate:"gte=1"`
	GlobalConcurrency int  `json:"globalConcurrency" yaml:"globalConcurrency" mapstructure:"globalConcurrency" validate:"gte=1"`
	MaxAttempts       int  `json:"maxAttempts" yaml:"maxAttempts" mapstructure:"maxAttempts" validate:"gte=1"`
	ReconcileFirst    bool `json:"reconcileFirst" yaml:"reconcileFirst" mapstructure:"reconcileFirst"`
	// RunRetention is how long a finished run stays queryable
	RunRetention time.Duration `json:"runRetention" yaml:"runRetention" mapstructure:"runRetention"`
}

type Reconcile struct {
	SeasonSize int `json:"seasonSize" yaml:"seasonSize" mapstructure:"seasonSize" validate:"gte=1"`
}

// Manager houses configuration related to the manager and its scheduled jobs
type Manager struct {
	Jobs Jobs `json:"jobs" yaml:"jobs" mapstructure:"jobs"`
}

type Jobs struct {
	PendingDownloads    time.Duration `json:"pendingDownloads" yaml:"pendingDownloads" mapstructure:"pendingDownloads"`
	SeasonReconcile     time.Duration `json:"seasonReconcile" yaml:"seasonReconcile" mapstructure:"seasonReconcile"`
	JobScheduleInterval time.Duration `json:"jobScheduleInterval" yaml:"jobScheduleInterval" mapstructure:"jobScheduleInterval"`
	PollInterval        time.Duration `json:"pollInterval" yaml:"pollInterval" mapstructure:"pollInterval"`
}

type ConfigUnmarshaler interface {
	ReadInConfig() error
	Unmarshal(any, ...viper.DecoderConfigOption) error
	ConfigFileUsed() string
}

// New reads a new configuration
func New(cu ConfigUnmarshaler) (Config, error) {
	var c Config

	if cu.ConfigFileUsed() != "" {
		err := cu.ReadInConfig()
		if err != nil {
			return c, err
		}
	}

	err := cu.Unmarshal(&c)
	return c, err
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("sourcetemplate", func(fl validator.FieldLevel) bool {
		return source.ValidateTemplate(fl.Field().String()) == nil
	})
	return v
}

// ValidateIngest checks every section an ingestion run depends on.
// All problems are reported together.
func (c Config) ValidateIngest() error {
	sections := []struct {
		name  string
		value any
	}{
		{"cdn", c.CDN},
		{"objectStore", c.ObjectStore},
		{"source", c.Source},
		{"fetch", c.Fetch},
		{"ingest", c.Ingest},
		{"reconcile", c.Reconcile},
	}

	var errs *multierror.Error
	for _, section := range sections {
		err := validate.Struct(section.value)
		if err == nil {
			continue
		}

		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", section.name, err))
			continue
		}
		for _, fe := range fieldErrs {
			errs = multierror.Append(errs, fmt.Errorf("%s.%s: failed %q", section.name, lowerFirst(fe.Field()), fe.Tag()))
		}
	}

	return errs.ErrorOrNil()
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'A' && b[0] <= 'Z' {
		b[0] += 'a' - 'A'
	}
	return string(b)
}
