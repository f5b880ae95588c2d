package publishers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	// Supported publisher types.
	TypeSQS    = "sqs"
	TypeSNS    = "sns"
	TypePubSub = "pubsub"
	TypeHTTP   = "http"

	httpDefaultMethod         = "POST"
	httpDefaultTimeoutSeconds = 5

	// DefaultSQSMessageGroup groups route events on FIFO queues that do not
	// name a group of their own.
	DefaultSQSMessageGroup = "route-events"
	sqsFIFOSuffix          = ".fifo"
)

// configFile represents the structure of the publishers configuration file.
type configFile struct {
	Publishers []PublisherConfig `json:"publishers" yaml:"publishers"`
}

// PublisherConfig represents a single publisher entry declared in config files.
type PublisherConfig struct {
	ID      string                 `json:"id" yaml:"id"`
	Type    string                 `json:"type" yaml:"type"`
	Enabled *bool                  `json:"enabled" yaml:"enabled"`
	SQS     *SQSPublisherConfig    `json:"sqs" yaml:"sqs"`
	SNS     *SNSPublisherConfig    `json:"sns" yaml:"sns"`
	PubSub  *PubSubPublisherConfig `json:"pubsub" yaml:"pubsub"`
	HTTP    *HTTPPublisherConfig   `json:"http" yaml:"http"`
}

// SQSPublisherConfig holds AWS SQS specific settings.
type SQSPublisherConfig struct {
	AWSAccess      `yaml:",inline"`
	QueueURL       string `json:"uri" yaml:"uri"`
	MessageGroupID string `json:"message_group_id" yaml:"message_group_id"`
}

// SNSPublisherConfig holds AWS SNS specific settings.
type SNSPublisherConfig struct {
	AWSAccess `yaml:",inline"`
	TopicARN  string `json:"topic_arn" yaml:"topic_arn"`
}

// PubSubPublisherConfig holds GCP Pub/Sub settings.
type PubSubPublisherConfig struct {
	ProjectID       string `json:"project_id" yaml:"project_id"`
	Topic           string `json:"topic" yaml:"topic"`
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file"`
	Endpoint        string `json:"endpoint" yaml:"endpoint"`
}

// HTTPPublisherConfig holds generic HTTP sink settings.
type HTTPPublisherConfig struct {
	URL            string            `json:"url" yaml:"url"`
	Method         string            `json:"method" yaml:"method"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	TimeoutSeconds int               `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// ConfigRegistry holds the publisher entries of a publishers file, indexed by id.
type ConfigRegistry struct {
	mu         sync.RWMutex
	publishers []PublisherConfig
	idx        map[string]int
}

// LoadRegistry reads a YAML or JSON publishers file and builds a ConfigRegistry.
func LoadRegistry(path string) (*ConfigRegistry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("publishers: no config file given")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("publishers: read %s: %w", path, err)
	}

	file, err := decodeConfigFile(raw, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("publishers: decode %s: %w", path, err)
	}
	return NewConfigRegistry(file.Publishers)
}

// NewConfigRegistry normalizes and validates entries. Every route event is
// sent to each enabled entry, so an empty list is rejected.
func NewConfigRegistry(entries []PublisherConfig) (*ConfigRegistry, error) {
	if len(entries) == 0 {
		return nil, errors.New("publishers: no route event sinks declared")
	}

	reg := &ConfigRegistry{
		publishers: make([]PublisherConfig, 0, len(entries)),
		idx:        make(map[string]int, len(entries)),
	}
	for i, entry := range entries {
		cfg := sanitizePublisherConfig(entry)
		if err := validatePublisherConfig(cfg); err != nil {
			return nil, fmt.Errorf("publishers[%d]: %w", i, err)
		}
		if prev, dup := reg.idx[cfg.ID]; dup {
			return nil, fmt.Errorf("publishers[%d]: id %q already used by publishers[%d]", i, cfg.ID, prev)
		}
		reg.idx[cfg.ID] = len(reg.publishers)
		reg.publishers = append(reg.publishers, cfg)
	}
	return reg, nil
}

// decodeConfigFile picks the decoder from the file extension. Files without a
// known extension are read as YAML, which also accepts JSON documents.
func decodeConfigFile(data []byte, ext string) (configFile, error) {
	var file configFile
	switch strings.ToLower(strings.TrimSpace(ext)) {
	case ".json":
		if err := json.Unmarshal(data, &file); err != nil {
			return configFile{}, fmt.Errorf("json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &file); err != nil {
			return configFile{}, fmt.Errorf("yaml: %w", err)
		}
	}
	return file, nil
}

// sanitizePublisherConfig trims fields and fills defaults.
func sanitizePublisherConfig(cfg PublisherConfig) PublisherConfig {
	cfg.ID = strings.TrimSpace(cfg.ID)
	cfg.Type = strings.ToLower(strings.TrimSpace(cfg.Type))

	if cfg.Enabled == nil {
		def := true
		cfg.Enabled = &def
	}
	if cfg.SQS != nil {
		c := *cfg.SQS
		c.AWSAccess = sanitizeAWSAccess(c.AWSAccess)
		c.QueueURL = strings.TrimSpace(c.QueueURL)
		c.MessageGroupID = strings.TrimSpace(c.MessageGroupID)
		if c.MessageGroupID == "" && c.FIFO() {
			c.MessageGroupID = DefaultSQSMessageGroup
		}
		cfg.SQS = &c
	}
	if cfg.SNS != nil {
		c := *cfg.SNS
		c.AWSAccess = sanitizeAWSAccess(c.AWSAccess)
		c.TopicARN = strings.TrimSpace(c.TopicARN)
		cfg.SNS = &c
	}
	if cfg.PubSub != nil {
		c := *cfg.PubSub
		c.ProjectID = strings.TrimSpace(c.ProjectID)
		c.Topic = strings.TrimSpace(c.Topic)
		c.CredentialsFile = strings.TrimSpace(c.CredentialsFile)
		c.Endpoint = strings.TrimSpace(c.Endpoint)
		cfg.PubSub = &c
	}
	if cfg.HTTP != nil {
		c := *cfg.HTTP
		c.URL = strings.TrimSpace(c.URL)
		c.Method = strings.ToUpper(strings.TrimSpace(c.Method))
		if c.Method == "" {
			c.Method = httpDefaultMethod
		}
		c.Headers = sanitizeHeaders(c.Headers)
		if c.TimeoutSeconds <= 0 {
			c.TimeoutSeconds = httpDefaultTimeoutSeconds
		}
		cfg.HTTP = &c
	}
	return cfg
}

// FIFO reports whether the queue URL names a FIFO queue.
func (c SQSPublisherConfig) FIFO() bool {
	return strings.HasSuffix(c.QueueURL, sqsFIFOSuffix)
}

func sanitizeAWSAccess(a AWSAccess) AWSAccess {
	a.Region = strings.TrimSpace(a.Region)
	a.Endpoint = strings.TrimSpace(a.Endpoint)
	a.AccessKeyID = strings.TrimSpace(a.AccessKeyID)
	a.SecretAccessKey = strings.TrimSpace(a.SecretAccessKey)
	a.SessionToken = strings.TrimSpace(a.SessionToken)
	return a
}

func sanitizeHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if k, v = strings.TrimSpace(k), strings.TrimSpace(v); k != "" && v != "" {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// validatePublisherConfig reports the first missing or inconsistent setting.
func validatePublisherConfig(cfg PublisherConfig) error {
	if cfg.ID == "" {
		return errors.New("publisher without id")
	}
	missing := func(field string) error {
		return fmt.Errorf("publisher %q (%s): %s is required", cfg.ID, cfg.Type, field)
	}

	switch cfg.Type {
	case "":
		return fmt.Errorf("publisher %q: type is required", cfg.ID)
	case TypeSQS:
		switch {
		case cfg.SQS == nil:
			return missing("sqs block")
		case cfg.SQS.QueueURL == "":
			return missing("sqs.uri")
		case cfg.SQS.Region == "":
			return missing("sqs.region")
		case cfg.SQS.MessageGroupID != "" && !cfg.SQS.FIFO():
			return fmt.Errorf("publisher %q (sqs): message_group_id needs a %s queue", cfg.ID, sqsFIFOSuffix)
		}
		return validateAWSAccess(cfg, cfg.SQS.AWSAccess)
	case TypeSNS:
		switch {
		case cfg.SNS == nil:
			return missing("sns block")
		case cfg.SNS.TopicARN == "":
			return missing("sns.topic_arn")
		case cfg.SNS.Region == "":
			return missing("sns.region")
		}
		return validateAWSAccess(cfg, cfg.SNS.AWSAccess)
	case TypePubSub:
		switch {
		case cfg.PubSub == nil:
			return missing("pubsub block")
		case cfg.PubSub.ProjectID == "":
			return missing("pubsub.project_id")
		case cfg.PubSub.Topic == "":
			return missing("pubsub.topic")
		}
	case TypeHTTP:
		if cfg.HTTP == nil {
			return missing("http block")
		}
		if cfg.HTTP.URL == "" {
			return missing("http.url")
		}
		u, err := url.Parse(cfg.HTTP.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("publisher %q (http): url %q is not an absolute http(s) URL", cfg.ID, cfg.HTTP.URL)
		}
	default:
		return fmt.Errorf("publisher %q: unsupported type %q (want sqs, sns, pubsub or http)", cfg.ID, cfg.Type)
	}
	return nil
}

// validateAWSAccess rejects half-configured static credentials.
func validateAWSAccess(cfg PublisherConfig, a AWSAccess) error {
	if (a.AccessKeyID == "") != (a.SecretAccessKey == "") {
		return fmt.Errorf("publisher %q (%s): access_key_id and secret_access_key must be set together", cfg.ID, cfg.Type)
	}
	return nil
}

// ByID returns the publisher config by id.
func (r *ConfigRegistry) ByID(id string) (PublisherConfig, bool) {
	if r == nil {
		return PublisherConfig{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.idx[strings.TrimSpace(id)]
	if !ok {
		return PublisherConfig{}, false
	}
	return r.publishers[i], true
}

// All returns all configured publishers in file order.
func (r *ConfigRegistry) All() []PublisherConfig {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]PublisherConfig(nil), r.publishers...)
}

// Enabled returns the publishers route events are fanned out to.
func (r *ConfigRegistry) Enabled() []PublisherConfig {
	var out []PublisherConfig
	for _, cfg := range r.All() {
		if cfg.EnabledValue() {
			out = append(out, cfg)
		}
	}
	return out
}

// EnabledValue returns enabled flag defaulting to true.
func (cfg PublisherConfig) EnabledValue() bool {
	return cfg.Enabled == nil || *cfg.Enabled
}
