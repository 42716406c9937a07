package kurir

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DefaultsFile is the on-disk form of instance defaults. Durations are
// strings so both YAML and TOML can carry them.
type DefaultsFile struct {
	BaseURL         string                       `yaml:"base_url" toml:"base_url"`
	Timeout         string                       `yaml:"timeout" toml:"timeout"`
	ResponseType    string                       `yaml:"response_type" toml:"response_type"`
	Headers         map[string]string            `yaml:"headers" toml:"headers"`
	MethodHeaders   map[string]map[string]string `yaml:"method_headers" toml:"method_headers"`
	Username        string                       `yaml:"username" toml:"username"`
	Password        string                       `yaml:"password" toml:"password"`
	WithCredentials *bool                        `yaml:"with_credentials" toml:"with_credentials"`
	XSRFCookieName  string                       `yaml:"xsrf_cookie_name" toml:"xsrf_cookie_name"`
	XSRFHeaderName  string                       `yaml:"xsrf_header_name" toml:"xsrf_header_name"`
}

// LoadDefaultsFile reads a YAML (.yaml, .yml) or TOML (.toml) defaults file.
func LoadDefaultsFile(path string) (*DefaultsFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read defaults file: %w", err)
	}

	var df DefaultsFile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &df)
	case ".toml":
		err = toml.Unmarshal(b, &df)
	default:
		return nil, fmt.Errorf("unsupported defaults file extension %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse defaults file: %w", err)
	}
	return &df, nil
}

// ApplyEnvDefaults overlays KURIR_* environment variables onto df.
func ApplyEnvDefaults(df *DefaultsFile) error {
	if v, ok := os.LookupEnv("KURIR_BASE_URL"); ok {
		df.BaseURL = v
	}
	if v, ok := os.LookupEnv("KURIR_TIMEOUT"); ok {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("KURIR_TIMEOUT: %w", err)
		}
		df.Timeout = v
	}
	if v, ok := os.LookupEnv("KURIR_USERNAME"); ok {
		df.Username = v
	}
	if v, ok := os.LookupEnv("KURIR_PASSWORD"); ok {
		df.Password = v
	}
	if v, ok := os.LookupEnv("KURIR_WITH_CREDENTIALS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("KURIR_WITH_CREDENTIALS: %w", err)
		}
		df.WithCredentials = &b
	}
	return nil
}

// RequestConfig converts df into a config suitable for merging onto
// instance defaults. Unset fields stay zero and leave the base untouched.
func (df *DefaultsFile) RequestConfig() (*RequestConfig, error) {
	config := &RequestConfig{
		BaseURL:        df.BaseURL,
		ResponseType:   ResponseType(df.ResponseType),
		XSRFCookieName: df.XSRFCookieName,
		XSRFHeaderName: df.XSRFHeaderName,
	}

	if df.Timeout != "" {
		d, err := time.ParseDuration(df.Timeout)
		if err != nil {
			return nil, fmt.Errorf("timeout: %w", err)
		}
		if d < 0 {
			return nil, fmt.Errorf("timeout must be non-negative, got %v", d)
		}
		config.Timeout = d
	}

	if len(df.Headers) > 0 || len(df.MethodHeaders) > 0 {
		config.Headers = Headers{}
		if len(df.Headers) > 0 {
			common := make(map[string]any, len(df.Headers))
			for k, v := range df.Headers {
				common[k] = v
			}
			config.Headers["common"] = common
		}
		for method, headers := range df.MethodHeaders {
			group := make(map[string]any, len(headers))
			for k, v := range headers {
				group[k] = v
			}
			config.Headers[strings.ToLower(method)] = group
		}
	}

	if df.Username != "" || df.Password != "" {
		config.Auth = &BasicCredentials{Username: df.Username, Password: df.Password}
	}
	if df.WithCredentials != nil {
		config.WithCredentials = *df.WithCredentials
	}

	return config, nil
}

// WithDefaultsFile merges a defaults file, with KURIR_* overrides, into the
// instance defaults. Failures are reported through ValidationError.
func WithDefaultsFile(path string) Option {
	return func(c *Client) {
		config, err := loadDefaultsConfig(path)
		if err != nil {
			c.validationError = &ClientError{
				Type:    ErrorTypeValidation,
				Message: "invalid defaults file",
				Cause:   err,
			}
			return
		}
		c.defaultsFile = path
		c.fileBase = c.Defaults()
		c.defaults.Store(MergeConfig(c.defaults.Load(), config))
	}
}

func loadDefaultsConfig(path string) (*RequestConfig, error) {
	df, err := LoadDefaultsFile(path)
	if err != nil {
		return nil, err
	}
	if err := ApplyEnvDefaults(df); err != nil {
		return nil, err
	}
	return df.RequestConfig()
}

// WatchDefaultsFile reloads the defaults file whenever it changes and
// replaces the client defaults with the file merged onto the defaults it
// was first loaded over, so keys removed from the file fall back. For a
// path not loaded through WithDefaultsFile the current defaults are the
// base. It blocks until ctx is done. A file that fails to load leaves the
// previous defaults in place.
func (c *Client) WatchDefaultsFile(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often replace the file, so watch the directory.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	base := c.Defaults()
	if c.fileBase != nil && filepath.Clean(c.defaultsFile) == filepath.Clean(path) {
		base = MergeConfig(nil, c.fileBase)
	}
	name := filepath.Base(path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			config, err := loadDefaultsConfig(path)
			if err != nil {
				if c.logger != nil {
					c.logger.Warn("Defaults reload failed", "path", path, "error", err)
				}
				continue
			}
			c.SetDefaults(MergeConfig(base, config))
			if c.logger != nil {
				c.logger.Info("Defaults reloaded", "path", path)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if c.logger != nil {
				c.logger.Error("Defaults watcher error", "error", err)
			}
		}
	}
}
