package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	if err := c.validateEndpoints(); err != nil {
		return err
	}
	return c.validateStorage()
}

// ValidateStorageReady reports whether the object store section has enough
// information to publish. It is checked lazily because most commands never
// touch storage.
func (c *Config) ValidateStorageReady() error {
	switch c.Storage.Backend {
	case "fs":
		if strings.TrimSpace(c.Storage.FSRoot) == "" {
			return errors.New("storage.fs_root must be set when storage.backend is fs")
		}
	case "s3":
		if c.Storage.Bucket == "" {
			return errors.New("storage.bucket must be set")
		}
		if c.Storage.AccessKey == "" || c.Storage.SecretKey == "" {
			return fmt.Errorf("storage credentials missing: set storage.access_key/secret_key or env %s/%s", AccessKeyEnv, SecretKeyEnv)
		}
	}
	return nil
}

func (c *Config) validateEndpoints() error {
	if c.Translate.Enabled && strings.TrimSpace(c.Translate.Endpoint) == "" {
		return errors.New("translate.endpoint must be set when translate.enabled is true")
	}
	if c.Phonetics.Enabled && strings.TrimSpace(c.Phonetics.Endpoint) == "" {
		return errors.New("phonetics.endpoint must be set when phonetics.enabled is true")
	}
	return nil
}

func (c *Config) validateStorage() error {
	if c.Storage.Endpoint != "" && !strings.Contains(c.Storage.Endpoint, "://") {
		return errors.New("storage.endpoint must include a scheme (http:// or https://)")
	}
	return nil
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
