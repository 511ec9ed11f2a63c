package config

import (
	"fmt"
	"strings"

	"github.com/dbsmedya/gobulk/internal/sqlutil"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Validate checks the configuration for required fields and valid values.
func (c *Config) Validate() error {
	var errors ValidationErrors

	if err := c.validateStore(); err != nil {
		errors = append(errors, err...)
	}

	if len(c.Workloads) == 0 {
		errors = append(errors, ValidationError{
			Field:   "workloads",
			Message: "at least one workload must be defined",
		})
	}
	for name, wc := range c.Workloads {
		if err := c.validateWorkload(name, &wc); err != nil {
			errors = append(errors, err...)
		}
	}

	if err := validateProcessing("processing", &c.Processing); err != nil {
		errors = append(errors, err...)
	}

	if err := c.validateLogging(); err != nil {
		errors = append(errors, err...)
	}

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func (c *Config) validateStore() ValidationErrors {
	var errors ValidationErrors

	if c.Store.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "store.host",
			Message: "host is required",
		})
	}

	if c.Store.Port <= 0 || c.Store.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "store.port",
			Message: "port must be between 1 and 65535",
		})
	}

	if c.Store.User == "" {
		errors = append(errors, ValidationError{
			Field:   "store.user",
			Message: "user is required",
		})
	}

	if c.Store.Database == "" {
		errors = append(errors, ValidationError{
			Field:   "store.database",
			Message: "database name is required",
		})
	}

	validTLS := map[string]bool{"disable": true, "preferred": true, "required": true, "": true}
	if !validTLS[c.Store.TLS] {
		errors = append(errors, ValidationError{
			Field:   "store.tls",
			Message: "tls must be 'disable', 'preferred', or 'required'",
		})
	}

	if c.Store.MaxConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   "store.max_connections",
			Message: "max_connections cannot be negative",
		})
	}

	if c.Store.MaxIdleConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   "store.max_idle_connections",
			Message: "max_idle_connections cannot be negative",
		})
	}

	return errors
}

func (c *Config) validateWorkload(name string, wc *WorkloadConfig) ValidationErrors {
	var errors ValidationErrors
	prefix := fmt.Sprintf("workloads.%s", name)

	if wc.Table == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".table",
			Message: "table is required",
		})
	} else if !sqlutil.IsValidIdentifier(wc.Table) {
		errors = append(errors, ValidationError{
			Field:   prefix + ".table",
			Message: "table must contain only alphanumeric characters and underscores",
		})
	}

	for i, col := range wc.Columns {
		field := fmt.Sprintf("%s.columns[%d]", prefix, i)
		if !sqlutil.IsValidIdentifier(col) {
			errors = append(errors, ValidationError{
				Field:   field,
				Message: "column must contain only alphanumeric characters and underscores",
			})
			continue
		}
		// id is the store-assigned identifier column and cannot be a payload column.
		if col == "id" {
			errors = append(errors, ValidationError{
				Field:   field,
				Message: "column name 'id' is reserved for the record identifier",
			})
		}
	}

	if wc.Records < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".records",
			Message: "records cannot be negative",
		})
	}

	if wc.Processing != nil {
		if err := validateProcessing(prefix+".processing", wc.Processing); err != nil {
			errors = append(errors, err...)
		}
	}

	return errors
}

func validateProcessing(prefix string, p *ProcessingConfig) ValidationErrors {
	var errors ValidationErrors

	if p.Parallelism < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".parallelism",
			Message: "parallelism cannot be negative (0 means store-recommended)",
		})
	}

	if p.DeleteBatchSize < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".delete_batch_size",
			Message: "delete_batch_size cannot be negative",
		})
	}

	if p.PollIntervalSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".poll_interval_seconds",
			Message: "poll_interval_seconds cannot be negative",
		})
	}

	if p.PollTimeoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".poll_timeout_seconds",
			Message: "poll_timeout_seconds cannot be negative",
		})
	}

	if p.PollTimeoutSeconds > 0 && p.PollIntervalSeconds > p.PollTimeoutSeconds {
		errors = append(errors, ValidationError{
			Field:   prefix + ".poll_interval_seconds",
			Message: "poll_interval_seconds cannot exceed poll_timeout_seconds",
		})
	}

	return errors
}

func (c *Config) validateLogging() ValidationErrors {
	var errors ValidationErrors

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "": true}
	if !validLevels[c.Logging.Level] {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: "level must be 'debug', 'info', 'warn', or 'error'",
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "": true}
	if !validFormats[c.Logging.Format] {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: "format must be 'json' or 'text'",
		})
	}

	return errors
}
