package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags and the cross-field rules tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return err
	}

	var errs []error

	switch cfg.Source.Type {
	case SourceGitHub:
		gh := cfg.Source.GitHub
		var missing []string
		if gh.Owner == "" {
			missing = append(missing, "owner (GITHUB_REPO_OWNER)")
		}
		if gh.Repo == "" {
			missing = append(missing, "repo (GITHUB_REPO_NAME)")
		}
		if gh.Path == "" {
			missing = append(missing, "path (GITHUB_TARGET_FILE_PATH)")
		}
		if len(missing) > 0 {
			errs = append(errs, fmt.Errorf("source.github: missing %s", strings.Join(missing, ", ")))
		}
	case SourceFile:
		if cfg.Source.File.Path == "" {
			errs = append(errs, errors.New("source.file.path is required when source.type is file"))
		}
	}

	if err := validateDatabaseURI(cfg.Database.URI); err != nil {
		errs = append(errs, err)
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Port == cfg.Server.Port {
		errs = append(errs, fmt.Errorf("metrics.port %d collides with server.port", cfg.Metrics.Port))
	}

	return errors.Join(errs...)
}

var boltSchemes = map[string]bool{
	"bolt":      true,
	"bolt+s":    true,
	"bolt+ssc":  true,
	"neo4j":     true,
	"neo4j+s":   true,
	"neo4j+ssc": true,
}

func validateDatabaseURI(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("database.uri: %w", err)
	}
	if !boltSchemes[u.Scheme] {
		return fmt.Errorf("database.uri: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("database.uri: missing host")
	}
	return nil
}
