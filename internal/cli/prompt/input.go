package prompt

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
)

func run(p promptui.Prompt) (string, error) {
	result, err := p.Run()
	return strings.TrimSpace(result), wrapError(err)
}

// Text asks for a free-form value, returning defaultValue on empty input.
func Text(label, defaultValue string) (string, error) {
	return run(promptui.Prompt{Label: label, Default: defaultValue})
}

// Required asks for a value that must not be empty.
func Required(label, defaultValue string) (string, error) {
	return run(promptui.Prompt{Label: label, Default: defaultValue, Validate: validateRequired})
}

// Port asks for a TCP port.
func Port(label string, defaultValue int) (int, error) {
	result, err := run(promptui.Prompt{
		Label:    label,
		Default:  strconv.Itoa(defaultValue),
		Validate: validatePort,
	})
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(result)
}

// Duration asks for a Go duration no shorter than min.
func Duration(label string, defaultValue, min time.Duration) (time.Duration, error) {
	result, err := run(promptui.Prompt{
		Label:    label,
		Default:  defaultValue.String(),
		Validate: validateDuration(min),
	})
	if err != nil {
		return 0, err
	}
	return time.ParseDuration(result)
}

// URL asks for an absolute URL whose scheme is one of schemes.
func URL(label, defaultValue string, schemes ...string) (string, error) {
	return run(promptui.Prompt{
		Label:    label,
		Default:  defaultValue,
		Validate: validateURL(schemes),
	})
}

// Secret asks for a value without echoing it. Empty input is allowed
// so the value can come from the environment instead.
func Secret(label string) (string, error) {
	return run(promptui.Prompt{Label: label, Mask: '*'})
}

func validateRequired(input string) error {
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("value is required")
	}
	return nil
}

func validatePort(input string) error {
	port, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return fmt.Errorf("must be a valid integer")
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("must be a valid port (1-65535)")
	}
	return nil
}

func validateDuration(min time.Duration) func(string) error {
	return func(input string) error {
		d, err := time.ParseDuration(strings.TrimSpace(input))
		if err != nil {
			return fmt.Errorf("must be a duration such as 30s or 5m")
		}
		if d < min {
			return fmt.Errorf("must be at least %s", min)
		}
		return nil
	}
}

func validateURL(schemes []string) func(string) error {
	return func(input string) error {
		u, err := url.Parse(strings.TrimSpace(input))
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("must be an absolute URL")
		}
		if len(schemes) == 0 {
			return nil
		}
		for _, s := range schemes {
			if u.Scheme == s {
				return nil
			}
		}
		return fmt.Errorf("scheme must be one of %s", strings.Join(schemes, ", "))
	}
}
