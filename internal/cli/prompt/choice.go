package prompt

import (
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
)

// Confirm asks a yes/no question. Empty input returns defaultYes.
func Confirm(label string, defaultYes bool) (bool, error) {
	defaultStr := "y/N"
	if defaultYes {
		defaultStr = "Y/n"
	}

	p := promptui.Prompt{
		Label:     fmt.Sprintf("%s [%s]", label, defaultStr),
		IsConfirm: true,
	}

	result, err := p.Run()
	if err != nil {
		if err == promptui.ErrAbort {
			// promptui reports "n" and empty input as ErrAbort
			if strings.TrimSpace(result) == "" {
				return defaultYes, nil
			}
			return false, nil
		}
		return false, wrapError(err)
	}
	return parseYes(result, defaultYes), nil
}

// ConfirmWithForce skips the question when force is set.
func ConfirmWithForce(label string, force bool) (bool, error) {
	if force {
		return true, nil
	}
	return Confirm(label, false)
}

func parseYes(input string, defaultYes bool) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "":
		return defaultYes
	case "y", "yes":
		return true
	default:
		return false
	}
}

// Option is one entry of a Choose list.
type Option struct {
	Label       string
	Value       string
	Description string
}

// Choose shows a list and returns the selected option's Value.
func Choose(label string, options []Option) (string, error) {
	if len(options) == 0 {
		return "", fmt.Errorf("no options for %q", label)
	}

	s := promptui.Select{
		Label: label,
		Items: options,
		Templates: &promptui.SelectTemplates{
			Label:    "{{ . }}",
			Active:   "> {{ .Label | cyan }}",
			Inactive: "  {{ .Label }}",
			Selected: "{{ .Label | green }}",
			Details:  "{{ if .Description }}{{ .Description | faint }}{{ end }}",
		},
	}

	idx, _, err := s.Run()
	if err != nil {
		return "", wrapError(err)
	}
	return options[idx].Value, nil
}
