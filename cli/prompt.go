// Package cli holds the interactive terminal prompts used by the demo host.
package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
)

var (
	errEmptyInput  = errors.New("you must enter something")
	errNotPositive = errors.New("value must be positive")
)

// PromptConfirm asks a yes/no question. An abort counts as no.
func PromptConfirm(label string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
		Stdin:     os.Stdin,
		Stdout:    os.Stdout,
	}

	_, err := prompt.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

// PromptFloat asks for a number, offering def as the default answer.
func PromptFloat(label string, def float64) (float64, error) {
	prompt := promptui.Prompt{
		Label:    label,
		Default:  strconv.FormatFloat(def, 'f', -1, 64),
		Validate: validateFloat,
		Stdin:    os.Stdin,
		Stdout:   os.Stdout,
	}

	txt, err := prompt.Run()
	if err != nil {
		return 0, err
	}

	return parseFloat(txt)
}

// PromptPositiveFloat is PromptFloat restricted to values above zero.
func PromptPositiveFloat(label string, def float64) (float64, error) {
	prompt := promptui.Prompt{
		Label:    label,
		Default:  strconv.FormatFloat(def, 'f', -1, 64),
		Validate: validatePositiveFloat,
		Stdin:    os.Stdin,
		Stdout:   os.Stdout,
	}

	txt, err := prompt.Run()
	if err != nil {
		return 0, err
	}

	return parseFloat(txt)
}

// Select shows a list and returns the index and value of the chosen item.
// Typing filters items by prefix.
func Select(label string, items ...string) (int, string, error) {
	sel := &promptui.Select{
		Label: label,
		Items: items,
		Size:  len(items),
		Searcher: func(input string, index int) bool {
			return strings.HasPrefix(strings.ToLower(items[index]), strings.ToLower(input))
		},
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
	}

	return sel.Run()
}

func parseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errEmptyInput
	}

	val, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number: %w", err)
	}

	return val, nil
}

func validateFloat(s string) error {
	_, err := parseFloat(s)

	return err
}

func validatePositiveFloat(s string) error {
	val, err := parseFloat(s)
	if err != nil {
		return err
	}

	if val <= 0 {
		return errNotPositive
	}

	return nil
}
