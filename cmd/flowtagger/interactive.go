package main

import (
	"FlowTagger/internal/config"
	"FlowTagger/internal/engine/layout"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
)

// runInteractive asks for the log format and the two input files. Every
// answer is re-asked until it validates.
func runInteractive(input *config.InputConfig) error {
	useDefault := true
	customFormat := input.LogFormat
	lookupPath := input.LookupTable
	logsPath := input.FlowLogs

	intro := huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Welcome to interactive mode!"),
			huh.NewConfirm().
				Title("Are you using the default log format?").
				Description(layout.Default().String()).
				Affirmative("Yes").
				Negative("No").
				Value(&useDefault),
		),
	).WithTheme(huh.ThemeBase16())
	if err := intro.Run(); err != nil {
		return err
	}

	var fields []huh.Field
	if !useDefault {
		fields = append(fields, huh.NewInput().
			Title("Enter your custom format").
			Description("Space-separated field names. Include 'dstport' and 'protocol'.\n"+
				"Example: timestamp srcaddr dstaddr dstport srcport protocol").
			Value(&customFormat).
			Validate(validateFormat))
	}
	fields = append(fields,
		huh.NewInput().
			Title("Enter the lookup table filename").
			Value(&lookupPath).
			Validate(validateFile("Lookup table")),
		huh.NewInput().
			Title("Enter the log files filename").
			Value(&logsPath).
			Validate(validateFile("Log files")),
	)

	form := huh.NewForm(huh.NewGroup(fields...)).WithTheme(huh.ThemeBase16())
	if err := form.Run(); err != nil {
		return err
	}

	input.LogFormat = ""
	if !useDefault {
		input.LogFormat = strings.TrimSpace(customFormat)
	}
	input.LookupTable = strings.TrimSpace(lookupPath)
	input.FlowLogs = strings.TrimSpace(logsPath)
	return nil
}

func validateFormat(format string) error {
	if strings.TrimSpace(format) == "" {
		return errors.New("please enter the custom log format")
	}
	if _, err := layout.Resolve(format); err != nil {
		return errors.New("custom log format must include 'dstport' and 'protocol' please try again")
	}
	return nil
}

func validateFile(what string) func(string) error {
	return func(path string) error {
		path = strings.TrimSpace(path)
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			return fmt.Errorf("%s file %s not found please enter a valid file", what, path)
		}
		return nil
	}
}
