package main

import (
	"errors"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
)

var errAborted = errors.New("aborted")

var promptSecret = &survey.Password{
	Message: "nsec:",
}

// confirm asks a yes/no question. skip answers yes without prompting.
func confirm(msg string, skip bool) (bool, error) {
	if skip {
		return true, nil
	}
	var proceed bool
	if err := survey.AskOne(&survey.Confirm{Message: msg}, &proceed); err != nil {
		return false, err
	}
	return proceed, nil
}

// confirmOrAbort returns errAborted when the user declines.
func confirmOrAbort(msg string, skip bool) error {
	ok, err := confirm(msg, skip)
	if err != nil {
		return err
	}
	if !ok {
		return errAborted
	}
	return nil
}

func askSecret() (string, error) {
	var nsec string
	err := survey.AskOne(promptSecret, &nsec, survey.WithValidator(survey.Required))
	if err != nil {
		return "", fmt.Errorf("read nsec: %w", err)
	}
	return nsec, nil
}
