// Package validate holds small composable string validators used for
// identifiers that arrive in query strings and request bodies.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Validator is a function that validates a string and returns an error if invalid
type Validator func(value string) error

// Field creates a labeled validator with a custom name for better error messages
func Field(name string, validators ...Validator) Validator {
	return func(value string) error {
		for _, v := range validators {
			if err := v(value); err != nil {
				if !strings.Contains(err.Error(), name) {
					return fmt.Errorf("%s: %w", name, err)
				}
				return err
			}
		}
		return nil
	}
}

// Compose chains multiple validators, first error wins
func Compose(validators ...Validator) Validator {
	return func(value string) error {
		for _, v := range validators {
			if err := v(value); err != nil {
				return err
			}
		}
		return nil
	}
}

// Required ensures the field is not empty
func Required() Validator {
	return func(v string) error {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("this field is required")
		}
		return nil
	}
}

func MaxLength(max int) Validator {
	return func(v string) error {
		if len(v) > max {
			return fmt.Errorf("must be no more than %d characters", max)
		}
		return nil
	}
}

// Matches checks if value matches a regex, reporting message on mismatch
func Matches(pattern, message string) Validator {
	re := regexp.MustCompile(pattern)
	return func(v string) error {
		if !re.MatchString(v) {
			if message != "" {
				return fmt.Errorf("%s", message)
			}
			return fmt.Errorf("invalid format")
		}
		return nil
	}
}

// NoSpaces disallows whitespace anywhere in the value
func NoSpaces() Validator {
	return Matches(`^\S*$`, "must not contain spaces")
}

// UUID accepts only the canonical 8-4-4-4-12 form.
func UUID() Validator {
	return func(v string) error {
		if len(v) != 36 {
			return fmt.Errorf("must be a valid UUID")
		}
		if _, err := uuid.Parse(v); err != nil {
			return fmt.Errorf("must be a valid UUID")
		}
		return nil
	}
}
