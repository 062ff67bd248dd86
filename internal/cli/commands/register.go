package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/apricopt/zoro-web/internal/cli/client"
)

// NewRegisterCmd creates the register command
func NewRegisterCmd(deps *Deps) *cobra.Command {
	var email, name, password string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a Browser Manager account",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := collectRegistration(errOut(deps), email, name, password)
			if err != nil {
				return err
			}
			return runRegister(cmd.Context(), deps, data)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set ZORO_PASSWORD, will prompt if not provided)")

	return cmd
}

// collectRegistration fills in missing fields interactively, prompting on w
func collectRegistration(w io.Writer, email, name, password string) (client.RegisterRequest, error) {
	var err error
	stdout := nopWriteCloser{w}

	if email == "" {
		prompt := promptui.Prompt{Label: "Email", Stdout: stdout}
		if email, err = prompt.Run(); err != nil {
			return client.RegisterRequest{}, fmt.Errorf("prompt failed: %w", err)
		}
	}

	if name == "" {
		prompt := promptui.Prompt{Label: "Name", Stdout: stdout}
		if name, err = prompt.Run(); err != nil {
			return client.RegisterRequest{}, fmt.Errorf("prompt failed: %w", err)
		}
	}

	if password == "" {
		password = os.Getenv("ZORO_PASSWORD")
	}
	if password == "" {
		first, err := readPassword(w, "Password: ")
		if err != nil {
			return client.RegisterRequest{}, err
		}
		confirm, err := readPassword(w, "Confirm password: ")
		if err != nil {
			return client.RegisterRequest{}, err
		}
		if first != confirm {
			return client.RegisterRequest{}, &client.ValidationError{Field: "password", Message: "passwords do not match"}
		}
		password = first
	}

	return client.RegisterRequest{
		Email:    strings.TrimSpace(email),
		Name:     strings.TrimSpace(name),
		Password: password,
	}, nil
}

var validate = validator.New()

// validateRegistration checks the request before anything is sent
func validateRegistration(data client.RegisterRequest) error {
	err := validate.Struct(&data)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			return &client.ValidationError{Field: field, Message: "is required"}
		case "email":
			return &client.ValidationError{Field: field, Message: "must be a valid email address"}
		case "min":
			return &client.ValidationError{Field: field, Message: fmt.Sprintf("must be at least %s characters", fe.Param())}
		case "max":
			return &client.ValidationError{Field: field, Message: fmt.Sprintf("must be at most %s characters", fe.Param())}
		}
		return &client.ValidationError{Field: field, Message: "is invalid"}
	}
	return err
}

func runRegister(ctx context.Context, deps *Deps, data client.RegisterRequest) error {
	if err := validateRegistration(data); err != nil {
		return err
	}

	fmt.Fprintf(deps.Out, "Creating account on %s...\n", deps.Client.BaseURL())

	if err := deps.Session.Register(ctx, data); err != nil {
		return describeError("registration failed", err)
	}

	state := deps.Session.State()
	fmt.Fprintln(deps.Out, "✓ Account created!")
	if state.User != nil {
		fmt.Fprintf(deps.Out, "  User: %s (%s)\n", displayName(state.User.Name, state.User.Email), state.User.Email)
	}
	return nil
}
