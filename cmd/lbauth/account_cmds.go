package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mkrupp/lostbuddy/internal/domain"
	"github.com/mkrupp/lostbuddy/internal/svc/authsvc/authclient"
)

// registerOptions holds the flags of the register command.
type registerOptions struct {
	req domain.RegisterRequest
}

func newRegisterCmd(root *rootOptions) *cobra.Command {
	opts := &registerOptions{}

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a new account",
		Long: `Create a new account. Name, mobile and email are required; missing
values and the password are prompted for.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.complete(newPrompter(cmd)); err != nil {
				return err
			}

			return root.withClient(cmd.Context(), func(client authclient.AuthClient) error {
				created, err := client.Register(cmd.Context(), opts.req)
				if err != nil {
					return describe(err)
				}

				cmd.Printf("registered %s <%s>\n", created.Name, created.Email)

				return nil
			})
		},
	}

	cmd.Flags().StringVar(&opts.req.Name, "name", "", "full name")
	cmd.Flags().StringVar(&opts.req.Mobile, "mobile", "", "10-digit mobile number")
	cmd.Flags().StringVar(&opts.req.Email, "email", "", "email address")
	cmd.Flags().StringVar(&opts.req.City, "city", "", "city (optional)")
	cmd.Flags().StringVar(&opts.req.Password, "password", "", "password (prompted if empty)")

	return cmd
}

func (opts *registerOptions) complete(p *prompter) error {
	for _, field := range []struct {
		label string
		value *string
	}{
		{"Name", &opts.req.Name},
		{"Mobile", &opts.req.Mobile},
		{"Email", &opts.req.Email},
	} {
		if *field.value != "" {
			continue
		}

		value, err := p.Text(field.label)
		if err != nil {
			return err
		}

		*field.value = value
	}

	if opts.req.Password != "" {
		opts.req.ConfirmPassword = opts.req.Password

		return nil
	}

	password, err := p.Password("Password")
	if err != nil {
		return err
	}

	confirm, err := p.Password("Confirm password")
	if err != nil {
		return err
	}

	opts.req.Password, opts.req.ConfirmPassword = password, confirm

	return nil
}

func newLoginCmd(root *rootOptions) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "login <email|mobile>",
		Short: "Log in with email or mobile number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				var err error
				if password, err = newPrompter(cmd).Password("Password"); err != nil {
					return err
				}
			}

			return root.withClient(cmd.Context(), func(client authclient.AuthClient) error {
				current, err := client.Login(cmd.Context(), args[0], password)
				if err != nil {
					return describe(err)
				}

				cmd.Printf("logged in as %s <%s>\n", current.Name, current.Email)

				return nil
			})
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "password (prompted if empty)")

	return cmd
}

func newLogoutCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return root.withClient(cmd.Context(), func(client authclient.AuthClient) error {
				if err := client.Logout(cmd.Context()); err != nil {
					return err
				}

				cmd.Println("logged out")

				return nil
			})
		},
	}
}

func newWhoamiCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return root.withClient(cmd.Context(), func(client authclient.AuthClient) error {
				current, ok, err := client.CurrentSession(cmd.Context())
				if err != nil {
					return err
				}

				if !ok {
					cmd.Println("not logged in")

					return nil
				}

				printSession(cmd.OutOrStdout(), current)

				return nil
			})
		},
	}
}

func printSession(w io.Writer, current domain.Session) {
	fmt.Fprintf(w, "name:   %s\n", current.Name)
	fmt.Fprintf(w, "email:  %s\n", current.Email)
	fmt.Fprintf(w, "mobile: %s\n", current.Mobile)

	if current.City != "" {
		fmt.Fprintf(w, "city:   %s\n", current.City)
	}
}

// userError replaces the message of an account error while keeping it
// matchable with errors.Is.
type userError struct {
	msg string
	err error
}

func (e *userError) Error() string { return e.msg }
func (e *userError) Unwrap() error { return e.err }

// describe turns account errors into short user-facing messages. Unknown
// accounts and wrong passwords read the same.
func describe(err error) error {
	if errors.Is(err, domain.ErrAuthentication) {
		return &userError{msg: "invalid credentials", err: err}
	}

	if msg, ok := domain.ErrorMessage(err); ok {
		return &userError{msg: msg, err: err}
	}

	return err
}
