package commands

import (
	"errors"

	"github.com/AlecAivazis/survey/v2"
	"github.com/conduit-lang/locallibrary/internal/cli/ui"
	"github.com/conduit-lang/locallibrary/internal/web/auth"
	"github.com/spf13/cobra"
)

func newCreateUserCommand(o *options) *cobra.Command {
	var (
		username string
		password string
		staff    bool
	)
	cmd := &cobra.Command{
		Use:   "createuser",
		Short: "Create a user account",
		Long: `Create a user that can log in to the site. Staff users can also
open the admin pages. Missing values are prompted for.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var questions []*survey.Question
			if username == "" {
				questions = append(questions, &survey.Question{
					Name:     "username",
					Prompt:   &survey.Input{Message: "Username:"},
					Validate: survey.Required,
				})
			}
			if password == "" {
				questions = append(questions, &survey.Question{
					Name:   "password",
					Prompt: &survey.Password{Message: "Password:"},
					Validate: func(ans interface{}) error {
						s, _ := ans.(string)
						return auth.ValidatePassword(s)
					},
				})
			}
			if len(questions) > 0 {
				answers := struct {
					Username string
					Password string
				}{username, password}
				if err := survey.Ask(questions, &answers); err != nil {
					return err
				}
				username, password = answers.Username, answers.Password
			}
			if username == "" || password == "" {
				return errors.New("username and password are required")
			}

			a, err := o.open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer closeApp(cmd, a)

			u, err := a.Users.Create(cmd.Context(), username, password, staff)
			if err != nil {
				return err
			}
			role := "user"
			if u.IsStaff {
				role = "staff user"
			}
			ui.Success(cmd.OutOrStdout(), o.noColor, "Created %s %s (id %d)", role, u.Username, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "login name")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when omitted)")
	cmd.Flags().BoolVar(&staff, "staff", false, "allow access to the admin pages")
	return cmd
}
