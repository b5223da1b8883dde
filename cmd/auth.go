package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"posdash/internal/api"
	"posdash/internal/logger"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the session",
	Long: `Sign in with email (or username) and password. The session token is
stored in POSDASH_SESSION_FILE and sent with every later command.

Missing flags are asked for on the terminal. POSDASH_PASSWORD is used when
--password is not given.`,
	Example: `  posdash login --email cashier@example.com`,
	Args:    cobra.NoArgs,
	RunE:    runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the stored session",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

var registerCmd = &cobra.Command{
	Use:     "register",
	Short:   "Create an account and sign in",
	Example: `  posdash register --email ana@example.com --first-name Ana --last-name Lima`,
	Args:    cobra.NoArgs,
	RunE:    runRegister,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Args:  cobra.NoArgs,
	RunE:  runWhoami,
}

func init() {
	rootCmd.AddCommand(loginCmd, logoutCmd, registerCmd, whoamiCmd)

	loginCmd.Flags().String("email", "", "Email or username")
	loginCmd.Flags().String("password", "", "Password")

	registerCmd.Flags().String("email", "", "Email (also used as username)")
	registerCmd.Flags().String("password", "", "Password")
	registerCmd.Flags().String("first-name", "", "First name")
	registerCmd.Flags().String("last-name", "", "Last name")
}

// formValue binds a form field to the value it fills.
type formValue struct {
	field formField
	value *string
}

// missingValues returns the values that are still empty, in order.
func missingValues(values []formValue) []formValue {
	var missing []formValue
	for _, v := range values {
		if *v.value == "" {
			missing = append(missing, v)
		}
	}
	return missing
}

// fillMissing asks for every empty value in one terminal form.
func fillMissing(ctx context.Context, title string, values []formValue) error {
	missing := missingValues(values)
	if len(missing) == 0 {
		return nil
	}

	fields := make([]formField, len(missing))
	for i, v := range missing {
		fields[i] = v.field
	}
	answers, err := askFields(ctx, title, fields)
	if err != nil {
		return err
	}
	for i, v := range missing {
		*v.value = answers[i]
	}
	return nil
}

// credentialValues reads email and password from flags, falling back to
// POSDASH_PASSWORD for the password.
func credentialValues(cmd *cobra.Command) (email, password *string) {
	e, _ := cmd.Flags().GetString("email")
	p, _ := cmd.Flags().GetString("password")
	if p == "" {
		p = os.Getenv("POSDASH_PASSWORD")
	}
	return &e, &p
}

func credentialFields(email, password *string) []formValue {
	return []formValue{
		{formField{label: "Email"}, email},
		{formField{label: "Password", secret: true}, password},
	}
}

func runLogin(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("login")

	ctx, cancel := commandContext(log)
	defer cancel()

	email, password := credentialValues(cmd)
	if err := fillMissing(ctx, "Sign in", credentialFields(email, password)); err != nil {
		return err
	}
	if *email == "" || *password == "" {
		return fmt.Errorf("email and password are required")
	}

	a, err := openApp(log)
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.client.Login(ctx, *email, *password)
	if err != nil {
		a.notifier.Error(api.FormatError(err, "Login failed"))
		log.Error().Err(err).Msg("Login failed")
		return reported(err)
	}
	if err := a.session.SignIn(resp.JWT, resp.User); err != nil {
		return err
	}

	a.notifier.Success(fmt.Sprintf("Welcome, %s", resp.User.DisplayName()))
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("logout")

	a, err := openApp(log)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.session.SignOut(); err != nil {
		return err
	}
	a.notifier.Success("Signed out")
	return nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("register")

	ctx, cancel := commandContext(log)
	defer cancel()

	email, password := credentialValues(cmd)
	firstName, _ := cmd.Flags().GetString("first-name")
	lastName, _ := cmd.Flags().GetString("last-name")
	values := append(credentialFields(email, password),
		formValue{formField{label: "First name"}, &firstName},
		formValue{formField{label: "Last name"}, &lastName},
	)
	if err := fillMissing(ctx, "Create account", values); err != nil {
		return err
	}
	if *email == "" || *password == "" {
		return fmt.Errorf("email and password are required")
	}

	a, err := openApp(log)
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.client.Register(ctx, api.RegisterInput{
		Email:     *email,
		Password:  *password,
		FirstName: firstName,
		LastName:  lastName,
	})
	if err != nil {
		a.notifier.Error(api.FormatError(err, "Registration failed"))
		log.Error().Err(err).Msg("Registration failed")
		return reported(err)
	}
	if err := a.session.SignIn(resp.JWT, resp.User); err != nil {
		return err
	}

	a.notifier.Success(fmt.Sprintf("Account created. Welcome, %s", resp.User.DisplayName()))
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("whoami")

	a, err := openApp(log)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.requireSignIn(); err != nil {
		return err
	}

	ctx, cancel := commandContext(log)
	defer cancel()

	user, err := a.client.Me(ctx)
	if err != nil {
		return handleAPIError(err, log)
	}

	fmt.Printf("%s <%s>\n", user.DisplayName(), user.Email)
	if sess, ok := a.session.Current(); ok {
		fmt.Printf("Signed in since %s\n", sess.SignedInAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}
