package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"mri-console/internal/format"
	"mri-console/internal/schemas"
)

var (
	userEmail    string
	userName     string
	userPassword string
	userRole     string
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage backend users",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	Args:  cobra.NoArgs,
	RunE:  runUsersList,
}

var usersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user",
	Long: `Creates a user. --email, --name and --password are required; the role
defaults to "user".`,
	Args: cobra.NoArgs,
	RunE: runUsersCreate,
}

var usersUpdateCmd = &cobra.Command{
	Use:   "update <user-id>",
	Short: "Update a user's email, name or role",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersUpdate,
}

var usersDeleteCmd = &cobra.Command{
	Use:   "delete <user-id>",
	Short: "Delete a user",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersDelete,
}

func init() {
	for _, c := range []*cobra.Command{usersCreateCmd, usersUpdateCmd} {
		c.Flags().StringVar(&userEmail, "email", "", "Email address")
		c.Flags().StringVar(&userName, "name", "", "Full name")
		c.Flags().StringVar(&userRole, "role", "", "Role (user or admin)")
	}
	usersCreateCmd.Flags().StringVar(&userPassword, "password", "", "Initial password")
}

func printUsers(users ...schemas.User) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tNAME\tROLE\tCREATED")
	for _, u := range users {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", u.UserID, u.Email, u.FullName, u.Role, format.Timestamp(u.CreatedAt))
	}
	return w.Flush()
}

func runUsersList(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	users, err := client.ListUsers(ctx)
	if err != nil {
		return err
	}
	return printUsers(users...)
}

func runUsersCreate(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	u, err := client.CreateUser(ctx, schemas.CreateUserRequest{
		Email:    userEmail,
		FullName: userName,
		Password: userPassword,
		Role:     userRole,
	})
	if err != nil {
		return err
	}
	return printUsers(u)
}

func runUsersUpdate(cmd *cobra.Command, args []string) error {
	var req schemas.UpdateUserRequest
	flags := cmd.Flags()
	if flags.Changed("email") {
		req.Email = &userEmail
	}
	if flags.Changed("name") {
		req.FullName = &userName
	}
	if flags.Changed("role") {
		req.Role = &userRole
	}
	if req.Email == nil && req.FullName == nil && req.Role == nil {
		return fmt.Errorf("nothing to update: pass --email, --name or --role")
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	u, err := client.UpdateUser(ctx, args[0], req)
	if err != nil {
		return err
	}
	return printUsers(u)
}

func runUsersDelete(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	if err := client.DeleteUser(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(out, "deleted %s\n", args[0])
	return nil
}
