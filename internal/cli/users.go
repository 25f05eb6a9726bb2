package cli

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/gains/users"
)

func newUsersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage the users directory",
		Long: `List, add, update and delete users.

Examples:
  gains users list
  gains users add --fullname "Tim Apple" --email tim@apple.com
  gains users update 3 --email tim@example.com
  gains users delete 3`,
	}

	store := func(cmd *cobra.Command) (*users.Store, error) {
		conn, err := a.database(cmd.Context())
		if err != nil {
			return nil, err
		}
		return users.NewStore(conn), nil
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
	}
	list.RunE = a.run(func(cmd *cobra.Command, args []string) error {
		s, err := store(cmd)
		if err != nil {
			return err
		}
		all, err := s.List(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tFULLNAME\tEMAIL")
		for _, u := range all {
			fmt.Fprintf(w, "%d\t%s\t%s\n", u.ID, u.Fullname, u.Email)
		}
		return w.Flush()
	})

	var fullname, email string

	add := &cobra.Command{
		Use:   "add",
		Short: "Add a user",
		Args:  cobra.NoArgs,
	}
	add.Flags().StringVar(&fullname, "fullname", "", "full name (required)")
	add.Flags().StringVar(&email, "email", "", "email address (required)")
	add.RunE = a.run(func(cmd *cobra.Command, args []string) error {
		s, err := store(cmd)
		if err != nil {
			return err
		}
		u, err := s.Create(cmd.Context(), users.User{Fullname: fullname, Email: email})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created user %d\n", u.ID)
		return nil
	})

	update := &cobra.Command{
		Use:   "update <user_id>",
		Short: "Change a user's name or email",
		Args:  cobra.ExactArgs(1),
	}
	update.Flags().StringVar(&fullname, "fullname", "", "new full name")
	update.Flags().StringVar(&email, "email", "", "new email address")
	update.RunE = a.run(func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		var p users.Patch
		if cmd.Flags().Changed("fullname") {
			p.Fullname = &fullname
		}
		if cmd.Flags().Changed("email") {
			p.Email = &email
		}
		if p.Fullname == nil && p.Email == nil {
			return fmt.Errorf("nothing to update: pass --fullname and/or --email")
		}

		s, err := store(cmd)
		if err != nil {
			return err
		}
		u, err := s.Update(cmd.Context(), id, p)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "updated user %d: %s <%s>\n", u.ID, u.Fullname, u.Email)
		return nil
	})

	del := &cobra.Command{
		Use:   "delete <user_id>",
		Short: "Delete a user",
		Args:  cobra.ExactArgs(1),
	}
	del.RunE = a.run(func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		s, err := store(cmd)
		if err != nil {
			return err
		}
		if err := s.Delete(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted user %d\n", id)
		return nil
	})

	cmd.AddCommand(list, add, update, del)
	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad user_id %q: want an integer", s)
	}
	return id, nil
}
