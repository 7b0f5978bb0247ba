package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"meeplehall/internal/dto"
	"meeplehall/internal/models"

	"github.com/spf13/cobra"
)

// resolveUser accepts a numeric ID or a live username.
func resolveUser(ctx context.Context, a *app, ref string) (*models.User, error) {
	if id, err := strconv.ParseUint(ref, 10, 64); err == nil {
		return a.users.GetByID(ctx, uint(id))
	}
	u, err := a.users.GetByUsername(ctx, ref)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("no user named %q", ref)
	}
	return u, nil
}

func report(u *models.User, action string) error {
	if output == "json" {
		view, err := dto.NewAdminUserView(u)
		if err != nil {
			return err
		}
		return printJSON(view)
	}
	fmt.Printf("%s %s (ID: %d)\n", action, u.Username, u.ID)
	return nil
}

// userAction builds a command that applies fn to one user. The operator
// acts as actor 0, which bypasses self-protection checks.
func userAction(use, short, verb string, fn func(ctx context.Context, a *app, u *models.User) (*models.User, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <user-id|username>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := loadApp()
			if err != nil {
				return err
			}
			u, err := resolveUser(ctx, a, args[0])
			if err != nil {
				return err
			}
			updated, err := fn(ctx, a, u)
			if err != nil {
				return err
			}
			return report(updated, verb)
		},
	}
}

var promoteCmd = userAction("promote", "Grant admin rights", "Promoted",
	func(ctx context.Context, a *app, u *models.User) (*models.User, error) {
		if u.IsAdmin {
			fmt.Printf("User %s (ID: %d) is already an admin\n", u.Username, u.ID)
			return u, nil
		}
		return a.svc.SetAdmin(ctx, 0, u.ID, true)
	})

var demoteCmd = userAction("demote", "Revoke admin rights", "Demoted",
	func(ctx context.Context, a *app, u *models.User) (*models.User, error) {
		if !u.IsAdmin {
			fmt.Printf("User %s (ID: %d) is not an admin\n", u.Username, u.ID)
			return u, nil
		}
		return a.svc.SetAdmin(ctx, 0, u.ID, false)
	})

var banCmd = userAction("ban", "Ban an account", "Banned",
	func(ctx context.Context, a *app, u *models.User) (*models.User, error) {
		return a.svc.SetBanned(ctx, 0, u.ID, true)
	})

var unbanCmd = userAction("unban", "Lift a ban", "Unbanned",
	func(ctx context.Context, a *app, u *models.User) (*models.User, error) {
		return a.svc.SetBanned(ctx, 0, u.ID, false)
	})

// restore only takes IDs: deleted accounts are invisible to username lookup.
var restoreCmd = &cobra.Command{
	Use:   "restore <user-id>",
	Short: "Restore a soft-deleted account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid user id %q", args[0])
		}
		a, err := loadApp()
		if err != nil {
			return err
		}
		u, err := a.svc.RestoreUser(cmd.Context(), uint(id))
		if err != nil {
			return err
		}
		return report(u, "Restored")
	},
}

var listAdminsCmd = &cobra.Command{
	Use:   "list-admins",
	Short: "List every admin account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		admins, err := a.svc.ListAdmins(cmd.Context())
		if err != nil {
			return err
		}
		if output == "json" {
			return printJSON(admins)
		}
		if len(admins) == 0 {
			fmt.Println("No admins found")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL\tBANNED\tCREATED")
		for _, v := range admins {
			fmt.Fprintf(w, "%d\t%s\t%s\t%t\t%s\n", v.ID, v.Username, v.Email, v.IsBanned, v.CreatedAt.Format("2006-01-02"))
		}
		return w.Flush()
	},
}
