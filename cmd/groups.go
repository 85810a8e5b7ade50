package cmd

import (
	"context"
	"fmt"

	"yeti/core"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NewGroupsCmd creates the 'groups' command.
func NewGroupsCmd() *cobra.Command {
	groupsCmd := &cobra.Command{
		Use:   "groups",
		Short: "Bootstrap user groups",
		Long:  "Create groups and assign their first group admins. Day-to-day administration goes through the API.",
	}
	addPersistentFlags(groupsCmd)

	groupsCmd.AddCommand(newGroupsCreateCmd())
	return groupsCmd
}

func newGroupsCreateCmd() *cobra.Command {
	var (
		name   string
		admins []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a group",
		Long:  "Create an enabled group. Each --admin user is added both as a member and as a group admin.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			adminIDs := make([]primitive.ObjectID, 0, len(admins))
			for _, raw := range admins {
				id, err := parseUserID(raw, "admin")
				if err != nil {
					return err
				}
				adminIDs = append(adminIDs, id)
			}

			group, err := core.NewGroup(name)
			if err != nil {
				return fmt.Errorf("invalid group: %w", err)
			}

			return withEnv(func(ctx context.Context, env *cliEnv) error {
				return createGroup(ctx, cmd, env, group, adminIDs)
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Group name (required)")
	cmd.Flags().StringArrayVar(&admins, "admin", nil, "User ID to make group admin (repeatable)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func createGroup(ctx context.Context, cmd *cobra.Command, env *cliEnv, group *core.Group, adminIDs []primitive.ObjectID) error {
	for _, uid := range adminIDs {
		if _, err := env.users.GetUser(ctx, uid); err != nil {
			return fmt.Errorf("admin %s: %w", uid.Hex(), err)
		}
		group.AddMember(uid)
		if !group.HasAdmin(uid) {
			group.ToggleAdmin(uid)
		}
	}

	if err := env.groups.CreateGroup(ctx, group); err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}
	env.logger.Warnw("AUDIT: Group created from CLI", "group_id", group.ID.Hex(), "name", group.Name, "admins", len(adminIDs))

	if outputJSON {
		return outputAsJSON(cmd.OutOrStdout(), group)
	}
	if !quiet {
		renderGroup(cmd.OutOrStdout(), group)
	}
	return nil
}
