package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var spacesCmd = &cobra.Command{
	Use:     "spaces",
	Aliases: []string{"space"},
	Short:   "Manage search spaces",
	Long: `Search spaces partition the knowledge base. Every search and question
is scoped to exactly one space.`,
}

var spacesCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a search space",
	Args:  cobra.ExactArgs(1),
	RunE:  runSpacesCreate,
}

var spacesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List search spaces",
	Args:  cobra.NoArgs,
	RunE:  runSpacesList,
}

var spacesDeleteCmd = &cobra.Command{
	Use:   "delete [id-or-name]",
	Short: "Delete a search space and everything in it",
	Args:  cobra.ExactArgs(1),
	RunE:  runSpacesDelete,
}

var spaceDescription string

func init() {
	spacesCreateCmd.Flags().StringVar(&spaceDescription, "description", "", "optional description")

	spacesCmd.AddCommand(spacesCreateCmd)
	spacesCmd.AddCommand(spacesListCmd)
	spacesCmd.AddCommand(spacesDeleteCmd)
	rootCmd.AddCommand(spacesCmd)
}

func runSpacesCreate(cmd *cobra.Command, args []string) error {
	if spaceService == nil {
		return errors.New("space service not configured")
	}

	space, err := spaceService.Create(commandContext(cmd), args[0], spaceDescription)
	if err != nil {
		return fmt.Errorf("failed to create space: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created space %s (%s)\n", space.Name, space.ID)
	return nil
}

func runSpacesList(cmd *cobra.Command, _ []string) error {
	if spaceService == nil {
		return errors.New("space service not configured")
	}

	spaces, err := spaceService.List(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to list spaces: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(spaces) == 0 {
		fmt.Fprintln(out, "No search spaces. Create one with 'sercha-ask spaces create <name>'.")
		return nil
	}

	p := newPrinter(out)
	fmt.Fprintln(out, "Search spaces:")
	for i := range spaces {
		fmt.Fprintf(out, "  %s  %s\n", p.style(titleStyle, spaces[i].Name), p.style(mutedStyle, spaces[i].ID))
		if spaces[i].Description != "" {
			fmt.Fprintf(out, "    %s\n", spaces[i].Description)
		}
	}
	return nil
}

func runSpacesDelete(cmd *cobra.Command, args []string) error {
	if spaceService == nil {
		return errors.New("space service not configured")
	}

	ctx := commandContext(cmd)
	space, err := spaceService.Get(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to find space: %w", err)
	}

	if err := spaceService.Delete(ctx, space.ID); err != nil {
		return fmt.Errorf("failed to delete space: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Space %s deleted.\n", space.Name)
	return nil
}
