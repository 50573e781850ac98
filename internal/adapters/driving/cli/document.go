package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var documentCmd = &cobra.Command{
	Use:     "docs",
	Aliases: []string{"document"},
	Short:   "Manage indexed documents",
	Long:    `List, view, or delete documents indexed in a search space.`,
}

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents in a space",
	Args:  cobra.NoArgs,
	RunE:  runDocumentList,
}

var documentShowCmd = &cobra.Command{
	Use:   "show [doc-id]",
	Short: "Show document details",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentShow,
}

var documentContentCmd = &cobra.Command{
	Use:   "content [doc-id]",
	Short: "Print document content",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentContent,
}

var documentDeleteCmd = &cobra.Command{
	Use:   "delete [doc-id]",
	Short: "Delete a document and its chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentDelete,
}

var documentSpace string

func init() {
	documentListCmd.Flags().StringVarP(&documentSpace, "space", "s", "", "search space ID or name")

	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentShowCmd)
	documentCmd.AddCommand(documentContentCmd)
	documentCmd.AddCommand(documentDeleteCmd)
	rootCmd.AddCommand(documentCmd)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func runDocumentList(cmd *cobra.Command, _ []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	ctx := commandContext(cmd)
	spaceID, err := resolveSpace(ctx, documentSpace)
	if err != nil {
		return err
	}

	docs, err := documentService.ListBySpace(ctx, spaceID)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(docs) == 0 {
		fmt.Fprintf(out, "No documents found in space: %s\n", spaceID)
		return nil
	}

	fmt.Fprintf(out, "Documents in space %s:\n\n", spaceID)
	for i := range docs {
		fmt.Fprintf(out, "  %s\n", docs[i].ID)
		fmt.Fprintf(out, "    Title: %s\n", docs[i].Title)
		fmt.Fprintf(out, "    Type:  %s\n", docs[i].SourceType)
		if docs[i].SourceURI != "" {
			fmt.Fprintf(out, "    URI:   %s\n", docs[i].SourceURI)
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintf(out, "Total: %d documents\n", len(docs))
	return nil
}

func runDocumentShow(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	details, err := documentService.GetDetails(commandContext(cmd), args[0])
	if err != nil {
		return fmt.Errorf("failed to get document details: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Document: %s\n\n", details.ID)
	fmt.Fprintf(out, "  Title:    %s\n", details.Title)
	fmt.Fprintf(out, "  Space:    %s (%s)\n", details.SpaceName, details.SearchSpaceID)
	fmt.Fprintf(out, "  Type:     %s\n", details.SourceType)
	fmt.Fprintf(out, "  URI:      %s\n", details.URI)
	fmt.Fprintf(out, "  Chunks:   %d\n", details.ChunkCount)
	fmt.Fprintf(out, "  Created:  %s\n", details.CreatedAt.Format("2006-01-02 15:04:05"))

	if len(details.Metadata) > 0 {
		fmt.Fprintln(out, "\n  Metadata:")
		keys := make([]string, 0, len(details.Metadata))
		for k := range details.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(out, "    %s: %s\n", k, details.Metadata[k])
		}
	}

	return nil
}

func runDocumentContent(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	content, err := documentService.GetContent(commandContext(cmd), args[0])
	if err != nil {
		return fmt.Errorf("failed to get document content: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), content)
	return nil
}

func runDocumentDelete(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	docID := args[0]
	if err := documentService.Delete(commandContext(cmd), docID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Document %s deleted.\n", docID)
	return nil
}
