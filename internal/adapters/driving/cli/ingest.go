package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-ask/internal/core/domain"
	"github.com/custodia-labs/sercha-ask/internal/core/services"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path...]",
	Short: "Index files into a search space",
	Long: `Index local files into a search space. Directories are walked
recursively; files with an unsupported type are skipped.

Supported formats are plain text, Markdown, and HTML.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

var (
	ingestSpace      string
	ingestSourceType string
	ingestTitle      string
)

func init() {
	ingestCmd.Flags().StringVarP(&ingestSpace, "space", "s", "", "search space ID or name")
	ingestCmd.Flags().StringVarP(&ingestSourceType, "type", "t", string(domain.SourceTypeFile), "source type recorded on each document")
	ingestCmd.Flags().StringVar(&ingestTitle, "title", "", "document title (single file only)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestService == nil || normaliser == nil {
		return errors.New("ingest service not configured")
	}

	sourceType := domain.SourceType(strings.ToUpper(ingestSourceType))
	if !sourceType.IsValid() {
		return fmt.Errorf("%w: unknown source type %q", domain.ErrInvalidInput, ingestSourceType)
	}

	ctx := commandContext(cmd)
	spaceID, err := resolveSpace(ctx, ingestSpace)
	if err != nil {
		return err
	}

	paths, err := collectFiles(args)
	if err != nil {
		return err
	}
	if ingestTitle != "" && len(paths) > 1 {
		return fmt.Errorf("%w: --title needs exactly one file", domain.ErrInvalidInput)
	}

	out := cmd.OutOrStdout()
	var ingested, chunks int
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := ingestFile(ctx, path, spaceID, sourceType)
		if errors.Is(err, errUnsupported) {
			warnf(cmd, "skipping %s: unsupported file type", path)
			continue
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "  %s (%d chunks)\n", path, n)
		ingested++
		chunks += n
	}

	fmt.Fprintf(out, "Ingested %d documents, %d chunks.\n", ingested, chunks)
	return nil
}

var errUnsupported = errors.New("unsupported file type")

func ingestFile(ctx context.Context, path, spaceID string, sourceType domain.SourceType) (int, error) {
	mimeType := services.DetectMIMEType(path)
	if !normaliser.Supports(mimeType) {
		return 0, errUnsupported
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", path, err)
	}

	raw := &domain.RawDocument{URI: path, MIMEType: mimeType, Content: content}
	if ingestTitle != "" {
		raw.Metadata = map[string]any{"title": ingestTitle}
	}

	result, err := normaliser.Normalise(ctx, raw)
	if err != nil {
		return 0, err
	}

	doc := &domain.Document{
		Title:         result.Title,
		SourceType:    sourceType,
		SourceURI:     path,
		SearchSpaceID: spaceID,
		Metadata:      result.Metadata,
	}

	res, err := ingestService.IngestDocument(ctx, doc, result.Content)
	if err != nil {
		return 0, fmt.Errorf("ingesting %s: %w", path, err)
	}
	return res.Chunks, nil
}

// collectFiles expands directories into the regular files beneath them.
// Hidden files and directories are skipped during a walk.
func collectFiles(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return nil, err
		}

		info, err := os.Stat(abs)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, abs)
			continue
		}

		err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path != abs && strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type().IsRegular() {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return paths, nil
}
