package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-ask/internal/core/domain"
)

// Document Command Tests

func TestDocumentCmd_Use(t *testing.T) {
	assert.Equal(t, "docs", documentCmd.Use)
	assert.Equal(t, "Manage indexed documents", documentCmd.Short)
}

func TestDocumentCmd_HasSubcommands(t *testing.T) {
	commands := documentCmd.Commands()
	commandNames := make([]string, 0, len(commands))
	for _, cmd := range commands {
		commandNames = append(commandNames, cmd.Name())
	}

	assert.ElementsMatch(t, []string{"list", "show", "content", "delete"}, commandNames)
}

// Document List Tests

func TestDocumentListCmd_DefaultSpace(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand("docs", "list")

	require.NoError(t, err)
	assert.Contains(t, out, "Documents in space space-default")
	assert.Contains(t, out, "doc-1")
	assert.Contains(t, out, "Test Document 1")
	assert.Contains(t, out, "/notes/one.md")
	assert.Contains(t, out, "NOTION_CONNECTOR")
	assert.Contains(t, out, "Total: 2 documents")
}

func TestDocumentListCmd_EmptySpace(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.documents.docs = nil

	out, err := executeCommand("docs", "list", "--space", "engineering")

	require.NoError(t, err)
	assert.Contains(t, out, "No documents found in space: space-eng")
}

func TestDocumentListCmd_RejectsArgs(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := executeCommand("docs", "list", "src-1")

	assert.Error(t, err)
}

func TestDocumentListCmd_ServiceNotConfigured(t *testing.T) {
	SetServices(&Services{})
	defer resetCommands()

	_, err := executeCommand("docs", "list")

	assert.ErrorContains(t, err, "document service not configured")
}

// Document Show Tests

func TestDocumentShowCmd_PrintsDetails(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand("docs", "show", "doc-1")

	require.NoError(t, err)
	assert.Contains(t, out, "Document: doc-1")
	assert.Contains(t, out, "Title:    Test Document 1")
	assert.Contains(t, out, "Space:    default (space-default)")
	assert.Contains(t, out, "Chunks:   4")
	assert.Contains(t, out, "Created:  2026-03-01 09:30:00")

	// Metadata keys are sorted.
	assert.Less(t, indexOf(out, "format: markdown"), indexOf(out, "mime_type: text/markdown"))
}

func TestDocumentShowCmd_NotFound(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := executeCommand("docs", "show", "doc-404")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentShowCmd_RequiresExactlyOneArg(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := executeCommand("docs", "show")

	assert.ErrorContains(t, err, "accepts 1 arg(s)")
}

// Document Content Tests

func TestDocumentContentCmd(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand("docs", "content", "doc-1")

	require.NoError(t, err)
	assert.Equal(t, "first body\n", out)
}

// Document Delete Tests

func TestDocumentDeleteCmd(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand("docs", "delete", "doc-2")

	require.NoError(t, err)
	assert.Contains(t, out, "Document doc-2 deleted.")
	assert.Equal(t, []string{"doc-2"}, ts.documents.deleted)
}

func TestDocumentDeleteCmd_ServiceError(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.documents.err = errBoom

	_, err := executeCommand("docs", "delete", "doc-2")

	assert.ErrorContains(t, err, "failed to delete document")
	assert.ErrorIs(t, err, errBoom)
}

func indexOf(s, substr string) int {
	i := strings.Index(s, substr)
	if i < 0 {
		return len(s)
	}
	return i
}
