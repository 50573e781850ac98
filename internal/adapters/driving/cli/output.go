package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/custodia-labs/sercha-ask/internal/core/domain"
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7C3AED")).Bold(true) // Purple
	refStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#06B6D4"))            // Cyan
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))            // Medium gray
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1"))            // Green
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F9E2AF"))            // Yellow
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8"))            // Red
)

// printer writes command output, styled only when w is a terminal.
type printer struct {
	w      io.Writer
	colour bool
}

func newPrinter(w io.Writer) *printer {
	p := &printer{w: w}
	if f, ok := w.(*os.File); ok {
		p.colour = term.IsTerminal(int(f.Fd()))
	}
	return p
}

func (p *printer) style(s lipgloss.Style, text string) string {
	if !p.colour {
		return text
	}
	return s.Render(text)
}

func (p *printer) printf(format string, args ...any) {
	fmt.Fprintf(p.w, format, args...)
}

func (p *printer) answer(a *domain.Answer, trace bool) {
	p.printf("%s\n", strings.TrimSpace(a.Text))

	if len(a.Citations) > 0 {
		p.printf("\n%s\n", p.style(titleStyle, "Sources:"))
		for _, c := range a.Citations {
			title := c.Candidate.Title
			if title == "" {
				title = c.Candidate.SourceRef.String()
			}
			p.printf("  [%d] %s\n", c.Marker, title)
			p.printf("      %s\n", p.style(refStyle, citationRef(c.Candidate)))
		}
	}

	if a.Insufficient {
		p.printf("\n%s\n", p.style(warnStyle, "Not enough evidence was found to answer fully."))
	}

	if trace {
		p.toolCalls(a.ToolCallLog)
	} else if n := len(a.ToolCallLog); n > 0 {
		p.printf("\n%s\n", p.style(mutedStyle, fmt.Sprintf("%d tool calls, %s", n, summariseCalls(a.ToolCallLog))))
	}
}

func (p *printer) toolCalls(calls []domain.ToolCall) {
	if len(calls) == 0 {
		return
	}
	p.printf("\n%s\n", p.style(titleStyle, "Research log:"))
	for _, call := range calls {
		status := string(call.Status)
		switch call.Status {
		case domain.ToolCallOK:
			status = p.style(okStyle, status)
		case domain.ToolCallDegraded, domain.ToolCallTimedOut:
			status = p.style(warnStyle, status)
		case domain.ToolCallFailed:
			status = p.style(errStyle, status)
		}
		p.printf("  #%d %-16s %-10s %3d results  %s", call.Iteration, call.Tool, status, call.Results,
			call.Duration.Round(time.Millisecond))
		if call.SubQuestion != "" {
			p.printf("  %q", call.SubQuestion)
		}
		p.printf("\n")
		if call.Detail != "" {
			p.printf("      %s\n", p.style(mutedStyle, call.Detail))
		}
	}
}

func (p *printer) candidates(results []domain.Candidate) {
	if len(results) == 0 {
		p.printf("No results found.\n")
		return
	}

	p.printf("Results:\n\n")
	for i := range results {
		title := results[i].Title
		if title == "" {
			title = results[i].SourceRef.String()
		}

		// Format: [N] Title (Score)
		p.printf("  [%d] %s %s\n", i+1, p.style(titleStyle, title), p.style(mutedStyle, fmt.Sprintf("(%.2f)", results[i].Score)))
		p.printf("      %s\n", p.style(refStyle, citationRef(results[i])))
		if len(results[i].Highlights) > 0 {
			p.printf("      %s\n", results[i].Highlights[0])
		}
		p.printf("\n")
	}
}

// citationRef is the most useful pointer back to a candidate's source.
func citationRef(c domain.Candidate) string {
	if c.SourceRef.URL != "" {
		return c.SourceRef.URL
	}
	if c.SourceRef.DocumentID != "" && c.SourceRef.Kind == domain.RefKindChunk {
		return "document " + c.SourceRef.DocumentID
	}
	return c.SourceRef.String()
}

func summariseCalls(calls []domain.ToolCall) string {
	counts := make(map[domain.ToolCallStatus]int)
	for _, c := range calls {
		counts[c.Status]++
	}
	parts := make([]string, 0, 4)
	for _, s := range []domain.ToolCallStatus{
		domain.ToolCallOK, domain.ToolCallDegraded, domain.ToolCallTimedOut, domain.ToolCallFailed,
	} {
		if counts[s] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[s], s))
		}
	}
	return strings.Join(parts, ", ")
}
