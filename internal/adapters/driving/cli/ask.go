package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-ask/internal/core/domain"
)

var (
	askSpace string
	askDepth string
	askWeb   bool
	askNoWeb bool
	askJSON  bool
	askTrace bool
	askChat  bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question with citations",
	Long: `Researches a question across a search space and, when configured, the
web, then writes an answer whose claims cite numbered sources.

Depth trades time for thoroughness: GENERAL, DEEP, DEEPER or DEEPEST.

With --chat, follow-up questions are read from stdin, one per line, and
each is answered in the context of the conversation so far.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askSpace, "space", "s", "", "search space ID or name")
	askCmd.Flags().StringVarP(&askDepth, "depth", "d", string(domain.DepthGeneral), "research depth")
	askCmd.Flags().BoolVar(&askWeb, "web", true, "allow web search")
	askCmd.Flags().BoolVar(&askNoWeb, "no-web", false, "disable web search")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer as JSON")
	askCmd.Flags().BoolVar(&askTrace, "trace", false, "print the full research log")
	askCmd.Flags().BoolVar(&askChat, "chat", false, "read follow-up questions from stdin")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if askService == nil {
		return errors.New("ask service not configured")
	}

	depth := domain.ResearchDepth(strings.ToUpper(askDepth))
	if !depth.IsValid() {
		return fmt.Errorf("unknown depth %q: use GENERAL, DEEP, DEEPER or DEEPEST", askDepth)
	}

	ctx := commandContext(cmd)

	spaceID, err := resolveSpace(ctx, askSpace)
	if err != nil {
		return err
	}

	req := domain.AskRequest{
		Query:         args[0],
		SearchSpaceID: spaceID,
		Depth:         depth,
		DisableWeb:    askNoWeb || !askWeb,
	}

	out := newPrinter(cmd.OutOrStdout())
	answer, err := askOnce(ctx, cmd, out, req)
	if err != nil || !askChat {
		return err
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		out.printf("\n%s ", out.style(titleStyle, ">"))
		if !scanner.Scan() {
			out.printf("\n")
			return scanner.Err()
		}
		next := strings.TrimSpace(scanner.Text())
		if next == "" {
			continue
		}
		if next == "exit" || next == "quit" {
			return nil
		}

		req.History = append(req.History,
			domain.ChatMessage{Role: domain.RoleUser, Content: req.Query},
			domain.ChatMessage{Role: domain.RoleAssistant, Content: answer.Text},
		)
		req.Query = next
		if answer, err = askOnce(ctx, cmd, out, req); err != nil {
			return err
		}
	}
}

func askOnce(ctx context.Context, cmd *cobra.Command, out *printer, req domain.AskRequest) (*domain.Answer, error) {
	answer, err := askService.Ask(ctx, req)
	if err != nil {
		if answer != nil && errors.Is(err, context.Canceled) {
			out.answer(answer, askTrace)
		}
		return nil, fmt.Errorf("ask failed: %w", err)
	}

	if askJSON {
		data, err := json.MarshalIndent(answer, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal answer: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return answer, nil
	}

	out.answer(answer, askTrace)
	return answer, nil
}
