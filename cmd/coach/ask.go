package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/discochess/coach/internal/agent"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask the coach about your play",
	Long: `Ask a chat model about your profile. The model looks up your profile,
openings and representative games through tools and can update or rebuild the
profile when asked to.

Any OpenAI-compatible endpoint works; the default is a local LM Studio server
at http://localhost:1234/v1.

Without a question an interactive session starts.

Examples:
  coach ask "What is my playing style?"
  coach ask`,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	c, err := openCoach(ctx, nil, true)
	if err != nil {
		return err
	}
	defer c.Close()

	llm := agent.NewClient(cfg.LLM.BaseURL, cfg.LLM.Model,
		agent.WithAPIKey(cfg.LLM.APIKey),
		agent.WithTemperature(cfg.LLM.Temperature),
		agent.WithClientLogger(logger.Named("llm")),
	)
	a := agent.New(llm, cfg.Username, agent.Tools(c, cfg.ProfileInfo),
		agent.WithMaxSteps(cfg.LLM.MaxSteps),
		agent.WithLogger(logger),
	)

	if len(args) > 0 {
		answer, err := a.Ask(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Println(answer)
		return nil
	}

	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("   Chess Coaching Agent")
	fmt.Println(strings.Repeat("-", 60))
	fmt.Printf("Using chess.com username: %s\n", cfg.Username)
	fmt.Printf("Model: %s at %s\n", cfg.LLM.Model, cfg.LLM.BaseURL)
	fmt.Println()
	fmt.Println("Try asking things like:")
	fmt.Println("   - What is my playing style?")
	fmt.Println("   - Recommend openings based on my profile")
	fmt.Println("   - Show some games where I played well")
	fmt.Println("   - Update my player profile")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("Ask a question (or type 'exit'):")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(" % ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		q := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(q) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		answer, err := a.Ask(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		fmt.Println("Coach:", answer)
	}
}
