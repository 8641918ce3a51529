package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/llmcouncil/councild/internal/client"
	"github.com/llmcouncil/councild/internal/council"
)

var (
	askServerURL    string
	askModels       []string
	askChairman     string
	askShowRankings bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the council a question from the terminal",
	Long: `Ask the council a question and stream the deliberation to the
terminal: individual answers as they arrive, the peer-ranking
consensus, and the chairman's synthesis.

The API key is read from the OPENROUTER_API_KEY environment variable
(a .env file in the working directory is honored).`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askServerURL, "server", "http://localhost:8001", "councild server URL")
	askCmd.Flags().StringSliceVar(&askModels, "models", nil, "council model identifiers (default: server's council)")
	askCmd.Flags().StringVar(&askChairman, "chairman", "", "chairman model identifier (default: server's chairman)")
	askCmd.Flags().BoolVar(&askShowRankings, "rankings", false, "show the full peer-ranking texts")
	rootCmd.AddCommand(askCmd)
}

// askStyles carries the lipgloss styles for one render pass. In non-TTY
// mode every style is a no-op so output pipes cleanly.
type askStyles struct {
	stage    lipgloss.Style
	model    lipgloss.Style
	dim      lipgloss.Style
	errStyle lipgloss.Style
}

func newAskStyles(tty bool) askStyles {
	if !tty {
		plain := lipgloss.NewStyle()
		return askStyles{stage: plain, model: plain, dim: plain, errStyle: plain}
	}
	return askStyles{
		stage:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		model:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		dim:      lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		errStyle: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
	}
}

func runAsk(cmd *cobra.Command, args []string) error {
	apiKey := os.Getenv("OPENROUTER_API_KEY")
	if apiKey == "" {
		return fmt.Errorf("OPENROUTER_API_KEY is not set (export it or put it in .env)")
	}

	question := strings.Join(args, " ")
	styles := newAskStyles(term.IsTerminal(int(os.Stdout.Fd())))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.New(askServerURL)
	return c.Stream(ctx, apiKey, client.StreamOptions{
		Content:       question,
		CouncilModels: askModels,
		ChairmanModel: askChairman,
	}, func(ev client.Event) error {
		return renderEvent(ev, styles)
	})
}

func renderEvent(ev client.Event, st askStyles) error {
	switch ev.Type {
	case council.EventStage1Start:
		fmt.Println(st.stage.Render("── Stage 1: council responses ──"))

	case council.EventStage1Complete:
		responses, err := ev.Stage1Responses()
		if err != nil {
			return fmt.Errorf("decoding stage 1: %w", err)
		}
		for _, r := range responses {
			fmt.Println(st.model.Render(r.Model))
			fmt.Println(r.Response)
			fmt.Println()
		}

	case council.EventStage2Start:
		fmt.Println(st.stage.Render("── Stage 2: peer rankings ──"))

	case council.EventStage2Complete:
		if askShowRankings {
			judgments, err := ev.Judgments()
			if err != nil {
				return fmt.Errorf("decoding stage 2: %w", err)
			}
			for _, j := range judgments {
				fmt.Println(st.model.Render(j.Model))
				fmt.Println(j.Ranking)
				fmt.Println()
			}
		}
		if ev.Metadata != nil {
			fmt.Println(st.dim.Render("consensus (lower is better):"))
			for i, entry := range ev.Metadata.AggregateRankings {
				fmt.Printf("  %d. %s  avg %.2f over %d rankings\n",
					i+1, entry.Model, entry.AverageRank, entry.RankingsCount)
			}
			fmt.Println()
		}

	case council.EventStage3Start:
		fmt.Println(st.stage.Render("── Stage 3: chairman synthesis ──"))

	case council.EventStage3Complete:
		syn, err := ev.Synthesis()
		if err != nil {
			return fmt.Errorf("decoding stage 3: %w", err)
		}
		fmt.Println(st.model.Render(syn.Model))
		fmt.Println(syn.Response)
		fmt.Println()

	case council.EventTitleComplete:
		if title, err := ev.Title(); err == nil && title != "" {
			fmt.Println(st.dim.Render("title: " + title))
		}

	case council.EventComplete:
		if ev.Synthetic {
			fmt.Println(st.dim.Render("(stream ended early; results above are partial)"))
		}

	case council.EventError:
		fmt.Println(st.errStyle.Render("error: " + ev.Message))
	}
	return nil
}
