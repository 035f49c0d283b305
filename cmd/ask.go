package cmd

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/pooriaast/sleuth/config"
	core "github.com/pooriaast/sleuth/internal/agent/core"
	"github.com/pooriaast/sleuth/internal/agent/telemetry"
	"github.com/pooriaast/sleuth/provider"
	"github.com/pooriaast/sleuth/session"
	"github.com/pooriaast/sleuth/tools/docindex"
	"github.com/pooriaast/sleuth/tools/websearch"
)

// askCMD runs one research turn from the terminal, printing progress as it
// streams. It exercises the executor directly, without the HTTP layer.
func askCMD() *cobra.Command {
	var conversationID string
	ask := &cobra.Command{
		Use:   "ask \"question\"",
		Short: "Ask one question and stream the research progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)

			idx, err := docindex.Open(cfg.Tools.Index.Path)
			if err != nil {
				return err
			}
			defer idx.Close()

			var web core.Searcher
			if cfg.Agent.Online() {
				searcher, err := websearch.NewSearcher(websearch.Provider(cfg.Tools.WebSearch.Provider), cfg.Tools.WebSearch.APIKey)
				if err != nil {
					return err
				}
				web = websearch.Tool{Searcher: searcher}
			}

			tele := telemetry.New(prometheus.NewRegistry())
			gateway := core.NewGateway(idx, web, cfg.Agent.RelevanceFloor, cfg.Agent.MaxResults, tele)
			model, err := provider.NewModelHandle(provider.Client(cfg.LLM.Provider), provider.Options{
				APIKey:      cfg.LLM.APIKey,
				Model:       cfg.LLM.Model,
				BaseURL:     cfg.LLM.BaseURL,
				Temperature: cfg.LLM.Temperature,
				MaxTokens:   cfg.LLM.MaxTokens,
				Timeout:     cfg.LLM.Timeout,
			})
			if err != nil {
				return err
			}

			store := session.NewStore(session.InMemoryStore)
			exec := core.NewExecutor(model, gateway, store, cfg.Agent.Mode, cfg.Agent.MaxIterations, tele)

			var failed bool
			for ev := range exec.Run(cmd.Context(), args[0], conversationID) {
				switch ev.Type {
				case core.EventToken, core.EventFinalAnswerStart:
					fmt.Print(ev.Content + ev.Message)
				case core.EventCitation:
					fmt.Printf("\n[citation] %s — %s", ev.Title, ev.SourceURL)
				case core.EventDone:
					fmt.Printf("\n\n[done] conversation=%s iterations=%d\n", ev.ConversationID, *ev.Iterations)
				case core.EventError:
					failed = true
					fmt.Fprintf(os.Stderr, "\nerror: %s\n", ev.Error)
				default:
					fmt.Println(ev.Message)
				}
			}
			if failed {
				os.Exit(1)
			}
			return nil
		},
	}
	ask.Flags().StringVar(&conversationID, "conversation", "", "conversation id to resume")
	return ask
}
