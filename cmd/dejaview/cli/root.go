package cli

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/dejaview/internal/capture"
	"github.com/felixgeelhaar/dejaview/internal/host"
	"github.com/felixgeelhaar/dejaview/internal/infer"
	"github.com/felixgeelhaar/dejaview/internal/observe"
	"github.com/felixgeelhaar/dejaview/internal/query"
	"github.com/felixgeelhaar/dejaview/internal/search"
	"github.com/felixgeelhaar/dejaview/internal/summarize"
	"github.com/felixgeelhaar/dejaview/internal/ui"
	"github.com/felixgeelhaar/dejaview/internal/ui/tui"
)

var (
	verbose      bool
	ciMode       bool
	providerType string
	modelName    string
	endpoint     string
	interactive  bool
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "dejaview",
	Short: "On-device page memory with natural-language recall",
	Long: `Dejaview is the native-messaging host behind the dejaview browser
extension. It stores snapshots of visited pages locally and retrieves them
via natural-language queries against a local model runtime.`,
}

var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "Run the native-messaging host (invoked by the browser)",
	Run: func(cmd *cobra.Command, args []string) {
		runHost()
	},
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search stored page memories",
	Args:  cobra.MinimumNArgs(0),
	Run: func(cmd *cobra.Command, args []string) {
		var q string
		if len(args) > 0 {
			q = args[0]
		}
		runSearch(q)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show memory counts and inference status",
	Run: func(cmd *cobra.Command, args []string) {
		runStats()
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every stored memory and unlock event",
	Run: func(cmd *cobra.Command, args []string) {
		s := getStore()
		defer s.Close()
		if err := s.Clear(); err != nil {
			fmt.Printf("Failed to clear memories: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("All memories cleared.")
	},
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	RootCmd.AddCommand(hostCmd)
	RootCmd.AddCommand(searchCmd)
	RootCmd.AddCommand(statsCmd)
	RootCmd.AddCommand(clearCmd)

	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	RootCmd.PersistentFlags().BoolVar(&ciMode, "ci", false, "JSON log output, non-interactive")
	RootCmd.PersistentFlags().StringVarP(&providerType, "provider", "p", "", "Model runtime (ollama, openai, stub)")
	RootCmd.PersistentFlags().StringVarP(&modelName, "model", "m", "", "Model name (default depends on runtime)")
	RootCmd.PersistentFlags().StringVar(&endpoint, "endpoint", "", "Base URL of an OpenAI-compatible localhost server")
	searchCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Start interactive TUI")
}

func newObserver() *observe.Observer {
	// Stdout belongs to the native-messaging protocol; logs go to stderr.
	if ciMode {
		return observe.NewJSON(os.Stderr, verbose)
	}
	return observe.New(os.Stderr, verbose)
}

type runtime struct {
	obs      *observe.Observer
	pipeline *search.Pipeline
	router   *host.Router
	gateway  *infer.Gateway
	close    func()
}

func buildRuntime() (*runtime, error) {
	obs := newObserver()

	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	storeLayer, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	if err := validateConfig(cfg, storeLayer); err != nil {
		storeLayer.Close()
		return nil, err
	}

	client, err := newClient(cfg)
	if err != nil {
		storeLayer.Close()
		return nil, err
	}

	gateway := infer.NewGateway(client, obs)
	interp := query.NewInterpreter(gateway, obs)
	pipeline := search.NewPipeline(storeLayer, gateway, interp, obs)
	summarizer := summarize.New(gateway, obs)
	captures := capture.NewService(storeLayer, summarizer, nil, obs, cfg.IgnoreDomains)
	router := host.NewRouter(storeLayer, pipeline, captures, gateway, obs)

	return &runtime{
		obs:      obs,
		pipeline: pipeline,
		router:   router,
		gateway:  gateway,
		close: func() {
			captures.Wait()
			storeLayer.Close()
			obs.Close()
		},
	}, nil
}

func runHost() {
	rt, err := buildRuntime()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start host: %v\n", err)
		os.Exit(1)
	}
	defer rt.close()

	rt.obs.Log().Info().Msg("dejaview host started")
	if err := rt.router.Serve(context.Background(), os.Stdin, os.Stdout); err != nil {
		rt.obs.Log().Error().Err(err).Msg("host loop failed")
		os.Exit(1)
	}
}

func runSearch(q string) {
	rt, err := buildRuntime()
	if err != nil {
		fmt.Printf("Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer rt.close()

	if interactive {
		model := tui.NewModel(rt.pipeline.Search)
		if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
			fmt.Printf("Alas, there's been an error: %v", err)
			os.Exit(1)
		}
		return
	}

	if q == "" {
		fmt.Println("Provide a query, or use --interactive.")
		os.Exit(1)
	}

	console := ui.Console{Out: os.Stdout}
	console.UpdateStatus("Searching memories...")
	console.ShowResults(rt.pipeline.Search(context.Background(), q))
}

func runStats() {
	rt, err := buildRuntime()
	if err != nil {
		fmt.Printf("Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer rt.close()

	resp := rt.router.Handle(context.Background(), host.Request{Type: host.TypeGetCount})
	unlocked := rt.router.Handle(context.Background(), host.Request{Type: host.TypeGetUnlockedCount})
	status := rt.gateway.CheckStatus(context.Background())

	fmt.Printf("Memories:  %d\n", derefCount(resp.Count))
	fmt.Printf("Unlocked:  %d\n", derefCount(unlocked.Count))
	fmt.Printf("Inference: %s (available: %v)\n", status.Status, status.Available)
}

func derefCount(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}
