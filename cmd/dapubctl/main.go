package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/aescanero/dapub/internal/client"
	"github.com/aescanero/dapub/internal/itemsfile"
	"github.com/aescanero/dapub/pkg/domain"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	serverURL string
	timeout   time.Duration
	output    string
)

var rootCmd = &cobra.Command{
	Use:   "dapubctl",
	Short: "Control a publishing orchestrator",
	Long: `dapubctl drives a publishing orchestrator over its HTTP API.

Examples:
  dapubctl start --items items.yaml --mode fixed --fixed 30
  dapubctl start --items items.yaml --mode random --min 60 --max 300
  dapubctl state --watch 2s
  dapubctl stop`,
	SilenceUsage: true,
}

var (
	itemsPath    string
	intervalMode string
	fixedSeconds int
	minSeconds   int
	maxSeconds   int
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a run from an items file",
	Long: `Start a run from a YAML or JSON items file.

The file holds either a list of items or a mapping with "items" and an
optional "config". Interval flags override the file's config.`,
	RunE: runStart,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the active run",
	RunE:  runStop,
}

var (
	watchEvery time.Duration
	withItems  bool
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show the current job state",
	RunE:  runState,
}

func init() {
	defaultServer := os.Getenv("DAPUB_SERVER")
	if defaultServer == "" {
		defaultServer = "http://localhost:8080"
	}

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServer, "Orchestrator base URL (env DAPUB_SERVER)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "yaml", "Output format: yaml, json")

	startCmd.Flags().StringVarP(&itemsPath, "items", "i", "", "Items file (.yaml, .yml or .json)")
	startCmd.Flags().StringVar(&intervalMode, "mode", "", "Interval mode: fixed or random")
	startCmd.Flags().IntVar(&fixedSeconds, "fixed", 0, "Seconds between items in fixed mode")
	startCmd.Flags().IntVar(&minSeconds, "min", 0, "Minimum seconds between items in random mode")
	startCmd.Flags().IntVar(&maxSeconds, "max", 0, "Maximum seconds between items in random mode")
	_ = startCmd.MarkFlagRequired("items")

	stateCmd.Flags().DurationVarP(&watchEvery, "watch", "w", 0, "Poll the state at this interval until the run ends")
	stateCmd.Flags().BoolVar(&withItems, "with-items", false, "Include the item list")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(stateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runStart(cmd *cobra.Command, args []string) error {
	f, err := itemsfile.Load(itemsPath)
	if err != nil {
		return err
	}

	var cfg domain.RunConfig
	if f.Config != nil {
		cfg = *f.Config
	}
	applyIntervalFlags(cmd, &cfg)

	resp, err := client.New(serverURL, timeout).Start(cmd.Context(), client.StartRequest{
		Items:  f.Items,
		Config: cfg,
	})
	if err != nil {
		return err
	}

	return render(cmd.OutOrStdout(), resp)
}

func applyIntervalFlags(cmd *cobra.Command, cfg *domain.RunConfig) {
	flags := cmd.Flags()
	if flags.Changed("mode") {
		cfg.IntervalMode = domain.IntervalMode(intervalMode)
	}
	if flags.Changed("fixed") {
		cfg.FixedSeconds = fixedSeconds
	}
	if flags.Changed("min") {
		cfg.MinSeconds = minSeconds
	}
	if flags.Changed("max") {
		cfg.MaxSeconds = maxSeconds
	}
}

func runStop(cmd *cobra.Command, args []string) error {
	accepted, err := client.New(serverURL, timeout).Stop(cmd.Context())
	if err != nil {
		return err
	}
	if !accepted {
		fmt.Fprintln(cmd.OutOrStdout(), "no active run")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), "stop requested")
	return nil
}

func runState(cmd *cobra.Command, args []string) error {
	c := client.New(serverURL, timeout)

	if watchEvery <= 0 {
		st, err := c.State(cmd.Context(), withItems)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), st)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	ticker := time.NewTicker(watchEvery)
	defer ticker.Stop()

	for {
		st, err := c.State(ctx, withItems)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %-9s %d/%d  %s\n",
			time.Now().Format(time.TimeOnly), st.Status, st.CurrentIndex, st.TotalItems, describe(st))
		if !st.Status.IsActive() {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func describe(st *domain.JobState) string {
	switch {
	case st.Status == domain.JobStatusWaiting:
		return fmt.Sprintf("next item in %ds", st.RemainingWaitSeconds)
	case st.LastError != "":
		return st.LastError
	case st.Status.IsTerminal() && st.FinishedAt != nil:
		return "finished at " + st.FinishedAt.Format(time.TimeOnly)
	default:
		return st.CurrentAction
	}
}

func render(w io.Writer, v interface{}) error {
	switch output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		// round-trip through JSON so keys keep their API names
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var doc interface{}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(doc)
	default:
		return fmt.Errorf("unsupported output format: %s", output)
	}
}
