package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dshills/scribe/internal/cache"
	"github.com/dshills/scribe/internal/checkpoint"
	"github.com/dshills/scribe/internal/config"
	"github.com/dshills/scribe/internal/ledger"
	"github.com/dshills/scribe/internal/logging"
	"github.com/dshills/scribe/internal/markup"
	"github.com/dshills/scribe/internal/output"
	"github.com/dshills/scribe/internal/pipeline"
	"github.com/dshills/scribe/internal/redact"
	"github.com/dshills/scribe/internal/site"
)

// Pipeline flags, shared by run and resume.
var (
	flagInbox           string
	flagBatchSize       int
	flagConcurrency     int
	flagSkip            string
	flagKeepCheckpoints bool
	flagTestLocal       bool
	flagDeploy          bool
	flagFormat          string
	flagOut             string
	flagFrom            string
	flagFailOn          string
	flagRules           string
)

func addPipelineFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&flagInbox, "inbox", "", "Inbox directory to read drafts from")
	f.IntVar(&flagBatchSize, "batch-size", 0, "Documents per checkpoint batch")
	f.IntVar(&flagConcurrency, "concurrency", 0, "Records of a batch processed in parallel; batches run one after another")
	f.StringVar(&flagSkip, "skip", "", "Optional stages to skip (comma-separated: optimize, enhance, review, privacy)")
	f.BoolVar(&flagKeepCheckpoints, "keep-checkpoints", false, "Keep intermediate checkpoints after a successful run")
	f.BoolVar(&flagTestLocal, "test-local", false, "Start a local site preview after publishing")
	f.BoolVar(&flagDeploy, "deploy", false, "Generate and deploy the site after publishing")
	f.StringVar(&flagFormat, "format", "", "Report format (text, json, markdown, sarif)")
	f.StringVar(&flagOut, "out", "", "Report file path (default: stdout)")
	f.StringVar(&flagRules, "rules", "", "Redaction rules file")
	f.StringVar(&flagFailOn, "fail-on", "", "Exit 1 if any redaction meets this severity (none, low, medium, high, critical)")
}

func buildOverrides() map[string]string {
	m := make(map[string]string)
	if flagInbox != "" {
		m["inboxDir"] = flagInbox
	}
	if flagBatchSize > 0 {
		m["batchSize"] = strconv.Itoa(flagBatchSize)
	}
	if flagConcurrency > 0 {
		m["concurrency"] = strconv.Itoa(flagConcurrency)
	}
	if flagSkip != "" {
		m["skipStages"] = flagSkip
	}
	if flagKeepCheckpoints {
		m["keepCheckpoints"] = "true"
	}
	if flagTestLocal {
		m["site.preview"] = "true"
	}
	if flagDeploy {
		m["site.deploy"] = "true"
	}
	if flagFormat != "" {
		m["format"] = flagFormat
	}
	if flagFailOn != "" {
		m["failOn"] = flagFailOn
	}
	if flagRules != "" {
		m["privacy.rulesFile"] = flagRules
	}
	if flagLogLevel != "" {
		m["logLevel"] = flagLogLevel
	}
	return m
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Publish every new document in the inbox",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd, func(ctx context.Context, p *pipeline.Pipeline) (*pipeline.Report, error) {
			return p.Run(ctx)
		})
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume --from <stage>",
	Short: "Continue the latest run from its checkpoints",
	Long: `Resume loads the newest run's checkpoints written by the given stage and
runs only the stages after it. Stage names are the checkpoint names:
read, optimized, enhanced, reviewed, privacy_checked, format_checked.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := checkpoint.ParseSuffix(flagFrom)
		if err != nil {
			return err
		}
		if from == checkpoint.SuffixPublished {
			return fmt.Errorf("nothing runs after %s", from.Stage())
		}
		return runPipeline(cmd, func(ctx context.Context, p *pipeline.Pipeline) (*pipeline.Report, error) {
			return p.Resume(ctx, from)
		})
	},
}

// runPipeline assembles a pipeline from the effective config, runs it with
// an interrupt-aware context and prints the report.
func runPipeline(cmd *cobra.Command, start func(context.Context, *pipeline.Pipeline) (*pipeline.Report, error)) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	p, closeFn, err := newPipeline(ctx, cfg, log)
	if err != nil {
		return fail(cmd, err)
	}
	defer closeFn()

	rep, err := start(ctx, p)
	if rep == nil {
		return fail(cmd, err)
	}
	if werr := writeRun(cmd, rep, cfg.Format); werr != nil {
		return fail(cmd, werr)
	}
	if err != nil {
		return fail(cmd, err)
	}
	// A run can also be failed on redactions that did not block it.
	if !rep.Success || rep.Privacy.Meets(cfg.FailOn) {
		exitCode = ExitFailure
	}
	return nil
}

func writeRun(cmd *cobra.Command, rep *pipeline.Report, format string) error {
	if flagOut != "" {
		return output.WriteRun(rep, format, flagOut)
	}
	wr, err := output.GetWriter(format)
	if err != nil {
		return err
	}
	return wr.WriteRun(cmd.OutOrStdout(), rep)
}

// newPipeline opens the stores a run needs. The returned func closes them.
func newPipeline(ctx context.Context, cfg config.Config, log *slog.Logger) (*pipeline.Pipeline, func(), error) {
	store, err := checkpoint.NewFileStore(cfg.CheckpointDir())
	if err != nil {
		return nil, nil, err
	}
	kw, err := loadKeywords(cfg)
	if err != nil {
		return nil, nil, err
	}
	sc, err := newScanner(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	led, err := ledger.OpenSQLite(ctx, cfg.LedgerFile())
	if err != nil {
		return nil, nil, fmt.Errorf("opening ledger: %w", err)
	}

	p := &pipeline.Pipeline{
		Config:   cfg,
		Store:    store,
		Ledger:   led,
		Scanner:  sc,
		Keywords: kw,
		Logger:   log,
	}
	if cfg.Site.Preview || cfg.Site.Deploy {
		p.Site = site.New(cfg.Site, logging.Component(log, "site"))
	}
	return p, func() {
		if err := led.Close(); err != nil {
			log.Warn("closing ledger", "error", err)
		}
	}, nil
}

func loadKeywords(cfg config.Config) (markup.Keywords, error) {
	if cfg.KeywordsFile == "" {
		return markup.DefaultKeywords(), nil
	}
	return markup.LoadKeywords(cfg.KeywordsFile)
}

// newScanner builds the redaction engine from the configured rules file,
// fronted by the result cache.
func newScanner(cfg config.Config, log *slog.Logger) (*cache.Scanner, error) {
	reg := redact.DefaultRegistry()
	if cfg.Privacy.RulesFile != "" {
		r, err := redact.LoadRules(cfg.Privacy.RulesFile)
		if err != nil {
			return nil, err
		}
		reg = r
	}
	c, err := cache.New(cfg.Cache.Enabled, cfg.Cache.Dir, cfg.Cache.TTLSeconds)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	return &cache.Scanner{
		Engine: redact.NewEngine(reg),
		Cache:  c,
		Logger: logging.Component(log, "cache"),
	}, nil
}

func init() {
	addPipelineFlags(runCmd)
	addPipelineFlags(resumeCmd)
	resumeCmd.Flags().StringVar(&flagFrom, "from", "", "Checkpoint stage to resume from")
	_ = resumeCmd.MarkFlagRequired("from")
}
