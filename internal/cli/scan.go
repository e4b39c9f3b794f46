package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/scribe/internal/output"
	"github.com/dshills/scribe/internal/report"
)

var scanCmd = &cobra.Command{
	Use:   "scan [file|-]",
	Short: "Redact one document and report what was found",
	Long: `Scan runs the privacy redaction rules over a single document. The
redacted text goes to stdout and the detections to stderr in the chosen
format. With --fail-on, the exit code is 1 when any detection is at or
above that severity.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}
	name, data, err := readInput(cmd, args)
	if err != nil {
		return fail(cmd, err)
	}
	sc, err := newScanner(cfg, log)
	if err != nil {
		return fail(cmd, err)
	}

	res := sc.Scan(cmd.Context(), "body", string(data))
	if _, err := io.WriteString(cmd.OutOrStdout(), res.Text); err != nil {
		return fail(cmd, err)
	}

	d := report.BuildDetections(nil, time.Now())
	d.TotalDocuments = 1
	if len(res.Detections) > 0 {
		d.Add(name, "", res.Detections)
	}
	if err := output.WriteDetections(cmd.ErrOrStderr(), d, cfg.Format); err != nil {
		return fail(cmd, err)
	}
	if d.Meets(cfg.FailOn) {
		exitCode = ExitFailure
	}
	return nil
}

// readInput reads the named file, or stdin for "-" or no argument.
func readInput(cmd *cobra.Command, args []string) (string, []byte, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", nil, fmt.Errorf("reading stdin: %w", err)
		}
		return "<stdin>", data, nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", nil, err
	}
	return args[0], data, nil
}

func init() {
	f := scanCmd.Flags()
	f.StringVar(&flagRules, "rules", "", "Redaction rules file")
	f.StringVar(&flagFormat, "format", "", "Detection report format (text, json, markdown, sarif)")
	f.StringVar(&flagFailOn, "fail-on", "", "Exit 1 if any detection meets this severity (none, low, medium, high, critical)")
}
