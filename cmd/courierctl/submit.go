package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/courier"
	"github.com/user/courier/internal/engine"
	"github.com/user/courier/internal/observability"
	"github.com/user/courier/pkg/blob"
)

// Exit codes of the submit command.
const (
	exitHard  = 0
	exitTotal = 1
	exitSoft  = 2
)

var (
	submitFields courier.Fields
	submitFile   string
	submitQuiet  bool
)

func init() {
	f := submitCmd.Flags()
	f.StringVar(&submitFields.Username, "username", "", "form username")
	f.StringVar(&submitFields.Email, "email", "", "form email")
	f.StringVar(&submitFields.PhoneCountryCode, "phone-code", "", "phone country code")
	f.StringVar(&submitFields.PhoneNumber, "phone", "", "phone number")
	f.StringVar(&submitFile, "file", "", "file to upload")
	f.BoolVarP(&submitQuiet, "quiet", "q", false, "do not print progress")
	rootCmd.AddCommand(submitCmd)
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit the form and file through the configured channels",
	Long: `Tries every configured channel in order until one succeeds and prints the result as JSON.

Exit status is 0 when the file reached a remote party, 2 when only a local copy
or a notification succeeded, and 1 when the submission failed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		shutdown, err := observability.InitOTLP(ctx, cfg.Telemetry, version)
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				logger.Warn("Telemetry shutdown failed", "error", err)
			}
		}()

		o, reg, err := engine.NewOrchestrator(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer reg.Close()

		if !submitQuiet {
			o.OnProgress(progressPrinter(cmd.ErrOrStderr()))
		}

		var file courier.Blob
		if submitFile != "" {
			fb, err := blob.FromFile(submitFile)
			if err != nil {
				return err
			}
			file = fb
		}

		res := o.Submit(ctx, submitFields, file)
		if !submitQuiet {
			fmt.Fprintln(cmd.ErrOrStderr())
			fmt.Fprintln(cmd.ErrOrStderr(), res.Message())
		}
		if err := writeResult(cmd.OutOrStdout(), res); err != nil {
			return err
		}
		return exitFor(res)
	},
}

func progressPrinter(w io.Writer) func(int) {
	return func(percent int) {
		fmt.Fprintf(w, "\rUploading... %3d%%", percent)
	}
}

type resultView struct {
	*courier.Result
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

func writeResult(w io.Writer, res *courier.Result) error {
	view := resultView{Result: res, Message: res.Message()}
	if res.Err != nil {
		view.Error = res.Err.Error()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}

func exitFor(res *courier.Result) error {
	switch res.Kind {
	case courier.HardSuccess:
		return nil
	case courier.SoftSuccess:
		return &exitError{code: exitSoft}
	default:
		return &exitError{code: exitTotal}
	}
}
