package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/ashureev/fleetscan/internal/client"
	"github.com/ashureev/fleetscan/internal/workflow"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type options struct {
	backendURL string
	timeout    time.Duration
	verbose    bool
}

// result is what each command prints.
type result struct {
	Outcome string                    `json:"outcome"`
	Message string                    `json:"message,omitempty"`
	Error   string                    `json:"error,omitempty"`
	Form    map[workflow.Field]string `json:"form"`
}

func newRootCmd(out io.Writer) *cobra.Command {
	_ = godotenv.Load()

	opts := &options{}
	rootCmd := &cobra.Command{
		Use:          "fleetscan",
		Short:        "Scan vehicle QR codes and look up checklists against a fleetscan backend",
		SilenceUsage: true,
	}

	defaultBackend := os.Getenv("BACKEND_URL")
	if defaultBackend == "" {
		defaultBackend = "http://127.0.0.1:8080"
	}
	rootCmd.PersistentFlags().StringVar(&opts.backendURL, "backend", defaultBackend, "backend base URL")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "per-request timeout")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log flow steps to stderr")

	rootCmd.AddCommand(newScanCmd(opts, out))
	rootCmd.AddCommand(newLookupCmd(opts, out))
	return rootCmd
}

func newScanCmd(opts *options, out io.Writer) *cobra.Command {
	var imagePath string
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Decode a QR code from an image file and load its maintenance record",
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, logger, err := opts.backend()
			if err != nil {
				return err
			}

			form := workflow.NewFormState(nil)
			orch := workflow.NewScanOrchestrator(workflow.FileFrames{Path: imagePath}, backend, backend, form, logger)
			session, err := orch.RunScan(cmd.Context())
			if err != nil {
				return err
			}

			res := result{Outcome: string(session.Outcome), Message: session.Message, Form: form.Snapshot()}
			if session.Err != nil {
				res.Error = session.Err.Error()
			}
			if err := writeJSON(out, res); err != nil {
				return err
			}
			if session.Err != nil {
				return fmt.Errorf("scan %s: %w", session.Outcome, session.Err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&imagePath, "image", "", "PNG or JPEG image to scan")
	_ = cmd.MarkFlagRequired("image")
	return cmd
}

func newLookupCmd(opts *options, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <car-number>",
		Short: "Load the checklist of a car",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, logger, err := opts.backend()
			if err != nil {
				return err
			}

			form := workflow.NewFormState(nil)
			orch := workflow.NewLookupOrchestrator(backend, form, logger)
			session, err := orch.OnIdentifierChanged(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			res := result{Outcome: string(session.Outcome), Message: session.Reason, Form: form.Snapshot()}
			if session.Err != nil {
				res.Error = session.Err.Error()
			}
			if err := writeJSON(out, res); err != nil {
				return err
			}
			if session.Err != nil {
				return fmt.Errorf("lookup %s: %w", session.Outcome, session.Err)
			}
			return nil
		},
	}
}

func (o *options) backend() (*client.Backend, *slog.Logger, error) {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	backend, err := client.New(client.Config{
		BaseURL:        o.backendURL,
		RequestTimeout: o.timeout,
		Logger:         logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("error initializing backend client: %w", err)
	}
	return backend, logger, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
