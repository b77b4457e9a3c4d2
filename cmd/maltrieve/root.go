package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/maltrieve/internal/config"
	"github.com/JakeFAU/maltrieve/internal/logging"
)

// newRootCmd creates the maltrieve command. Positional arguments are extra
// URLs harvested ahead of the feeds.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "maltrieve [urls...]",
		Short: "Retrieve malware samples from public URL feeds.",
		Long: `maltrieve pulls candidate malware URLs from public feeds, downloads each one
it has not seen before, stores samples by MD5 and optionally forwards them to
VxCage and Cuckoo for analysis.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(logging.Config{
				Development: cfg.Logging.Development,
				File:        cfg.Logging.File,
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer func() {
				// stderr sync fails with EINVAL on some terminals
				_ = logger.Sync()
			}()
			zap.ReplaceGlobals(logger)

			err = run(cmd.Context(), cfg, args, logger)
			if errors.Is(err, context.Canceled) {
				logger.Warn("harvest interrupted, state not saved")
			}
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "path to a YAML config file")
	flags.StringP("proxy", "p", "", "HTTP proxy as host:port or URL")
	flags.StringP("dumpdir", "d", config.DefaultDumpDir, "directory to store samples in")
	flags.StringP("logfile", "l", "", "write logs to this file instead of stderr")
	flags.BoolP("vxcage", "x", false, "submit samples to VxCage")
	flags.BoolP("cuckoo", "c", false, "submit samples to Cuckoo")
	flags.Int("workers", 5, "number of concurrent fetch workers")
	cmd.SetErr(os.Stderr)

	return cmd
}
