package app

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hitoshi/slotkeeper/internal/snapshot"
)

// NewRootCommand はslotkeeperのCLIを構築する。
// サブコマンドを省略した場合はserveとして起動する。ログはlogOutに出力する。
func NewRootCommand(logOut io.Writer) *cobra.Command {
	serve := newServeCommand(logOut)

	root := &cobra.Command{
		Use:   "slotkeeper",
		Short: "Shared streaming account slot tracker",
		Long: `slotkeeper tracks shared streaming-service accounts and the clients
assigned to their numbered profile slots.

Without a subcommand it starts the API server.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}

	root.AddCommand(
		serve,
		newWorkerCommand(logOut),
		newMigrateCommand(logOut),
		newHealthcheckCommand(),
		newExportCommand(logOut),
		newImportCommand(logOut),
	)
	return root
}

func newServeCommand(logOut io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := Init(logOut)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

func newWorkerCommand(logOut io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the periodic expiry scan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := Init(logOut)
			if err != nil {
				return err
			}
			return runWorker(cmd.Context(), cfg)
		},
	}
}

func newMigrateCommand(logOut io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := Init(logOut)
			if err != nil {
				return err
			}
			return runMigrate(cfg)
		},
	}
}

// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
func newHealthcheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "healthcheck",
		Short: "Probe the local /health endpoint",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			port := os.Getenv("SERVER_PORT")
			if port == "" {
				port = "4000"
			}
			return runHealthcheck(port)
		},
	}
}

func newExportCommand(logOut io.Writer) *cobra.Command {
	var format, out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write all platforms and subscriptions as JSON or YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := snapshot.ParseFormat(format)
			if err != nil {
				return err
			}
			cfg, err := Init(logOut)
			if err != nil {
				return err
			}
			return runExport(cmd.Context(), cfg, f, out, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&format, "format", string(snapshot.FormatJSON), "output format (json|yaml)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

func newImportCommand(logOut io.Writer) *cobra.Command {
	var format, in string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace all platforms and subscriptions from a JSON or YAML document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format == "" {
				format = formatFromPath(in)
			}
			f, err := snapshot.ParseFormat(format)
			if err != nil {
				return err
			}
			cfg, err := Init(logOut)
			if err != nil {
				return err
			}
			return runImport(cmd.Context(), cfg, f, in)
		},
	}

	cmd.Flags().StringVarP(&in, "in", "i", "", "input file")
	cmd.Flags().StringVar(&format, "format", "", "input format (json|yaml); inferred from the file extension when omitted")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}

// formatFromPath はファイルの拡張子から文書形式を推定する。
func formatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return string(snapshot.FormatYAML)
	default:
		return string(snapshot.FormatJSON)
	}
}
