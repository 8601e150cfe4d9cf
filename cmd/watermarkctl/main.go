package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/wmremover/internal/app"
	"github.com/yokitheyo/wmremover/internal/config"
	"github.com/yokitheyo/wmremover/internal/domain"
	"github.com/yokitheyo/wmremover/internal/dto"
)

// CLI flags
var (
	configFlag  string
	galleryFlag string
	sessionFlag string
)

var rootCmd = &cobra.Command{
	Use:   "watermarkctl",
	Short: "Run watermark removal batches from the command line",
	Long: `watermarkctl uses the same configuration as the API server and runs the
pipeline in-process.

Examples:
  watermarkctl extract https://jane.pixieset.com/wedding/
  watermarkctl test-provider
  watermarkctl process photo1.jpg photo2.png
  watermarkctl process --gallery https://jane.pixieset.com/wedding/`,
	SilenceUsage: true,
}

var extractCmd = &cobra.Command{
	Use:   "extract <gallery-url>",
	Short: "List the images of a public gallery",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			images, err := a.Usecase.ExtractGallery(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(images)
		})
	},
}

var testProviderCmd = &cobra.Command{
	Use:   "test-provider",
	Short: "Check the configured provider credentials",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			status := a.Usecase.Status()
			if err := a.Usecase.TestProvider(ctx); err != nil {
				return fmt.Errorf("provider %s: %w", status.Provider, err)
			}
			fmt.Printf("provider %s: connection ok (demo mode: %t)\n", status.Provider, status.DemoMode)
			return nil
		})
	},
}

var processCmd = &cobra.Command{
	Use:   "process [files...]",
	Short: "Remove watermarks from local files and/or a gallery",
	RunE: func(cmd *cobra.Command, args []string) error {
		uploads := make([]domain.Upload, 0, len(args))
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			uploads = append(uploads, domain.Upload{Filename: filepath.Base(path), Data: data})
		}

		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			resp, err := a.Usecase.Process(ctx, domain.ProcessRequest{
				SessionID:  sessionFlag,
				GalleryURL: galleryFlag,
				Uploads:    uploads,
			})
			if err != nil {
				return err
			}
			return printJSON(dto.MapProcessResponse(resp))
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Path to config.yaml (default: ./config.yaml or /app/config.yaml)")
	processCmd.Flags().StringVarP(&galleryFlag, "gallery", "g", "", "Gallery URL to scrape")
	processCmd.Flags().StringVar(&sessionFlag, "session", "", "Session id (generated when empty)")

	rootCmd.AddCommand(extractCmd, testProviderCmd, processCmd)
}

func main() {
	zlog.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return err
	}
	app.SetLogLevel(cfg.Logging.Level)

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			zlog.Logger.Error().Err(err).Msg("closing application resources failed")
		}
	}()

	return fn(ctx, a)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
