package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"imageshelf/internal/domain/events"
	"imageshelf/internal/gallery"
	"imageshelf/internal/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:          "gallery",
	Short:        "Terminal client for an imageshelf API",
	SilenceUsage: true,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Renders the image listing and keeps it fresh",
	Long: `Fetches one listing page and renders it. Transient failures are retried
with exponential backoff and only reported once the retry budget is spent.
SIGHUP starts a new fetch, as does every upload event when --follow is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		api, _ := flags.GetString("api")
		limit, _ := flags.GetInt("limit")
		offset, _ := flags.GetInt("offset")
		follow, _ := flags.GetBool("follow")
		maxRetries, _ := flags.GetInt("max-retries")
		timeout, _ := flags.GetDuration("timeout")
		level, _ := flags.GetString("log-level")

		zl, err := logger.New("dev", level)
		if err != nil {
			return err
		}
		defer func() { _ = zl.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return watch(ctx, cmd.OutOrStdout(), zl, watchOptions{
			api:        api,
			limit:      limit,
			offset:     offset,
			follow:     follow,
			maxRetries: maxRetries,
			timeout:    timeout,
		})
	},
}

type watchOptions struct {
	api        string
	limit      int
	offset     int
	follow     bool
	maxRetries int
	timeout    time.Duration
}

func watch(ctx context.Context, out io.Writer, log *zap.Logger, o watchOptions) error {
	var httpClient *http.Client
	if o.timeout > 0 {
		httpClient = &http.Client{Timeout: o.timeout}
	}
	client := gallery.NewClient(o.api, httpClient)

	fetcher := gallery.NewFetcher(client, gallery.Options{
		Limit:      o.limit,
		Offset:     o.offset,
		MaxRetries: o.maxRetries,
		OnChange:   func(s gallery.Snapshot) { render(out, s) },
	}, log.Named("fetcher"))
	defer fetcher.Close()

	fetcher.Refresh(ctx)

	if o.follow {
		watcher, err := gallery.NewWatcher(client.BaseURL(), log.Named("watcher"))
		if err != nil {
			return err
		}
		go func() {
			_ = watcher.Run(ctx, func(e events.Event) {
				if e.Type == events.TypeImageCreated {
					fetcher.Refresh(ctx)
				}
			})
		}()
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hup:
			log.Info("refresh requested")
			fetcher.Refresh(ctx)
		}
	}
}

func render(out io.Writer, s gallery.Snapshot) {
	switch s.State {
	case gallery.StateLoading:
		if s.Attempt > 0 {
			fmt.Fprintf(out, "loading... (retry %d)\n", s.Attempt)
		} else {
			fmt.Fprintln(out, "loading...")
		}
	case gallery.StateError:
		fmt.Fprintf(out, "could not load images: %s\n", s.Err)
	case gallery.StateSuccess:
		fmt.Fprintf(out, "%d images (showing %d)\n", s.Total, len(s.Items))
		for _, it := range s.Items {
			fmt.Fprintf(out, "  %s  %5dx%-5d %9d  %-24s %s\n",
				it.UploadedAt.Local().Format(time.DateTime), it.Width, it.Height, it.Size, it.OriginalName, it.URL)
		}
	}
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().String("api", "http://localhost:8080", "Base URL of the imageshelf API")
	watchCmd.Flags().Int("limit", 20, "Page size (1-100)")
	watchCmd.Flags().Int("offset", 0, "Number of images to skip")
	watchCmd.Flags().Bool("follow", false, "Refresh whenever an image is uploaded")
	watchCmd.Flags().Int("max-retries", gallery.DefaultMaxRetries, "Retries before an error is shown (0 disables retries)")
	watchCmd.Flags().Duration("timeout", 15*time.Second, "Per-request timeout")
	watchCmd.Flags().String("log-level", "warn", "Log level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
