package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"sitecraft/internal/feed"
)

var (
	configPath string

	syncOpts  feed.SyncOptions
	listMax   int
	initOut   string
	initForce bool
)

var rootCmd = &cobra.Command{
	Use:          "feedctl",
	Short:        "Video catalog to Roku feed tool",
	Long:         `Builds a Roku Direct Publisher feed from a Vimeo catalog, validates feed files and publishes them to S3.`,
	SilenceUsage: true,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch videos and write the feed",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()

		mgr, err := feed.NewSyncManagerFromConfig(ctx, cfg)
		if err != nil {
			return err
		}
		mgr.OnProgress = func(done, total int) {
			fmt.Fprintf(os.Stderr, "\rprocessing %d/%d", done, total)
			if done == total {
				fmt.Fprintln(os.Stderr)
			}
		}

		res, err := mgr.Sync(ctx, syncOpts)
		if err != nil {
			return err
		}

		fmt.Println("Sync completed")
		fmt.Printf("  Processed: %d\n", res.Processed)
		fmt.Printf("  Added:     %d\n", res.Added)
		fmt.Printf("  Skipped:   %d\n", res.Skipped)
		fmt.Printf("  Failed:    %d\n", res.Failed)
		fmt.Printf("  Feed:      %s\n", res.FeedPath)
		if res.FeedURL != "" {
			fmt.Printf("  URL:       %s\n", res.FeedURL)
		}
		fmt.Printf("  Took:      %s\n", res.Duration.Round(time.Millisecond))
		for _, e := range res.Errors {
			fmt.Printf("  ! %s\n", e)
		}
		if res.Failed > 0 {
			return fmt.Errorf("%d video(s) failed", res.Failed)
		}
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <feed.json>",
	Short: "Check a feed file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		summary, problems, err := feed.ValidateFile(data)
		if err != nil {
			return err
		}

		fmt.Printf("Provider:     %s\n", summary.ProviderName)
		fmt.Printf("Last updated: %s\n", summary.LastUpdated)
		fmt.Printf("Short-form:   %d\n", summary.ShortFormVideos)
		fmt.Printf("Movies:       %d\n", summary.Movies)
		fmt.Printf("Series:       %d\n", summary.Series)
		fmt.Printf("TV specials:  %d\n", summary.TVSpecials)
		if len(problems) == 0 {
			fmt.Println("Feed is valid")
			return nil
		}
		for _, p := range problems {
			fmt.Printf("  - %s\n", p)
		}
		return fmt.Errorf("feed has %d problem(s)", len(problems))
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List videos in the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client, err := feed.NewVimeoClient(cfg.Vimeo)
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()

		videos, err := client.AllVideos(ctx, listMax)
		if err != nil {
			return err
		}
		for _, v := range videos {
			fmt.Printf("%-12s %6s  %s\n", v.ID, formatDuration(v.Duration), v.Title)
		}
		fmt.Printf("%d video(s)\n", len(videos))
		return nil
	},
}

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Check the configuration and the Vimeo connection",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if problems := cfg.Validate(); len(problems) > 0 {
			return errors.New("invalid configuration: " + strings.Join(problems, "; "))
		}
		client, err := feed.NewVimeoClient(cfg.Vimeo)
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()

		user, err := client.GetUser(ctx, "")
		if err != nil {
			return fmt.Errorf("vimeo connection failed: %w", err)
		}
		fmt.Printf("Connected as %s (%s account, %d videos)\n", user.Name, user.Account, user.VideoCount)
		if cfg.Roku.S3Bucket != "" {
			fmt.Printf("Feed uploads go to s3://%s\n", cfg.Roku.S3Bucket)
		}
		return nil
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a sample configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(initOut); err == nil && !initForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", initOut)
		}
		if err := os.WriteFile(initOut, []byte(feed.SampleConfig), 0o600); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", initOut)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (default: environment only)")

	syncCmd.Flags().StringVar(&syncOpts.AlbumID, "album", "", "sync a single album/showcase")
	syncCmd.Flags().StringVar(&syncOpts.FolderID, "folder", "", "sync a single folder")
	syncCmd.Flags().BoolVar(&syncOpts.Incremental, "incremental", false, "only videos modified since the last sync")
	syncCmd.Flags().BoolVar(&syncOpts.Upload, "upload", false, "upload the feed to S3")
	syncCmd.Flags().BoolVar(&syncOpts.Notify, "notify", false, "POST the feed URL to the webhook")
	syncCmd.Flags().StringVarP(&syncOpts.OutputPath, "output", "o", "", "feed output path")
	syncCmd.Flags().IntVar(&syncOpts.Limit, "limit", 0, "maximum number of videos")

	listCmd.Flags().IntVar(&listMax, "limit", 10, "maximum number of videos")

	initCmd.Flags().StringVarP(&initOut, "output", "o", "feed_config.yaml", "where to write the config")
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing file")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(initCmd)
}

func loadConfig() (*feed.Config, error) {
	return feed.LoadConfig(configPath)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func formatDuration(seconds int) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
