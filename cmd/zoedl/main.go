// Command zoedl is the CLI front-end for the zoedl resumable downloader,
// forwarding flags into the zoedl package via a cobra subcommand tree
// (download/resume/generate-config), since its surface — resume-by-
// restart, hash kinds, bandwidth floor and ceiling — doesn't fit
// comfortably on one flat flag set.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zoedl/zoedl"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "zoedl",
		Short:         "Resumable, multi-connection HTTP(S)/file:// downloader",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newDownloadCmd())
	root.AddCommand(newResumeCmd())
	root.AddCommand(newGenerateConfigCmd())
	return root
}

func newDownloadCmd() *cobra.Command {
	var (
		out       string
		threads   int
		maxSpeed  string
		minSpeed  string
		quiet     bool
		noResume  bool
		hashKind  string
		hashValue string
	)

	cmd := &cobra.Command{
		Use:   "download <url>",
		Short: "Download a URL, resuming an existing .zoe.tmp/.zoe.idx pair unless --no-resume",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := args[0]
			target := out
			if target == "" {
				target = filepath.Base(url)
			}

			rc := loadRCConfig()
			cfg, err := buildConfig(rc, threads, maxSpeed, minSpeed, hashKind, hashValue)
			if err != nil {
				return err
			}
			if noResume {
				os.Remove(target + ".zoe.tmp")
				os.Remove(target + ".zoe.idx")
			}

			return runDownload(cmd.Context(), url, target, cfg, quiet)
		},
	}

	cmd.Flags().StringVarP(&out, "output", "o", "", "target file path (default: basename of the URL)")
	cmd.Flags().IntVarP(&threads, "threads", "t", 0, "max concurrent slice workers (0 = ~/.zoedlrc or default)")
	cmd.Flags().StringVar(&maxSpeed, "max-speed", "", "bandwidth ceiling (e.g. 1M, 500K)")
	cmd.Flags().StringVar(&minSpeed, "min-speed", "", "bandwidth floor before the transfer is aborted (e.g. 50K)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress output")
	cmd.Flags().BoolVar(&noResume, "no-resume", false, "discard any existing .zoe.tmp/.zoe.idx before starting")
	cmd.Flags().StringVar(&hashKind, "hash-kind", "sha256", "hash algorithm: md5, crc32, sha256")
	cmd.Flags().StringVar(&hashValue, "hash", "", "expected digest to verify against, in the algorithm named by --hash-kind")

	return cmd
}

// newResumeCmd re-invokes the same download path against an existing
// target; zoedl's resume model is "restart the process against the same
// target path", so resume is just download's idempotent re-entry rather
// than a distinct code path.
func newResumeCmd() *cobra.Command {
	dl := newDownloadCmd()
	dl.Use = "resume <url>"
	dl.Short = "Resume a previously interrupted download (alias for download without --no-resume)"
	return dl
}

func newGenerateConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate-config",
		Short: "Print a starter ~/.zoedlrc to stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(`# zoedl configuration — copy to ~/.zoedlrc
thread_num = 8
fetch_info_retries = 1
max_speed =
min_speed =
min_speed_duration_s = 10
disk_cache_bytes = 20971520
proxy =
cookie_list =
# header = X-Api-Key: replace-me`)
			return nil
		},
	}
}

func runDownload(ctx context.Context, url, target string, cfg zoedl.Config, quiet bool) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	d := zoedl.New()
	bar := newBarProgress(filepath.Base(target))

	cb := zoedl.Callbacks{
		OnProgress: bar.onProgress,
		OnSpeed:    bar.onSpeed,
		Verbose:    func(line string) { printVerbose(quiet, "%s", line) },
	}

	printVerbose(quiet, "downloading %s -> %s (width=%d)", url, target, terminalWidth())

	if err := d.Start(url, target, cfg, cb); err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		_ = d.Stop()
	}()

	result := d.Wait()
	bar.finish()

	switch result {
	case zoedl.ResultSuccess:
		fmt.Println("Download completed:", target)
		return nil
	case zoedl.ResultCanceled:
		return fmt.Errorf("download canceled")
	case zoedl.ResultNotClearlyResult:
		fmt.Fprintln(os.Stderr, "warning: content length unknown and no hash configured; cannot confirm completeness")
		return nil
	default:
		return fmt.Errorf("download failed: %s", result)
	}
}
