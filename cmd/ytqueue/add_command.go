package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ytqueue/internal/api"
	"ytqueue/internal/ipc"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var (
		req              api.AddRequest
		playlistLimit    int
		noAutoStart      bool
		splitChapters    bool
		chapterTemplate  string
		subtitleFormat   string
		subtitleLanguage string
		subtitleMode     string
	)

	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Queue a video, playlist or channel for download",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.URL = strings.TrimSpace(args[0])
			flags := cmd.Flags()
			if flags.Changed("playlist-limit") {
				req.PlaylistItemLimit = &playlistLimit
			}
			if flags.Changed("no-auto-start") {
				autoStart := !noAutoStart
				req.AutoStart = &autoStart
			}
			if flags.Changed("split-chapters") {
				req.SplitByChapters = &splitChapters
			}
			if flags.Changed("chapter-template") {
				req.ChapterTemplate = &chapterTemplate
			}
			if flags.Changed("subtitle-format") {
				req.SubtitleFormat = &subtitleFormat
			}
			if flags.Changed("subtitle-language") {
				req.SubtitleLanguage = &subtitleLanguage
			}
			if flags.Changed("subtitle-mode") {
				req.SubtitleMode = &subtitleMode
			}

			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Add(req)
				if err != nil {
					return err
				}
				return printAck(cmd, resp, "Queued "+req.URL)
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&req.Quality, "quality", "q", "best", "Quality selector (best, worst, audio, or a height such as 1080)")
	flags.StringVarP(&req.Format, "format", "f", "", "Output format (any, mp4, m4a, mp3, opus, wav, flac, thumbnail, captions)")
	flags.StringVar(&req.Folder, "folder", "", "Subfolder of the download directory")
	flags.StringVar(&req.CustomNamePrefix, "prefix", "", "Prefix for output file names")
	flags.IntVar(&playlistLimit, "playlist-limit", 0, "Maximum playlist entries to queue (0 for all)")
	flags.BoolVar(&noAutoStart, "no-auto-start", false, "Park the job in the pending table instead of starting it")
	flags.BoolVar(&splitChapters, "split-chapters", false, "Split the download into one file per chapter")
	flags.StringVar(&chapterTemplate, "chapter-template", "", "Output template for chapter files")
	flags.StringVar(&subtitleFormat, "subtitle-format", "", "Subtitle output format for captions downloads")
	flags.StringVar(&subtitleLanguage, "subtitle-language", "", "Subtitle language code")
	flags.StringVar(&subtitleMode, "subtitle-mode", "", "Subtitle source preference (auto_only, manual_only, prefer_manual, prefer_auto)")
	return cmd
}

// printAck prints an engine acknowledgement. Error statuses become command
// errors so the exit code reflects them.
func printAck(cmd *cobra.Command, resp *ipc.AckResponse, success string) error {
	if resp == nil {
		return fmt.Errorf("empty response from daemon")
	}
	if resp.Status == api.StatusError {
		return fmt.Errorf("%s", resp.Msg)
	}
	fmt.Fprintln(cmd.OutOrStdout(), success)
	return nil
}
