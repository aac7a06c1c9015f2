package main

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/labsync/pkg/telegram"
)

var webhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Manage the Telegram bot webhook",
}

var webhookSetCmd = &cobra.Command{
	Use:   "set [url]",
	Short: "Point the bot webhook at url (default telegram.webhook_url)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("telegram"); err != nil {
			return err
		}
		raw := cfg.Telegram.WebhookURL
		if len(args) == 1 {
			raw = args[0]
		}
		target, err := telegram.ResolveWebhookURL(raw)
		if err != nil {
			return err
		}
		if err := newTelegramClient().SetWebhook(cmd.Context(), target); err != nil {
			return eris.Wrap(err, "webhook set")
		}
		fmt.Fprintf(os.Stdout, "webhook set to %s\n", target)
		return nil
	},
}

var webhookInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the current webhook state",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("telegram"); err != nil {
			return err
		}
		info, err := newTelegramClient().GetWebhookInfo(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "webhook info")
		}
		writeWebhookInfo(os.Stdout, info)
		return nil
	},
}

func newTelegramClient() telegram.Client {
	var opts []telegram.Option
	if cfg.Telegram.BaseURL != "" {
		opts = append(opts, telegram.WithBaseURL(cfg.Telegram.BaseURL))
	}
	return telegram.NewClient(cfg.Telegram.BotToken, opts...)
}

func writeWebhookInfo(w io.Writer, info *telegram.WebhookInfo) {
	tw := newTable(w)
	url := info.URL
	if url == "" {
		url = "(not set)"
	}
	tw.AppendRow(table.Row{"URL", url})
	tw.AppendRow(table.Row{"Pending updates", info.PendingUpdateCount})
	if at, ok := info.LastError(); ok {
		tw.AppendRow(table.Row{"Last error", fmt.Sprintf("%s (%s)", info.LastErrorMessage, shortTime(at))})
	}
	tw.Render()
}

func init() {
	webhookCmd.AddCommand(webhookSetCmd, webhookInfoCmd)
	rootCmd.AddCommand(webhookCmd)
}
