// Command leadctl is an operator tool for the lead relay: it classifies
// campaign links, previews the chat message for a submission, and submits
// test leads through the same form controller the site uses.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/patrickwarner/leadrelay/internal/analytics"
	"github.com/patrickwarner/leadrelay/internal/attribution"
	"github.com/patrickwarner/leadrelay/internal/config"
	"github.com/patrickwarner/leadrelay/internal/contactform"
	"github.com/patrickwarner/leadrelay/internal/models"
	"github.com/patrickwarner/leadrelay/internal/observability"
	"github.com/patrickwarner/leadrelay/internal/relay"
	"github.com/patrickwarner/leadrelay/internal/validation"
)

type visitFlags struct {
	url            string
	referrer       string
	userAgent      string
	acceptLanguage string
}

func (v *visitFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&v.url, "url", "", "landing page URL with campaign parameters")
	cmd.Flags().StringVar(&v.referrer, "referrer", "", "document referrer (empty means direct)")
	cmd.Flags().StringVar(&v.userAgent, "user-agent", "", "browser User-Agent")
	cmd.Flags().StringVar(&v.acceptLanguage, "accept-language", "", "Accept-Language header")
}

func (v *visitFlags) snapshot() models.AttributionSnapshot {
	return attribution.Collect(attribution.Input{
		CurrentURL: v.url,
		Referrer:   v.referrer,
		UserAgent:  v.userAgent,
		Languages:  attribution.ParseAcceptLanguage(v.acceptLanguage),
	})
}

func newRootCmd(logger *zap.Logger, cfg config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "leadctl",
		Short:         "Inspect and exercise the lead relay",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newClassifyCmd(),
		newPreviewCmd(cfg),
		newSubmitCmd(logger),
	)
	return root
}

func newClassifyCmd() *cobra.Command {
	var visit visitFlags
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Print the attribution snapshot for a page view",
		Example: `  leadctl classify --url "https://sportstreamhd.com/?utm_source=baidu&utm_medium=cpc" \
    --referrer "https://www.baidu.com/s?wd=体育直播"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap := visit.snapshot()
			out := cmd.OutOrStdout()
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(snap); err != nil {
				return err
			}
			if line := relay.ChannelLine(&snap); line != "" {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out, relay.DeviceLine(snap.Device))
			return nil
		},
	}
	visit.register(cmd)
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func newPreviewCmd(cfg config.Config) *cobra.Command {
	var file, clientIP string
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Validate a submission JSON and print the chat message",
		Long:  "Reads a contact submission from --file, or stdin when omitted, and renders the markdown message the relay would send.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if file != "" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			raw, err := io.ReadAll(r)
			if err != nil {
				return fmt.Errorf("read submission: %w", err)
			}
			sub, err := models.DecodeSubmission(raw)
			if err != nil {
				return err
			}
			if err := validation.Submission(sub); err != nil {
				return fmt.Errorf("invalid submission: %s", validation.Message(err))
			}

			catalog := relay.DefaultCatalog()
			if cfg.LabelsFile != "" {
				if catalog, err = relay.LoadCatalog(cfg.LabelsFile); err != nil {
					return err
				}
			}
			msg, err := relay.NewFormatter(catalog, nil, cfg.Timezone, cfg.SiteName).Format(sub, clientIP)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg.Title)
			fmt.Fprintln(cmd.OutOrStdout())
			fmt.Fprintln(cmd.OutOrStdout(), msg.Text)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "submission JSON file")
	cmd.Flags().StringVar(&clientIP, "ip", relay.UnknownIP, "client IP to show")
	return cmd
}

func newSubmitCmd(logger *zap.Logger) *cobra.Command {
	var (
		endpoint, email, contact, useCase string
		streamerType, platform, reqs      string
		sports                            []string
		timeout                           time.Duration
		visit                             visitFlags
	)
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a simple contact form lead to a running relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			tracker := analytics.NewAsyncTracker(analytics.LogTracker{Logger: logger}, time.Second, logger, nil)
			defer tracker.Wait()

			var source contactform.AttributionSource
			if visit.url != "" {
				source = contactform.AttributionFunc(func(context.Context) *models.AttributionSnapshot {
					snap := visit.snapshot()
					return &snap
				})
			}
			c := contactform.New(endpoint, &http.Client{Timeout: timeout}, tracker, source, logger)

			fields := []struct {
				field contactform.Field
				value string
			}{
				{contactform.FieldEmail, email},
				{contactform.FieldContactMethod, contact},
				{contactform.FieldUseCase, useCase},
				{contactform.FieldStreamerType, streamerType},
				{contactform.FieldPlatformInfo, platform},
				{contactform.FieldRequirements, reqs},
			}
			for _, f := range fields {
				if f.value == "" {
					continue
				}
				if err := c.Set(f.field, f.value); err != nil {
					return err
				}
			}
			if err := c.SetSports(sports); err != nil {
				return err
			}

			resp, err := c.Submit(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", c.State(), c.Outcome())
			if !resp.Success {
				return fmt.Errorf("relay refused the lead")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&endpoint, "endpoint", "http://localhost:8787/api/contact", "relay endpoint")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&contact, "contact", "", "Telegram @handle or QQ number")
	cmd.Flags().StringSliceVar(&sports, "sports", nil, "sports of interest (comma separated)")
	cmd.Flags().StringVar(&useCase, "use-case", "", "website_app, obs_streaming or both_scenarios")
	cmd.Flags().StringVar(&streamerType, "streamer-type", "", "team or individual (obs_streaming only)")
	cmd.Flags().StringVar(&platform, "platform", "", "platform info (website_app and both_scenarios only)")
	cmd.Flags().StringVar(&reqs, "requirements", "", "free-form requirements")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "HTTP timeout")
	visit.register(cmd)
	return cmd
}

func main() {
	cfg := config.Load()

	logger, err := observability.InitLoggerWithLevel(zap.WarnLevel, "leadctl")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := newRootCmd(logger, cfg).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
