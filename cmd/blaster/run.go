package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"wa-blaster/database"
	"wa-blaster/internal/browser"
	"wa-blaster/internal/helper"
	"wa-blaster/internal/logx"
	"wa-blaster/internal/model"
	"wa-blaster/internal/service"
	"wa-blaster/internal/worker"
	"wa-blaster/internal/ws"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type runOptions struct {
	column       string
	messages     []string
	messageFiles []string
	attachments  []string
	platform     string
	headless     bool
	policy       string
	id           string
}

func newRunCmd(a *app) *cobra.Command {
	o := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <contacts.csv|contacts.xlsx>",
		Short: "Send the messages and attachments to every number in a contact file",
		Long: `Opens one browser session per profile directory, then sends to every normalized
number, rotating accounts and message variants. Ctrl-C cancels the blast after the
current send; numbers not reached are reported as skipped.

Example:
  blaster run contacts.xlsx -c mobile -m "Hi {name}" -a brochure.pdf --platform whatsapp`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("headless") {
				a.cfg.Browser.Headless = o.headless
			}
			if o.platform == "" {
				o.platform = a.cfg.Platform
			}
			if o.policy == "" {
				o.policy = a.cfg.Blast.SelectionPolicy
			}
			return runBlast(cmd, a, o, args[0])
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.column, "column", "c", "phone", "header of the phone number column")
	f.StringArrayVarP(&o.messages, "message", "m", nil, "message variant, repeatable")
	f.StringArrayVar(&o.messageFiles, "message-file", nil, "file whose content is one message variant, repeatable")
	f.StringArrayVarP(&o.attachments, "attach", "a", nil, "file to attach to every send, repeatable")
	f.StringVar(&o.platform, "platform", "", "profile subdirectory under BLAST_USER_PATH (default BLAST_PLATFORM)")
	f.BoolVar(&o.headless, "headless", false, "run the browsers headless, overrides BROWSER_HEADLESS")
	f.StringVar(&o.policy, "policy", "", "account selection: round-robin, lru or random")
	f.StringVar(&o.id, "id", "", "blast id recorded in the history (default: generated)")
	return cmd
}

func runBlast(cmd *cobra.Command, a *app, o *runOptions, contactsPath string) error {
	cfg, log := a.cfg, a.log

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	campaign := service.NewCampaign()

	table, err := readContacts(contactsPath)
	if err != nil {
		return err
	}
	if table.Column(o.column) < 0 {
		return fmt.Errorf("column %q not found, available: %s", o.column, strings.Join(table.Columns, ", "))
	}
	stats := campaign.SetContacts(table, o.column)
	log.Info().Int("input", stats.Input).Int("kept", stats.Kept).Msg("contacts normalized")

	for _, m := range o.messages {
		campaign.Registry.AddMessage(m)
	}
	for _, path := range o.messageFiles {
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		campaign.Registry.AddMessage(string(raw))
	}
	if err := saveAttachments(campaign.Registry, cfg.UploadDir, o.attachments); err != nil {
		return err
	}

	policy, err := service.ParseSelectionPolicy(o.policy)
	if err != nil {
		return err
	}

	jobOpts := worker.JobManagerOptions{
		Publisher: progressLogger{log: log},
		Log:       logx.Component(log, "jobs"),
	}
	if cfg.DatabaseURL != "" {
		db, driver, err := database.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := helper.InitBlastSchema(ctx, db); err != nil {
			return err
		}
		jobOpts.Recorder = model.NewBlastLogStore(db, driver)
	}
	if hook := service.NewWebhook(cfg.WebhookURL, cfg.WebhookSecret, logx.Component(log, "webhook")); hook.Enabled() {
		jobOpts.Notifier = hook
	}

	pool := service.NewSessionPool(
		browser.NewDriver(browser.ConfigFrom(cfg.Browser), logx.Component(log, "browser")),
		service.PoolOptions{
			SettleDelay: cfg.Blast.SessionSettle,
			Policy:      policy,
			Publisher:   jobOpts.Publisher,
			Log:         logx.Component(log, "pool"),
		},
	)
	defer func() {
		if err := pool.Close(); err != nil {
			log.Warn().Err(err).Msg("closing browser sessions")
		}
	}()
	if err := pool.Setup(ctx, cfg.UserPath, o.platform); err != nil {
		return err
	}

	blastOpts := service.BlasterOptionsFrom(cfg.Blast)
	blastOpts.Log = logx.Component(log, "blaster")
	blaster := service.NewBlaster(pool, service.NewThrottler(service.ThrottleOptionsFrom(cfg.Throttle)), blastOpts)

	jobs := worker.NewJobManager(blaster, jobOpts)
	defer jobs.Stop()

	st, err := jobs.Start(campaign.Job(o.id))
	if err != nil {
		return err
	}

	final, err := jobs.Wait(ctx, st.ID)
	if err != nil {
		// interrupted: cancel and wait for the send in flight to finish
		_ = jobs.Cancel(st.ID)
		final, err = jobs.Wait(context.Background(), st.ID)
		if err != nil {
			return err
		}
	}

	printSummary(cmd, final)
	if final.Status == model.BlastStatusFailed {
		return errors.New(final.Error)
	}
	return nil
}

func saveAttachments(reg *service.Registry, uploadDir string, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	files := make([]service.UploadFile, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()
		files = append(files, service.UploadFile{Name: filepath.Base(p), Content: f})
	}
	_, err := reg.SaveAttachments(uploadDir, files)
	return err
}

func printSummary(cmd *cobra.Command, st worker.JobStatus) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "blast %s %s\n", st.ID, st.Status)
	fmt.Fprintf(w, "  sent:        %d/%d\n", st.Sent, st.Total)
	fmt.Fprintf(w, "  failed:      %d\n", st.Failed)
	fmt.Fprintf(w, "  unavailable: %d\n", st.Unavailable)
	if skipped := st.Total - st.Done; skipped > 0 {
		fmt.Fprintf(w, "  skipped:     %d\n", skipped)
	}
	for _, f := range st.Failures {
		fmt.Fprintf(w, "  ! %s\n", f)
	}
}

// progressLogger prints the realtime events the API server would push over /ws.
type progressLogger struct {
	log zerolog.Logger
}

func (p progressLogger) Publish(evt ws.WsEvent) {
	switch d := evt.Data.(type) {
	case ws.BlastProgressData:
		e := p.log.Info()
		if d.Error != "" {
			e = p.log.Warn().Str("error", d.Error)
		}
		e.Str("phone", d.Phone).Str("account", d.Account).Str("state", d.State).
			Msgf("[%d/%d]", d.Index+1, d.Total)
	case ws.SessionStatusData:
		p.log.Info().Str("account", d.Account).Str("reason", d.Reason).Msg(evt.Event)
	default:
		p.log.Debug().Str("event", evt.Event).Msg("event")
	}
}
