// Briefing publishes a weekly North Korea news briefing in twelve languages.
//
// Usage:
//
//	briefing serve                   # HTTP API plus weekly cron jobs
//	briefing run --lang ko,en        # one-shot publish
//	briefing run --all --preview     # generate every language without posting
//	briefing languages               # list language profiles
//	briefing runs                    # show the run log
//	briefing version
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/RobinCoderZhao/nk-briefing/internal/app"
	"github.com/RobinCoderZhao/nk-briefing/internal/briefing/pipeline"
	"github.com/RobinCoderZhao/nk-briefing/internal/briefing/runlog"
	"github.com/RobinCoderZhao/nk-briefing/internal/briefing/summarizer"
	"github.com/RobinCoderZhao/nk-briefing/internal/config"
	"github.com/RobinCoderZhao/nk-briefing/internal/logging"
	"github.com/RobinCoderZhao/nk-briefing/pkg/i18n"
)

var version = "dev"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "briefing",
		Short:         "Weekly North Korea briefing bot",
		Long:          "북한 관련 공개 데이터를 수집해 언어별 주간 브리핑을 생성하고 블로그에 게시합니다.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $BRIEFING_CONFIG or briefing.yaml)")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(runCmd(&configPath))
	rootCmd.AddCommand(languagesCmd())
	rootCmd.AddCommand(runsCmd(&configPath))
	rootCmd.AddCommand(versionCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	slog.SetDefault(logging.New(cfg.Log.Level, cfg.Log.Format))
	return cfg, nil
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the weekly publishing schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	schedDone := make(chan struct{})
	if cfg.Schedule.Enabled {
		s, err := a.Scheduler(pipeline.TriggerSchedule)
		if err != nil {
			return err
		}
		go func() {
			defer close(schedDone)
			if err := s.Start(ctx); err != nil {
				slog.Error("scheduler failed", "error", err)
			}
		}()
	} else {
		close(schedDone)
		slog.Info("weekly schedule disabled")
	}

	srv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: a.Handler(),
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting briefing API", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}
	<-schedDone
	return nil
}

func runCmd(configPath *string) *cobra.Command {
	var langs []string
	var all, preview bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate and publish briefings once",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(langs) == 0 {
				return errors.New("pass --lang or --all")
			}
			if all {
				langs = summarizer.Codes()
			}
			codes, err := summarizer.ParseCodes(langs)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if all && !preview {
				s, err := a.Scheduler(pipeline.TriggerCLI)
				if err != nil {
					return err
				}
				return s.RunOnce(cmd.Context())
			}
			return runLanguages(cmd.Context(), a.Pipeline, codes, preview)
		},
	}

	cmd.Flags().StringSliceVarP(&langs, "lang", "l", nil, "language codes, comma separated")
	cmd.Flags().BoolVar(&all, "all", false, "every supported language")
	cmd.Flags().BoolVar(&preview, "preview", false, "print the article instead of publishing")
	return cmd
}

func runLanguages(ctx context.Context, p *pipeline.Pipeline, langs []string, preview bool) error {
	var errs []error
	for _, lang := range langs {
		req := pipeline.Request{Language: lang, Trigger: pipeline.TriggerCLI, Publish: !preview}
		res, err := p.Run(ctx, req)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", lang, err))
			continue
		}
		if preview {
			fmt.Printf("===== %s =====\n%s\n\n%s\n\n", res.Language, res.Article.Title, res.Article.HTMLBody)
			continue
		}
		fmt.Printf("%s\t%s\n", res.Language, res.PostURL)
	}
	return errors.Join(errs...)
}

func languagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List language profiles and their publishing slots",
		Run: func(cmd *cobra.Command, args []string) {
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tLANGUAGE\tPERSONA\tCATEGORY\tSCHEDULE")
			for _, p := range summarizer.Profiles() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s %02d:00\n",
					p.Code, i18n.LanguageName(p.Code), p.PersonaName, p.CategoryID, p.PublishWeekday, p.PublishHour)
			}
			w.Flush()
		},
	}
}

func runsCmd(configPath *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent runs from the run log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if cfg.RunlogDB == "" {
				return errors.New("run log disabled, set RUNLOG_DB")
			}
			store, err := runlog.Open(cmd.Context(), cfg.RunlogDB)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tLANG\tTRIGGER\tSTATUS\tITEMS\tDETAIL")
			for _, e := range entries {
				detail := e.PostURL
				if e.Error != "" {
					detail = e.Error
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
					e.StartedAt.Local().Format("2006-01-02 15:04"), e.Language, e.Trigger, e.Status, e.Items, strings.TrimSpace(detail))
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("briefing %s\n", version)
		},
	}
}
