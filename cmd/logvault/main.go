package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	cfgpkg "github.com/iammultiman/logvault/internal/config"
	"github.com/iammultiman/logvault/internal/engine"
	"github.com/iammultiman/logvault/internal/metrics"
	"github.com/iammultiman/logvault/internal/query"
	"github.com/iammultiman/logvault/internal/record"
	"github.com/iammultiman/logvault/internal/retention"
)

func main() {
	var (
		configPath string
		dataDir    string
		fsync      string
		logLevel   string
		logFormat  string
	)

	rootCmd := &cobra.Command{
		Use:   "logvault",
		Short: "LogVault CLI",
		Long:  "LogVault stores browser console logs locally and keeps them within configurable retention bounds.",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("LOGVAULT_CONFIG"), "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory (default: OS-specific application data directory)")
	rootCmd.PersistentFlags().StringVar(&fsync, "fsync", "", "Fsync mode: always|interval|never")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", os.Getenv("LOGVAULT_LOG_LEVEL"), "Log level: debug|info|warn|error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", os.Getenv("LOGVAULT_LOG_FORMAT"), "Log format: console|json")

	// open loads config, applies flag overrides and opens the engine. Cleanup
	// scheduling stays off for one-shot commands; watch turns it on.
	open := func(scheduled bool) (*engine.Engine, *zap.Logger, error) {
		cfg, err := cfgpkg.Load(configPath)
		if err != nil {
			return nil, nil, err
		}
		if dataDir != "" {
			cfg.DataDir = dataDir
		}
		if fsync != "" {
			cfg.Storage.Fsync = fsync
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		if logFormat != "" {
			cfg.Log.Format = logFormat
		}
		cfg.Cleanup.Enabled = scheduled && cfg.Cleanup.Enabled

		logger, err := buildLogger(cfg.Log)
		if err != nil {
			return nil, nil, err
		}
		eng, err := engine.Open(engine.Options{
			Config:  cfg,
			Logger:  logger,
			Metrics: metrics.NewStorage(nil),
		})
		if err != nil {
			return nil, nil, err
		}
		return eng, logger, nil
	}

	// ingest
	ingestCmd := &cobra.Command{
		Use:   "ingest [file]",
		Short: "Ingest JSON-lines records from a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, logger, err := open(false)
			if err != nil {
				return err
			}
			defer eng.Close()

			in := os.Stdin
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			ctx := cmd.Context()
			var batch []*record.Record
			total := 0
			scanner := bufio.NewScanner(in)
			scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
			flush := func() error {
				if len(batch) == 0 {
					return nil
				}
				if _, err := eng.Store().PutBatch(ctx, batch); err != nil {
					return err
				}
				total += len(batch)
				batch = batch[:0]
				return nil
			}
			for scanner.Scan() {
				var r record.Record
				if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
					return fmt.Errorf("ingest: bad record on line %d: %w", total+len(batch)+1, err)
				}
				batch = append(batch, &r)
				if len(batch) >= 500 {
					if err := flush(); err != nil {
						return err
					}
				}
			}
			if err := scanner.Err(); err != nil {
				return err
			}
			if err := flush(); err != nil {
				return err
			}
			logger.Info("ingest complete", zap.Int("records", total))
			fmt.Printf("ingested %d records\n", total)
			return nil
		},
	}
	rootCmd.AddCommand(ingestCmd)

	// query
	var qf struct {
		domains  []string
		levels   []string
		sessions []string
		text     string
		expr     string
		since    string
		until    string
		limit    int
		offset   int
		asc      bool
		asJSON   bool
	}
	queryCmd := &cobra.Command{
		Use:   "query",
		Short: "Query stored records",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, err := open(false)
			if err != nil {
				return err
			}
			defer eng.Close()

			f := query.Filter{
				Text:      qf.text,
				Domains:   qf.domains,
				Sessions:  qf.sessions,
				Expr:      qf.expr,
				Ascending: qf.asc,
				Limit:     qf.limit,
				Offset:    qf.offset,
			}
			for _, l := range qf.levels {
				lv, err := record.ParseLevel(l)
				if err != nil {
					return err
				}
				f.Levels = append(f.Levels, lv)
			}
			if f.Since, err = parseTimeFlag(qf.since); err != nil {
				return fmt.Errorf("invalid --since: %w", err)
			}
			if f.Until, err = parseTimeFlag(qf.until); err != nil {
				return fmt.Errorf("invalid --until: %w", err)
			}

			recs, err := eng.Queries().Query(cmd.Context(), f)
			if err != nil {
				return err
			}
			if qf.asJSON {
				enc := json.NewEncoder(os.Stdout)
				for _, r := range recs {
					if err := enc.Encode(r); err != nil {
						return err
					}
				}
				return nil
			}
			for _, r := range recs {
				ts := time.UnixMilli(r.Timestamp).Format(time.RFC3339)
				fmt.Printf("%s %-5s %-20s %s\n", ts, r.Level, r.OriginDomain, r.Message)
			}
			fmt.Printf("%d records\n", len(recs))
			return nil
		},
	}
	queryCmd.Flags().StringSliceVar(&qf.domains, "domain", nil, "Filter by origin domain (repeatable)")
	queryCmd.Flags().StringSliceVar(&qf.levels, "level", nil, "Filter by level: log|error|warn|info (repeatable)")
	queryCmd.Flags().StringSliceVar(&qf.sessions, "session", nil, "Filter by session id (repeatable)")
	queryCmd.Flags().StringVar(&qf.text, "text", "", "Case-insensitive substring match on message")
	queryCmd.Flags().StringVar(&qf.expr, "expr", "", `CEL expression, e.g. 'level == "error" && ts_ms > now_ms - 3600000'`)
	queryCmd.Flags().StringVar(&qf.since, "since", "", "Lower time bound (RFC3339 or unix ms)")
	queryCmd.Flags().StringVar(&qf.until, "until", "", "Upper time bound (RFC3339 or unix ms)")
	queryCmd.Flags().IntVar(&qf.limit, "limit", 100, "Maximum records to return")
	queryCmd.Flags().IntVar(&qf.offset, "offset", 0, "Records to skip for pagination")
	queryCmd.Flags().BoolVar(&qf.asc, "asc", false, "Oldest-first instead of newest-first")
	queryCmd.Flags().BoolVar(&qf.asJSON, "json", false, "Emit JSON lines instead of a table")
	rootCmd.AddCommand(queryCmd)

	// stats
	var statsJSON bool
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show storage usage and cleanup recommendations",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, err := open(false)
			if err != nil {
				return err
			}
			defer eng.Close()

			ctx := cmd.Context()
			st, err := eng.Usage().CheckStatus(ctx, eng.Config().Usage.WarningThresholdPercent)
			if err != nil {
				return err
			}
			if statsJSON {
				return json.NewEncoder(os.Stdout).Encode(st)
			}
			snap := st.Usage
			fmt.Printf("records:  %s\n", humanize.Comma(snap.TotalCount))
			fmt.Printf("size:     %s\n", humanize.IBytes(uint64(snap.TotalBytes)))
			if snap.Quota.Known {
				fmt.Printf("quota:    %s used of %s (%.1f%%)\n",
					humanize.IBytes(uint64(snap.Quota.UsedBytes)),
					humanize.IBytes(uint64(snap.Quota.TotalBytes)),
					snap.Quota.UsedPercent)
			} else {
				fmt.Println("quota:    unknown")
			}
			fmt.Printf("status:   %s\n", st.Level)
			for domain, ou := range snap.PerOrigin {
				fmt.Printf("  %-30s %8s records  %10s\n", domain, humanize.Comma(ou.Count), humanize.IBytes(uint64(ou.Bytes)))
			}
			rec := eng.Usage().RecommendActions(snap)
			for _, reason := range rec.Reasons {
				fmt.Printf("note: %s\n", reason)
			}
			for _, action := range rec.SuggestedActions {
				fmt.Printf("suggestion: %s\n", action)
			}
			return nil
		},
	}
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Emit JSON instead of a table")
	rootCmd.AddCommand(statsCmd)

	// cleanup
	var cl struct {
		preset     string
		maxAge     time.Duration
		maxBytes   int64
		maxRecords int64
	}
	cleanupCmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Run a one-off retention cleanup",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, err := open(false)
			if err != nil {
				return err
			}
			defer eng.Close()

			policy := retention.Preset(cl.preset)
			if cl.maxAge > 0 {
				policy.MaxAge = &cl.maxAge
			}
			if cl.maxBytes > 0 {
				policy.MaxTotalBytes = &cl.maxBytes
			}
			if cl.maxRecords > 0 {
				policy.MaxRecords = &cl.maxRecords
			}

			res, err := eng.Retention().PerformCleanup(cmd.Context(), policy)
			if err != nil {
				return err
			}
			fmt.Printf("deleted %d records (%d by age, %d by size, %d by count) in %s\n",
				res.TotalDeleted, res.AgeDeleted, res.SizeDeleted, res.CountDeleted, res.Duration.Round(time.Millisecond))
			if res.FinalUsage != nil {
				fmt.Printf("store now holds %s records, %s\n",
					humanize.Comma(res.FinalUsage.TotalCount), humanize.IBytes(uint64(res.FinalUsage.TotalBytes)))
			}
			return nil
		},
	}
	cleanupCmd.Flags().StringVar(&cl.preset, "preset", "balanced", "Policy preset: conservative|balanced|aggressive")
	cleanupCmd.Flags().DurationVar(&cl.maxAge, "max-age", 0, "Override: delete records older than this")
	cleanupCmd.Flags().Int64Var(&cl.maxBytes, "max-bytes", 0, "Override: trim oldest records until total size fits")
	cleanupCmd.Flags().Int64Var(&cl.maxRecords, "max-records", 0, "Override: keep at most this many records")
	rootCmd.AddCommand(cleanupCmd)

	// watch
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the cleanup scheduler in the foreground until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, logger, err := open(true)
			if err != nil {
				return err
			}
			defer eng.Close()

			st := eng.Scheduler().Status()
			if !st.IsRunning {
				return fmt.Errorf("cleanup is disabled in the configuration")
			}
			logger.Info("watching",
				zap.Duration("interval", st.Interval),
				zap.String("policy", st.Policy.String()))

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			<-ctx.Done()
			return nil
		},
	}
	rootCmd.AddCommand(watchCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func buildLogger(cfg cfgpkg.Log) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q", cfg.Level)
	}
	var zcfg zap.Config
	if cfg.Format == "json" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

// parseTimeFlag accepts RFC3339 timestamps or raw unix milliseconds.
func parseTimeFlag(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UnixMilli(), nil
	}
	var ms int64
	if _, err := fmt.Sscanf(s, "%d", &ms); err != nil || ms <= 0 {
		return 0, fmt.Errorf("want RFC3339 or unix milliseconds, got %q", s)
	}
	return ms, nil
}
