package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/uniportal/internship-portal/internal/app"
	"github.com/uniportal/internship-portal/internal/apperr"
	"github.com/uniportal/internship-portal/internal/lock"
	"github.com/uniportal/internship-portal/internal/matching"
	"github.com/uniportal/internship-portal/internal/messaging"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Run and inspect mentor matching",
}

var matchRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Ask a matcher worker to run reconciliation and wait for the result",
	RunE: func(cmd *cobra.Command, _ []string) error {
		timeout, _ := cmd.Flags().GetDuration("timeout")

		cfg, log, err := setup(cmd)
		if err != nil {
			return err
		}
		defer log.Sync()

		if !cfg.NATS.Enabled {
			return errors.New("match run needs nats to reach the matcher")
		}
		nc, err := app.OpenNATS(cfg.NATS, appName, log)
		if err != nil {
			return err
		}
		defer nc.Close()

		data, err := nc.Request(messaging.SubjectMatchingRun, nil, timeout)
		if err != nil {
			return fmt.Errorf("request %s: %w", messaging.SubjectMatchingRun, err)
		}
		result, err := decodeRunReply(data)
		if err != nil {
			return err
		}
		log.Info("matching run completed", zap.Stringer("run_id", result.RunID))
		return printRunResult(cmd.OutOrStdout(), result)
	},
}

var matchInternshipsCmd = &cobra.Command{
	Use:   "internships",
	Short: "Rank the active internships for a student",
	RunE: func(cmd *cobra.Command, _ []string) error {
		studentID, _ := cmd.Flags().GetInt64("student")
		if studentID <= 0 {
			return errors.New("--student must be a positive id")
		}

		cfg, log, err := setup(cmd)
		if err != nil {
			return err
		}
		defer log.Sync()

		backend, err := app.OpenStore(cmd.Context(), cfg.Database, log)
		if err != nil {
			return err
		}
		defer backend.Close()

		svc := matching.NewService(matching.Deps{Store: backend.Store, Logger: log})
		items, err := svc.MatchedInternshipsForStudent(cmd.Context(), studentID)
		if err != nil {
			return err
		}
		return printInternships(cmd.OutOrStdout(), items)
	},
}

var matchLockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Show which run holds the matching lock",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := setup(cmd)
		if err != nil {
			return err
		}
		defer log.Sync()

		rdb, err := app.OpenRedis(cmd.Context(), cfg.Redis, log)
		if err != nil {
			return err
		}
		if rdb == nil {
			return errors.New("the run lock lives in redis, which is disabled")
		}
		defer rdb.Close()

		token, ttl, err := lock.NewRunLock(rdb, lock.DefaultKey, cfg.Matching.RunLockTTL).Holder(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if token == "" {
			fmt.Fprintln(out, "no matching run in progress")
			return nil
		}
		fmt.Fprintf(out, "run %s holds the lock, expires in %s\n", token, ttl.Round(time.Second))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)
	matchCmd.AddCommand(matchRunCmd, matchInternshipsCmd, matchLockCmd)

	matchRunCmd.Flags().Duration("timeout", 5*time.Minute, "how long to wait for the matcher's reply")
	matchInternshipsCmd.Flags().Int64P("student", "s", 0, "student id")
}

// decodeRunReply turns a matcher reply into a result or the error it carries.
func decodeRunReply(data []byte) (*matching.RunResult, error) {
	var reply matching.RunReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, fmt.Errorf("decode run reply: %w", err)
	}
	if reply.Error != "" {
		code := reply.Code
		if code == "" {
			code = apperr.CodeInternal
		}
		return nil, apperr.New(code, reply.Error, nil)
	}
	if reply.Result == nil {
		return nil, errors.New("run reply has no result")
	}
	return reply.Result, nil
}

func printRunResult(w io.Writer, r *matching.RunResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "run\t%s\n", r.RunID)
	fmt.Fprintf(tw, "evaluated\t%d\n", r.Evaluated)
	fmt.Fprintf(tw, "created\t%d\n", r.Created)
	fmt.Fprintf(tw, "updated\t%d\n", r.Updated)
	fmt.Fprintf(tw, "unchanged\t%d\n", r.Unchanged)
	fmt.Fprintf(tw, "below threshold\t%d\n", r.BelowThreshold)
	fmt.Fprintf(tw, "human owned\t%d\n", r.HumanOwned)
	fmt.Fprintf(tw, "duration\t%s\n", time.Duration(r.DurationMs)*time.Millisecond)
	return tw.Flush()
}

func printInternships(w io.Writer, items []matching.ScoredInternship) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "no matching internships")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSCORE\tTITLE")
	for _, it := range items {
		fmt.Fprintf(tw, "%d\t%.2f\t%s\n", it.Internship.ID, it.Score, it.Internship.Title)
	}
	return tw.Flush()
}
