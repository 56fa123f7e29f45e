package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/MJE43/berghain-runner-go/internal/config"
	"github.com/MJE43/berghain-runner-go/internal/store"
)

// cmdLeaderboard ranks completed attempts by fewest rejections.
func cmdLeaderboard(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("leaderboard", flag.ContinueOnError)
	fs.SetOutput(stderr)
	scenario := fs.Int("scenario", 0, "only rank attempts for this scenario (0 = all)")
	limit := fs.Int("limit", 20, "number of rows")
	if err := fs.Parse(args); err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	rows, err := st.Leaderboard(ctx, *scenario, *limit)
	if err != nil {
		return err
	}
	renderRows(stdout, rows)
	return nil
}

// cmdAttempts lists recorded attempts: every attempt of one game when a
// game id is given, the most recent attempts across games otherwise.
func cmdAttempts(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("attempts", flag.ContinueOnError)
	fs.SetOutput(stderr)
	limit := fs.Int("limit", 20, "number of rows for the recent view")
	if err := fs.Parse(args); err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if fs.NArg() == 0 {
		rows, err := st.RecentAttempts(ctx, *limit)
		if err != nil {
			return err
		}
		renderRows(stdout, rows)
		return nil
	}

	gameID := fs.Arg(0)
	attempts, err := st.ListAttempts(ctx, gameID)
	if err != nil {
		return err
	}
	if len(attempts) == 0 {
		fmt.Fprintf(stdout, "no attempts recorded for %s\n", gameID)
		return nil
	}
	renderAttempts(stdout, attempts)
	return nil
}

// openStore opens the attempt database, creating the data directory on
// first use.
func openStore(cfg config.Config) (*store.Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("make data dir: %w", err)
	}
	return store.Open(cfg.DBPath())
}

func renderRows(w io.Writer, rows []store.LeaderboardRow) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "no attempts recorded")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GAME\tSCENARIO\tATTEMPT\tSTATUS\tADMITTED\tREJECTED\tFINISHED")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%d\t%d\t%s\n",
			r.GameID, r.ScenarioID, r.AttemptNumber, r.Status, r.Admitted, r.Rejected,
			r.FinishedAt.Local().Format("2006-01-02 15:04"))
	}
	tw.Flush()
}

func renderAttempts(w io.Writer, attempts []store.Attempt) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ATTEMPT\tSTATUS\tADMITTED\tREJECTED\tQUOTAS")
	for _, a := range attempts {
		standings := a.Standings()
		met := 0
		for _, s := range standings {
			if s.Met {
				met++
			}
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d/%d met\n",
			a.AttemptNumber, a.Status, a.Admitted, a.Rejected, met, len(standings))
	}
	tw.Flush()
}
