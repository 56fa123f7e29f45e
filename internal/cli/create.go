package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/MJE43/berghain-runner-go/internal/berghain"
	"github.com/MJE43/berghain-runner-go/internal/config"
	"github.com/MJE43/berghain-runner-go/internal/identity"
	"github.com/MJE43/berghain-runner-go/internal/registry"
)

// cmdCreate asks the challenge API for a fresh game and records it in the
// scenario's registry. The scenario directory is created when missing so a
// new scenario can be bootstrapped in one step.
func cmdCreate(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.SetOutput(stderr)
	root := fs.String("root", cfg.ScenarioRoot, "directory containing scenario_<N> folders")
	baseURL := fs.String("base-url", cfg.BaseURL, "challenge API endpoint")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("create: scenario number required")
	}
	scenario, err := strconv.Atoi(fs.Arg(0))
	if err != nil || scenario < 1 {
		return fmt.Errorf("create: invalid scenario %q", fs.Arg(0))
	}

	dir := filepath.Join(*root, "scenario_"+fs.Arg(0))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create: make scenario directory: %w", err)
	}

	playerID := cfg.PlayerID
	if playerID == "" {
		playerID, err = identity.NewStore("", cfg.SecretsPath()).PlayerID()
		if err != nil {
			return err
		}
	}

	client := berghain.NewClient(berghain.Config{BaseURL: *baseURL, Timeout: cfg.HTTPTimeout})
	resp, err := client.NewGame(ctx, scenario, playerID)
	if err != nil {
		return err
	}

	info := berghain.GameInfo{
		PlayerID:            playerID,
		ScenarioID:          scenario,
		GameID:              resp.GameID,
		Constraints:         resp.Constraints,
		AttributeStatistics: resp.AttributeStatistics,
		CreatedAt:           time.Now().UTC(),
	}
	if err := registry.Append(filepath.Join(dir, registry.FileName), resp.GameID, info); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "created game %s (scenario %d)\n", resp.GameID, scenario)
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ATTRIBUTE\tMIN\tFREQUENCY")
	for _, c := range resp.Constraints {
		fmt.Fprintf(tw, "%s\t%d\t%.3f\n",
			c.Attribute, c.MinCount, resp.AttributeStatistics.RelativeFrequencies[c.Attribute])
	}
	return tw.Flush()
}
