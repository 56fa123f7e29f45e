package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"text/tabwriter"

	"go.uber.org/multierr"

	"github.com/MJE43/berghain-runner-go/internal/berghain"
	"github.com/MJE43/berghain-runner-go/internal/config"
	"github.com/MJE43/berghain-runner-go/internal/doorman"
	"github.com/MJE43/berghain-runner-go/internal/orchestrator"
	"github.com/MJE43/berghain-runner-go/internal/registry"
	"github.com/MJE43/berghain-runner-go/internal/store"
	"github.com/MJE43/berghain-runner-go/internal/strategy"
)

// cmdPlay plays one game at the door. Exit status 0 means the venue
// filled with every quota met; a lost or interrupted game exits 1 so the
// run workflow propagates the failure.
func cmdPlay(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	attempt, err := playGame(ctx, args, stdout, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if attempt.Status != berghain.StatusCompleted {
		return 1
	}
	return 0
}

func playGame(ctx context.Context, args []string, stdout, stderr io.Writer) (*doorman.Attempt, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	fs := flag.NewFlagSet("play", flag.ContinueOnError)
	fs.SetOutput(stderr)
	root := fs.String("root", cfg.ScenarioRoot, "directory containing scenario_<N> folders")
	scenario := fs.String("scenario", "", "scenario number; its directory holds the registry and strategy files")
	script := fs.String("script", "", "JavaScript strategy file (default: strategy.js beside the registry)")
	tunables := fs.String("tunables", "", "rule tunables file (default: strategy.yaml beside the registry)")
	baseURL := fs.String("base-url", cfg.BaseURL, "challenge API endpoint")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Default to the current directory so the command works when launched
	// from inside a scenario folder, the way the registry layout expects.
	dir := "."
	if *scenario != "" {
		dir, err = orchestrator.ScenarioDir(*root, *scenario)
		if err != nil {
			return nil, err
		}
	}

	regPath := filepath.Join(dir, registry.FileName)
	gameID := fs.Arg(0)
	if gameID == "" {
		gameID, err = registry.LatestGameID(regPath)
		if err != nil {
			return nil, err
		}
	}
	info, err := gameInfo(regPath, gameID)
	if err != nil {
		return nil, err
	}

	decider, kind, err := loadDecider(dir, *script, *tunables, stderr)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(stdout, "playing game %s with %s strategy\n", gameID, kind)

	client := berghain.NewClient(berghain.Config{BaseURL: *baseURL, Timeout: cfg.HTTPTimeout})
	door := doorman.New(client, decider, doorman.Options{
		Capacity:      cfg.Capacity,
		MaxRejections: cfg.MaxRejections,
		Logger:        log.New(stderr, "[door] ", log.LstdFlags),
	})

	attempt, runErr := door.Run(ctx, info)

	// Whatever happened, the partial history is still worth keeping.
	if persistErr := persistAttempt(ctx, cfg, dir, info, attempt); persistErr != nil {
		runErr = multierr.Append(runErr, persistErr)
	}
	printAttempt(stdout, info, attempt)
	return attempt, runErr
}

// gameInfo loads one game's registry record.
func gameInfo(regPath, gameID string) (*berghain.GameInfo, error) {
	entry, ok, err := registry.Find(regPath, gameID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("game %s is not recorded in %s", gameID, regPath)
	}
	var info berghain.GameInfo
	if err := json.Unmarshal(entry.Raw, &info); err != nil {
		return nil, fmt.Errorf("decode registry entry for %s: %w", gameID, err)
	}
	if info.GameID == "" {
		info.GameID = gameID
	}
	return &info, nil
}

// loadDecider picks the scripted strategy when a script file is present,
// the built-in rules otherwise.
func loadDecider(dir, scriptPath, tunablesPath string, stderr io.Writer) (strategy.Decider, string, error) {
	if scriptPath == "" {
		candidate := filepath.Join(dir, strategy.ScriptFile)
		if _, err := os.Stat(candidate); err == nil {
			scriptPath = candidate
		}
	}
	if scriptPath != "" {
		s, err := strategy.LoadScript(scriptPath, log.New(stderr, "[script] ", log.LstdFlags))
		if err != nil {
			return nil, "", err
		}
		return s, "scripted", nil
	}

	if tunablesPath == "" {
		tunablesPath = filepath.Join(dir, strategy.TunablesFile)
	}
	t, err := strategy.LoadTunables(tunablesPath)
	if err != nil {
		return nil, "", err
	}
	return strategy.NewRules(t), "rule", nil
}

// persistAttempt saves the attempt to the database and mirrors the full
// decision history to a JSON file beside the registry.
func persistAttempt(ctx context.Context, cfg config.Config, dir string, info *berghain.GameInfo, attempt *doorman.Attempt) error {
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	saved, err := st.SaveAttempt(ctx, store.Attempt{
		GameID:      attempt.GameID,
		ScenarioID:  info.ScenarioID,
		Status:      attempt.Status,
		Admitted:    attempt.Admitted,
		Rejected:    attempt.Rejected,
		Counts:      attempt.Counts,
		Constraints: info.Constraints,
		Reason:      attempt.Reason,
		StartedAt:   attempt.StartedAt,
		FinishedAt:  attempt.FinishedAt,
	}, storeDecisions(attempt.Decisions))
	if err != nil {
		return err
	}
	return writeHistory(dir, saved.AttemptNumber, attempt)
}

func storeDecisions(ds []doorman.Decision) []store.Decision {
	out := make([]store.Decision, 0, len(ds))
	for _, d := range ds {
		out = append(out, store.Decision{
			PersonIndex:    d.PersonIndex,
			Attributes:     d.Attributes,
			Accepted:       d.Accepted,
			AdmittedBefore: d.AdmittedBefore,
			RejectedBefore: d.RejectedBefore,
			AdmittedAfter:  d.AdmittedAfter,
			RejectedAfter:  d.RejectedAfter,
		})
	}
	return out
}

// historyFileName matches the naming used by earlier tooling so existing
// analysis scripts keep working.
func historyFileName(gameID string, attemptNumber int) string {
	return fmt.Sprintf("decision_history_%s_attempt_%d.json", gameID, attemptNumber)
}

func writeHistory(dir string, attemptNumber int, attempt *doorman.Attempt) error {
	data, err := json.MarshalIndent(struct {
		*doorman.Attempt
		AttemptNumber int `json:"attemptNumber"`
	}{attempt, attemptNumber}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode decision history: %w", err)
	}
	path := filepath.Join(dir, historyFileName(attempt.GameID, attemptNumber))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write decision history: %w", err)
	}
	return nil
}

// printAttempt renders the outcome and the per-quota standings.
func printAttempt(w io.Writer, info *berghain.GameInfo, attempt *doorman.Attempt) {
	fmt.Fprintf(w, "\ngame %s: %s (admitted %d, rejected %d)\n",
		attempt.GameID, attempt.Status, attempt.Admitted, attempt.Rejected)
	if attempt.Reason != "" {
		fmt.Fprintf(w, "reason: %s\n", attempt.Reason)
	}
	if len(info.Constraints) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ATTRIBUTE\tCOUNT\tMIN\tMET")
	for _, c := range info.Constraints {
		n := attempt.Counts[c.Attribute]
		met := "yes"
		if n < c.MinCount {
			met = "NO"
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", c.Attribute, n, c.MinCount, met)
	}
	tw.Flush()
}
