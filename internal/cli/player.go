package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/MJE43/berghain-runner-go/internal/config"
	"github.com/MJE43/berghain-runner-go/internal/identity"
)

// cmdPlayer shows or changes the stored player identity.
//
//	berghain player            print the current id, minting one if needed
//	berghain player set <id>   store a specific id
//	berghain player reset      drop the stored id; the next run mints fresh
func cmdPlayer(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ids := identity.NewStore("", cfg.SecretsPath())

	if len(args) == 0 {
		id, err := ids.PlayerID()
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, id)
		return nil
	}

	switch args[0] {
	case "set":
		if len(args) != 2 {
			return errors.New("player set: player id required")
		}
		if err := ids.SetPlayerID(args[1]); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "player id stored")
		return nil
	case "reset":
		if err := ids.Reset(); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "player id cleared")
		return nil
	default:
		return fmt.Errorf("player: unknown action %q", args[0])
	}
}
