package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"mvs-go/internal/app"
	"mvs-go/internal/config"
	"mvs-go/internal/encryption"
	"mvs-go/internal/model"
	"mvs-go/internal/mvs"
	"mvs-go/internal/server"
)

var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func readConfig() (*config.Config, error) {
	paths, err := app.DefaultPaths()
	if err != nil {
		return nil, fmt.Errorf("resolving paths: %w", err)
	}
	cfg, err := config.ReadFromFile(paths.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// newApp reads the config and creates a wired App. The caller must defer
// a.Close(). When needsDecrypt is set and encryption is configured, the user
// is prompted for the key passphrase.
func newApp(ctx context.Context, operation string, needsDecrypt bool) (*app.App, error) {
	cfg, err := readConfig()
	if err != nil {
		return nil, err
	}

	passphrase := ""
	if needsDecrypt && cfg.Encryption.Type != "" && cfg.Encryption.Type != "none" {
		passphrase, err = promptPassphrase("Key passphrase: ")
		if err != nil {
			return nil, err
		}
	}

	a, err := app.New(ctx, cfg, operation, passphrase)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// promptPassphrase reads a passphrase from the terminal without echo.
func promptPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

var rootCmd = &cobra.Command{
	Use:   "mvs",
	Short: "Multiverse snapshot store",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := app.DefaultPaths()
		if err != nil {
			return fmt.Errorf("failed to resolve paths: %w", err)
		}

		cfg := config.NewConfig(paths.BaseDir)
		if err := config.Init(paths.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", paths.ConfigPath)
		fmt.Printf("Base Dir: %s\n", paths.BaseDir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := app.DefaultPaths()
		if err != nil {
			return fmt.Errorf("failed to resolve paths: %w", err)
		}

		cfg, err := config.ReadFromFile(paths.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", paths.ConfigPath)
		fmt.Printf("Base Dir:    %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:     %s\n", cfg.LogDir)
		fmt.Printf("Vault:       %s (%s)\n", cfg.Vault.Name, cfg.Vault.Type)
		fmt.Printf("Database:    %s\n", cfg.Database.Type)
		fmt.Printf("Encryption:  %s\n", cfg.Encryption.Type)
		fmt.Printf("Listen Addr: %s\n", cfg.Server.ListenAddr)
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate encryption keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}

		enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
		if err != nil {
			return fmt.Errorf("creating encryptor: %w", err)
		}
		if enc == nil {
			return fmt.Errorf("encryption is disabled in config; set [encryption] type = \"age\" first")
		}
		if enc.IsConfigured() {
			return fmt.Errorf("keys already exist at %s", cfg.Encryption.IdentityPath)
		}

		passphrase, err := promptPassphrase("New key passphrase: ")
		if err != nil {
			return err
		}
		confirm, err := promptPassphrase("Confirm passphrase: ")
		if err != nil {
			return err
		}
		if passphrase != confirm {
			return fmt.Errorf("passphrases do not match")
		}

		if err := enc.Setup(passphrase); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}

		fmt.Printf("Recipient key: %s\n", cfg.Encryption.RecipientPath)
		fmt.Printf("Identity key:  %s (passphrase-protected)\n", cfg.Encryption.IdentityPath)
		return nil
	},
}

// serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, "Serve", true)
		if err != nil {
			return err
		}
		defer a.Close()

		srv := &http.Server{
			Addr:    a.Config().Server.ListenAddr,
			Handler: server.New(a.Service(), a.Logger(), version),
		}

		errCh := make(chan error, 1)
		go func() {
			a.Logger().Info("server listening", "addr", srv.Addr)
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		return nil
	},
}

// universe command
var universeCmd = &cobra.Command{
	Use:   "universe",
	Short: "Manage universes",
}

var universeCreateCmd = &cobra.Command{
	Use:   "create ID NAME",
	Short: "Create a universe",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, _ := cmd.Flags().GetString("owner")
		public, _ := cmd.Flags().GetBool("public")

		a, err := newApp(cmd.Context(), "UniverseCreate", false)
		if err != nil {
			return err
		}
		defer a.Close()

		u, err := a.Service().CreateUniverse(cmd.Context(), mvs.CreateUniverseRequest{
			ID:      args[0],
			Name:    args[1],
			OwnerID: owner,
			Public:  public,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Created universe %s (%q) owned by %s\n", u.ID, u.Name, u.OwnerID)
		return nil
	},
}

var universeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List universes",
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, _ := cmd.Flags().GetString("owner")
		publicOnly, _ := cmd.Flags().GetBool("public")

		a, err := newApp(cmd.Context(), "UniverseList", false)
		if err != nil {
			return err
		}
		defer a.Close()

		us, err := a.Service().ListUniverses(cmd.Context(), mvs.UniverseFilter{
			PublicOnly: publicOnly,
			OwnerID:    owner,
		})
		if err != nil {
			return err
		}

		if len(us) == 0 {
			fmt.Println("No universes.")
			return nil
		}
		for _, u := range us {
			last := "-"
			if !u.LastSnapshotAt.IsZero() {
				last = u.LastSnapshotAt.Format("2006-01-02 15:04:05")
			}
			fmt.Printf("%-20s  %-30s  snapshots:%-5d  canonical:%-4d  last:%s\n",
				u.ID, u.Name, u.SnapshotCount, u.CanonicalEventCount, last)
		}
		return nil
	},
}

var universeShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show universe details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "UniverseShow", false)
		if err != nil {
			return err
		}
		defer a.Close()

		u, err := a.Service().GetUniverse(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("ID:              %s\n", u.ID)
		fmt.Printf("Name:            %s\n", u.Name)
		fmt.Printf("Owner:           %s\n", u.OwnerID)
		fmt.Printf("Created:         %s\n", u.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("Snapshots:       %d\n", u.SnapshotCount)
		fmt.Printf("Canonical:       %d\n", u.CanonicalEventCount)
		fmt.Printf("Public:          %t\n", u.Public)
		if u.ForkOrigin != nil {
			fmt.Printf("Forked from:     %s @ tick %d\n", u.ForkOrigin.SourceUniverseID, u.ForkOrigin.SourceTick)
		}
		return nil
	},
}

var universeDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Soft-delete a universe (history is retained)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "UniverseDelete", false)
		if err != nil {
			return err
		}
		defer a.Close()

		u, err := a.Service().SoftDeleteUniverse(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Universe %s marked deleted (%q)\n", u.ID, u.Name)
		return nil
	},
}

// snapshot command
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Save and load snapshots",
}

var snapshotSaveCmd = &cobra.Command{
	Use:   "save UNIVERSE TICK [FILE]",
	Short: "Append a snapshot from a file or stdin",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		day, _ := cmd.Flags().GetInt64("day")
		kind, _ := cmd.Flags().GetString("kind")

		tick, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid tick %q", args[1])
		}

		var payload []byte
		if len(args) == 3 {
			payload, err = os.ReadFile(args[2])
		} else {
			payload, err = io.ReadAll(os.Stdin)
		}
		if err != nil {
			return fmt.Errorf("reading payload: %w", err)
		}

		a, err := newApp(cmd.Context(), "SnapshotSave", false)
		if err != nil {
			return err
		}
		defer a.Close()

		entry, err := a.Service().AppendSnapshot(cmd.Context(), mvs.AppendSnapshotRequest{
			UniverseID: args[0],
			Tick:       tick,
			Day:        day,
			Kind:       model.SnapshotKind(kind),
			Payload:    payload,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Saved tick %d (%d bytes, %s)\n", entry.Tick, entry.ByteSize, entry.Checksum[:12])
		return nil
	},
}

var snapshotLoadCmd = &cobra.Command{
	Use:   "load UNIVERSE [TICK]",
	Short: "Load a snapshot payload to stdout or a file",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")

		a, err := newApp(cmd.Context(), "SnapshotLoad", true)
		if err != nil {
			return err
		}
		defer a.Close()

		var payload []byte
		var entry *model.TimelineEntry
		if len(args) == 2 {
			tick, perr := strconv.ParseInt(args[1], 10, 64)
			if perr != nil {
				return fmt.Errorf("invalid tick %q", args[1])
			}
			payload, entry, err = a.Service().LoadSnapshotAtTick(cmd.Context(), args[0], tick)
		} else {
			payload, entry, err = a.Service().LoadLatestSnapshot(cmd.Context(), args[0])
		}
		if err != nil {
			return err
		}

		if out != "" {
			if err := os.WriteFile(out, payload, 0644); err != nil {
				return fmt.Errorf("writing payload: %w", err)
			}
			fmt.Fprintf(os.Stderr, "Loaded tick %d to %s (%d bytes)\n", entry.Tick, out, entry.ByteSize)
			return nil
		}
		_, err = os.Stdout.Write(payload)
		return err
	},
}

var snapshotTimelineCmd = &cobra.Command{
	Use:   "timeline UNIVERSE",
	Short: "View a universe's timeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "SnapshotTimeline", false)
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.Service().GetTimeline(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if len(entries) == 0 {
			fmt.Println("Empty timeline.")
			return nil
		}
		for _, e := range entries {
			decay := fmt.Sprintf("decay:%d", e.Decay.DecayAfterTicks)
			if e.Decay.NeverDecay {
				decay = "never-decays"
			}
			title := ""
			if e.Event != nil {
				title = "  " + e.Event.Title
			}
			fmt.Printf("tick:%-10d  day:%-6d  %-9s  %8d bytes  %s%s\n",
				e.Tick, e.Day, e.Kind, e.ByteSize, decay, title)
		}
		return nil
	},
}

// sweep command
var sweepCmd = &cobra.Command{
	Use:   "sweep UNIVERSE CURRENT_TICK",
	Short: "Evict decayed snapshots from a universe",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		tick, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid tick %q", args[1])
		}

		a, err := newApp(cmd.Context(), "Sweep", false)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Service().SweepUniverse(cmd.Context(), args[0], tick)
		if err != nil {
			return err
		}

		fmt.Printf("Evaluated %d, evicted %d, preserved %d, freed %d bytes\n",
			res.Evaluated, res.Evicted, res.Preserved, res.BytesFreed)
		return nil
	},
}

// fork command
var forkCmd = &cobra.Command{
	Use:   "fork SOURCE TICK NEW_ID NAME",
	Short: "Fork a universe from a historical snapshot",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, _ := cmd.Flags().GetString("owner")

		tick, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid tick %q", args[1])
		}

		a, err := newApp(cmd.Context(), "Fork", false)
		if err != nil {
			return err
		}
		defer a.Close()

		u, err := a.Service().ForkUniverse(cmd.Context(), mvs.ForkUniverseRequest{
			SourceUniverseID: args[0],
			SourceTick:       tick,
			NewUniverseID:    args[2],
			Name:             args[3],
			OwnerID:          owner,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Forked %s @ tick %d into %s (%q)\n",
			u.ForkOrigin.SourceUniverseID, u.ForkOrigin.SourceTick, u.ID, u.Name)
		return nil
	},
}

// passage command
var passageCmd = &cobra.Command{
	Use:   "passage",
	Short: "Manage inter-universe passages",
}

var passageCreateCmd = &cobra.Command{
	Use:   "create SOURCE TARGET TYPE",
	Short: "Create a directed passage between universes",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		createdBy, _ := cmd.Flags().GetString("by")

		a, err := newApp(cmd.Context(), "PassageCreate", false)
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.Service().CreatePassage(cmd.Context(), mvs.CreatePassageRequest{
			SourceUniverseID: args[0],
			TargetUniverseID: args[1],
			Type:             model.PassageType(args[2]),
			CreatedBy:        createdBy,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Created %s passage %s: %s -> %s\n", p.Type, p.ID, p.SourceUniverseID, p.TargetUniverseID)
		return nil
	},
}

var passageListCmd = &cobra.Command{
	Use:   "list [UNIVERSE]",
	Short: "List passages, optionally filtered by endpoint universe",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "PassageList", false)
		if err != nil {
			return err
		}
		defer a.Close()

		universe := ""
		if len(args) == 1 {
			universe = args[0]
		}

		ps, err := a.Service().ListPassages(cmd.Context(), universe)
		if err != nil {
			return err
		}

		if len(ps) == 0 {
			fmt.Println("No passages.")
			return nil
		}
		for _, p := range ps {
			state := "active"
			if !p.Active {
				state = "closed"
			}
			fmt.Printf("%-36s  %-10s  %s -> %s  stability:%-3d  %s\n",
				p.ID, p.Type, p.SourceUniverseID, p.TargetUniverseID, p.Stability, state)
		}
		return nil
	},
}

// player command
var playerCmd = &cobra.Command{
	Use:   "player",
	Short: "Inspect player profiles",
}

var playerShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show a player and their universes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "PlayerShow", false)
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.Service().GetPlayer(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		ids, err := a.Service().GetPlayerUniverses(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("ID:           %s\n", p.ID)
		fmt.Printf("Display name: %s\n", p.DisplayName)
		fmt.Printf("Last seen:    %s\n", p.LastSeenAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("Universes:    %d\n", p.UniverseCount)
		for _, id := range ids {
			fmt.Printf("  %s\n", id)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	keysCmd.AddCommand(keysInitCmd)

	universeCmd.AddCommand(universeCreateCmd)
	universeCreateCmd.Flags().String("owner", "", "Owning player id")
	universeCreateCmd.Flags().Bool("public", false, "List the universe publicly")
	universeCmd.AddCommand(universeListCmd)
	universeListCmd.Flags().String("owner", "", "Filter by owning player id")
	universeListCmd.Flags().Bool("public", false, "Only public universes")
	universeCmd.AddCommand(universeShowCmd)
	universeCmd.AddCommand(universeDeleteCmd)

	snapshotCmd.AddCommand(snapshotSaveCmd)
	snapshotSaveCmd.Flags().Int64("day", 0, "Simulation day counter")
	snapshotSaveCmd.Flags().String("kind", "manual", "Snapshot kind: auto, manual, or canonical")
	snapshotCmd.AddCommand(snapshotLoadCmd)
	snapshotLoadCmd.Flags().String("out", "", "Write payload to a file instead of stdout")
	snapshotCmd.AddCommand(snapshotTimelineCmd)

	forkCmd.Flags().String("owner", "", "Owning player id for the fork")
	passageCmd.AddCommand(passageCreateCmd)
	passageCreateCmd.Flags().String("by", "", "Player id creating the passage")
	passageCmd.AddCommand(passageListCmd)

	playerCmd.AddCommand(playerShowCmd)

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(universeCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(forkCmd)
	rootCmd.AddCommand(passageCmd)
	rootCmd.AddCommand(playerCmd)
}
