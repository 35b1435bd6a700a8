package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"mcpdeck/internal/bindings"
	"mcpdeck/internal/collections"
	"mcpdeck/internal/config"
	"mcpdeck/internal/devstate"
	"mcpdeck/internal/logging"
	"mcpdeck/internal/threads"
)

var version = "0.1.0"

var (
	gatewayName string
	logLevel    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mcpdeck",
		Short: "Administer MCP gateways, collections and chat threads",
		Long: `mcpdeck talks to MCP gateways and connections: it discovers which
collections and capability bindings a tool surface exposes, and manages
conversation threads built on the collection protocol.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Configure(logging.ParseLevel(logLevel), os.Stderr)
		},
	}

	rootCmd.PersistentFlags().StringVar(&gatewayName, "gateway", "", "gateway to talk to (default: first configured)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		gatewaysCmd(),
		collectionsCmd(),
		bindingsCmd(),
		threadsCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version number",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("mcpdeck version %s\n", version)
			},
		},
	)

	if err := rootCmd.Execute(); err != nil {
		color.Red("error: %v", err)
		os.Exit(1)
	}
}

// deck bundles everything a command needs for one gateway.
type deck struct {
	cfg      *config.Config
	accessor *collections.Accessor
	scope    collections.Scope
	store    *threads.Store
}

func openDeck(ctx context.Context) (*deck, *gatewaySession, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	if cfg.Log.File {
		_ = os.MkdirAll(cfg.DataDir, 0755)
		if err := logging.EnableFileLogging(cfg.DataDir, logging.ParseLevel(cfg.Log.Level)); err != nil {
			logging.Warn("file logging unavailable", "error", err)
		}
	}

	session, err := connectGateway(ctx, cfg, gatewayName)
	if err != nil {
		return nil, nil, err
	}

	cache := collections.NewTTLCache(cfg.Cache.Capacity, cfg.Cache.TTL)
	accessor := collections.NewAccessor(session.client, cache)
	scope := collections.ConnectionScope(cfg.Org, session.name)

	state, err := devstate.Open(cfg.DataDir)
	if err != nil {
		session.Close()
		return nil, nil, err
	}
	mirror, err := threads.NewMirror(cfg.DataDir, scope)
	if err != nil {
		session.Close()
		return nil, nil, err
	}

	d := &deck{
		cfg:      cfg,
		accessor: accessor,
		scope:    scope,
		store:    threads.NewStore(accessor, scope, state, mirror),
	}
	return d, session, nil
}

func gatewaysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gateways",
		Short: "List configured gateways",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if len(cfg.Gateways) == 0 {
				fmt.Println("no gateways configured")
				return nil
			}
			for _, g := range cfg.Gateways {
				fmt.Printf("%s\t%s\n", color.CyanString(g.Name), g.URL)
			}
			return nil
		},
	}
}

func collectionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collections",
		Short: "Discover collections exposed by a gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			_, session, err := openDeck(ctx)
			if err != nil {
				return err
			}
			defer session.Close()

			tools, err := session.client.ListTools(ctx)
			if err != nil {
				return err
			}

			caps := bindings.DiscoverCollections(tools)
			if len(caps) == 0 {
				fmt.Println("no collections detected")
				return nil
			}
			for _, c := range caps {
				fmt.Printf("%s\tget=%v create=%v update=%v delete=%v\n",
					color.CyanString(c.Name), c.CanGet, c.CanCreate, c.CanUpdate, c.CanDelete)
			}
			return nil
		},
	}
}

func bindingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bindings",
		Short: "Check which capability bindings a gateway implements",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			_, session, err := openDeck(ctx)
			if err != nil {
				return err
			}
			defer session.Close()

			tools, err := session.client.ListTools(ctx)
			if err != nil {
				return err
			}

			for _, contract := range bindings.BuiltinContracts {
				if bindings.Implements(tools, contract) {
					fmt.Printf("%s\t%s\n", contract.Name, color.GreenString("implemented"))
				} else {
					fmt.Printf("%s\t%s\n", contract.Name, color.YellowString("not implemented"))
				}
			}
			return nil
		},
	}
}

func threadsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "threads",
		Short: "Manage conversation threads",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List visible threads",
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
				defer cancel()

				d, session, err := openDeck(ctx)
				if err != nil {
					return err
				}
				defer session.Close()

				active, err := d.store.ActiveThread(ctx)
				if err != nil {
					return err
				}
				list, err := d.store.ListThreads(ctx, false)
				if err != nil {
					return err
				}
				for _, t := range list {
					marker := "  "
					if t.ID == active {
						marker = color.GreenString("* ")
					}
					title := t.Title
					if title == "" {
						title = "(untitled)"
					}
					fmt.Printf("%s%s\t%s\t%s\n", marker, t.ID, title, t.UpdatedAt.Format(time.RFC3339))
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "new",
			Short: "Create a new thread and make it active",
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
				defer cancel()

				d, session, err := openDeck(ctx)
				if err != nil {
					return err
				}
				defer session.Close()

				t, err := d.store.CreateThread(ctx, nil)
				if err != nil {
					return err
				}
				fmt.Println(t.ID)
				return nil
			},
		},
		&cobra.Command{
			Use:   "hide <thread-id>",
			Short: "Hide a thread from default listings",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
				defer cancel()

				d, session, err := openDeck(ctx)
				if err != nil {
					return err
				}
				defer session.Close()

				return d.store.HideThread(ctx, args[0])
			},
		},
		&cobra.Command{
			Use:   "branch <thread-id> <message-id>",
			Short: "Fork a new thread from the messages before the given one",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
				defer cancel()

				d, session, err := openDeck(ctx)
				if err != nil {
					return err
				}
				defer session.Close()

				newID, err := d.store.BranchFromMessage(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				if newID == "" {
					color.Yellow("message %s not found in thread %s", args[1], args[0])
					return nil
				}
				fmt.Println(newID)
				return nil
			},
		},
	)

	return cmd
}
