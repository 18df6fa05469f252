package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	"github.com/spf13/cobra"

	"github.com/joeblew999/plat-mapview/internal/app"
	"github.com/joeblew999/plat-mapview/internal/config"
	"github.com/joeblew999/plat-mapview/internal/engine"
	"github.com/joeblew999/plat-mapview/internal/measure"
	"github.com/joeblew999/plat-mapview/internal/notify"
	"github.com/joeblew999/plat-mapview/internal/remote"
	"github.com/joeblew999/plat-mapview/internal/session"
	"github.com/joeblew999/plat-mapview/internal/shell"
)

var cfgFile string

// flagKeys maps persistent flags to config keys.
var flagKeys = map[string]string{
	"api-url":   "api.base_url",
	"wms-url":   "wms.base_url",
	"workspace": "wms.workspace",
	"token":     "session.token",
	"verbose":   "verbose",
}

func addClientFlags(root *cobra.Command) {
	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is ./mapview.yaml)")
	pf.String("api-url", "", "Remote API base URL")
	pf.String("wms-url", "", "WMS base URL (the part before /<workspace>/wms)")
	pf.String("workspace", "", "WMS workspace")
	pf.String("token", "", "Session token (overrides the token file)")
	pf.Bool("verbose", false, "Enable debug logging")
}

// loadConfig merges defaults, the config file, MAPVIEW_* env vars and any
// flags set on the command line, then configures logging.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	v := config.New(cfgFile)
	pf := cmd.Root().PersistentFlags()
	for flag, key := range flagKeys {
		f := pf.Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return config.Config{}, fmt.Errorf("bind --%s: %w", flag, err)
		}
	}
	cfg, err := config.Load(v)
	if err != nil {
		return config.Config{}, err
	}

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	if cfg.Verbose && v.ConfigFileUsed() != "" {
		slog.Debug("using config file", "path", v.ConfigFileUsed())
	}
	return cfg, nil
}

func newClient(cfg config.Config) *remote.Client {
	return remote.New(cfg.API.BaseURL, remote.WithTimeout(cfg.API.Timeout), remote.WithLogger(slog.Default()))
}

func shellCmd() *cobra.Command {
	var shareBase string
	var quiet bool
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Drive the map viewer from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			bus := notify.NewBus()
			a, err := app.New(app.Options{Config: cfg, Notifier: bus, Logger: slog.Default()})
			if err != nil {
				return err
			}
			defer a.Close()

			sh := shell.New(a, cmd.OutOrStdout(), bus, shareBase)
			defer sh.Close()
			if err := a.Start(ctx); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
			}
			return sh.Run(ctx, cmd.InOrStdin(), !quiet)
		},
	}
	cmd.Flags().StringVar(&shareBase, "share-base", "http://localhost:8087/", "Base URL used by the share command")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print a prompt (for scripted input)")
	return cmd
}

func layersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "layers",
		Short: "List the layers declared by the remote API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			list, err := newClient(cfg).ListLayers(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, l := range list {
				fmt.Fprintf(out, "%-4s %-20s %-8s %-10s visible=%t\n", l.ID, l.Name, l.Color, l.GeometryType, l.Visible)
			}
			return nil
		},
	}
}

func searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search features through the remote API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			records, err := newClient(cfg).SearchFeatures(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range records {
				props, err := r.PropertiesMap()
				if err != nil {
					fmt.Fprintf(out, "%s (layer %s): unreadable properties\n", r.ID, r.LayerID)
					continue
				}
				fmt.Fprintf(out, "%s (layer %s): %v\n", r.ID, r.LayerID, props)
			}
			fmt.Fprintf(out, "%d record(s)\n", len(records))
			return nil
		},
	}
}

func measureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "measure <lon> <lat> <lon> <lat> [...]",
		Short: "Print the great-circle length of a lon/lat polyline",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 4 || len(args)%2 != 0 {
				return fmt.Errorf("need at least two lon/lat pairs")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ls := make(orb.LineString, 0, len(args)/2)
			for i := 0; i < len(args); i += 2 {
				lon, err := strconv.ParseFloat(args[i], 64)
				if err != nil {
					return fmt.Errorf("lon %q: %w", args[i], err)
				}
				lat, err := strconv.ParseFloat(args[i+1], 64)
				if err != nil {
					return fmt.Errorf("lat %q: %w", args[i+1], err)
				}
				ls = append(ls, orb.Point{lon, lat})
			}
			fmt.Fprintln(cmd.OutOrStdout(), measure.FormatLength(engine.Length(ls, engine.ProjWGS84)))
			return nil
		},
	}
}

func tokenCmd() *cobra.Command {
	var (
		role    string
		subject string
		ttl     time.Duration
		save    bool
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an unsigned development token",
		RunE: func(cmd *cobra.Command, args []string) error {
			r := session.ParseRole(role)
			token := session.MintDevToken(subject, r, ttl)
			if !save {
				fmt.Fprintln(cmd.OutOrStdout(), token)
				return nil
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := (session.FileStore{Path: cfg.Session.TokenFile}).Set(token); err != nil {
				return fmt.Errorf("save token: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s token for %q saved to %s\n", r, subject, cfg.Session.TokenFile)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", string(session.Viewer), "Role claim (VISUALIZADOR, ADMIN, SUPERADMIN)")
	cmd.Flags().StringVar(&subject, "subject", "dev", "Subject claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	cmd.Flags().BoolVar(&save, "save", false, "Write the token to the session token file")
	return cmd
}

