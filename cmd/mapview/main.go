package main

import (
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-mapview/internal/devapi"
)

// Options defines the CLI flags and env vars for the dev API server.
// Flags: --host, --port, --fixtures
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_FIXTURES
type Options struct {
	Host     string `doc:"Host to bind to" default:"0.0.0.0"`
	Port     int    `doc:"Port to listen on" short:"p" default:"8087"`
	Fixtures string `doc:"YAML fixture file (built-in demo data when empty)" default:""`
}

func newServer(opts *Options) (*devapi.Server, error) {
	return devapi.New(devapi.Config{
		Host:     opts.Host,
		Port:     fmt.Sprintf("%d", opts.Port),
		Fixtures: opts.Fixtures,
		Logger:   slog.Default().With("component", "devapi"),
	})
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		hooks.OnStart(func() {
			srv, err := newServer(opts)
			if err != nil {
				log.Fatalf("Fixture error: %v", err)
			}

			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("mapview dev API starting...\n")
			fmt.Printf("  Server:    %s\n", baseURL)
			fmt.Printf("  Workspace: %s (%d layers)\n", srv.Store().Workspace(), len(srv.Store().List()))
			fmt.Println()
			fmt.Printf("  Layers:  %s/api/v1/layers\n", baseURL)
			fmt.Printf("  WMS:     %s/geoserver/%s/wms\n", baseURL, srv.Store().Workspace())
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Println()

			if err := http.ListenAndServe(addr, srv); err != nil {
				log.Fatalf("Server error: %v", err)
			}
		})
	})

	root := cli.Root()
	root.Use = "mapview"
	root.Short = "Map viewer client with a fixture-backed dev API"
	root.Version = "0.1.0"
	addClientFlags(root)

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export the dev API OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv, err := newServer(opts)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error loading fixtures: %v\n", err)
				os.Exit(1)
			}
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	root.AddCommand(specCmd)

	root.AddCommand(shellCmd(), layersCmd(), searchCmd(), measureCmd(), tokenCmd())

	cli.Run()
}
