package main

import (
	"fmt"
	"os"

	"github.com/cuemby/burrow/pkg/client"
	"github.com/cuemby/burrow/pkg/config"
	"github.com/cuemby/burrow/pkg/datastore"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// envFlags binds connection flags to the environment variables they
// override
var envFlags = map[string]string{
	config.EnvEndpoints:  "etcd-endpoints",
	config.EnvAuthority:  "etcd-authority",
	config.EnvScheme:     "etcd-scheme",
	config.EnvKeyFile:    "etcd-key-file",
	config.EnvCertFile:   "etcd-cert-file",
	config.EnvCACertFile: "etcd-ca-cert-file",
	config.EnvHostname:   "hostname",
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "burrowctl",
		Short: "burrowctl - manage the burrow networking datastore",
		Long: `burrowctl reads and writes the burrow control-plane datastore: hosts,
endpoints, profiles, IP pools, address assignments and BGP settings.

Connection settings come from the ETCD_* environment variables and can be
overridden with the matching flags.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, _ := cmd.Flags().GetString("log-level")
			jsonOutput, _ := cmd.Flags().GetBool("log-json")
			log.Init(log.Config{
				Level:      log.ParseLevel(level),
				JSONOutput: jsonOutput,
				Output:     cmd.ErrOrStderr(),
			})

			format, _ := cmd.Flags().GetString("output")
			return validateFormat(format)
		},
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"burrowctl version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	flags := rootCmd.PersistentFlags()
	flags.String("log-level", "warn", "Log level (debug, info, warn, error)")
	flags.Bool("log-json", false, "Log in JSON instead of console format")
	flags.StringP("output", "o", formatTable, "Output format (table, json, yaml)")
	flags.String("backend", string(client.BackendEtcd), "Store backend (etcd, bolt, memory)")
	flags.String("data-dir", "", "Data directory of the bolt backend")
	flags.String("etcd-endpoints", "", "Comma separated etcd URLs ($ETCD_ENDPOINTS)")
	flags.String("etcd-authority", "", "etcd host:port ($ETCD_AUTHORITY)")
	flags.String("etcd-scheme", "", "etcd scheme, http or https ($ETCD_SCHEME)")
	flags.String("etcd-key-file", "", "Client key for etcd ($ETCD_KEY_FILE)")
	flags.String("etcd-cert-file", "", "Client certificate for etcd ($ETCD_CERT_FILE)")
	flags.String("etcd-ca-cert-file", "", "CA certificate for etcd ($ETCD_CA_CERT_FILE)")
	flags.String("hostname", "", "Hostname of this node ($HOSTNAME)")

	rootCmd.AddCommand(newNodeCmd())
	rootCmd.AddCommand(newProfileCmd())
	rootCmd.AddCommand(newEndpointCmd())
	rootCmd.AddCommand(newPoolCmd())
	rootCmd.AddCommand(newIPAMCmd())
	rootCmd.AddCommand(newBGPCmd())
	rootCmd.AddCommand(newDatastoreCmd())

	return rootCmd
}

// newClient connects with flags taking precedence over the environment
func newClient(cmd *cobra.Command) (*datastore.Client, error) {
	getenv := func(key string) string {
		if name, ok := envFlags[key]; ok && cmd.Flags().Changed(name) {
			value, _ := cmd.Flags().GetString(name)
			return value
		}
		return os.Getenv(key)
	}

	cfg, err := config.Load(getenv)
	if err != nil {
		return nil, err
	}

	backend, _ := cmd.Flags().GetString("backend")
	dataDir, _ := cmd.Flags().GetString("data-dir")

	return client.NewClient(cfg, client.Options{
		Backend: client.Backend(backend),
		DataDir: dataDir,
	})
}

// withClient runs fn with a connected client and closes it afterwards
func withClient(fn func(cmd *cobra.Command, args []string, c *datastore.Client) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()
		return fn(cmd, args, c)
	}
}
