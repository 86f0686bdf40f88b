package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/Adda-Baaj/phantombuster-relay/pkg/relayclient"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// settings holds the resolved global flags.
type settings struct {
	v *viper.Viper
}

func (s *settings) client() (*relayclient.Client, error) {
	timeout := s.v.GetDuration("timeout")
	if timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive")
	}
	return relayclient.New(
		s.v.GetString("server"),
		relayclient.WithPrefix(s.v.GetString("prefix")),
		relayclient.WithTimeout(timeout),
	)
}

func (s *settings) format() (string, error) {
	f := strings.ToLower(strings.TrimSpace(s.v.GetString("output")))
	switch f {
	case formatJSON, formatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (want json or yaml)", f)
	}
}

func newRootCmd() *cobra.Command {
	s := &settings{v: viper.New()}

	root := &cobra.Command{
		Use:           "pbctl",
		Short:         "Query a running PhantomBuster relay",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	flags := root.PersistentFlags()
	flags.String("server", relayclient.DefaultServer, "Relay base address")
	flags.String("prefix", relayclient.DefaultPrefix, "Relay route prefix")
	flags.StringP("output", "o", formatJSON, "Output format: json or yaml")
	flags.Duration("timeout", 30*time.Second, "Per-request timeout")

	// PBCTL_SERVER, PBCTL_OUTPUT, ... override the defaults.
	flags.VisitAll(func(f *pflag.Flag) {
		_ = s.v.BindPFlag(f.Name, f)
	})
	s.v.SetEnvPrefix("pbctl")
	s.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	s.v.AutomaticEnv()

	root.AddCommand(newAgentsCmd(s), newContainersCmd(s))
	return root
}

// runCall builds the client, performs one call and renders its payload.
func runCall(cmd *cobra.Command, s *settings, call func(c *relayclient.Client) (any, error)) error {
	format, err := s.format()
	if err != nil {
		return err
	}
	c, err := s.client()
	if err != nil {
		return err
	}
	payload, err := call(c)
	if err != nil {
		return err
	}
	return render(cmd.OutOrStdout(), format, payload)
}
