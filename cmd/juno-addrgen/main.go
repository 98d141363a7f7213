// juno-addrgen derives Juno Cash Orchard-only unified addresses from a
// unified full viewing key, offline.
//
// Example usage:
//
//	# One address
//	juno-addrgen derive --ufvk-file ufvk.txt --index 7
//
//	# A range of addresses as JSON
//	juno-addrgen batch --ufvk-env JUNO_UFVK --start 0 --count 100 --json
//
//	# A ZIP 321 payment request for a fresh address
//	juno-addrgen request --ufvk - --index 12 --amount 1.5 --memo "invoice 12"
//
// Exit status is 0 on success, 1 when derivation fails and 2 on usage
// errors.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/btcsuite/btclog"
	"github.com/spf13/cobra"

	"github.com/junocash-tools/juno-addrgen/internal/logging"
	"github.com/junocash-tools/juno-addrgen/pkg/addrgen"
	"github.com/junocash-tools/juno-addrgen/pkg/zip321"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var log = btclog.Disabled

// Deriver is the part of addrgen.Deriver the commands use.
type Deriver interface {
	Derive(ufvk string, index uint32) (string, error)
	Batch(ufvk string, start, count uint32) ([]string, error)
}

// DeriverFactory returns a Deriver for a network.
type DeriverFactory func(net *addrgen.Network) Deriver

func newDeriver(net *addrgen.Network) Deriver {
	return addrgen.NewDeriver(addrgen.WithNetwork(net))
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr, newDeriver))
}

// exitError reports a failure that has already been written out.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// usageError marks bad flags or arguments.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usagef(format string, args ...interface{}) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// app holds the state shared by the commands of one invocation.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	factory DeriverFactory

	network  string
	logLevel string
	net      *addrgen.Network
}

// run executes the command line in args and returns the exit status.
//
// Parameters:
//   - args: Arguments without the program name
//   - stdin: Source for --ufvk -
//   - stdout, stderr: Output streams
//   - factory: Builds the Deriver once the network is known
//
// Returns:
//   - 0 on success, 1 on a derivation error, 2 on a usage error
func run(args []string, stdin io.Reader, stdout, stderr io.Writer, factory DeriverFactory) int {
	a := &app{
		stdin:   stdin,
		stdout:  stdout,
		stderr:  stderr,
		factory: factory,
	}

	root := a.rootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err == nil {
		return 0
	}

	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}

	// Anything cobra or a command rejects before derivation is a usage error.
	a.printError(err.Error())
	return 2
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "juno-addrgen",
		Short: "Offline Orchard address derivation for Juno Cash",
		Long: `Derive Juno Cash Orchard-only unified addresses (j1...) from a unified
full viewing key (jview1...) and a diversifier index.

The tool is offline; it never talks to junocashd or the network.

UFVKs are sensitive. They are watch-only but reveal incoming transaction
details. Prefer --ufvk-file, --ufvk-env or --ufvk - over passing the key on
the command line.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.network, "network", addrgen.MainNet.Name, "Network: mainnet, testnet or regtest")
	pf.StringVar(&a.logLevel, "log-level", "info", "Log level: trace, debug, info, warn, error, critical or off")

	root.AddCommand(a.deriveCmd(), a.batchCmd(), a.requestCmd(), a.versionCmd())
	return root
}

// setup resolves the network and wires the loggers.
func (a *app) setup() error {
	net, err := addrgen.NetworkByName(a.network)
	if err != nil {
		return &usageError{err: err}
	}
	a.net = net

	loggers, err := logging.Setup(a.stderr, a.logLevel,
		logging.Subsystem{Tag: logging.TagAddrgen, Use: addrgen.UseLogger},
		logging.Subsystem{Tag: logging.TagCLI},
	)
	if err != nil {
		return &usageError{err: err}
	}
	log = loggers[logging.TagCLI]
	return nil
}

// ============================================================================
// Commands
// ============================================================================

func (a *app) deriveCmd() *cobra.Command {
	var (
		key     keyFlags
		index   uint64
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Derive the address at one diversifier index",
		Example: `  juno-addrgen derive --ufvk-file ufvk.txt --index 0
  juno-addrgen derive --ufvk-env JUNO_UFVK --index 42 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ufvk, err := key.read(a.stdin, a.stderr)
			if err != nil {
				return err
			}

			idx, ok := toUint32(index)
			if !ok {
				return a.writeErr(jsonOut, codeIndexInvalid, "index out of range")
			}

			log.Debugf("Deriving %s address at index %d", a.net, idx)
			address, err := a.factory(a.net).Derive(ufvk, idx)
			if err != nil {
				return a.fail(jsonOut, err)
			}

			if jsonOut {
				return a.writeJSON(map[string]interface{}{
					"version": jsonVersion,
					"status":  addrgen.StatusOK,
					"address": address,
				})
			}
			fmt.Fprintln(a.stdout, address)
			return nil
		},
	}

	key.register(cmd)
	cmd.Flags().Uint64Var(&index, "index", 0, "Diversifier index (0..2^32-1)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "JSON output")
	return cmd
}

func (a *app) batchCmd() *cobra.Command {
	var (
		key          keyFlags
		start, count uint64
		jsonOut      bool
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Derive the addresses for a contiguous index range",
		Example: `  juno-addrgen batch --ufvk-file ufvk.txt --start 0 --count 10
  juno-addrgen batch --ufvk - --start 1000 --count 500 --json < ufvk.txt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ufvk, err := key.read(a.stdin, a.stderr)
			if err != nil {
				return err
			}

			s, ok := toUint32(start)
			if !ok {
				return a.writeErr(jsonOut, codeIndexInvalid, "start out of range")
			}
			c, ok := toUint32(count)
			if !ok || c == 0 {
				return a.writeErr(jsonOut, codeCountInvalid, "count out of range")
			}

			log.Debugf("Deriving %d %s addresses from index %d", c, a.net, s)
			addresses, err := a.factory(a.net).Batch(ufvk, s, c)
			if err != nil {
				return a.fail(jsonOut, err)
			}

			if jsonOut {
				return a.writeJSON(map[string]interface{}{
					"version":   jsonVersion,
					"status":    addrgen.StatusOK,
					"start":     s,
					"count":     c,
					"addresses": addresses,
				})
			}
			for _, address := range addresses {
				fmt.Fprintln(a.stdout, address)
			}
			return nil
		},
	}

	key.register(cmd)
	cmd.Flags().Uint64Var(&start, "start", 0, "Start diversifier index (0..2^32-1)")
	cmd.Flags().Uint64Var(&count, "count", 0, "Number of addresses (1..100000)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "JSON output")
	return cmd
}

func (a *app) requestCmd() *cobra.Command {
	var (
		key     keyFlags
		index   uint64
		amount  string
		memo    string
		label   string
		message string
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "request",
		Short: "Print a ZIP 321 payment request for the address at an index",
		Example: `  juno-addrgen request --ufvk-file ufvk.txt --index 3 --amount 2.5
  juno-addrgen request --ufvk-env JUNO_UFVK --index 4 --memo "order 4" --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ufvk, err := key.read(a.stdin, a.stderr)
			if err != nil {
				return err
			}

			var payment zip321.Payment
			flags := cmd.Flags()
			if flags.Changed("amount") {
				v, err := zip321.ParseAmount(amount)
				if err != nil {
					return usagef("invalid --amount: %v", err)
				}
				payment.Amount = &v
			}
			if flags.Changed("memo") {
				if len(memo) > zip321.MaxMemoSize {
					return usagef("--memo is %d bytes, max %d", len(memo), zip321.MaxMemoSize)
				}
				payment.Memo = []byte(memo)
			}
			if flags.Changed("label") {
				payment.Label = &label
			}
			if flags.Changed("message") {
				payment.Message = &message
			}

			idx, ok := toUint32(index)
			if !ok {
				return a.writeErr(jsonOut, codeIndexInvalid, "index out of range")
			}

			address, err := a.factory(a.net).Derive(ufvk, idx)
			if err != nil {
				return a.fail(jsonOut, err)
			}
			payment.Address = address

			req := &zip321.PaymentRequest{Payments: []zip321.Payment{payment}}
			uri := req.Encode(a.net.URIScheme)

			if jsonOut {
				return a.writeJSON(map[string]interface{}{
					"version": jsonVersion,
					"status":  addrgen.StatusOK,
					"address": address,
					"uri":     uri,
				})
			}
			fmt.Fprintln(a.stdout, uri)
			return nil
		},
	}

	key.register(cmd)
	f := cmd.Flags()
	f.Uint64Var(&index, "index", 0, "Diversifier index (0..2^32-1)")
	f.StringVar(&amount, "amount", "", "Requested amount in JUNO (up to 8 decimals)")
	f.StringVar(&memo, "memo", "", "Memo text (up to 512 bytes)")
	f.StringVar(&label, "label", "", "Label for the recipient")
	f.StringVar(&message, "message", "", "Message for the payer")
	f.BoolVar(&jsonOut, "json", false, "JSON output")
	return cmd
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(a.stdout, "juno-addrgen %s\n", version)
			return nil
		},
	}
}

func toUint32(v uint64) (uint32, bool) {
	if v > uint64(^uint32(0)) {
		return 0, false
	}
	return uint32(v), true
}
