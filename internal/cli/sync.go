package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tablesync/internal/client"
	"github.com/roach88/tablesync/internal/codec"
	"github.com/roach88/tablesync/internal/ir"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	User      string
	Password  string
	Codec     string
	MaxRounds int
	Verb      string
	Table     string
	Payload   string
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync <url>",
		Short: "Sync an in-memory replica against a server until EOF",
		Long: `Sync an in-memory replica against a server until EOF.

An optional action is sent with the first request. The payload is JSON: an
object of fields for CREATE and UPDATE (UPDATE includes "id"), a row id for
DELETE.

Example:
  tablesync sync http://localhost:8080/sync --user ann --password secret
  tablesync sync http://localhost:8080/sync --user ann --password secret \
    --verb CREATE --table branch --payload '{"name":"north"}'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.User, "user", "u", "", "user name (required)")
	cmd.Flags().StringVarP(&opts.Password, "password", "p", "", "password")
	cmd.Flags().StringVar(&opts.Codec, "codec", "json", "wire encoding (json|msgpack)")
	cmd.Flags().IntVar(&opts.MaxRounds, "max-rounds", client.DefaultMaxRounds, "give up after this many requests")
	cmd.Flags().StringVar(&opts.Verb, "verb", "", "action verb (CREATE|UPDATE|DELETE)")
	cmd.Flags().StringVar(&opts.Table, "table", "", "action table")
	cmd.Flags().StringVar(&opts.Payload, "payload", "", "action payload as JSON")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

// SyncReport is the output of the sync command.
type SyncReport struct {
	Rounds       int            `json:"rounds"`
	ActionResult *string        `json:"action_result"`
	Removed      int            `json:"removed"`
	Rows         map[string]int `json:"rows"`
}

func (r SyncReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Synced in %d round(s)", r.Rounds)
	if r.ActionResult != nil {
		fmt.Fprintf(&b, "\nAction failed: %s", *r.ActionResult)
	}
	for _, name := range sortedKeys(r.Rows) {
		fmt.Fprintf(&b, "\n  %s: %d row(s)", name, r.Rows[name])
	}
	if r.Removed > 0 {
		fmt.Fprintf(&b, "\n  removed: %d row(s)", r.Removed)
	}
	return b.String()
}

func runSync(opts *SyncOptions, url string, cmd *cobra.Command) error {
	cd, err := codec.ByName(opts.Codec)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --codec", err)
	}
	action, err := parseActionFlags(opts.Verb, opts.Table, opts.Payload)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid action", err)
	}

	out := opts.formatter(cmd)
	c := client.New(url, opts.User, opts.Password,
		client.WithCodec(cd),
		client.WithMaxRounds(opts.MaxRounds),
	)

	out.VerboseLog("syncing against %s", url)
	sum, err := c.Sync(cmd.Context(), action)
	if err != nil {
		return WrapExitError(ExitFailure, "sync failed", err)
	}

	report := SyncReport{
		Rounds:       sum.Rounds,
		ActionResult: sum.ActionResult,
		Removed:      sum.Removed,
		Rows:         make(map[string]int),
	}
	for _, name := range c.Replica().Tables() {
		report.Rows[name] = c.Replica().Len(name)
	}
	return out.Success(report)
}

// parseActionFlags builds an action from --verb, --table and --payload.
// All three empty means no action.
func parseActionFlags(verb, table, payload string) (*ir.Action, error) {
	if verb == "" && table == "" && payload == "" {
		return nil, nil
	}
	if verb == "" || table == "" || payload == "" {
		return nil, fmt.Errorf("--verb, --table and --payload must be given together")
	}
	v, err := ir.ParseVerb(verb)
	if err != nil {
		return nil, err
	}
	p, err := ir.UnmarshalValue([]byte(payload))
	if err != nil {
		return nil, fmt.Errorf("payload: %w", err)
	}
	return &ir.Action{Verb: v, Table: table, Payload: p}, nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
