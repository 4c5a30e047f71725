package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-thurstone/internal/application"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect and remove stored ranking sessions.",
	Long: `sessions works on the store selected with --store and --store-dsn (or
THURSTONE_STORE and THURSTONE_STORE_DSN).`,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions and their progress.",
	Args:  cobra.NoArgs,
	RunE:  runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show a session's progress, or its ranking once complete.",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>...",
	Short: "Delete stored sessions.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSessionsDelete,
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd, sessionsDeleteCmd)
}

func openSessionService() (*application.Service, func(), error) {
	st, err := openStore(storeConfig(nil))
	if err != nil {
		return nil, nil, err
	}
	return newService(nil, st), func() { closeStore(st) }, nil
}

func runSessionsList(cmd *cobra.Command, _ []string) error {
	svc, done, err := openSessionService()
	if err != nil {
		return err
	}
	defer done()

	ctx := cmd.Context()
	ids, err := svc.List(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(ids) == 0 {
		_, err := fmt.Fprintln(out, "No sessions.")
		return err
	}
	for _, id := range ids {
		cur, _, err := svc.Current(ctx, id)
		if err != nil {
			fmt.Fprintf(out, "%s  %s\n", id, warnColor.Sprint(err.Error()))
			continue
		}
		fmt.Fprintf(out, "%s  %d / %d\n", id, cur.Done, cur.Total)
	}
	return nil
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	svc, done, err := openSessionService()
	if err != nil {
		return err
	}
	defer done()

	ctx := cmd.Context()
	id := args[0]
	cur, pending, err := svc.Current(ctx, id)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if pending {
		_, err := fmt.Fprintf(out, "Session %s: %d of %d comparisons made.\nNext: %q vs %q\n",
			id, cur.Done, cur.Total, cur.A.Label(), cur.B.Label())
		return err
	}
	result, err := svc.Result(ctx, id)
	if err != nil {
		return err
	}
	return printResult(out, result)
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	svc, done, err := openSessionService()
	if err != nil {
		return err
	}
	defer done()

	for _, id := range args {
		if err := svc.Delete(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
	}
	return nil
}
