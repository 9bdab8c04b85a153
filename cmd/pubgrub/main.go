package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/thosakwe/pubgrub"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var verbose bool
	var sdk string

	cmd := &cobra.Command{
		Use:           "pubgrub",
		Short:         "pubgrub resolves package versions from a YAML registry",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log solver progress")
	cmd.PersistentFlags().StringVar(&sdk, "sdk", "", "SDK version to check package SDK constraints against")

	cmd.AddCommand(&cobra.Command{
		Use:   "solve <registry.yaml>",
		Short: "Resolve the registry's root package and print the selected versions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSolve(cmd, args[0], sdk, verbose)
		},
	})
	return cmd
}

func runSolve(cmd *cobra.Command, path, sdk string, verbose bool) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening registry")
	}
	defer f.Close()

	sm, root, err := pubgrub.LoadRegistry(f)
	if err != nil {
		return err
	}

	l := logrus.New()
	l.Out = cmd.ErrOrStderr()
	l.Level = logrus.WarnLevel
	if verbose {
		l.Level = logrus.DebugLevel
	}

	solver := pubgrub.NewSolver(sm, l)
	if sdk != "" {
		v, err := semver.NewVersion(sdk)
		if err != nil {
			return errors.Wrapf(err, "malformed sdk version %q", sdk)
		}
		solver.SetSDKVersion(v)
	}

	result, err := solver.Solve(root)
	if err != nil {
		var failure *pubgrub.SolveFailure
		if errors.As(err, &failure) {
			fmt.Fprintln(cmd.ErrOrStderr(), failure.Error())
			return errors.New("version solving failed")
		}
		return err
	}

	names := make([]string, 0, len(result.Projects))
	for name := range result.Projects {
		names = append(names, string(name))
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", name, result.Projects[pubgrub.ProjectName(name)])
	}
	return nil
}
