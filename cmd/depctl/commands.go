package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/distribution/depctl/interp"
)

// cancellableContext returns a context cancelled on the host's interrupt
// signal (spec.md §5: "the top-level command responds to the host
// cancellation signal by dropping all in-flight tasks").
func cancellableContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "create a default manifest",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := configureLogging()
		o, err := buildOrchestrator(log)
		if err != nil {
			return err
		}
		return o.Init()
	},
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "run the install pipeline against the existing lockfile, resolving first if absent",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := configureLogging()
		o, err := buildOrchestrator(log)
		if err != nil {
			return err
		}
		ctx, cancel := cancellableContext()
		defer cancel()
		count, err := o.Install(ctx, false)
		if err != nil {
			return err
		}
		fmt.Printf("installed %d package(s)\n", count)
		return nil
	},
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "force re-resolution and sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := configureLogging()
		o, err := buildOrchestrator(log)
		if err != nil {
			return err
		}
		ctx, cancel := cancellableContext()
		defer cancel()
		count, err := o.Update(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("installed %d package(s)\n", count)
		return nil
	},
}

var addCmd = &cobra.Command{
	Use:   "add <name> [<version>]",
	Short: "declare a new direct dependency and re-resolve",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := configureLogging()
		o, err := buildOrchestrator(log)
		if err != nil {
			return err
		}
		version := ""
		if len(args) == 2 {
			version = args[1]
		}
		ctx, cancel := cancellableContext()
		defer cancel()
		count, err := o.Add(ctx, args[0], version)
		if err != nil {
			return err
		}
		fmt.Printf("installed %d package(s)\n", count)
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "undeclare a dependency and re-resolve",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := configureLogging()
		o, err := buildOrchestrator(log)
		if err != nil {
			return err
		}
		ctx, cancel := cancellableContext()
		defer cancel()
		count, err := o.Remove(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("installed %d package(s)\n", count)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "print manifest and lockfile summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := configureLogging()
		o, err := buildOrchestrator(log)
		if err != nil {
			return err
		}
		summary, err := o.List()
		if err != nil {
			return err
		}

		fmt.Printf("%s %s (python %s)\n", summary.Manifest.Name, summary.Manifest.Version, summary.Manifest.PythonVersion)
		for name, constraint := range summary.Manifest.Dependencies {
			fmt.Printf("  %s %s\n", name, constraint)
		}
		if summary.Lockfile == nil {
			fmt.Println("no lockfile")
			return nil
		}
		fmt.Printf("locked packages (%d):\n", len(summary.Lockfile.Packages))
		for name, pkg := range summary.Lockfile.Packages {
			fmt.Printf("  %s==%s\n", name, pkg.Version)
		}
		return nil
	},
}

var cleanAll bool
var cleanInterpreter bool

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "remove the environment, staging directory and lockfile",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := configureLogging()
		o, err := buildOrchestrator(log)
		if err != nil {
			return err
		}
		ctx, cancel := cancellableContext()
		defer cancel()
		return o.Clean(ctx, cleanAll, cleanInterpreter)
	},
}

func init() {
	cleanCmd.Flags().BoolVar(&cleanAll, "all", false, "also clear the shared artifact cache")
	cleanCmd.Flags().BoolVar(&cleanInterpreter, "interpreter", false, "also discard managed interpreters")
}

var runCmd = &cobra.Command{
	Use:                "run -- <cmd> [<args>...]",
	Short:              "run a command with the environment's scripts directory on PATH",
	Args:               cobra.MinimumNArgs(1),
	DisableFlagParsing: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// With flag parsing disabled cobra passes the "--" separator through.
		if args[0] == "--" {
			args = args[1:]
		}
		if len(args) == 0 {
			return errors.New("run: no command given")
		}

		log := configureLogging()
		o, err := buildOrchestrator(log)
		if err != nil {
			return err
		}

		summary, err := o.List()
		if err != nil {
			return err
		}

		env, err := o.EnvBuilder.Ensure(o.ProjectDir+string(os.PathSeparator)+summary.Manifest.VirtualEnvironment, summary.Manifest.PythonVersion, o.Host)
		if err != nil {
			return err
		}

		c := exec.Command(args[0], args[1:]...)
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		c.Env = append(os.Environ(),
			"PATH="+interp.PathWithScripts(env, os.Getenv("PATH")),
			interp.EnvRootVariable+"="+env.Root,
		)

		ctx, cancel := cancellableContext()
		defer cancel()
		if err := c.Start(); err != nil {
			return err
		}
		done := make(chan error, 1)
		go func() { done <- c.Wait() }()
		select {
		case <-ctx.Done():
			_ = c.Process.Kill()
			return ctx.Err()
		case err := <-done:
			return err
		}
	},
}
