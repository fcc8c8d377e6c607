// dstub runs a native process under debug control and reports every stop
// that would be surfaced to a remote debugger. The wire protocol and
// command dispatch layers sit above the controller exercised here.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/go-dstub/dstub/pkg/config"
	"github.com/go-dstub/dstub/pkg/logflags"
	"github.com/go-dstub/dstub/pkg/target"
	"github.com/go-dstub/dstub/pkg/target/native"
)

const version string = "0.9.0"

const defaultMaxStringLen = 512

var (
	logFlag   bool
	logOutput string
	logDest   string
	workDir   string
)

var conf *config.Config

func main() {
	// Main dstub root command.
	rootCommand := &cobra.Command{
		Use:   "dstub",
		Short: "dstub controls a native process on behalf of a remote debugger.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if isatty.IsTerminal(os.Stderr.Fd()) {
				logflags.UseColors(colorable.NewColorableStderr())
			}
			if err := logflags.Setup(logFlag, logOutput, logDest); err != nil {
				return err
			}
			conf = config.LoadConfig()
			return nil
		},
	}
	rootCommand.PersistentFlags().BoolVarP(&logFlag, "log", "", false, "Enable debug stub logging.")
	rootCommand.PersistentFlags().StringVarP(&logOutput, "log-output", "", "", "Comma separated list of components that should produce debug output: target,events,memory.")
	rootCommand.PersistentFlags().StringVarP(&logDest, "log-dest", "", "", "Writes log output to the specified file.")

	// 'version' subcommand.
	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("dstub version: " + version)
		},
	}
	rootCommand.AddCommand(versionCommand)

	// 'exec' subcommand.
	execCommand := &cobra.Command{
		Use:   "exec <path> [args...]",
		Short: "Launch a process under debug control.",
		Long: `Launches the given program stopped under debug control, waits until it
reaches its initial breakpoint, then resumes it and reports every stop that
requires a debugger decision until the process exits.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spawner := native.NewExecSpawner(args[0], args[1:], workDir)
			p, err := native.Create(spawner)
			if err != nil {
				return fmt.Errorf("could not launch %s: %v", args[0], err)
			}
			return run(p)
		},
	}
	execCommand.Flags().StringVarP(&workDir, "wd", "", "", "Working directory for the program.")
	rootCommand.AddCommand(execCommand)

	// 'attach' subcommand.
	attachCommand := &cobra.Command{
		Use:   "attach <pid>",
		Short: "Attach to a running process.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid pid: %s", args[0])
			}
			p, err := native.Attach(pid)
			if err != nil {
				return fmt.Errorf("could not attach to pid %d: %v", pid, err)
			}
			return run(p)
		},
	}
	rootCommand.AddCommand(attachCommand)

	defer logflags.Close()
	if err := rootCommand.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run drives a controller that has already reached its initial breakpoint:
// report the loaded modules, then resume and print every surfaced stop
// until the target goes away. The first interrupt signal breaks into the
// target, the second kills it.
func run(p *native.Process) error {
	fmt.Printf("target %d stopped at initial breakpoint\n", p.Pid())

	err := p.EnumerateSharedLibraries(func(sl target.SharedLibraryInfo) {
		marker := " "
		if sl.Main {
			marker = "*"
		}
		fmt.Printf("%s %#-14x %s\n", marker, sl.Sections[0], conf.Substitute(sl.Path))
	})
	if err != nil && !errors.Is(err, target.ErrUnsupported) {
		fmt.Fprintf(os.Stderr, "could not list loaded modules: %v\n", err)
	}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)
	go func() {
		<-ch
		p.Interrupt()
		<-ch
		p.Terminate()
	}()

	maxStringLen := defaultMaxStringLen
	if conf.MaxStringLen != nil {
		maxStringLen = *conf.MaxStringLen
	}

	for {
		if err := p.Resume(); err != nil {
			return err
		}
		if err := p.Wait(); err != nil {
			return err
		}

		si := p.CurrentStop()
		switch si.Event {
		case target.EventExit:
			fmt.Printf("target %d exited with status %d\n", p.Pid(), si.Status)
			return nil
		case target.EventKill:
			fmt.Printf("target %d killed\n", p.Pid())
			return nil
		}

		if si.Reason == target.ReasonDebugOutput {
			if msg, err := p.ReadDebugString(maxStringLen); err == nil {
				fmt.Printf("target %d says: %s\n", p.Pid(), msg)
				continue
			}
		}
		fmt.Printf("target %d stopped: %s\n", p.Pid(), si)
	}
}
