// Command vaporc drives the MiniJava-to-VaporM pipeline (internal/compiler) over the programmatic demo
// programs (internal/demo), mirroring the teacher's phase-at-a-time CLI shape (src/main.go's -ts/-vb flags)
// as cobra subcommands: check stops after the type checker, lower after the Vapor lowerer, allocate after
// register allocation.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"vaporc/internal/compiler"
	"vaporc/internal/demo"
	"vaporc/internal/mjast"
)

var programs = map[string]func() *mjast.Program{
	"factorial":    demo.Factorial,
	"shapes":       demo.BinaryTreeInsert,
	"array-bounds": demo.ArrayBoundsDemo,
}

func main() {
	var opt compiler.Options
	var program string

	root := &cobra.Command{
		Use:   "vaporc",
		Short: "MiniJava to VaporM compiler toolchain",
	}
	root.PersistentFlags().BoolVarP(&opt.Verbose, "verbose", "v", false, "log each phase boundary")
	root.PersistentFlags().IntVarP(&opt.Threads, "threads", "t", 1, "parallelize liveness/allocation across functions")
	root.PersistentFlags().StringVarP(&program, "program", "p", "factorial", "demo program to compile (factorial, shapes, array-bounds)")

	root.AddCommand(
		checkCmd(&opt, &program),
		lowerCmd(&opt, &program),
		allocateCmd(&opt, &program),
		demoCmd(),
	)

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if opt.Verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}
		return nil
	}
	if err := root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func resolveProgram(name string) (*mjast.Program, error) {
	build, ok := programs[name]
	if !ok {
		return nil, fmt.Errorf("unknown demo program %q", name)
	}
	return build(), nil
}

func checkCmd(opt *compiler.Options, program *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "run the symbol table builder and type checker, report the first error or success",
		RunE: func(cmd *cobra.Command, args []string) error {
			prog, err := resolveProgram(*program)
			if err != nil {
				return err
			}
			if _, err := compiler.New(*opt).Check(prog); err != nil {
				return err
			}
			fmt.Println("ok")
			return nil
		},
	}
}

func lowerCmd(opt *compiler.Options, program *string) *cobra.Command {
	return &cobra.Command{
		Use:   "lower",
		Short: "run phases A-D and print the lowered Vapor IR",
		RunE: func(cmd *cobra.Command, args []string) error {
			prog, err := resolveProgram(*program)
			if err != nil {
				return err
			}
			lowered, err := compiler.New(*opt).Lower(prog)
			if err != nil {
				return err
			}
			fmt.Print(lowered.Vapor.String())
			return nil
		},
	}
}

func allocateCmd(opt *compiler.Options, program *string) *cobra.Command {
	return &cobra.Command{
		Use:   "allocate",
		Short: "run the full pipeline A-E and print the finalized VaporM source",
		RunE: func(cmd *cobra.Command, args []string) error {
			prog, err := resolveProgram(*program)
			if err != nil {
				return err
			}
			text, err := compiler.New(*opt).Allocate(prog)
			if err != nil {
				return err
			}
			fmt.Print(text)
			return nil
		},
	}
}

func demoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "list the available demo programs",
		Run: func(cmd *cobra.Command, args []string) {
			for name := range programs {
				fmt.Println(name)
			}
		},
	}
}
