package main

import (
	"fmt"
	"strings"

	"github.com/pingcap-incubator/omvcc/kv/engine"
	"github.com/pingcap-incubator/omvcc/kv/transaction/schedule"
	"github.com/pingcap/errors"
	"github.com/spf13/cobra"
)

var verbose bool

func newRunCommand() *cobra.Command {
	m := &cobra.Command{
		Use:   "run schedule.toml [schedule.toml ...]",
		Short: "Run schedules against a fresh engine each and check their expectations",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runScheduleCommandFunc,
	}
	m.Flags().BoolVarP(&verbose, "verbose", "v", false, "print the command log of passing schedules too")
	return m
}

func runScheduleCommandFunc(cmd *cobra.Command, args []string) error {
	failed := 0
	for _, path := range args {
		s, err := schedule.LoadFile(path)
		if err != nil {
			return err
		}
		if err := runOne(s); err != nil {
			failed++
			fmt.Printf("FAIL %s: %v\n", s.Name, err)
			continue
		}
		fmt.Printf("PASS %s\n", s.Name)
	}
	if failed > 0 {
		return errors.Errorf("%d of %d schedules failed", failed, len(args))
	}
	return nil
}

func runOne(s *schedule.Schedule) error {
	e, err := engine.NewEngine(conf)
	if err != nil {
		return err
	}
	defer e.Close()

	report, err := schedule.Run(e, s)
	if err != nil || verbose {
		fmt.Printf("----------- %s -----------\n", s.Name)
		fmt.Print(s)
		if report != nil {
			fmt.Println(strings.Join(report.Log, "\n"))
		}
	}
	return err
}
