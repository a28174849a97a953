package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/mattn/go-shellwords"
	"github.com/pingcap-incubator/omvcc/kv/engine"
	"github.com/pingcap/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var historyFile string

func newShellCommand() *cobra.Command {
	m := &cobra.Command{
		Use:   "shell",
		Short: "Interactive transaction shell",
		Args:  cobra.NoArgs,
		RunE:  runShellCommandFunc,
	}
	m.Flags().StringVar(&historyFile, "history", "/tmp/omvcc.history", "readline history file")
	return m
}

var shellEngine *engine.Engine

func runShellCommandFunc(cmd *cobra.Command, args []string) error {
	e, err := engine.NewEngine(conf)
	if err != nil {
		return err
	}
	defer e.Close()
	handleSignal(e)
	shellEngine = e
	return shellLoop()
}

func runShellCommand(args []string) {
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "omvcc shell command",
	}
	cmd.SetArgs(args)

	cmd.AddCommand(
		&cobra.Command{
			Use:                   "begin",
			Short:                 "Begin a transaction",
			Args:                  cobra.NoArgs,
			Run:                   runShellBeginCommand,
			DisableFlagsInUseLine: true,
		},
		&cobra.Command{
			Use:                   "read txn key",
			Short:                 "Read a key",
			Args:                  cobra.ExactArgs(2),
			Run:                   runShellReadCommand,
			DisableFlagsInUseLine: true,
		},
		&cobra.Command{
			Use:                   "write txn key value",
			Short:                 "Write a key",
			Args:                  cobra.ExactArgs(3),
			Run:                   runShellWriteCommand,
			DisableFlagsInUseLine: true,
		},
		&cobra.Command{
			Use:                   "modquery txn modulus",
			Short:                 "List the visible values divisible by modulus",
			Args:                  cobra.ExactArgs(2),
			Run:                   runShellModQueryCommand,
			DisableFlagsInUseLine: true,
		},
		&cobra.Command{
			Use:                   "commit txn",
			Short:                 "Commit a transaction",
			Args:                  cobra.ExactArgs(1),
			Run:                   runShellCommitCommand,
			DisableFlagsInUseLine: true,
		},
		&cobra.Command{
			Use:                   "rollback txn",
			Short:                 "Roll back a transaction",
			Args:                  cobra.ExactArgs(1),
			Run:                   runShellRollbackCommand,
			DisableFlagsInUseLine: true,
		},
		&cobra.Command{
			Use:                   "state txn",
			Short:                 "Show the state of a transaction",
			Args:                  cobra.ExactArgs(1),
			Run:                   runShellStateCommand,
			DisableFlagsInUseLine: true,
		},
		&cobra.Command{
			Use:                   "gc",
			Short:                 "Run garbage collection now",
			Args:                  cobra.NoArgs,
			Run:                   runShellGCCommand,
			DisableFlagsInUseLine: true,
		},
		&cobra.Command{
			Use:                   "stats",
			Short:                 "Show engine counters",
			Args:                  cobra.NoArgs,
			Run:                   runShellStatsCommand,
			DisableFlagsInUseLine: true,
		},
		&cobra.Command{
			Use:                   "metrics",
			Short:                 "Show the engine's prometheus metrics",
			Args:                  cobra.NoArgs,
			Run:                   runShellMetricsCommand,
			DisableFlagsInUseLine: true,
		},
	)

	if err := cmd.Execute(); err != nil {
		fmt.Println(cmd.UsageString())
	}
}

func parseTxn(arg string) (engine.TxnID, error) {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return 0, errors.Errorf("invalid transaction %s", arg)
	}
	return engine.TxnID(id), nil
}

// parseInts parses the transaction and the integer arguments that follow it.
func parseInts(args []string) (engine.TxnID, []int64, error) {
	id, err := parseTxn(args[0])
	if err != nil {
		return 0, nil, err
	}
	values := make([]int64, 0, len(args)-1)
	for _, arg := range args[1:] {
		v, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return 0, nil, errors.Errorf("invalid number %s", arg)
		}
		values = append(values, v)
	}
	return id, values, nil
}

func runShellBeginCommand(cmd *cobra.Command, args []string) {
	fmt.Printf("Begin txn %d\n", shellEngine.Begin())
}

func runShellReadCommand(cmd *cobra.Command, args []string) {
	id, ints, err := parseInts(args)
	if err != nil {
		fmt.Println(err)
		return
	}
	value, err := shellEngine.Read(id, ints[0])
	if err != nil {
		fmt.Printf("Read %d failed %v\n", ints[0], err)
		return
	}
	fmt.Printf("%d=%d\n", ints[0], value)
}

func runShellWriteCommand(cmd *cobra.Command, args []string) {
	id, ints, err := parseInts(args)
	if err != nil {
		fmt.Println(err)
		return
	}
	if err := shellEngine.Write(id, ints[0], ints[1]); err != nil {
		fmt.Printf("Write %d failed %v\n", ints[0], err)
		return
	}
	fmt.Printf("Write %d ok\n", ints[0])
}

func runShellModQueryCommand(cmd *cobra.Command, args []string) {
	id, ints, err := parseInts(args)
	if err != nil {
		fmt.Println(err)
		return
	}
	values, err := shellEngine.ModQuery(id, ints[0])
	if err != nil {
		fmt.Printf("Modquery %d failed %v\n", ints[0], err)
		return
	}
	fmt.Printf("%d values %v\n", len(values), values)
}

func runShellCommitCommand(cmd *cobra.Command, args []string) {
	id, err := parseTxn(args[0])
	if err != nil {
		fmt.Println(err)
		return
	}
	if err := shellEngine.Commit(id); err != nil {
		fmt.Printf("Commit %d failed %v\n", id, err)
		return
	}
	fmt.Printf("Commit %d ok\n", id)
}

func runShellRollbackCommand(cmd *cobra.Command, args []string) {
	id, err := parseTxn(args[0])
	if err != nil {
		fmt.Println(err)
		return
	}
	if err := shellEngine.Rollback(id); err != nil {
		fmt.Printf("Rollback %d failed %v\n", id, err)
		return
	}
	fmt.Printf("Rollback %d ok\n", id)
}

func runShellStateCommand(cmd *cobra.Command, args []string) {
	id, err := parseTxn(args[0])
	if err != nil {
		fmt.Println(err)
		return
	}
	state, err := shellEngine.State(id)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("txn %d is %v\n", id, state)
}

func runShellGCCommand(cmd *cobra.Command, args []string) {
	s := shellEngine.GC()
	fmt.Printf("safe point %d: %d versions, %d chains, %d commit records, %d txns removed\n",
		s.SafePoint, s.Versions, s.Chains, s.CommitRecords, s.Txns)
}

func runShellStatsCommand(cmd *cobra.Command, args []string) {
	fmt.Printf("%+v\n", shellEngine.Stats())
}

func runShellMetricsCommand(cmd *cobra.Command, args []string) {
	if err := printMetrics(); err != nil {
		fmt.Println(err)
	}
}

// printMetrics writes one line per omvcc sample in the registry.
func printMetrics() error {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return errors.Trace(err)
	}
	var lines []string
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), "omvcc_") {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
			}
			name := mf.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			switch {
			case m.GetCounter() != nil:
				lines = append(lines, fmt.Sprintf("%s %v", name, m.GetCounter().GetValue()))
			case m.GetGauge() != nil:
				lines = append(lines, fmt.Sprintf("%s %v", name, m.GetGauge().GetValue()))
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				lines = append(lines, fmt.Sprintf("%s count=%d sum=%v", name, h.GetSampleCount(), h.GetSampleSum()))
			}
		}
	}
	sort.Strings(lines)
	for _, line := range lines {
		fmt.Println(line)
	}
	return nil
}

func shellLoop() error {
	l, err := readline.NewEx(&readline.Config{
		Prompt:            "\033[31m»\033[0m ",
		HistoryFile:       historyFile,
		InterruptPrompt:   "^C",
		EOFPrompt:         "^D",
		HistorySearchFold: true,
	})
	if err != nil {
		return errors.Trace(err)
	}
	defer l.Close()

	for {
		line, err := l.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				return nil
			}
			continue
		}
		line = strings.TrimSpace(line)
		if line == "exit" {
			return nil
		}
		if line == "" {
			continue
		}
		args, err := shellwords.Parse(line)
		if err != nil {
			fmt.Printf("bad command %q: %v\n", line, err)
			continue
		}
		runShellCommand(args)
	}
}
