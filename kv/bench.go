package main

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/pingcap-incubator/omvcc/kv/engine"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	benchThreads  int
	benchAccounts int
	benchTxns     int
	benchBalance  int64
	showMetrics   bool
)

func newBenchCommand() *cobra.Command {
	m := &cobra.Command{
		Use:   "bench",
		Short: "Run concurrent transfers between accounts and check that no money is lost",
		Args:  cobra.NoArgs,
		RunE:  runBenchCommandFunc,
	}
	m.Flags().IntVarP(&benchThreads, "threads", "t", 8, "number of concurrent clients")
	m.Flags().IntVarP(&benchAccounts, "accounts", "a", 64, "number of accounts")
	m.Flags().IntVarP(&benchTxns, "txns", "n", 10000, "transfers per client")
	m.Flags().Int64Var(&benchBalance, "balance", 1000, "initial balance of every account")
	m.Flags().BoolVar(&showMetrics, "metrics", false, "print the prometheus metrics when done")
	return m
}

type benchResult struct {
	committed int
	aborted   int
	latencies []float64
}

func runBenchCommandFunc(cmd *cobra.Command, args []string) error {
	if benchThreads <= 0 || benchAccounts < 2 || benchTxns <= 0 {
		return errors.New("threads and txns must be positive and there must be at least two accounts")
	}
	e, err := engine.NewEngine(conf)
	if err != nil {
		return err
	}
	defer e.Close()
	handleSignal(e)

	if err := loadAccounts(e); err != nil {
		return err
	}

	start := time.Now()
	results := make([]benchResult, benchThreads)
	var wg sync.WaitGroup
	for i := 0; i < benchThreads; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = transferLoop(e, rand.New(rand.NewSource(int64(i))))
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(start)

	var total benchResult
	for _, r := range results {
		total.committed += r.committed
		total.aborted += r.aborted
		total.latencies = append(total.latencies, r.latencies...)
	}
	if err := report(total, elapsed); err != nil {
		return err
	}

	sum, err := totalBalance(e)
	if err != nil {
		return err
	}
	expected := benchBalance * int64(benchAccounts)
	fmt.Printf("total balance %d, expected %d\n", sum, expected)
	if sum != expected {
		return errors.Errorf("balance mismatch: %d != %d", sum, expected)
	}
	if showMetrics {
		return printMetrics()
	}
	return nil
}

func loadAccounts(e *engine.Engine) error {
	id := e.Begin()
	for k := 0; k < benchAccounts; k++ {
		if err := e.Write(id, int64(k), benchBalance); err != nil {
			return err
		}
	}
	return e.Commit(id)
}

// transferLoop moves one unit between two random accounts per transaction. Failed transactions are not retried.
func transferLoop(e *engine.Engine, rnd *rand.Rand) benchResult {
	r := benchResult{latencies: make([]float64, 0, benchTxns)}
	for i := 0; i < benchTxns; i++ {
		from := int64(rnd.Intn(benchAccounts))
		to := (from + 1 + int64(rnd.Intn(benchAccounts-1))) % int64(benchAccounts)

		start := time.Now()
		if err := transfer(e, from, to); err != nil {
			r.aborted++
			log.Debug("transfer failed", zap.Int64("from", from), zap.Int64("to", to), zap.Error(err))
			continue
		}
		r.committed++
		r.latencies = append(r.latencies, float64(time.Since(start).Nanoseconds())/1e3)
	}
	return r
}

func transfer(e *engine.Engine, from, to int64) error {
	id := e.Begin()
	err := func() error {
		a, err := e.Read(id, from)
		if err != nil {
			return err
		}
		b, err := e.Read(id, to)
		if err != nil {
			return err
		}
		if err := e.Write(id, from, a-1); err != nil {
			return err
		}
		if err := e.Write(id, to, b+1); err != nil {
			return err
		}
		return e.Commit(id)
	}()
	if err != nil {
		// A failed commit has already aborted the transaction.
		_ = e.Rollback(id)
	}
	return err
}

func totalBalance(e *engine.Engine) (int64, error) {
	id := e.Begin()
	defer e.Commit(id)
	values, err := e.ModQuery(id, 1)
	if err != nil {
		return 0, err
	}
	var sum int64
	for _, v := range values {
		sum += v
	}
	return sum, nil
}

func report(r benchResult, elapsed time.Duration) error {
	n := r.committed + r.aborted
	fmt.Printf("%d transfers in %v, %d committed, %d aborted (%.1f%%), %.0f txn/s\n",
		n, elapsed, r.committed, r.aborted, 100*float64(r.aborted)/float64(n), float64(n)/elapsed.Seconds())
	if len(r.latencies) == 0 {
		return nil
	}
	mean, err := stats.Mean(r.latencies)
	if err != nil {
		return errors.Trace(err)
	}
	line := fmt.Sprintf("latency(us) avg %.1f", mean)
	for _, p := range []float64{50, 95, 99} {
		v, err := stats.Percentile(r.latencies, p)
		if err != nil {
			return errors.Trace(err)
		}
		line += fmt.Sprintf(", p%v %.1f", p, v)
	}
	max, err := stats.Max(r.latencies)
	if err != nil {
		return errors.Trace(err)
	}
	fmt.Printf("%s, max %.1f\n", line, max)
	return nil
}
