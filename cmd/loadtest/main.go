package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/aeolun/neighborchat/pkg/client"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type options struct {
	server   string
	channel  string
	clients  int
	duration time.Duration
	rampUp   time.Duration
	minDelay time.Duration
	maxDelay time.Duration
	logLevel string
}

func main() {
	opts := &options{}

	root := &cobra.Command{
		Use:           "loadtest",
		Short:         "Drive a neighborchat server with scripted chat bots",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	flags := root.Flags()
	flags.StringVar(&opts.server, "server", "localhost:10000", "Server address")
	flags.StringVar(&opts.channel, "channel", "general", "Channel the bots chat in")
	flags.IntVar(&opts.clients, "clients", 10, "Number of concurrent clients")
	flags.DurationVar(&opts.duration, "duration", time.Minute, "Test duration")
	flags.DurationVar(&opts.rampUp, "ramp-up", 10*time.Second, "Time over which clients are started")
	flags.DurationVar(&opts.minDelay, "min-delay", 250*time.Millisecond, "Minimum delay between posts")
	flags.DurationVar(&opts.maxDelay, "max-delay", 2*time.Second, "Maximum delay between posts")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "Log level")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts *options) error {
	if opts.clients < 1 {
		return fmt.Errorf("need at least one client, got %d", opts.clients)
	}

	logger, err := client.NewLogger(client.LogSection{Level: opts.logLevel})
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, opts.duration)
	defer cancel()

	stagger := opts.rampUp / time.Duration(opts.clients)
	logger.Info("starting load test",
		zap.String("server", opts.server),
		zap.Int("clients", opts.clients),
		zap.Duration("duration", opts.duration),
		zap.Duration("stagger", stagger))

	stats := &Stats{}
	start := time.Now()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		reportLoop(ctx, stats, start)
	}()

	for i := 0; i < opts.clients; i++ {
		bot := NewBotClient(i, opts.server, opts.channel, stats, opts.minDelay, opts.maxDelay, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			bot.Run(ctx)
		}()

		select {
		case <-ctx.Done():
		case <-time.After(stagger):
		}
	}

	wg.Wait()
	printResults(stats.snapshot(), time.Since(start))
	return nil
}

func reportLoop(ctx context.Context, stats *Stats, start time.Time) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := stats.snapshot()
			elapsed := time.Since(start).Seconds()
			fmt.Printf("posted %d (%.1f/s), echoed %d, avg %v, send failures %d, server errors %d\n",
				snap.Posted, float64(snap.Posted)/elapsed, snap.Echoed, snap.AvgResponse,
				snap.SendFailures, snap.ServerErrors)
		}
	}
}

func printResults(snap Snapshot, elapsed time.Duration) {
	fmt.Println()
	fmt.Println("=== Final Results ===")
	fmt.Printf("Duration:          %v\n", elapsed.Round(time.Millisecond))
	fmt.Printf("Messages posted:   %d (%.1f/s)\n", snap.Posted, float64(snap.Posted)/elapsed.Seconds())
	fmt.Printf("Messages echoed:   %d (%.1f%%)\n", snap.Echoed, snap.SuccessRate())
	fmt.Printf("Timeouts:          %d\n", snap.Timeouts)
	fmt.Printf("Send failures:     %d\n", snap.SendFailures)
	fmt.Printf("Server errors:     %d\n", snap.ServerErrors)
	fmt.Printf("Connects:          %d\n", snap.Connects)
	fmt.Printf("Disconnects:       %d\n", snap.Disconnects)
	fmt.Printf("Average response:  %v\n", snap.AvgResponse)
}
