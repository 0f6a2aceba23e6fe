// The frontend reads a workload file (or stdin) of command lines and
// publishes them to the command topic keyed by user id, then tails the
// response topic and prints each response. Partitioning by user keeps
// one user's commands in order on one worker.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/janhavidudhat/CSC468-group3/internal/config"
	"github.com/janhavidudhat/CSC468-group3/internal/domain"
	"github.com/janhavidudhat/CSC468-group3/internal/transport"
)

func main() {
	workload := flag.String("workload", "", "workload file to publish (default: stdin)")
	tail := flag.Bool("tail", true, "print responses from the response topic")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if *tail {
		printer := transport.HandlerFunc(func(ctx context.Context, line string) string {
			os.Stdout.WriteString(line + "\n")
			return ""
		})
		responses := transport.NewConsumer(cfg.KafkaBrokers, cfg.ResponseTopic, "frontend", printer, nil, logger)
		go func() {
			if err := responses.Run(ctx); err != nil {
				logger.Error("response tail stopped", slog.String("error", err.Error()))
			}
		}()
	}

	in := os.Stdin
	if *workload != "" {
		f, err := os.Open(*workload)
		if err != nil {
			logger.Error("open workload", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}

	commands := transport.NewPublisher(cfg.KafkaBrokers, cfg.CommandTopic, logger)
	defer commands.Close()

	published := 0
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		req, err := domain.ParseLine(line)
		if err != nil {
			logger.Warn("skipping malformed line", slog.String("line", line))
			continue
		}
		if err := commands.Publish(ctx, req.UserID(), line); err != nil {
			logger.Error("publish command", slog.String("error", err.Error()))
			os.Exit(1)
		}
		published++
	}
	if err := scanner.Err(); err != nil {
		logger.Error("read workload", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("workload published", slog.Int("commands", published))

	if *tail {
		// Keep tailing responses until interrupted.
		<-ctx.Done()
	}
}
