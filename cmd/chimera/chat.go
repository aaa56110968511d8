package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/chimera/internal/pipeline"
)

const chatHelp = `Commands: /summary, /stats, /clear, /quit`

func chatCMD() *cobra.Command {
	var sessionID string
	chat := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := bootstrap(ctx, "chimera-cli")
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
				defer done()
				a.Close(shutdownCtx)
			}()
			if sessionID == "" {
				sessionID = uuid.NewString()
			}
			return repl(ctx, a.pipeline, sessionID, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	chat.Flags().StringVar(&sessionID, "session", "", "session id to resume")
	return chat
}

func repl(ctx context.Context, p *pipeline.Pipeline, sessionID string, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "Chimera sales assistant (session %s)\n%s\n", sessionID, chatHelp)
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "\nYou: ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/summary":
			s, err := p.Summary(ctx, sessionID)
			if err != nil {
				fmt.Fprintf(out, "summary unavailable: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "\n%s\n", s)
			continue
		case "/stats":
			s, err := p.Stats(ctx)
			if err != nil {
				fmt.Fprintf(out, "stats unavailable: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "conversations=%d messages=%d avg=%.2f\n", s.TotalConversations, s.TotalMessages, s.AverageMessages)
			continue
		case "/clear":
			ok, err := p.Clear(ctx, sessionID)
			if err != nil {
				fmt.Fprintf(out, "clear failed: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "cleared=%t\n", ok)
			continue
		}
		reply, err := p.HandleMessage(ctx, sessionID, line)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		fmt.Fprintf(out, "\nChimera: %s\n", reply.Text)
		if reply.LeadStatus != "" {
			fmt.Fprintf(out, "[lead: %s, score %d]\n", reply.LeadStatus, reply.LeadScore)
		}
	}
}
