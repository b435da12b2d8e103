// Command simulate drives a scripted conversation through the engine
// in-process and prints every transition, useful for tuning the classifier
// and eyeballing protocol copy without a running server.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/mindflowhq/sanctuary-engine/internal/audit"
	"github.com/mindflowhq/sanctuary-engine/internal/engine"
	"github.com/mindflowhq/sanctuary-engine/internal/escalation"
	"github.com/mindflowhq/sanctuary-engine/internal/session"
	"github.com/mindflowhq/sanctuary-engine/pkg/logging"
)

var script = []string{
	"hi there",
	"I've been feeling really anxious and overwhelmed lately",
	"honestly I can't go on like this, I want to end my life",
}

func main() {
	_ = godotenv.Load()

	region := flag.String("region", "US", "resource region for the session")
	interactive := flag.Bool("i", false, "read utterances from stdin instead of the built-in script")
	flag.Parse()

	logger := logging.New("warn")
	dispatcher := audit.NewDispatcher(audit.NewMemoryQueue(0), audit.NewLogSink(logger), nil, logger)
	ctx := context.Background()
	dispatcher.Start(ctx)
	defer dispatcher.Close()

	coordinator := escalation.NewCoordinator(dispatcher, nil, logger)
	eng := engine.New(engine.Options{Coordinator: coordinator, Logger: logger, DefaultRegion: *region})
	defer eng.Close()

	const sessionID = "simulate"
	if _, err := eng.SetRegion(ctx, sessionID, *region); err != nil {
		fmt.Fprintf(os.Stderr, "set region: %v\n", err)
		os.Exit(1)
	}

	if *interactive {
		runInteractive(ctx, eng, sessionID)
		return
	}

	for _, text := range script {
		fmt.Printf("\n> %s\n", text)
		runTurn(ctx, eng, sessionID, text)
	}

	summary, actions, err := eng.EndSession(ctx, sessionID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "end session: %v\n", err)
		os.Exit(1)
	}
	printActions(actions)
	fmt.Printf("\nfinal state=%s messages=%d escalations=%d\n",
		summary.FinalState, summary.MessageCount, summary.EscalationCount)
}

func runInteractive(ctx context.Context, eng *engine.Engine, sessionID string) {
	fmt.Println("type a message per line; /yes /no /connect answer consent, /end quits")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "/end":
			summary, actions, err := eng.EndSession(ctx, sessionID)
			if err != nil {
				fmt.Fprintf(os.Stderr, "end session: %v\n", err)
				return
			}
			printActions(actions)
			fmt.Printf("final state=%s messages=%d\n", summary.FinalState, summary.MessageCount)
			return
		case "/yes", "/no", "/connect":
			decision := session.Decision(strings.TrimPrefix(line, "/"))
			result, err := eng.ResolveConsent(ctx, sessionID, decision)
			if err != nil {
				fmt.Fprintf(os.Stderr, "consent: %v\n", err)
				continue
			}
			fmt.Printf("state=%s\n", result.State)
			printActions(result.Actions)
		default:
			runTurn(ctx, eng, sessionID, line)
		}
	}
}

func runTurn(ctx context.Context, eng *engine.Engine, sessionID, text string) {
	result, err := eng.SubmitUtterance(ctx, sessionID, 0, text)
	if err != nil {
		fmt.Fprintf(os.Stderr, "turn failed: %v\n", err)
		return
	}
	fmt.Printf("level=%s score=%d state=%s triggered_by=%s\n",
		result.Assessment.Level,
		result.Assessment.CompositeScore,
		result.State,
		result.Assessment.TriggeredBy,
	)
	printActions(result.Actions)
}

func printActions(actions []session.Action) {
	for _, a := range actions {
		switch {
		case a.Resource != nil:
			fmt.Printf("  [%s] %s: %s (%s)\n", a.Type, a.Resource.Region, a.Resource.Name, a.Resource.Phone)
		case a.Message != "":
			fmt.Printf("  [%s] %s\n", a.Type, a.Message)
		default:
			fmt.Printf("  [%s]\n", a.Type)
		}
	}
}
