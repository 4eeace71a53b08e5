package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/kgruber/quizbowl-buzzer/internal/domain"
	"github.com/kgruber/quizbowl-buzzer/internal/game"
	"github.com/kgruber/quizbowl-buzzer/internal/websocket"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// Global flags
	serverURL := "http://localhost:8080"
	if envURL := os.Getenv("SERVER_URL"); envURL != "" {
		serverURL = envURL
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "full":
		fullCmd(serverURL, args)
	case "populate":
		populateCmd(serverURL, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Buzzer Simulator - Development tool for exercising quiz rooms

USAGE:
  simulator <command> [options]

COMMANDS:
  full      Create a room, fill it with fake players, and play one toss-up
  populate  Add fake players to an existing room
  help      Show this help message

ENVIRONMENT:
  SERVER_URL   Backend URL (default: http://localhost:8080)

EXAMPLES:
  # Create a 2-team room with 4 fake players and run a question
  simulator full

  # Create a 4-team room, one fake player per team, leave it in the lobby
  simulator full --teams=4 --per-team=1 --skip-question

  # Add 3 fake players to team B of an existing room
  simulator populate --room=AB12CD --team=B --count=3`)
}

func fullCmd(serverURL string, args []string) {
	fs := flag.NewFlagSet("full", flag.ExitOnError)
	teams := fs.Int("teams", 2, "Number of teams (2-8)")
	perTeam := fs.Int("per-team", 2, "Fake players per team")
	skipQuestion := fs.Bool("skip-question", false, "Leave the room in the lobby instead of playing a toss-up")
	fs.Parse(args)

	fmt.Println("=== Buzzer Simulator: Full Flow ===")
	fmt.Println()

	fmt.Print("Connecting host and creating room... ")
	host, err := Connect(serverURL, "SimHost")
	if err != nil {
		fmt.Printf("FAILED\n  Error: %v\n", err)
		os.Exit(1)
	}
	defer host.Close()

	snap, err := host.CreateRoom("Simulated Match", *teams)
	if err != nil {
		fmt.Printf("FAILED\n  Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("OK (code: %s)\n", snap.Code)

	fmt.Println()
	fmt.Printf("Adding %d players per team:\n", *perTeam)
	var players []*SimClient
	for _, team := range snap.Teams {
		for i := 0; i < *perTeam; i++ {
			name := fmt.Sprintf("Player%s%d", team.ID, i+1)
			p, err := Connect(serverURL, name)
			if err != nil {
				fmt.Printf("  FAILED to connect %s: %v\n", name, err)
				os.Exit(1)
			}
			defer p.Close()
			if _, err := p.JoinRoom(snap.Code, team.ID); err != nil {
				fmt.Printf("  FAILED to join %s: %v\n", name, err)
				os.Exit(1)
			}
			players = append(players, p)
			fmt.Printf("  %s joined team %s\n", name, team.ID)
		}
	}

	if *skipQuestion || len(players) == 0 {
		printSummary(serverURL, snap.Code)
		fmt.Println("  Press Ctrl+C to tear the room down.")
		select {}
	}

	// One scripted question: read, buzz, correct answer, bonus.
	fmt.Println()
	fmt.Print("Playing a toss-up... ")
	if err := runQuestion(host, players[0]); err != nil {
		fmt.Printf("FAILED\n  Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("OK")

	printSummary(serverURL, snap.Code)
	fmt.Println("  Press Ctrl+C to tear the room down.")
	select {}
}

func runQuestion(host, buzzer *SimClient) error {
	if err := host.Send(websocket.MessageTypeStartTossup, nil); err != nil {
		return err
	}
	if _, err := host.WaitState(func(s *game.Snapshot) bool {
		return s.Phase == domain.PhaseTossupReading
	}, 5*time.Second); err != nil {
		return err
	}

	if err := host.Send(websocket.MessageTypeDoneReadingTossup, nil); err != nil {
		return err
	}
	if err := buzzer.Send(websocket.MessageTypeBuzz, nil); err != nil {
		return err
	}
	if _, err := host.WaitState(func(s *game.Snapshot) bool { return s.Buzz.Locked }, 5*time.Second); err != nil {
		return err
	}

	if err := host.Send(websocket.MessageTypeSetInterrupt, websocket.SetInterruptPayload{Interrupt: false}); err != nil {
		return err
	}
	if err := host.Send(websocket.MessageTypeMarkAnswer, websocket.MarkAnswerPayload{Correct: true}); err != nil {
		return err
	}
	if _, err := host.WaitState(func(s *game.Snapshot) bool {
		return s.Phase == domain.PhaseBonusReading
	}, 5*time.Second); err != nil {
		return err
	}

	if err := host.Send(websocket.MessageTypeAwardBonus, websocket.AwardBonusPayload{Points: 10}); err != nil {
		return err
	}
	_, err := host.WaitState(func(s *game.Snapshot) bool {
		return s.Phase == domain.PhaseLobby
	}, 5*time.Second)
	return err
}

func populateCmd(serverURL string, args []string) {
	fs := flag.NewFlagSet("populate", flag.ExitOnError)
	roomCode := fs.String("room", "", "Room code (required)")
	teamID := fs.String("team", "A", "Team to join")
	count := fs.Int("count", 3, "Number of players to add")
	fs.Parse(args)

	if *roomCode == "" {
		fmt.Println("Error: --room is required")
		fmt.Println("\nUsage: simulator populate --room=AB12CD [--team=A] [--count=3]")
		os.Exit(1)
	}

	fmt.Printf("Adding %d players to room %s, team %s...\n\n", *count, *roomCode, *teamID)

	for i := 0; i < *count; i++ {
		name := fmt.Sprintf("Extra%s%d", *teamID, i+1)
		p, err := Connect(serverURL, name)
		if err != nil {
			fmt.Printf("  [%d/%d] FAILED to connect: %v\n", i+1, *count, err)
			continue
		}
		defer p.Close()

		if _, err := p.JoinRoom(*roomCode, *teamID); err != nil {
			fmt.Printf("  [%d/%d] FAILED to join: %v\n", i+1, *count, err)
			continue
		}
		fmt.Printf("  [%d/%d] %s joined\n", i+1, *count, name)
	}

	fmt.Println()
	fmt.Println("Done! Players stay connected until this process exits.")
	fmt.Println("Press Ctrl+C to disconnect them.")
	select {}
}

func printSummary(serverURL, code string) {
	fmt.Println()
	fmt.Println("=========================================")
	fmt.Println("  ROOM READY")
	fmt.Println("=========================================")
	fmt.Println()
	fmt.Printf("  Room code: %s\n", code)
	fmt.Printf("  Peek:      %s/api/v1/rooms/%s\n", serverURL, code)
	fmt.Printf("  QR code:   %s/api/v1/rooms/%s/qr\n", serverURL, code)
	fmt.Println()
}
