// cmd/party-watch - follow a party's leaderboard, rivalry and feed live
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"huntparty/live"
	"huntparty/liveclient"
	"huntparty/logger"
	"huntparty/models"
	"huntparty/services"

	"github.com/fatih/color"
)

var (
	bold   = color.New(color.Bold)
	dim    = color.New(color.FgHiBlack)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
)

func main() {
	server := flag.String("server", "http://localhost:3000", "API base URL")
	token := flag.String("token", os.Getenv("HUNTPARTY_TOKEN"), "access token (defaults to $HUNTPARTY_TOKEN)")
	debug := flag.Bool("debug", false, "print debug logs")
	flag.Parse()

	logger.SetDebug(*debug)
	if *token == "" {
		fmt.Fprintln(os.Stderr, "error: -token or HUNTPARTY_TOKEN is required")
		os.Exit(2)
	}

	base := strings.TrimRight(*server, "/")
	wsURL := "ws" + strings.TrimPrefix(base, "http") + "/ws"

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := liveclient.New(liveclient.Options{
		Dialer:  &liveclient.WebsocketDialer{URL: wsURL, Token: *token},
		Fetcher: &liveclient.HTTPSnapshotFetcher{BaseURL: base, Token: *token},
		Handler: liveclient.Handler{
			OnState:       printState,
			OnSnapshot:    printSnapshot,
			OnLeaderboard: func(m live.LeaderboardUpdated) { printLeaderboard(m.Entries) },
			OnRivalry:     func(m live.RivalryUpdated) { printRivalry(m.Rivalry) },
			OnActivity:    func(m live.ActivityEventCreated) { printEvent(m.Event) },
		},
	})

	if err := client.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal("party-watch: %v", err)
	}
}

func printState(s liveclient.State) {
	if s.Paused() {
		yellow.Println("-- connection lost, reconnecting (updates paused) --")
		return
	}
	dim.Printf("-- %s --\n", s)
}

func printSnapshot(snap *services.Snapshot) {
	if snap == nil {
		fmt.Println("You are not in a party. Create or join one to see live standings.")
		return
	}
	bold.Printf("Party %s (invite %s)\n", snap.Party.Name, snap.Party.InviteCode)
	printLeaderboard(snap.Leaderboard)
	printRivalry(snap.Rivalry)
	if snap.Activity != nil {
		// oldest first so the newest ends up at the bottom
		for i := len(snap.Activity.Events) - 1; i >= 0; i-- {
			printEvent(snap.Activity.Events[i])
		}
	}
}

func printLeaderboard(entries []models.LeaderboardEntry) {
	bold.Println("Leaderboard")
	for _, e := range entries {
		fmt.Printf("  %2d. %-20s %5d pts  %3d apps\n", e.Rank, e.DisplayName, e.TotalPoints, e.ApplicationCount)
	}
}

func printRivalry(view *models.RivalryView) {
	if view == nil {
		return
	}
	fmt.Printf("You are #%d of %d", view.Rank, view.PartySize)
	if view.Ahead != nil {
		fmt.Printf(" | %d behind %s", view.Ahead.Gap, view.Ahead.DisplayName)
	}
	if view.Behind != nil {
		fmt.Printf(" | %d ahead of %s", view.Behind.Gap, view.Behind.DisplayName)
	}
	fmt.Println()
}

func printEvent(e models.ActivityEvent) {
	line := fmt.Sprintf("%s %s %s", e.CreatedAt.Local().Format("15:04"), e.DisplayName, e.Type.Verb())
	if e.Company != nil {
		line += " at " + *e.Company
	}
	if e.MilestoneLabel != nil {
		line += " (" + *e.MilestoneLabel + ")"
	}
	if e.PointsDelta != 0 {
		line += fmt.Sprintf(" %+d", e.PointsDelta)
	}
	if e.Type == models.EventOfferReceived || e.Type == models.EventMilestoneHit {
		green.Println(line)
		return
	}
	fmt.Println(line)
}
