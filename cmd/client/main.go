package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"anonchat/internal/logging"
	"anonchat/pkg/client"
)

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func main() {
	_ = godotenv.Load()
	logging.Setup()

	serverURL := getEnv("SERVER_URL", "http://localhost:3000")
	wsURL := getEnv("WS_URL", "ws://localhost:3000/ws")

	c := client.New(client.Config{ServerURL: serverURL, WSURL: wsURL})

	reader := bufio.NewScanner(os.Stdin)
	fmt.Print("username: ")
	if !reader.Scan() {
		return
	}
	username := strings.TrimSpace(reader.Text())
	fmt.Print("avatar (emoji): ")
	if !reader.Scan() {
		return
	}
	avatar := strings.TrimSpace(reader.Text())

	user, err := c.API.CreateUser(client.CreateUserRequest{Username: username, Avatar: avatar})
	if err != nil {
		fmt.Fprintln(os.Stderr, "setup failed:", err)
		os.Exit(1)
	}

	if err := c.Connect(); err != nil {
		fmt.Fprintln(os.Stderr, "connect failed (will keep retrying):", err)
	}
	defer c.Disconnect()
	c.SetUser(*user)

	if err := c.LoadInitialState(); err != nil {
		fmt.Fprintln(os.Stderr, "initial load failed:", err)
		os.Exit(1)
	}

	fmt.Println("groups:")
	for _, g := range c.Store.GroupChats() {
		fmt.Printf("  %-20s %s (%d members)\n", g.GroupID, g.Name, g.MemberCount)
	}
	fmt.Println(`commands: /join <groupID>, /react <messageID> <emoji>, /board, /quit`)

	go printLoop(c)

	for reader.Scan() {
		line := strings.TrimSpace(reader.Text())
		switch {
		case line == "":
		case line == "/quit":
			return
		case line == "/board":
			for i, u := range c.Store.Leaderboard() {
				fmt.Printf("  #%d %s %s — %d pts\n", i+1, u.Avatar, u.Username, u.Points)
			}
		case strings.HasPrefix(line, "/join "):
			groupID := strings.TrimSpace(strings.TrimPrefix(line, "/join "))
			c.JoinGroup(groupID)
			if err := c.LoadHistory(groupID); err != nil {
				fmt.Fprintln(os.Stderr, "history load failed:", err)
			}
			fmt.Println("joined", groupID)
		case strings.HasPrefix(line, "/react "):
			parts := strings.Fields(line)
			if len(parts) != 3 || c.Store.CurrentGroup() == "" {
				fmt.Println("usage: /react <messageID> <emoji> (join a group first)")
				continue
			}
			c.AddReaction(c.Store.CurrentGroup(), parts[1], parts[2])
		default:
			groupID := c.Store.CurrentGroup()
			if groupID == "" {
				fmt.Println("join a group first: /join <groupID>")
				continue
			}
			if err := c.SendMessage(groupID, line, ""); err != nil {
				// Encryption failure: the typed line stays on screen for retry.
				fmt.Fprintln(os.Stderr, "failed to send:", err)
			}
		}
	}
}

// printLoop renders newly arrived messages for the active group. The
// store is the source of truth; this just tails it.
func printLoop(c *client.Client) {
	seen := make(map[string]int)
	wasConnected := true
	for range time.Tick(300 * time.Millisecond) {
		if connected := c.Connected(); connected != wasConnected {
			wasConnected = connected
			if connected {
				fmt.Println("-- connected --")
			} else {
				fmt.Println("-- reconnecting... --")
			}
		}

		groupID := c.Store.CurrentGroup()
		if groupID == "" {
			continue
		}
		msgs := c.Store.Messages(groupID)
		for _, m := range msgs[seen[groupID]:] {
			ts := time.UnixMilli(m.Timestamp).Format("15:04")
			fmt.Printf("[%s] %s %s (%s): %s\n", ts, m.Avatar, m.Username, m.MessageID, m.Text)
		}
		seen[groupID] = len(msgs)

		if typing := c.Store.TypingUsers(groupID); len(typing) > 0 {
			slog.Debug("typing", "users", typing)
		}
	}
}
