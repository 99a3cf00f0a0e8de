// Terminal chat client. Reads lines from stdin, pushes incoming
// messages to the screen, and survives server restarts through the
// reconnection controller.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/joho/godotenv"

	"rentchat/auth"
	"rentchat/client"
	"rentchat/logging"
	"rentchat/ws"
)

type Config struct {
	ServerURL   string        `env:"SERVER_URL,required=true"`
	UserID      string        `env:"USER_ID,required=true"`
	Token       string        `env:"TOKEN"`
	AuthSecret  string        `env:"AUTH_SECRET"`
	TokenTTL    time.Duration `env:"AUTH_TOKEN_DURATION"`
	LogLevel    string        `env:"LOG_LEVEL"`
	MaxAttempts int           `env:"MAX_ATTEMPTS"`
}

func main() {
	// 1. Load config
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		log.Fatalf("Config error: %v", err)
	}
	if config.LogLevel == "" {
		config.LogLevel = "WARN"
	}
	logger := logging.GetLoggerFromString(config.LogLevel)

	// 2. Token: take it from the environment, or mint one locally when
	// a shared secret is available (development setups).
	token := config.Token
	if token == "" {
		if config.AuthSecret == "" {
			log.Fatal("Either TOKEN or AUTH_SECRET must be set")
		}
		ttl := config.TokenTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		minted, err := auth.NewTokenManager(config.AuthSecret, ttl).
			GenerateToken(config.UserID, "tenant")
		if err != nil {
			log.Fatalf("Token generation failed: %v", err)
		}
		token = minted
	}

	// 3. Connection controller
	controller := client.NewController(logger, client.Config{
		URL:         config.ServerURL,
		UserID:      config.UserID,
		Token:       token,
		MaxAttempts: config.MaxAttempts,
	}, client.Handlers{
		OnMessage: func(env ws.Envelope) {
			if env.FromSelf {
				color.Gray.Printf("[you -> %s] %s\n", env.To, env.Body)
				return
			}
			color.Cyan.Printf("[%s] %s\n", env.From, env.Body)
		},
		OnUnreadCount: func(count int) {
			if count > 0 {
				color.Yellow.Printf("(%d conversation(s) with unread messages)\n", count)
			}
		},
		OnEvicted: func(reason string) {
			color.Red.Printf("Disconnected: %s\n", reason)
		},
		OnStatus: func(status client.Status) {
			color.Gray.Printf("-- %s --\n", status)
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if err := controller.Run(ctx); err != nil && ctx.Err() == nil {
			color.Red.Printf("Connection gone for good: %v\n", err)
		}
	}()

	color.Green.Printf("Connected as %s. Commands: /to <user>, /read, /quit\n", config.UserID)

	// 4. Input loop
	var recipient string
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			cancel()
			<-runDone
			return
		case strings.HasPrefix(line, "/to "):
			recipient = strings.TrimSpace(strings.TrimPrefix(line, "/to "))
			color.Green.Printf("Now talking to %s\n", recipient)
		case line == "/read":
			if recipient == "" {
				color.Red.Println("Pick a recipient first with /to <user>")
				continue
			}
			if err := controller.MarkRead(recipient); err != nil {
				color.Red.Printf("Mark read failed: %v\n", err)
			}
		default:
			if recipient == "" {
				color.Red.Println("Pick a recipient first with /to <user>")
				continue
			}
			if _, err := controller.Send(recipient, line); err != nil {
				color.Red.Printf("Send failed: %v\n", err)
			}
		}
	}
	cancel()
	<-runDone
	fmt.Println("Bye")
}
