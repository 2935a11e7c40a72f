package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/park285/concentration/internal/mailer"
)

func main() {
	to := flag.String("to", "", "send a test reminder to this address")
	flag.Parse()

	baseURL := os.Getenv("MAIL_RELAY_URL")
	token := os.Getenv("MAIL_RELAY_TOKEN")
	from := os.Getenv("MAIL_FROM")
	if from == "" {
		from = "noreply@concentration.local"
	}
	if baseURL == "" {
		log.Fatal("MAIL_RELAY_URL is required")
	}

	client := mailer.NewRelayClient(baseURL,
		mailer.WithToken(token),
		mailer.WithTimeout(8*time.Second),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		log.Printf("/health error: %v", err)
	} else {
		log.Printf("/health ok: %s", baseURL)
	}

	if *to == "" {
		log.Println("-to not set; skipping send check")
		return
	}
	sctx, scancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer scancel()
	msg := mailer.Message{From: from, To: *to, Subject: "This is a reminder!", Body: "Concentration mail relay check."}
	if err := client.Send(sctx, msg); err != nil {
		log.Fatalf("send error: %v", err)
	}
	log.Printf("send ok: to=%s", *to)
}
