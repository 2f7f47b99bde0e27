package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/stemsi/solvex/internal/config"
	"github.com/stemsi/solvex/internal/database"
	"github.com/stemsi/solvex/internal/logger"
	"github.com/stemsi/solvex/internal/service"
	"github.com/stemsi/solvex/internal/store"
	"golang.org/x/term"
)

func main() {
	var userID, examID string
	var yes, showOnly bool
	flag.StringVar(&userID, "user", "", "User ID of the student")
	flag.StringVar(&examID, "exam", "", "Exam ID")
	flag.BoolVar(&yes, "yes", false, "Reset without asking (required when stdin is not a terminal)")
	flag.BoolVar(&showOnly, "show", false, "Only print the stored attempt")
	flag.Parse()

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// ─── Open Session Store ────────────────────────────────────────────
	backend, err := database.OpenStoreBackend(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open session store")
	}
	defer backend.Close()

	attempts := service.NewAttemptService(nil, nil, store.New(backend.Backend, log), cfg.SubmitTimeout, log)

	// ─── CLI Input ─────────────────────────────────────────────────────
	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	reader := bufio.NewReader(os.Stdin)

	if userID == "" {
		userID = prompt(reader, interactive, "Enter User ID: ")
	}
	if examID == "" {
		examID = prompt(reader, interactive, "Enter Exam ID: ")
	}
	if userID == "" || examID == "" {
		fmt.Println("Error: user and exam are required")
		os.Exit(2)
	}

	summary, err := attempts.Attempt(ctx, userID, examID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read attempt")
	}

	fmt.Println("=== Stored Attempt ===")
	fmt.Printf("User:   %s\nExam:   %s\nStatus: %s\n", summary.UserID, summary.ExamID, summary.Status)
	if s := summary.Session; s != nil {
		fmt.Printf("Session: %s (%s)\nStarted: %s\nTime left: %ds of %dm\nAnswered: %d\n",
			s.SessionID, s.Status, s.StartedAt.Format(time.RFC3339), s.TimeLeft, s.DurationMinutes, s.Answered)
	} else {
		fmt.Println("Session: none")
	}

	if showOnly {
		return
	}

	if !yes {
		if !interactive {
			fmt.Println("Error: refusing to reset without -yes when stdin is not a terminal")
			os.Exit(2)
		}
		answer := strings.ToLower(prompt(reader, interactive, "Reset this attempt? The student will start over. [y/N]: "))
		if answer != "y" && answer != "yes" {
			fmt.Println("Aborted")
			return
		}
	}

	if err := attempts.Reset(ctx, userID, examID); err != nil {
		log.Fatal().Err(err).Msg("Failed to reset attempt")
	}
	fmt.Println("Attempt reset successfully")
}

func prompt(reader *bufio.Reader, interactive bool, label string) string {
	if interactive {
		fmt.Print(label)
	}
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}
