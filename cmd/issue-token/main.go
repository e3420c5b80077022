package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/stemsi/exstem-attempt/internal/config"
	"github.com/stemsi/exstem-attempt/internal/service"
)

func main() {
	var (
		role string
		id   string
	)
	flag.StringVar(&role, "role", "student", "Token role: student or teacher")
	flag.StringVar(&id, "id", "", "Student or teacher id (prompted when empty)")
	flag.Parse()

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()
	authService := service.NewAuthService(cfg)

	// ─── CLI Input ─────────────────────────────────────────────────────
	if id == "" {
		fmt.Printf("Enter %s ID: ", role)
		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		id = strings.TrimSpace(line)
	}
	if id == "" {
		fmt.Fprintln(os.Stderr, "Error: ID is required")
		os.Exit(1)
	}

	// ─── Logic ─────────────────────────────────────────────────────────
	var (
		token string
		err   error
	)
	switch role {
	case "student":
		token, err = authService.GenerateStudentToken(id)
	case "teacher":
		token, err = authService.GenerateTeacherToken(id)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown role %q\n", role)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
