package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/stemsi/exstem-attempt/internal/draft"
	"github.com/stemsi/exstem-attempt/internal/remote"
	"github.com/stemsi/exstem-attempt/internal/session"
	"golang.org/x/term"
)

var takeCmd = &cobra.Command{
	Use:   "take",
	Short: "Start or resume an attempt",
	RunE:  runTake,
}

func init() {
	takeCmd.Flags().String("exam", "", "Exam id")
	takeCmd.Flags().String("student", "", "Student id")
	takeCmd.Flags().String("token", "", "Student bearer token (overrides STUDENT_TOKEN)")
	_ = takeCmd.MarkFlagRequired("exam")
	_ = takeCmd.MarkFlagRequired("student")
}

func runTake(cmd *cobra.Command, _ []string) error {
	cfg := loadConfig(cmd)
	if t, _ := cmd.Flags().GetString("token"); t != "" {
		cfg.StudentToken = t
	}
	if cfg.StudentToken == "" {
		return errors.New("a student token is required (--token or STUDENT_TOKEN)")
	}
	examID, _ := cmd.Flags().GetString("exam")
	studentID, _ := cmd.Flags().GetString("student")

	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openDraftStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open draft store: %w", err)
	}
	defer closeStore()

	ticks := make(chan int, 1)
	timeouts := make(chan int, 1)

	client := remote.NewHTTPClient(cfg.APIBaseURL, cfg.StudentToken, cfg.RequestTimeout, log)
	mgr := session.NewManager(client, draft.NewRepository(store), session.Config{
		QuestionSeconds: cfg.QuestionSeconds,
		TickInterval:    cfg.TickInterval,
		PushTimeout:     cfg.RequestTimeout,
		TeacherID:       cfg.TeacherID,
		Hooks: session.Hooks{
			OnTick: func(_, remaining int) {
				select {
				case ticks <- remaining:
				default:
				}
			},
			OnTimeout: func(position int) {
				select {
				case timeouts <- position:
				default:
				}
			},
		},
	}, log)

	sess, err := mgr.Open(ctx, examID, studentID)
	if err != nil {
		return err
	}
	defer sess.Close()

	d := &driver{
		sess:     sess,
		in:       os.Stdin,
		out:      os.Stdout,
		tty:      term.IsTerminal(int(os.Stdout.Fd())),
		ticks:    ticks,
		timeouts: timeouts,
	}
	return d.run(ctx)
}
