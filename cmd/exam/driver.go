package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/stemsi/exstem-attempt/internal/attempt"
	"github.com/stemsi/exstem-attempt/internal/model"
	"github.com/stemsi/exstem-attempt/internal/session"
)

// driver renders a session and feeds it keyboard commands, one per line.
type driver struct {
	sess     *session.Session
	in       io.Reader
	out      io.Writer
	tty      bool
	ticks    <-chan int
	timeouts <-chan int
}

func (d *driver) run(ctx context.Context) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(d.in)
		for sc.Scan() {
			select {
			case lines <- strings.ToLower(strings.TrimSpace(sc.Text())):
			case <-ctx.Done():
				return
			}
		}
	}()

	if d.sess.View().Resumed {
		fmt.Fprintln(d.out, "Resuming your previous attempt.")
	}
	d.render()
	for {
		select {
		case <-ctx.Done():
			return nil

		case remaining := <-d.ticks:
			if d.tty {
				fmt.Fprintf(d.out, "\r%3ds left > ", remaining)
			}

		case <-d.timeouts:
			fmt.Fprintln(d.out, "\nTime is up.")
			d.render()

		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := d.handle(ctx, line)
			if err != nil {
				return err
			}
			if quit {
				return nil
			}
			d.render()
		}
	}
}

// handle applies one command. Draft save failures are shown and the
// session goes on.
func (d *driver) handle(ctx context.Context, line string) (bool, error) {
	v := d.sess.View()

	switch {
	case line == "":
		return false, nil
	case line == "q":
		return true, nil
	case line == "o":
		d.sess.Reconnect(ctx)
		if d.sess.PendingSync() {
			fmt.Fprintln(d.out, "Still offline, progress is kept on this device.")
		} else {
			fmt.Fprintln(d.out, "Progress synced.")
		}
		return false, nil
	}

	if v.Finished {
		if line != "r" {
			fmt.Fprintln(d.out, "The attempt is finished. [r] restart  [q] quit")
			return false, nil
		}
		return false, d.sess.Restart(ctx)
	}

	if v.ConfirmOpen {
		switch line {
		case "y":
			if _, err := d.sess.Submit(ctx); err != nil {
				d.warn("Submit failed", err)
			}
		case "c":
			d.sess.CancelConfirm()
		}
		return false, nil
	}

	switch {
	case line == "s":
		if _, err := d.sess.Skip(ctx); err != nil {
			d.warn("Skip failed", err)
		}
	case line == "n":
		err := d.sess.Next(ctx)
		if errors.Is(err, attempt.ErrNotTerminal) {
			fmt.Fprintln(d.out, "Answer or skip this question first.")
		} else if err != nil {
			d.warn("Next failed", err)
		}
	case len(line) == 1 && line[0] >= 'a' && line[0] <= 'z':
		i := int(line[0] - 'a')
		if i >= len(v.Question.Options) {
			fmt.Fprintln(d.out, "No such option.")
			return false, nil
		}
		if _, err := d.sess.Answer(ctx, v.Question.Options[i]); err != nil {
			d.warn("Answer failed", err)
		}
	default:
		fmt.Fprintln(d.out, "Unknown command.")
	}
	return false, nil
}

func (d *driver) warn(what string, err error) {
	fmt.Fprintf(d.out, "%s: %v\n", what, err)
}

func (d *driver) render() {
	v := d.sess.View()
	switch {
	case v.Finished:
		d.renderResult(v.Result)
	case v.ConfirmOpen:
		fmt.Fprintf(d.out, "\nAll %d questions are done. [y] submit  [c] back\n", v.Total)
	default:
		d.renderQuestion(v)
	}
	if d.sess.PendingSync() {
		fmt.Fprintln(d.out, "(offline) [o] retry sync")
	}
}

func (d *driver) renderQuestion(v session.View) {
	c := v.Counters
	fmt.Fprintf(d.out, "\nQuestion %d/%d   correct %d  wrong %d  timeout %d  skipped %d\n",
		v.Position+1, v.Total, c.Correct, c.Wrong, c.Timeout, c.Skipped)
	fmt.Fprintln(d.out, v.Question.Text)
	for i, opt := range v.Question.Options {
		fmt.Fprintf(d.out, "  %c) %s\n", 'a'+i, opt)
	}

	r := v.Record
	switch {
	case r.Feedback != nil && r.Feedback.Correct:
		fmt.Fprintln(d.out, "Correct!")
	case r.Feedback != nil:
		fmt.Fprintf(d.out, "Wrong. The answer is %s.\n", r.Feedback.CorrectAnswer)
	case r.Status == model.StatusTimeout:
		fmt.Fprintln(d.out, "Time ran out on this question.")
	case r.Status == model.StatusSkipped:
		fmt.Fprintln(d.out, "Skipped.")
	}

	if r.Status.Terminal() {
		fmt.Fprintln(d.out, "[n] next  [q] quit")
		return
	}
	last := 'a' + rune(len(v.Question.Options)) - 1
	fmt.Fprintf(d.out, "%ds left  [a-%c] answer  [s] skip  [q] quit\n", v.Remaining, last)
}

func (d *driver) renderResult(res *model.Result) {
	if res == nil {
		return
	}
	fmt.Fprintf(d.out, "\nScore: %d%% (%d of %d correct)\n", res.Percentage, res.CorrectCount, res.Total)
	fmt.Fprintf(d.out, "Wrong %d  timeout %d  skipped %d\n", res.WrongCount, res.TimeoutCount, res.SkippedCount)
	if len(res.WrongTopics) > 0 {
		fmt.Fprintln(d.out, "Topics to review:")
		for _, t := range res.WrongTopics {
			fmt.Fprintf(d.out, "  %s (%d)\n", t.Topic, t.Count)
		}
	}
	if len(res.TimeoutTopics) > 0 {
		fmt.Fprintln(d.out, "Topics that ran out of time:")
		for _, t := range res.TimeoutTopics {
			fmt.Fprintf(d.out, "  %s (%d)\n", t.Topic, t.Count)
		}
	}
	if res.RecommendedTopic != "" {
		fmt.Fprintf(d.out, "Recommended next: %s\n", res.RecommendedTopic)
	}
	if res.ShareURL != "" {
		fmt.Fprintf(d.out, "Share: %s\n", res.ShareURL)
	}
	fmt.Fprintln(d.out, "[r] restart  [q] quit")
}
