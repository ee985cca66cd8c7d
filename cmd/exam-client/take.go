package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/stemsi/exstem-client/internal/exam"
	"github.com/stemsi/exstem-client/internal/logger"
	"github.com/stemsi/exstem-client/internal/model"
	"github.com/stemsi/exstem-client/internal/proctor"
	"github.com/stemsi/exstem-client/internal/watchdog"
)

const loopHelp = "a-d select   n next   p previous   s skip   submit   q quit   (enter refreshes)"

// take runs one attempt: instructions, start or resume, the kiosk gate and
// the question loop.
func (a *app) take(ctx context.Context, args []string) error {
	if _, err := a.requireStudent(); err != nil {
		return err
	}
	examID, err := examIDArg(args)
	if err != nil {
		return err
	}

	e, err := a.api.GetExam(ctx, examID)
	if err != nil {
		return err
	}
	printInstructions(a.out, e, a.cfg.MaxViolationFlags)

	answer, err := a.readLine("\nType 'start' to begin: ")
	if err != nil {
		return err
	}
	if answer != "start" {
		fmt.Fprintln(a.out, "Not started.")
		return nil
	}

	ref, resumed, err := exam.Begin(ctx, a.api, a.store, examID)
	if err != nil {
		return err
	}
	if resumed {
		fmt.Fprintln(a.out, "Resuming your open attempt.")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// ─── Proctor Bridge ────────────────────────────────────────────────
	bridge := proctor.NewBridge(logger.Component(a.log, "proctor"))
	srv := proctor.NewServer(a.cfg, bridge, logger.Component(a.log, "proctor"))
	srvErr := make(chan error, 1)
	go func() { srvErr <- srv.ListenAndServe(ctx) }()

	ctrl := exam.NewController(a.api, ref, logger.Component(a.log, "exam"),
		exam.WithMaxFlags(a.cfg.MaxViolationFlags),
		exam.WithTickInterval(a.cfg.TickInterval),
	)
	defer ctrl.Close()

	dog := watchdog.New(bridge, ctrl, logger.Component(a.log, "watchdog"), watchdog.WithRetryInterval(a.cfg.FullscreenRetry))
	go dog.Run(ctx)

	fmt.Fprintf(a.out, "\nOpen http://%s in the kiosk browser and enter fullscreen.\n", a.cfg.ProctorAddr)
	if err := waitFullscreen(ctx, bridge, dog, srvErr, a.out); err != nil {
		return err
	}

	if err := ctrl.Load(ctx); err != nil {
		return err
	}

	runErr := make(chan error, 1)
	go func() {
		_, err := ctrl.Run(ctx)
		runErr <- err
	}()

	lines := make(chan string)
	go a.scanLines(ctx, lines)

	fmt.Fprintln(a.out, loopHelp)
	for {
		renderView(a.out, ctrl.View())
		fmt.Fprint(a.out, "> ")

		select {
		case <-ctrl.Done():
			o, _ := ctrl.Outcome()
			printOutcome(a.out, o)
			return nil

		case err := <-runErr:
			if o, ok := ctrl.Outcome(); ok {
				printOutcome(a.out, o)
				return nil
			}
			return err

		case err := <-srvErr:
			return fmt.Errorf("proctor bridge: %w", err)

		case line, ok := <-lines:
			if !ok {
				return errors.New("input closed")
			}
			quit, err := a.handleInput(ctx, ctrl, line)
			if quit {
				fmt.Fprintln(a.out, "Left the exam. Your attempt stays open; run `take` again to resume.")
				return nil
			}
			if err != nil {
				if exam.IsFatal(err) {
					return err
				}
				fmt.Fprintf(a.out, "! %s\n", exam.UserMessage(err))
			}
		}
	}
}

func (a *app) handleInput(ctx context.Context, ctrl *exam.Controller, line string) (quit bool, err error) {
	switch cmd := strings.ToLower(strings.TrimSpace(line)); cmd {
	case "":
		return false, nil
	case "a", "b", "c", "d":
		return false, ctrl.Select(model.Option(cmd))
	case "n", "next":
		return false, ctrl.Next(ctx)
	case "p", "prev", "previous":
		return false, ctrl.Previous(ctx)
	case "s", "skip":
		return false, ctrl.Skip()
	case "submit":
		return false, ctrl.Submit(ctx, exam.TriggerManual)
	case "q", "quit":
		return true, nil
	case "?", "help":
		fmt.Fprintln(a.out, loopHelp)
		return false, nil
	default:
		fmt.Fprintf(a.out, "Unknown command %q. %s\n", cmd, loopHelp)
		return false, nil
	}
}

// scanLines feeds stdin lines to out until input ends or ctx is done.
func (a *app) scanLines(ctx context.Context, out chan<- string) {
	defer close(out)
	for {
		line, err := a.in.ReadString('\n')
		if line != "" || err == nil {
			select {
			case out <- line:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// waitFullscreen blocks until a kiosk has connected and first entered
// fullscreen, or the bridge server stops.
func waitFullscreen(ctx context.Context, bridge *proctor.Bridge, dog *watchdog.Watchdog, srvErr <-chan error, out io.Writer) error {
	stopped := func(err error) error {
		if err == nil {
			err = errors.New("stopped")
		}
		return fmt.Errorf("proctor bridge: %w", err)
	}

	kiosk := make(chan error, 1)
	go func() { kiosk <- bridge.WaitKiosk(ctx) }()
	select {
	case err := <-kiosk:
		if err != nil {
			return err
		}
	case err := <-srvErr:
		return stopped(err)
	}
	fmt.Fprintln(out, "Kiosk connected. Enter fullscreen to begin.")

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for dog.State() == watchdog.AwaitingFullscreen {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-srvErr:
			return stopped(err)
		case <-ticker.C:
		}
	}
	return nil
}
