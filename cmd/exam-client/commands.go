package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/stemsi/exstem-client/internal/client"
	"github.com/stemsi/exstem-client/internal/model"
	"golang.org/x/term"
)

var errNotStudent = &client.Error{Kind: client.KindAuthRequired, Op: "student command", Message: "sign in as a student first"}

func (a *app) requireStudent() (*model.Identity, error) {
	id := a.store.Student()
	if id == nil {
		return nil, errNotStudent
	}
	return id, nil
}

func examIDArg(args []string) (int, error) {
	if len(args) != 1 {
		return 0, errors.New("expected exactly one exam id")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid exam id %q", args[0])
	}
	return n, nil
}

func (a *app) readLine(prompt string) (string, error) {
	fmt.Fprint(a.out, prompt)
	line, err := a.in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (a *app) readPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return a.readLine("Password: ")
	}
	fmt.Fprint(a.out, "Password: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(a.out) // Newline after password input
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}

func (a *app) login(ctx context.Context, args []string) error {
	role := model.RoleStudent
	switch len(args) {
	case 1:
	case 2:
		role = model.Role(strings.ToLower(args[0]))
		args = args[1:]
	default:
		return errors.New("usage: login [student|teacher|admin] <email>")
	}
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", role)
	}

	password, err := a.readPassword()
	if err != nil {
		return err
	}

	id, err := a.api.SignIn(ctx, role, args[0], password)
	if err != nil {
		var ce *client.Error
		if errors.As(err, &ce) && ce.Kind == client.KindValidationFailed && len(ce.Fields) > 0 {
			for field, msg := range ce.Fields {
				fmt.Fprintf(a.out, "  %s: %s\n", field, msg)
			}
		}
		return err
	}
	if err := a.store.SetIdentity(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Signed in as %s (%s).\n", id.Name, id.Role)
	return nil
}

func (a *app) logout(ctx context.Context) error {
	if err := a.store.Clear(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Signed out.")
	return nil
}

func (a *app) whoami() error {
	id := a.store.Identity()
	if id == nil {
		fmt.Fprintln(a.out, "Not signed in.")
		return nil
	}
	fmt.Fprintf(a.out, "%s <%s>\nRole: %s\nID:   %d\n", id.Name, id.Email, id.Role, id.ID)
	if id.Student != nil {
		fmt.Fprintf(a.out, "Roll: %s  Semester: %d\n", id.Student.RollNumber, id.Student.Semester)
	}
	return nil
}

func (a *app) exams(ctx context.Context, args []string) error {
	id, err := a.requireStudent()
	if err != nil {
		return err
	}
	raw := ""
	if len(args) > 0 {
		raw = strings.ToLower(args[0])
	}
	status, err := model.ParseExamStatus(raw)
	if err != nil {
		return err
	}

	list, err := a.api.ListExams(ctx, id.ID, status)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintf(a.out, "No %s exams.\n", status)
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSUBJECT\tSCHEDULED\tDURATION\tMARKS")
	for _, e := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\n",
			e.ID, e.Name, e.Subject.Name,
			e.ScheduledTime.Local().Format("2006-01-02 15:04"),
			model.FormatDuration(e.DurationMinutes), e.TotalMarks)
	}
	return tw.Flush()
}

func (a *app) instructions(ctx context.Context, args []string) error {
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
	return nil
}

func (a *app) results(ctx context.Context) error {
	id, err := a.requireStudent()
	if err != nil {
		return err
	}
	list, err := a.api.ListResults(ctx, id.ID)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No results yet.")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEXAM\tSUBJECT\tSCORE\tSTATUS")
	for _, r := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%g/%d\t%s\n", r.ExamID, r.ExamName, r.SubjectName, r.Score, r.TotalMarks, r.Status)
	}
	return tw.Flush()
}

func (a *app) result(ctx context.Context, args []string) error {
	id, err := a.requireStudent()
	if err != nil {
		return err
	}
	examID, err := examIDArg(args)
	if err != nil {
		return err
	}
	d, err := a.api.GetResultDetails(ctx, id.ID, examID)
	if err != nil {
		return err
	}
	printResult(a.out, d)
	return nil
}

func timeOrDash(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
