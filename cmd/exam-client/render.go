package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/stemsi/exstem-client/internal/exam"
	"github.com/stemsi/exstem-client/internal/model"
	"github.com/stemsi/exstem-client/internal/timer"
)

func printInstructions(w io.Writer, e *model.Exam, maxFlags int) {
	fmt.Fprintf(w, "%s\n%s\n", e.Name, strings.Repeat("=", len(e.Name)))
	fmt.Fprintf(w, "Subject:  %s\n", e.Subject.Name)
	fmt.Fprintf(w, "Teacher:  %s\n", e.Teacher.Name)
	fmt.Fprintf(w, "Marks:    %d\n", e.TotalMarks)
	fmt.Fprintf(w, "Duration: %s\n\n", model.FormatDuration(e.DurationMinutes))
	fmt.Fprintln(w, "Instructions:")
	fmt.Fprintln(w, "  1. Open the kiosk window and keep it in fullscreen for the whole exam.")
	fmt.Fprintln(w, "  2. Leaving fullscreen or switching tabs is recorded as a violation.")
	fmt.Fprintf(w, "  3. After %d violations you are disqualified and the exam ends.\n", maxFlags)
	fmt.Fprintln(w, "  4. An answer is saved when you move to another question and cannot be changed.")
	fmt.Fprintln(w, "  5. The exam is submitted automatically when the time runs out.")
}

func renderView(w io.Writer, v exam.View) {
	if !v.Loaded || v.Question == nil {
		fmt.Fprintln(w, "No questions loaded.")
		return
	}
	q := v.Question

	fmt.Fprintf(w, "\nQuestion %d of %d   Answered %d/%d   Time left %s   Violations %d/%d\n",
		v.Position+1, v.Total, v.Answered, v.Total, timer.Format(v.Remaining), v.Flags, v.MaxFlags)
	fmt.Fprintf(w, "%s\n", q.Text)
	for _, o := range model.Options {
		mark := " "
		switch {
		case v.Answer == o:
			mark = "x"
		case v.Pending == o:
			mark = "*"
		}
		fmt.Fprintf(w, "  [%s] %s) %s\n", mark, o, q.Option(o))
	}
	if v.Answer != "" {
		fmt.Fprintln(w, "  Answer saved. It can no longer be changed.")
	}
	if v.Err != nil {
		fmt.Fprintf(w, "  ! %s\n", exam.UserMessage(v.Err))
	}
}

func printOutcome(w io.Writer, o exam.Outcome) {
	switch o.Kind {
	case exam.OutcomeDisqualified:
		fmt.Fprintf(w, "\nYou have been disqualified from this exam after %d violations.\n", o.Flags)
		fmt.Fprintln(w, "Your attempt was closed by the proctor. Run `exam-client exams` to see your exams.")
	default:
		if o.Trigger == exam.TriggerTimeout {
			fmt.Fprintln(w, "\nTime is up. Your exam was submitted automatically.")
		} else {
			fmt.Fprintln(w, "\nExam submitted successfully.")
		}
		fmt.Fprintln(w, "Results will appear under `exam-client results` once graded.")
	}
}

func printResult(w io.Writer, d *model.ResultDetails) {
	fmt.Fprintf(w, "%s (%s)\n", d.Exam.Name, d.Exam.Subject.Name)
	fmt.Fprintf(w, "Score: %g/%d   Correct: %d   Incorrect: %d   Status: %s\n",
		d.Score, d.Exam.TotalMarks, d.CorrectCount, d.IncorrectCount, d.Status)
	fmt.Fprintf(w, "Started: %s   Submitted: %s\n", timeOrDash(d.StartedAt), timeOrDash(d.SubmittedAt))

	for i, ans := range d.Answers {
		verdict := "wrong"
		if ans.IsCorrect {
			verdict = "correct"
		}
		selected := string(ans.SelectedOption)
		if selected == "" {
			selected = "-"
		}
		fmt.Fprintf(w, "\n%d. %s\n   your answer: %s   correct: %s   (%s)\n",
			i+1, ans.QuestionText, selected, ans.CorrectOption, verdict)
	}
}
