package model

import (
	"fmt"
	"strings"
)

// Option is one of the four answer letters.
type Option string

const (
	OptionA Option = "a"
	OptionB Option = "b"
	OptionC Option = "c"
	OptionD Option = "d"
)

// Options lists the answer letters in display order.
var Options = []Option{OptionA, OptionB, OptionC, OptionD}

// ParseOption accepts a letter in either case.
func ParseOption(s string) (Option, error) {
	o := Option(strings.ToLower(strings.TrimSpace(s)))
	switch o {
	case OptionA, OptionB, OptionC, OptionD:
		return o, nil
	}
	return "", fmt.Errorf("invalid option %q", s)
}

// Question is a student-facing question. The correct option is withheld.
type Question struct {
	ID      int    `json:"question_id"`
	Text    string `json:"question_text"`
	OptionA string `json:"option_a"`
	OptionB string `json:"option_b"`
	OptionC string `json:"option_c"`
	OptionD string `json:"option_d"`
}

// Option returns the label text of the given letter.
func (q *Question) Option(o Option) string {
	switch o {
	case OptionA:
		return q.OptionA
	case OptionB:
		return q.OptionB
	case OptionC:
		return q.OptionC
	case OptionD:
		return q.OptionD
	}
	return ""
}
