package group

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const semesterPrefix = "Sem "

var errBadSemester = errors.New("semester label cannot be parsed")

// Semesters is the ordered range of semester labels groups move through ("Sem 3".."Sem 8" by default).
type Semesters struct {
	Min int
	Max int
}

// Parse returns the number of a "Sem N" label.
func (s Semesters) Parse(label string) (int, error) {
	label = strings.TrimSpace(label)
	if !strings.HasPrefix(strings.ToLower(label), strings.ToLower(semesterPrefix)) {
		return 0, errBadSemester
	}
	n, err := strconv.Atoi(strings.TrimSpace(label[len(semesterPrefix):]))
	if err != nil {
		return 0, errBadSemester
	}
	return n, nil
}

func (s Semesters) Format(n int) string {
	return fmt.Sprintf("%s%d", semesterPrefix, n)
}

// Normalize parses label and checks that it is within range, returning its canonical form.
func (s Semesters) Normalize(label string) (string, error) {
	n, err := s.Parse(label)
	if err != nil {
		return "", err
	}
	if n < s.Min || n > s.Max {
		return "", errors.Errorf("semester must be between %s and %s", s.Format(s.Min), s.Format(s.Max))
	}
	return s.Format(n), nil
}

// Next returns the label following label, failing when label is unparsable or already the last one.
func (s Semesters) Next(label string) (string, error) {
	n, err := s.Parse(label)
	if err != nil {
		return "", ErrSemesterUnparsable
	}
	if n >= s.Max {
		return "", ErrFinalSemester
	}
	return s.Format(n + 1), nil
}
