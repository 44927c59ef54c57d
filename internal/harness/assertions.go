package harness

import (
	"fmt"
	"reflect"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/prevalence/internal/journal"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string           // Assertion type for categorization
	Expected string           // Human-readable expected outcome
	Actual   string           // Human-readable actual outcome
	Journal  []journal.Record // Full journal for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nJournal:\n")
	for _, rec := range e.Journal {
		fmt.Fprintf(&buf, "  [%d] %s %s\n", rec.Seq, rec.Name, rec.Arg)
	}
	return buf.String()
}

// EvaluateAssertions runs every assertion against the result and returns
// the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion) error {
	switch a.Type {
	case AssertJournalContains:
		return assertJournalContains(result.Journal, a)
	case AssertJournalOrder:
		return assertJournalOrder(result.Journal, a)
	case AssertJournalCount:
		return assertJournalCount(result.Journal, a)
	case AssertFinalState:
		return assertFinalState(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertJournalContains checks for a record with the command and a matching
// argument (subset semantics).
func assertJournalContains(records []journal.Record, a Assertion) error {
	for _, rec := range records {
		if rec.Name != a.Command {
			continue
		}
		if a.Arg == nil {
			return nil
		}
		ok, err := Matches(rec.Arg, a.Arg)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertJournalContains,
		Expected: fmt.Sprintf("command %s with arg %v", a.Command, a.Arg),
		Actual:   "not found in journal",
		Journal:  records,
	}
}

// assertJournalOrder checks that commands appear in order.
// Commands don't need to be consecutive (intervening records are allowed).
func assertJournalOrder(records []journal.Record, a Assertion) error {
	next := 0
	for _, rec := range records {
		if next < len(a.Commands) && rec.Name == a.Commands[next] {
			next++
		}
	}
	if next == len(a.Commands) {
		return nil
	}

	return &AssertionError{
		Type:     AssertJournalOrder,
		Expected: fmt.Sprintf("commands in order: %v", a.Commands),
		Actual:   fmt.Sprintf("no %s after %v", a.Commands[next], a.Commands[:next]),
		Journal:  records,
	}
}

// assertJournalCount checks the command was journaled exactly Count times.
func assertJournalCount(records []journal.Record, a Assertion) error {
	count := 0
	for _, rec := range records {
		if rec.Name == a.Command {
			count++
		}
	}
	if count == a.Count {
		return nil
	}

	return &AssertionError{
		Type:     AssertJournalCount,
		Expected: fmt.Sprintf("%s journaled %d times", a.Command, a.Count),
		Actual:   fmt.Sprintf("%d times", count),
		Journal:  records,
	}
}

// assertFinalState matches the model at the end of the flow.
func assertFinalState(result *Result, a Assertion) error {
	ok, err := Matches(result.State, a.Expect)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	want, _ := toValue(a.Expect)
	return &AssertionError{
		Type:     AssertFinalState,
		Expected: fmt.Sprintf("%v", want),
		Actual:   string(result.State),
		Journal:  result.Journal,
	}
}

// Matches reports whether actual matches expected after both are converted
// to their JSON form. Objects match as subsets: every expected key must be
// present and match. Arrays must have the same length and match element by
// element. Scalars must be equal; strings are compared after NFC
// normalization.
func Matches(actual, expected any) (bool, error) {
	a, err := toValue(actual)
	if err != nil {
		return false, fmt.Errorf("actual: %w", err)
	}
	e, err := toValue(expected)
	if err != nil {
		return false, fmt.Errorf("expected: %w", err)
	}
	return matchValue(a, e), nil
}

func matchValue(actual, expected any) bool {
	switch e := expected.(type) {
	case map[string]any:
		a, ok := actual.(map[string]any)
		if !ok {
			return false
		}
		for k, ev := range e {
			av, ok := a[k]
			if !ok || !matchValue(av, ev) {
				return false
			}
		}
		return true
	case []any:
		a, ok := actual.([]any)
		if !ok || len(a) != len(e) {
			return false
		}
		for i := range e {
			if !matchValue(a[i], e[i]) {
				return false
			}
		}
		return true
	case string:
		// Scenario files may be saved in either Unicode form.
		a, ok := actual.(string)
		return ok && norm.NFC.String(a) == norm.NFC.String(e)
	default:
		return reflect.DeepEqual(actual, expected)
	}
}
