package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/lockstep-dev/lockstep/contracts"
)

// consoleReporter is the reference contracts.Reporter: plain stdout lines
// plus a numbered stdin prompt for Select. No TUI, no progress bars.
type consoleReporter struct {
	in *bufio.Scanner
}

func newConsoleReporter() *consoleReporter {
	return &consoleReporter{in: bufio.NewScanner(os.Stdin)}
}

func (r *consoleReporter) Step(current, total int, message string) {
	fmt.Printf("[%d/%d] %s\n", current, total, message)
}

func (r *consoleReporter) Success(message string) { fmt.Println("success:", message) }
func (r *consoleReporter) Warn(message string)    { fmt.Fprintln(os.Stderr, "warning:", message) }
func (r *consoleReporter) Info(message string)    { fmt.Println("info:", message) }
func (r *consoleReporter) Command(message string) { fmt.Println("$", message) }

func (r *consoleReporter) Lang(key string, args ...any) string {
	if len(args) == 0 {
		return key
	}
	return fmt.Sprintf(key, args...)
}

// Select prints message and a numbered list, then reads a choice off
// stdin. An empty or unparsable answer re-prompts once before falling
// back to the first option, so a non-interactive pipe doesn't hang.
func (r *consoleReporter) Select(message, answerPrompt string, options []contracts.SelectOption) (string, error) {
	if len(options) == 0 {
		return "", fmt.Errorf("select %q: no options offered", message)
	}
	fmt.Println(message)
	for i, opt := range options {
		fmt.Printf("  %d) %s\n", i+1, opt.Label)
	}
	fmt.Print(answerPrompt, " ")

	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			fmt.Print(answerPrompt, " ")
		}
		if !r.in.Scan() {
			break
		}
		if idx, err := strconv.Atoi(strings.TrimSpace(r.in.Text())); err == nil && idx >= 1 && idx <= len(options) {
			return options[idx-1].Value, nil
		}
	}
	return options[0].Value, nil
}
