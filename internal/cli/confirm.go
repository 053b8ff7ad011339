package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"shelfscan/internal/logging"
	"shelfscan/internal/pipeline"

	"golang.org/x/term"
)

// now is replaced in tests.
var now = time.Now

func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// confirmer answers yes when --yes is set, prompts on a terminal and
// declines otherwise.
func confirmer(in io.Reader, out io.Writer, interactive, yes bool) pipeline.Confirm {
	return func(question string) bool {
		if yes {
			return true
		}
		if !interactive {
			logging.Warn("confirmation needed; rerun with --yes", "question", question)
			return false
		}
		fmt.Fprintf(out, "%s [y/N]: ", question)
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && line == "" {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		default:
			return false
		}
	}
}

func defaultConfirm() pipeline.Confirm {
	return confirmer(os.Stdin, os.Stderr, stdinIsTerminal(), assumeYes)
}
