package card

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os/exec"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
)

// Printer sends a rendered card to a physical printer
type Printer interface {
	Print(ctx context.Context, card image.Image) error
}

// LPPrinter prints through the CUPS lp command, reading the card as PNG on stdin
type LPPrinter struct {
	Command     string // defaults to "lp"
	Destination string // printer name; empty uses the system default
	Copies      int
}

var _ Printer = LPPrinter{}

func (p LPPrinter) args() []string {
	var args []string
	if p.Destination != "" {
		args = append(args, "-d", p.Destination)
	}
	if p.Copies > 1 {
		args = append(args, "-n", strconv.Itoa(p.Copies))
	}
	return append(args, "-o", "fit-to-page", "-t", "passport-card", "-")
}

// Print encodes the card and pipes it to lp
func (p LPPrinter) Print(ctx context.Context, card image.Image) error {
	command := p.Command
	if command == "" {
		command = "lp"
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, card, imaging.PNG); err != nil {
		return fmt.Errorf("encode card: %w", err)
	}

	cmd := exec.CommandContext(ctx, command, p.args()...)
	cmd.Stdin = &buf
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("print card: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
