package sqlingo

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ergochat/readline"
	"golang.org/x/term"
)

// ErrInterrupted is returned by a LineReader when the user presses Ctrl-C.
var ErrInterrupted = errors.New("interrupted")

// LineReader supplies user input. ReadLine returns io.EOF once input ends.
type LineReader interface {
	ReadLine(prompt string) (string, error)
	ReadPassword(prompt string) (string, error)
	Close() error
}

// NewLineReader picks an editing reader for a terminal and a plain line
// reader for anything else.
func NewLineReader(in io.Reader, out io.Writer, historyFile string) (LineReader, error) {
	if file, ok := in.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		return newTerminalReader(file, out, historyFile)
	}
	return newScannerReader(in, out), nil
}

type terminalReader struct {
	rl   *readline.Instance
	file *os.File
	out  io.Writer
}

func newTerminalReader(file *os.File, out io.Writer, historyFile string) (*terminalReader, error) {
	rl, err := readline.NewFromConfig(&readline.Config{
		Prompt:      "> ",
		HistoryFile: historyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("init readline: %w", err)
	}
	return &terminalReader{rl: rl, file: file, out: out}, nil
}

func (r *terminalReader) ReadLine(prompt string) (string, error) {
	r.rl.SetPrompt(prompt)
	line, err := r.rl.ReadLine()
	if errors.Is(err, readline.ErrInterrupt) {
		return "", ErrInterrupted
	}
	if err != nil {
		return "", err
	}
	return line, nil
}

func (r *terminalReader) ReadPassword(prompt string) (string, error) {
	_, _ = fmt.Fprint(r.out, prompt)
	raw, err := term.ReadPassword(int(r.file.Fd()))
	_, _ = fmt.Fprintln(r.out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(raw), nil
}

func (r *terminalReader) Close() error {
	return r.rl.Close()
}

type scannerReader struct {
	scanner *bufio.Scanner
	out     io.Writer
}

func newScannerReader(in io.Reader, out io.Writer) *scannerReader {
	return &scannerReader{scanner: bufio.NewScanner(in), out: out}
}

func (r *scannerReader) ReadLine(prompt string) (string, error) {
	_, _ = fmt.Fprint(r.out, prompt)
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimRight(r.scanner.Text(), "\r"), nil
}

func (r *scannerReader) ReadPassword(prompt string) (string, error) {
	return r.ReadLine(prompt)
}

func (r *scannerReader) Close() error {
	return nil
}
