package hostfn

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/fernlang/fernhost/abi"
)

// DefaultMaxLineLength bounds a single Stdin.line read.
const DefaultMaxLineLength = 1 << 20

// LineReader supplies one line per Stdin.line effect, without the trailing
// newline.
type LineReader interface {
	ReadLine() (string, error)
}

type scanLines struct {
	sc     *bufio.Scanner
	broken bool
}

// ScanLines returns a LineReader over r. Lines longer than max poison the
// reader: that read and every subsequent one degrades to empty, since the
// effect signature has no failure channel.
func ScanLines(r io.Reader, max int) LineReader {
	if max <= 0 {
		max = DefaultMaxLineLength
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), max)
	return &scanLines{sc: sc}
}

func (s *scanLines) ReadLine() (string, error) {
	if s.broken {
		return "", io.EOF
	}
	if !s.sc.Scan() {
		s.broken = true
		if err := s.sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return s.sc.Text(), nil
}

// Stdout.line: write one line to the host's standard output.
func stdoutLine(ctx context.Context, env *Env, ret, arg uint32) error {
	line, err := argString(env, arg, lineArg.Offset("line"))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(env.stdout(), line)
	return err
}

// Stdin.line: read one line, degrading to the empty string on EOF, read
// failure, or an overlong line.
func stdinLine(ctx context.Context, env *Env, ret, arg uint32) error {
	if env.Stdin == nil {
		return abi.WriteStr(env.Mem, ret, abi.Str{})
	}
	line, err := env.Stdin.ReadLine()
	if err != nil {
		return abi.WriteStr(env.Mem, ret, abi.Str{})
	}
	return retString(env, ret, line)
}
