package chat

import (
	"bufio"
	"context"
	"fmt"
	"io"
)

// RunREPL reads questions line by line until quit, end of input or ctx is
// cancelled. It always ends by printing the farewell.
func RunREPL(ctx context.Context, s *Session, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- sc.Err()
	}()

	for {
		fmt.Fprint(out, "You: ")
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			fmt.Fprintln(out, Farewell)
			return nil
		case err := <-errc:
			fmt.Fprintln(out)
			fmt.Fprintln(out, Farewell)
			return err
		case line := <-lines:
			r := s.Execute(ctx, line)
			if r.Quit {
				fmt.Fprintln(out, r.Text)
				return nil
			}
			if r.Text == "" {
				continue
			}
			if r.Envelope != nil && r.Envelope.Success {
				fmt.Fprintf(out, "Assistant: %s\n", r.Text)
			} else {
				fmt.Fprintln(out, r.Text)
			}
		}
	}
}
