package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/mauv0809/dcf/internal/valuation"
)

// promptResolver asks on the terminal for fields the data source left empty.
// An empty answer leaves the field absent. After EOF it stops asking.
type promptResolver struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
	eof bool
}

func newPromptResolver(in io.Reader, out io.Writer) *promptResolver {
	return &promptResolver{in: bufio.NewReader(in), out: out}
}

func (p *promptResolver) Resolve(ctx context.Context, req valuation.FieldRequest) (decimal.Decimal, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for !p.eof {
		if err := ctx.Err(); err != nil {
			return decimal.Zero, false, err
		}
		fmt.Fprintf(p.out, "%s is missing. Enter a value (blank to skip): ", req)

		line, err := p.in.ReadString('\n')
		if errors.Is(err, io.EOF) {
			p.eof = true
		} else if err != nil {
			return decimal.Zero, false, fmt.Errorf("reading answer: %w", err)
		}

		answer := strings.ReplaceAll(strings.TrimSpace(line), ",", "")
		if answer == "" {
			return decimal.Zero, false, nil
		}
		v, perr := decimal.NewFromString(answer)
		if perr == nil {
			return v, true, nil
		}
		fmt.Fprintf(p.out, "%q is not a number\n", answer)
	}
	return decimal.Zero, false, nil
}
