package main

import (
	"context"
	"fmt"
	"io"

	"github.com/centraunit/rebind"
)

// printer is a client that prints its resolution and prints it again on every rebind.
type printer struct {
	supplier *rebind.Supplier
	out      io.Writer
	shape    rebind.Shape
	track    bool
}

func (p *printer) IsValid() bool { return true }

func (p *printer) ReExecute(ctx context.Context) error {
	fmt.Fprintln(p.out, "rebind:")
	return p.print(ctx)
}

func (p *printer) print(ctx context.Context) error {
	v, err := p.supplier.Get(ctx, rebind.Request{Client: p, Shape: p.shape, Track: p.track})
	if err != nil {
		return err
	}

	if values, ok := v.([]any); ok {
		if len(values) == 0 {
			fmt.Fprintf(p.out, "%s -> <not found>\n", p.shape)
			return nil
		}
		fmt.Fprintf(p.out, "%s ->\n", p.shape)
		for i, value := range values {
			fmt.Fprintf(p.out, "  %d. %s\n", i+1, describe(value))
		}
		return nil
	}
	fmt.Fprintf(p.out, "%s -> %s\n", p.shape, describe(v))
	return nil
}

func describe(v any) string {
	if v == rebind.NotAValue {
		return "<not found>"
	}
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprint(v)
}
