package commands

import (
	"context"
	"fmt"
	"io"
)

type ValidateCmd struct {
	ConfigFlags

	out io.Writer `kong:"-"`
}

func (c *ValidateCmd) Run(ctx context.Context, globals *Globals) error {
	_, shutdown := globals.setup(ctx)
	defer shutdown()

	if _, err := c.load(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(writer(c.out), "%s: configuration is valid\n", c.Config)
	return err
}
