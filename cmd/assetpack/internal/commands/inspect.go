package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/wolfeidau/assetpack/internal/config"
	"github.com/wolfeidau/assetpack/internal/naming"
)

type InspectCmd struct {
	ConfigFlags

	Format string `help:"Output format for the resolved configuration." default:"yaml" enum:"yaml,json"`

	out io.Writer `kong:"-"`
}

func (c *InspectCmd) Run(ctx context.Context, globals *Globals) error {
	_, shutdown := globals.setup(ctx)
	defer shutdown()

	cfg, err := c.load()
	if err != nil {
		return err
	}

	data, err := config.Marshal(cfg, config.Format(c.Format))
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	w := writer(c.out)
	if _, err := w.Write(data); err != nil {
		return err
	}

	// hashed names are only known after a build
	if c.Format == string(config.FormatYAML) {
		fmt.Fprintln(w, "# entry outputs")
		for _, ep := range cfg.Entry {
			fmt.Fprintf(w, "#   %s -> %s\n", ep.Name, naming.StaticName(cfg.EntryFilename(ep), ep.Name))
		}
	}
	return nil
}
