package setup

import (
	"flag"
	"fmt"
	"io"
)

// CLI implements the "setup" subcommand of the lite server.
type CLI struct {
	out            io.Writer
	defaultDataDir string
}

// NewCLI creates a new setup CLI instance.
func NewCLI(out io.Writer, defaultDataDir string) *CLI {
	return &CLI{out: out, defaultDataDir: defaultDataDir}
}

// Run executes the setup command based on the provided arguments.
func (c *CLI) Run(args []string) error {
	if len(args) == 0 {
		c.usage()
		return nil
	}

	switch args[0] {
	case "register":
		return c.register(args[1:])
	case "unregister":
		return c.unregister(args[1:])
	case "status":
		return c.status(args[1:])
	case "help", "--help", "-h":
		c.usage()
		return nil
	default:
		c.usage()
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func (c *CLI) usage() {
	fmt.Fprint(c.out, `Framingham risk MCP server setup

Usage:
  mcp-server-lite setup <command> [options]

Commands:
  register    Add the server to the MCP client configuration
  unregister  Remove the server from the MCP client configuration
  status      Show the current registration

Options:
  -config string    client configuration file (default: Claude Desktop location)
  -binary string    server binary (register only, default: auto-detect)
  -data-dir string  data directory passed to the server (register only)
`)
}

func (c *CLI) flags(name string) (*flag.FlagSet, *Options) {
	opts := &Options{}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.out)
	fs.StringVar(&opts.ConfigPath, "config", "", "client configuration file")
	fs.StringVar(&opts.BinaryPath, "binary", "", "server binary")
	fs.StringVar(&opts.DataDir, "data-dir", "", "data directory")
	return fs, opts
}

func (c *CLI) register(args []string) error {
	fs, opts := c.flags("register")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if opts.DataDir == "" {
		opts.DataDir = c.defaultDataDir
	}

	path, err := Register(*opts)
	if err != nil {
		return fmt.Errorf("failed to register server: %w", err)
	}
	fmt.Fprintf(c.out, "Registered %q in %s\n", ServerKey, path)
	fmt.Fprintln(c.out, "Restart the MCP client to load the new configuration.")
	return nil
}

func (c *CLI) unregister(args []string) error {
	fs, opts := c.flags("unregister")
	if err := fs.Parse(args); err != nil {
		return err
	}
	removed, err := Unregister(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to unregister server: %w", err)
	}
	if removed {
		fmt.Fprintf(c.out, "Removed %q\n", ServerKey)
	} else {
		fmt.Fprintf(c.out, "%q was not registered\n", ServerKey)
	}
	return nil
}

func (c *CLI) status(args []string) error {
	fs, opts := c.flags("status")
	if err := fs.Parse(args); err != nil {
		return err
	}
	status, err := GetStatus(opts.ConfigPath, c.defaultDataDir)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Config file: %s\n", status.ConfigPath)
	fmt.Fprintf(c.out, "Registered:  %t\n", status.Registered)
	if status.Registered {
		fmt.Fprintf(c.out, "Binary:      %s\n", status.Entry.Command)
	}
	fmt.Fprintf(c.out, "Data dir:    %s\n", status.DataDir)
	for _, issue := range status.Issues {
		fmt.Fprintf(c.out, "  - %s\n", issue)
	}
	return nil
}
