package config

import (
	"fmt"

	"github.com/urfave/cli/v3"
)

const defaultAddr = "localhost:8080"

// Server holds server configuration
type Server struct {
	Addr   string
	Port   int
	Secret string `masq:"secret"`
	Async  bool
}

// Flags returns CLI flags for server configuration
func (c *Server) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Server address",
			Value:       defaultAddr,
			Destination: &c.Addr,
			Sources:     cli.EnvVars("PAGECRAFT_ADDR"),
		},
		&cli.IntFlag{
			Name:        "port",
			Usage:       "Listen on all interfaces at this port, unless --addr is changed",
			Destination: &c.Port,
			Sources:     cli.EnvVars("PORT"),
		},
		&cli.StringFlag{
			Name:        "secret",
			Usage:       "Shared secret every task request must carry",
			Required:    true,
			Destination: &c.Secret,
			Sources:     cli.EnvVars("PAGECRAFT_SECRET"),
		},
		&cli.BoolFlag{
			Name:        "async",
			Usage:       "Answer 202 after validation and run rounds in the background",
			Destination: &c.Async,
			Sources:     cli.EnvVars("PAGECRAFT_ASYNC"),
		},
	}
}

// ListenAddr returns the address the server binds to
func (c *Server) ListenAddr() string {
	if c.Port > 0 && (c.Addr == "" || c.Addr == defaultAddr) {
		return fmt.Sprintf("0.0.0.0:%d", c.Port)
	}
	if c.Addr == "" {
		return defaultAddr
	}
	return c.Addr
}
