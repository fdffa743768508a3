// Package interactive provides the interactive command-line interface
// for netcore-node.
package interactive

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/framewire/netcore/pkg/frame"
)

// sendTimeout bounds how long a command waits for a full outbound queue.
const sendTimeout = 5 * time.Second

// LinkInfo describes an established link.
type LinkInfo struct {
	Cid     frame.Cid
	PeerPid frame.Pid
	Offset  frame.Sid
}

// Node is the part of the running node the console drives.
type Node interface {
	Links() []LinkInfo
	OpenStream(ctx context.Context, cid frame.Cid, prio frame.Prio) (frame.Sid, error)
	CloseStream(ctx context.Context, cid frame.Cid, sid frame.Sid) error
	SendMessage(ctx context.Context, cid frame.Cid, sid frame.Sid, body []byte) error
	Shutdown(ctx context.Context, cid frame.Cid) error
}

// Console handles interactive mode for netcore-node.
type Console struct {
	node Node
	rl   *readline.Instance
}

// New creates a new console.
func New(node Node) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "netcore> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Console{node: node, rl: rl}, nil
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (c *Console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Run starts the interactive command loop.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		if quit := Execute(ctx, c.node, c.rl.Stdout(), line); quit {
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return
		}
	}
}

func (c *Console) printHelp() {
	fmt.Fprint(c.rl.Stdout(), help)
}

const help = `
netcore Node Commands:
  links                            - List established links
  open <cid> [prio]                - Open a stream, prints its sid
  send <cid> <sid> <text...>       - Send a message on a stream
  close <cid> <sid>                - Close a stream
  shutdown <cid>                   - Ask the peer to shut down and close the link
  help                             - Show this help
  quit                             - Exit
`

// Execute runs one command line against node, writing results to w. It
// reports whether the user asked to quit.
func Execute(ctx context.Context, node Node, w io.Writer, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	switch cmd {
	case "help", "?":
		fmt.Fprint(w, help)

	case "links", "ls":
		cmdLinks(node, w)

	case "open", "o":
		cmdOpen(ctx, node, w, args)

	case "send", "s":
		cmdSend(ctx, node, w, args)

	case "close", "c":
		cmdClose(ctx, node, w, args)

	case "shutdown":
		cmdShutdown(ctx, node, w, args)

	case "quit", "exit", "q":
		return true

	default:
		fmt.Fprintf(w, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func cmdLinks(node Node, w io.Writer) {
	links := node.Links()
	if len(links) == 0 {
		fmt.Fprintln(w, "No links established")
		return
	}
	fmt.Fprintf(w, "Links (%d):\n", len(links))
	for _, l := range links {
		fmt.Fprintf(w, "  cid %d  peer %s  streams from %d\n", l.Cid, l.PeerPid, l.Offset)
	}
}

func cmdOpen(ctx context.Context, node Node, w io.Writer, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(w, "Usage: open <cid> [prio]")
		return
	}
	cid, err := parseCid(args[0])
	if err != nil {
		fmt.Fprintf(w, "Invalid cid: %v\n", err)
		return
	}
	var prio frame.Prio
	if len(args) > 1 {
		p, err := strconv.ParseUint(args[1], 10, 8)
		if err != nil {
			fmt.Fprintf(w, "Invalid prio: %v\n", err)
			return
		}
		prio = frame.Prio(p)
	}

	sid, err := node.OpenStream(ctx, cid, prio)
	if err != nil {
		fmt.Fprintf(w, "Open failed: %v\n", err)
		return
	}
	fmt.Fprintf(w, "Opened stream %d on link %d\n", sid, cid)
}

func cmdSend(ctx context.Context, node Node, w io.Writer, args []string) {
	if len(args) < 3 {
		fmt.Fprintln(w, "Usage: send <cid> <sid> <text...>")
		return
	}
	cid, sid, err := parseCidSid(args)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}
	body := strings.Join(args[2:], " ")
	if err := node.SendMessage(ctx, cid, sid, []byte(body)); err != nil {
		fmt.Fprintf(w, "Send failed: %v\n", err)
		return
	}
	fmt.Fprintf(w, "Sent %d bytes on stream %d\n", len(body), sid)
}

func cmdClose(ctx context.Context, node Node, w io.Writer, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(w, "Usage: close <cid> <sid>")
		return
	}
	cid, sid, err := parseCidSid(args)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}
	if err := node.CloseStream(ctx, cid, sid); err != nil {
		fmt.Fprintf(w, "Close failed: %v\n", err)
		return
	}
	fmt.Fprintf(w, "Closed stream %d\n", sid)
}

func cmdShutdown(ctx context.Context, node Node, w io.Writer, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(w, "Usage: shutdown <cid>")
		return
	}
	cid, err := parseCid(args[0])
	if err != nil {
		fmt.Fprintf(w, "Invalid cid: %v\n", err)
		return
	}
	if err := node.Shutdown(ctx, cid); err != nil {
		fmt.Fprintf(w, "Shutdown failed: %v\n", err)
		return
	}
	fmt.Fprintf(w, "Link %d shut down\n", cid)
}

func parseCid(s string) (frame.Cid, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	return frame.Cid(n), err
}

func parseCidSid(args []string) (frame.Cid, frame.Sid, error) {
	cid, err := parseCid(args[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid cid: %w", err)
	}
	sid, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid sid: %w", err)
	}
	return cid, frame.Sid(sid), nil
}
