// Package console implements the operator line REPL that runs
// alongside the scheduling loop, reading commands from stdin:
// process/p, list/l, kill/k, and stop.
package console

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/benchlab/fleetsched/pkg/scheduler"
	"github.com/benchlab/fleetsched/pkg/script"
)

// startDelay gives the scheduling loop and dashboard time to come up
// before the first prompt is printed, so early log lines don't
// interleave with it.
const startDelay = 2 * time.Second

// Console reads commands from an input stream and dispatches them
// against a scheduler until it receives "stop" or the stream closes.
type Console struct {
	sched *scheduler.Scheduler
	in    *bufio.Scanner
	out   io.Writer
}

// New constructs a Console reading lines from in and writing prompts
// and output to out.
func New(sched *scheduler.Scheduler, in io.Reader, out io.Writer) *Console {
	return &Console{sched: sched, in: bufio.NewScanner(in), out: out}
}

// Run blocks, serving commands until the input stream is exhausted or
// a "stop" command is processed. It never exits on a malformed
// command — it prints the error and prompts again.
func (c *Console) Run() {
	time.Sleep(startDelay)

	for {
		fmt.Fprint(c.out, "> ")
		if !c.in.Scan() {
			return
		}
		line := strings.TrimSpace(c.in.Text())
		if line == "" {
			continue
		}

		stop, err := c.dispatch(line)
		if err != nil {
			fmt.Fprintln(c.out, err)
			continue
		}
		if stop {
			return
		}
	}
}

// dispatch parses and runs one command line. The returned bool is
// true only for "stop".
func (c *Console) dispatch(line string) (bool, error) {
	fields := strings.Fields(line)
	cmd := fields[0]
	args := fields[1:]

	switch cmd {
	case "process", "p":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: process <script-path>")
		}
		return false, c.process(args[0])

	case "list", "l":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: list <experiment|host>")
		}
		return false, c.list(args[0])

	case "kill", "k":
		if len(args) != 2 {
			return false, fmt.Errorf("usage: kill <experiment|host> <name>")
		}
		return false, c.kill(args[0], args[1])

	case "stop":
		c.sched.Stop()
		return true, nil

	default:
		return false, fmt.Errorf("unrecognized command %q", cmd)
	}
}

func (c *Console) process(path string) error {
	doc, err := script.Load(path)
	if err != nil {
		return err
	}

	hosts := make([]scheduler.Host, 0, len(doc.Hosts))
	hostNames := make([]string, 0, len(doc.Hosts))
	for _, h := range doc.Hosts {
		hosts = append(hosts, h)
		hostNames = append(hostNames, h.HostName())
	}
	experimentNames := make([]string, 0, len(doc.Experiments))
	for _, e := range doc.Experiments {
		experimentNames = append(experimentNames, e.Name)
	}

	fmt.Fprintf(c.out, "Found the following in %s:\n", path)
	fmt.Fprintf(c.out, "Hosts: %s\n", strings.Join(hostNames, ", "))
	fmt.Fprintf(c.out, "Experiments: %s\n", strings.Join(experimentNames, ", "))

	c.sched.AddHosts(hosts)
	c.sched.AddExperiments(doc.Experiments)
	return nil
}

func (c *Console) list(kind string) error {
	switch kind {
	case "experiment":
		active, pending, drained := c.sched.ExperimentNames()
		fmt.Fprintf(c.out, "experiments: %v\n", active)
		fmt.Fprintf(c.out, "experiments_pending_removal: %v\n", pending)
		fmt.Fprintf(c.out, "experiments_drained: %v\n", drained)
		return nil
	case "host":
		active, pending := c.sched.HostNames()
		fmt.Fprintf(c.out, "hosts: %v\n", active)
		fmt.Fprintf(c.out, "hosts_pending_removal: %v\n", pending)
		return nil
	default:
		return fmt.Errorf("kind must be 'experiment' or 'host'")
	}
}

func (c *Console) kill(kind, name string) error {
	switch kind {
	case "experiment":
		c.sched.KillExperiment(name)
		return nil
	case "host":
		c.sched.KillHost(name)
		return nil
	default:
		return fmt.Errorf("kind must be 'experiment' or 'host'")
	}
}
