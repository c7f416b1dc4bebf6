// Package sh implements the ardctl operator shell.
package sh

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"reflect"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/ardctl/pkg/comm/mqtt"
	"github.com/robotalks/ardctl/pkg/dispatch"
	"github.com/robotalks/ardctl/pkg/msgs"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	// CommandTimeout bounds the wait for the daemon to report a command.
	CommandTimeout time.Duration

	Shell  *ishell.Shell
	Config *Config
	Client *mqtt.Client
	// Target is the selected device ID.
	Target string
}

const (
	shellKey          = "$shell"
	unselectedPrompt  = "[none] > "
	defaultCmdTimeout = 2 * time.Second
	defaultWatchTime  = 15 * time.Second
)

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&DiscoverCmd,
		&UseCmd,
		&WatchCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
	for _, action := range dispatch.Actions {
		commands = append(commands, actionCmd(action))
	}
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *Config) *Shell {
	s := &Shell{
		Interactive:    !evalOnly,
		OutputJSON:     outputJSON,
		CommandTimeout: defaultCmdTimeout,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unselectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeSelected wraps command func requires a selected device.
func MustBeSelected(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Target == "" {
			c.Err(fmt.Errorf("no device selected"))
			return
		}
		fn(c)
	}
}

// FormatDevice prints Device into friendly string for display.
func FormatDevice(dev mqtt.Device) string {
	if dev.Meta.Description != "" {
		return dev.ID + ": " + dev.Meta.Description
	}
	return dev.ID
}

// FormatMessage prints an event for display.
func FormatMessage(msg msgs.Message, asJSON bool) string {
	if asJSON {
		out, err := json.Marshal(msg)
		if err != nil {
			return err.Error()
		}
		return string(out)
	}
	return reflect.Indirect(reflect.ValueOf(msg)).Type().Name() + " " + msg.String()
}

// Use selects the device to talk to.
func (s *Shell) Use(id string) {
	s.Target = id
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", id))
}

// Discover lists the daemons registered on the broker.
func (s *Shell) Discover() ([]mqtt.Device, error) {
	return s.Client.Discover(context.TODO())
}

// SelectDevice discovers daemons and asks for a choice.
func (s *Shell) SelectDevice() (*mqtt.Device, error) {
	devices, err := s.Discover()
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, nil
	}
	var index int
	if len(devices) > 1 {
		if !s.Interactive {
			return nil, fmt.Errorf("more than 1 devices discovered in non-interactive mode")
		}
		items := make([]string, len(devices))
		for n, dev := range devices {
			items[n] = FormatDevice(dev)
		}
		index = s.Shell.MultiChoice(items, "Which one to use?")
	}
	return &devices[index], nil
}

// DoCommand sends a command token to the selected device and waits for the
// daemon to report its outcome.
func DoCommand(c *ishell.Context, action dispatch.Action) error {
	s := ShellFrom(c)
	resCh := make(chan msgs.Message, 1)
	sub := s.Client.Watch(s.Target, func(msg msgs.Message) {
		if Outcome(action, msg) {
			select {
			case resCh <- msg:
			default:
			}
		}
	})
	defer sub.Close()
	if err := s.Client.Send(s.Target, string(action)); err != nil {
		c.Err(err)
		return err
	}
	select {
	case msg := <-resCh:
		if s.OutputJSON {
			c.Println(FormatMessage(msg, true))
			return nil
		}
		if ev, ok := msg.(*msgs.SequenceEvent); ok && ev.Phase == string(dispatch.PhaseDropped) {
			err := fmt.Errorf("%s dropped: device busy", action)
			c.Err(err)
			return err
		}
		c.Println("OK")
	case <-time.After(s.CommandTimeout):
		err := fmt.Errorf("%s: no response from %s", action, s.Target)
		c.Err(err)
		return err
	}
	return nil
}

// Outcome tells whether msg reports the outcome of an injected action.
func Outcome(action dispatch.Action, msg msgs.Message) bool {
	switch ev := msg.(type) {
	case *msgs.SequenceEvent:
		return ev.Source == string(dispatch.SourceInject) &&
			ev.Action == string(action) &&
			ev.Phase != string(dispatch.PhaseStarted)
	case *msgs.GateEvent:
		if ev.Source != string(dispatch.SourceInject) {
			return false
		}
		return (action == dispatch.ActionSerialOn && ev.Enabled) ||
			(action == dispatch.ActionSerialOff && !ev.Enabled)
	}
	return false
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	client, err := mqtt.NewClient(s.Config.MQTTBrokerURL)
	if err != nil {
		log.Fatalf("connect %q failed: %v", s.Config.MQTTBrokerURL, err)
	}
	s.Client = client
	defer client.Close()

	if id := s.Config.ID; id != "" {
		s.Use(id)
	} else if dev, err := s.SelectDevice(); err != nil {
		log.Fatalln(err)
	} else if dev != nil {
		s.Use(dev.ID)
	}

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

func actionCmd(action dispatch.Action) *ishell.Cmd {
	help := map[dispatch.Action]string{
		dispatch.ActionErase:     "erase and reset the target",
		dispatch.ActionShutdown:  "hold the target in reset",
		dispatch.ActionSerialOff: "detach the UART pads",
		dispatch.ActionSerialOn:  "reattach the UART pads",
	}
	return &ishell.Cmd{
		Name: string(action),
		Help: help[action],
		Func: MustBeSelected(func(c *ishell.Context) {
			DoCommand(c, action)
		}),
	}
}

var (
	// DiscoverCmd discovers devices.
	DiscoverCmd = ishell.Cmd{
		Name:    "discover",
		Aliases: []string{"list", "l"},
		Help:    "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			devices, err := s.Discover()
			if err != nil {
				c.Err(err)
				return
			}
			if s.OutputJSON {
				if len(devices) == 0 {
					devices = []mqtt.Device{}
				}
				out, err := json.Marshal(devices)
				if err != nil {
					c.Err(err)
					return
				}
				c.Println(string(out))
				return
			}
			if len(devices) == 0 {
				c.Println("No devices found")
				return
			}
			for _, dev := range devices {
				c.Println(FormatDevice(dev))
			}
		},
	}

	// UseCmd selects a device.
	UseCmd = ishell.Cmd{
		Name:    "use",
		Aliases: []string{"u"},
		Help:    "[ID]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if len(c.Args) > 0 {
				s.Use(c.Args[0])
				return
			}
			dev, err := s.SelectDevice()
			if err != nil {
				c.Err(err)
				return
			}
			if dev == nil {
				c.Err(fmt.Errorf("no device discovered"))
				return
			}
			s.Use(dev.ID)
		},
	}

	// WatchCmd prints events of the selected device.
	WatchCmd = ishell.Cmd{
		Name:    "watch",
		Aliases: []string{"w"},
		Help:    "[DURATION]",
		Func: MustBeSelected(func(c *ishell.Context) {
			s := ShellFrom(c)
			dur := defaultWatchTime
			if len(c.Args) > 0 {
				d, err := time.ParseDuration(c.Args[0])
				if err != nil {
					c.Err(err)
					return
				}
				dur = d
			}
			sub := s.Client.Watch(s.Target, func(msg msgs.Message) {
				c.Println(FormatMessage(msg, s.OutputJSON))
			})
			defer sub.Close()
			time.Sleep(dur)
		}),
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(NewConfig()).Run(flag.Args()...)
}
