package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"

	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"
	"go.uber.org/zap"

	"github.com/DoyleJ11/blackjack-client/internal/config"
	"github.com/DoyleJ11/blackjack-client/internal/logging"
	"github.com/DoyleJ11/blackjack-client/internal/namestore"
	"github.com/DoyleJ11/blackjack-client/internal/session"
	"github.com/DoyleJ11/blackjack-client/internal/transport"
)

const defaultRoom = "room1"

func main() {
	if err := run(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	_ = pterm.DefaultBigText.WithLetters(
		putils.LettersFromStringWithStyle("Black", pterm.FgDarkGray.ToStyle()),
		putils.LettersFromStringWithStyle("jack", pterm.FgRed.ToStyle()),
	).Render()

	names := namestore.New(cfg.NameFile)
	saved, err := names.Load()
	if err != nil {
		log.Warn("could not read saved name", zap.String("path", names.Path()), zap.Error(err))
	}

	mgr := transport.NewManager(cfg.Transport, transport.WithLogger(log.Named("transport")))
	sess := session.New(ctx, mgr, session.WithLogger(log.Named("session")))
	defer sess.Close()

	c := newCLI(sess, names, log, saved)
	unsubscribe := sess.Subscribe(c.onUpdate)
	defer unsubscribe()

	spinner, _ := pterm.DefaultSpinner.Start("Connecting to " + cfg.BackendURL + " ...")
	if err := sess.Start(ctx); err != nil {
		spinner.Fail(err.Error())
	} else {
		spinner.Success("Connected")
	}

	return c.loop(ctx)
}

// cli is the terminal front end. Session updates only schedule work;
// drawing, joining and command handling happen on the main goroutine.
type cli struct {
	sess     *session.Session
	names    *namestore.Store
	log      *zap.Logger
	redraw   chan struct{}
	autoJoin chan string

	mu        sync.Mutex
	saved     string
	pending   string
	seated    bool
	connected bool
	autoDone  bool
}

func newCLI(sess *session.Session, names *namestore.Store, log *zap.Logger, saved string) *cli {
	return &cli{
		sess:     sess,
		names:    names,
		log:      log,
		saved:    saved,
		redraw:   make(chan struct{}, 1),
		autoJoin: make(chan string, 1),
	}
}

func (c *cli) onUpdate(u session.Update) {
	c.mu.Lock()
	wasSeated, wasConnected := c.seated, c.connected
	c.seated = u.State.LocalPlayerID != ""
	c.connected = u.State.ConnectionStatus == transport.StatusConnected
	name := c.pending
	justSeated := c.seated && !wasSeated && name != ""
	if justSeated {
		c.pending = ""
	}
	// The saved name is tried once, on the first connection that finds us
	// without a seat, whether or not the first attempt succeeded.
	rejoin := ""
	if c.connected && !wasConnected && !c.seated && !c.autoDone && c.saved != "" {
		c.autoDone = true
		rejoin = c.saved
	}
	c.mu.Unlock()

	if justSeated {
		if err := c.names.Save(name); err != nil {
			c.log.Warn("could not save name", zap.Error(err))
		}
	}
	if rejoin != "" {
		select {
		case c.autoJoin <- rejoin:
		default:
		}
	}

	select {
	case c.redraw <- struct{}{}:
	default:
	}
}

func (c *cli) loop(ctx context.Context) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	draw(c.sess.State(), c.sess.View())
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.redraw:
			draw(c.sess.State(), c.sess.View())
		case name := <-c.autoJoin:
			pterm.Info.Printfln("Welcome back, %s", name)
			c.join(name, defaultRoom)
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := c.command(line); quit {
				return nil
			}
		}
	}
}

func (c *cli) command(line string) (quit bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	args := fields[1:]

	var err error
	switch strings.ToLower(fields[0]) {
	case "join", "j":
		room := defaultRoom
		if len(args) > 1 {
			room = args[len(args)-1]
			args = args[:len(args)-1]
		}
		c.join(strings.Join(args, " "), room)
		return false
	case "ready", "r":
		err = c.sess.Ready()
	case "bet", "b":
		if len(args) != 1 {
			err = errors.New("usage: bet <amount>")
			break
		}
		amount, perr := strconv.Atoi(args[0])
		if perr != nil {
			err = fmt.Errorf("not a number: %q", args[0])
			break
		}
		err = c.sess.PlaceBet(amount)
	case "hit", "h":
		err = c.sess.Hit()
	case "stand", "s":
		err = c.sess.Stand()
	case "double", "d":
		err = c.sess.DoubleDown()
	case "next", "n":
		err = c.sess.NextGame()
	case "leave", "l":
		err = c.sess.Leave()
	case "quit", "q", "exit":
		return true
	case "help", "?":
		printHelp()
	default:
		err = fmt.Errorf("unknown command %q, type help", fields[0])
	}
	if err != nil {
		pterm.Warning.Println(err)
	}
	return false
}

func (c *cli) join(name, room string) {
	n, err := session.NormalizeName(name)
	if err == nil {
		c.mu.Lock()
		c.pending = n
		c.mu.Unlock()
		err = c.sess.Join(n, room)
	}
	if err != nil {
		pterm.Warning.Println(err)
	}
}

func printHelp() {
	_ = pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData{
		{"Command", "Does"},
		{"join <name> [room]", "take a seat (room defaults to " + defaultRoom + ")"},
		{"ready", "mark yourself ready"},
		{"bet <amount>", "place a bet"},
		{"hit / stand / double", "play your turn"},
		{"next", "start the next game"},
		{"leave", "leave the table"},
		{"quit", "exit"},
	}).Render()
}
