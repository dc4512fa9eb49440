package acquisition

import (
	"log"

	"github.com/pilebones/go-udev/netlink"
)

// PortWatcher surfaces udev hotplug events for one serial device so the
// reconnect loop can retry immediately instead of waiting out its timer.
type PortWatcher struct {
	conn   *netlink.UEventConn
	quit   chan struct{}
	events chan struct{}
}

// WatchPort starts listening for tty add/remove events touching port.
// A netlink setup failure is not fatal: the watcher is nil and the
// caller falls back to timed retries.
func WatchPort(port string) *PortWatcher {
	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		log.Printf("acquisition: udev netlink unavailable, using timed reconnects: %v", err)
		return nil
	}

	w := &PortWatcher{
		conn:   conn,
		quit:   make(chan struct{}),
		events: make(chan struct{}, 1),
	}

	queue := make(chan netlink.UEvent)
	errs := make(chan error)

	action := "add|remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "tty",
		},
	})

	monitorQuit := conn.Monitor(queue, errs, rules)

	go func() {
		for {
			select {
			case <-w.quit:
				close(monitorQuit)
				return
			case uevent := <-queue:
				devname := uevent.Env["DEVNAME"]
				if devname != port && "/dev/"+devname != port {
					continue
				}
				log.Printf("acquisition: udev %s event for %s", uevent.Action, port)
				select {
				case w.events <- struct{}{}:
				default:
				}
			case err := <-errs:
				log.Printf("acquisition: udev monitor error: %v", err)
			}
		}
	}()

	return w
}

// Events delivers one nudge per hotplug event affecting the port. On a
// nil watcher it returns a nil channel, which blocks forever in select.
func (w *PortWatcher) Events() <-chan struct{} {
	if w == nil {
		return nil
	}
	return w.events
}

// Close stops the monitor.
func (w *PortWatcher) Close() {
	if w == nil {
		return
	}
	close(w.quit)
	_ = w.conn.Close()
}
