package main

import (
	"flag"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	. "github.com/robaho/fixed"
	"github.com/robaho/gocui"

	. "github.com/robaho/go-twime/pkg/common"
	"github.com/robaho/go-twime/pkg/connector"
	"github.com/robaho/go-twime/pkg/connector/monitor"
)

var gui *gocui.Gui
var activeOrderLock = sync.RWMutex{}
var activeOrders = make(map[OrderID]*Order)
var exchange ExchangeConnector

type MyCallback struct {
}

func vlogf(view string, format string, a ...interface{}) {
	vlogcf(view, gocui.ColorDefault, format, a...)
}

func vlogcf(view string, color gocui.Attribute, format string, a ...interface{}) {
	gui.Update(func(g *gocui.Gui) error {
		v, err := g.View(view)
		if err != nil {
			return err
		}
		v.FgColor = color
		_, err = fmt.Fprintf(v, format, a...)
		v.FgColor = gocui.ColorDefault
		return err
	})
}

func vlogln(view string, a ...interface{}) {
	gui.Update(func(g *gocui.Gui) error {
		v, err := g.View(view)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(v, a...)
		return err
	})
}

type orderRow struct {
	id   OrderID
	side Side
	line string
}

func (MyCallback) OnOrderStatus(order *Order) {
	activeOrderLock.Lock()
	if order.IsActive() {
		activeOrders[order.Id] = order
	} else {
		delete(activeOrders, order.Id)
		if order.OrderState == Rejected {
			vlogf("log", "order %d is %s %s\n", order.Id, order.OrderState, order.RejectReason)
		} else {
			vlogf("log", "order %d is %s\n", order.Id, order.OrderState)
		}
	}
	activeOrderLock.Unlock()

	// the callback holds the order lock, the other active orders are read under their own
	activeOrderLock.RLock()
	rows := make([]orderRow, 0, len(activeOrders))
	for _, o := range activeOrders {
		if o != order {
			o.RLock()
		}
		qty := o.Remaining.String()
		if !o.Remaining.Equal(o.Quantity) {
			qty = qty + " (" + o.Quantity.String() + ")"
		}
		rows = append(rows, orderRow{o.Id, o.Side, fmt.Sprintf("%5d %10s %5s %10s @ %12s\n", o.Id, o.Instrument.Symbol(), o.Side, qty, o.Price.String())})
		if o != order {
			o.RUnlock()
		}
	}
	activeOrderLock.RUnlock()
	sort.Slice(rows, func(i, j int) bool { return rows[i].id < rows[j].id })

	gui.Update(func(g *gocui.Gui) error {
		v, err := g.View("orders")
		if err != nil {
			return err
		}
		v.Clear()
		for _, row := range rows {
			color := gocui.ColorGreen
			if row.side == Sell {
				color = gocui.ColorRed
			}
			v.FgColor = color
			fmt.Fprint(v, row.line)
			v.FgColor = gocui.ColorDefault
		}
		return nil
	})
}

func (MyCallback) OnFill(fill *Fill) {
	color := gocui.ColorGreen
	if fill.Side == Sell {
		color = gocui.ColorRed
	}
	id := OrderID(0)
	if fill.Order != nil {
		id = fill.Order.Id
	}
	vlogcf("fills", color, "order %d fill on %s, %s %s @ %s trade %s\n", id, fill.Instrument.Symbol(), fill.Side, fill.Quantity.String(), fill.Price.String(), fill.ExchangeID)
}

func (MyCallback) OnConnectorStatus(active bool, at time.Time) {
	color := gocui.ColorGreen
	state := "active"
	if !active {
		color = gocui.ColorRed
		state = "inactive"
	}
	vlogcf("status", color, "%s session %s\n", at.Format("15:04:05.000"), state)
}

type viewLogger struct{}

func (viewLogger) Write(p []byte) (n int, err error) {
	// gocui may still be drawing p after Write returns
	b := append([]byte(nil), p...)
	gui.Update(func(g *gocui.Gui) error {
		v, err := g.View("log")
		if err != nil {
			return err
		}
		_, err = v.Write(b)
		return err
	})
	return len(p), nil
}

var MyEditor gocui.Editor = gocui.EditorFunc(simpleEditor)

// simpleEditor is used as the default gocui editor.
func simpleEditor(v *gocui.View, key gocui.Key, ch rune, mod gocui.Modifier) {
	switch {
	case ch != 0 && mod == 0:
		v.EditWrite(ch)
	case key == gocui.KeySpace:
		v.EditWrite(' ')
	case key == gocui.KeyBackspace || key == gocui.KeyBackspace2:
		v.EditDelete(true)
	case key == gocui.KeyDelete:
		v.EditDelete(false)
	}
}

func layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()

	var cols [3]int
	cols[0] = 0
	cols[1] = int(float32(maxX) * 0.40)
	cols[2] = maxX - 1

	var rows [4]int
	rows[0] = 0
	rows[1] = (maxY - 8) / 2
	rows[2] = maxY - 8
	rows[3] = maxY - 1

	if v, err := g.SetView("log", cols[0], rows[0], cols[1], rows[1]); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Log"
		v.MaxLines = 1000
		v.Autoscroll = true
		v.Wrap = true
	}
	if v, err := g.SetView("status", cols[0], rows[1], cols[1], rows[2]); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Session"
		v.MaxLines = 100
		v.Autoscroll = true
	}
	if v, err := g.SetView("orders", cols[1], rows[0], cols[2], rows[1]); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Active Orders"
	}
	if v, err := g.SetView("fills", cols[1], rows[1], cols[2], rows[2]); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.MaxLines = 1000
		v.Autoscroll = true
		v.Title = "Order Fills"
	}

	if v, err := g.SetView("commands", cols[0], rows[2], cols[2], rows[3]); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Commands"
		v.Editable = true
		v.Editor = MyEditor
		v.Wrap = true
		v.Autoscroll = true
		fmt.Fprintln(v, "Enter 'help' for list of commands")
		printCommand(v)
		g.Update(scrollToEnd)
		if _, err := g.SetCurrentView("commands"); err != nil {
			return err
		}
	}

	return nil
}

func scrollToEnd(g *gocui.Gui) error {
	v, err := g.View("commands")
	if err != nil {
		if err != gocui.ErrUnknownView {
			return err
		} else {
			return nil // view not ready yet
		}
	}

	nlines := len(v.ViewBufferLines())
	_, oy := v.Origin()

	if nlines > 0 {
		line := v.ViewBufferLines()[nlines-1]
		v.SetCursor(len(line), nlines-oy-1)
	}
	return nil
}

func quit(g *gocui.Gui, v *gocui.View) error {
	return gocui.ErrQuit
}

func processCommand(g *gocui.Gui, v *gocui.View) error {
	cmd := strings.TrimSpace(v.ViewBufferLines()[len(v.ViewBufferLines())-1])

	fmt.Fprintf(v, "\n")

	if strings.HasPrefix(cmd, "Command?") {
		cmd = cmd[8:]
		cmd = strings.TrimSpace(cmd)
	}

	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		goto again
	}
	if "help" == parts[0] {
		fmt.Fprintln(v, "The available commands are: quit, connect, disconnect, {buy:sell} SYMBOL QTY PRICE, modify ORDERID QTY PRICE, cancel ORDERID, cancelall [SYMBOL]")
	} else if "quit" == parts[0] {
		return gocui.ErrQuit
	} else if "connect" == parts[0] {
		if err := exchange.Connect(); err != nil {
			vlogln("log", "unable to connect", err)
		}
	} else if "disconnect" == parts[0] {
		if err := exchange.Disconnect(); err != nil {
			vlogln("log", "unable to disconnect", err)
		}
	} else if ("buy" == parts[0] || "sell" == parts[0]) && len(parts) == 4 {
		instrument := IMap.GetBySymbol(parts[1])
		if instrument == nil {
			fmt.Fprintln(v, "unknown instrument", parts[1])
			goto again
		}
		qty, err := NewSErr(parts[2])
		if err != nil {
			fmt.Fprintln(v, "invalid quantity", parts[2])
			goto again
		}
		price, err := NewSErr(parts[3])
		if err != nil {
			fmt.Fprintln(v, "invalid price", parts[3])
			goto again
		}
		side := Buy
		if "sell" == parts[0] {
			side = Sell
		}
		if _, err := exchange.CreateOrder(LimitOrder(instrument, side, price, qty)); err != nil {
			vlogf("log", "unable to submit order %s\n", err.Error())
		}
	} else if "modify" == parts[0] && len(parts) == 4 {
		orderID := NewOrderID(parts[1])
		qty, err := NewSErr(parts[2])
		if err != nil {
			fmt.Fprintln(v, "invalid quantity", parts[2])
			goto again
		}
		price, err := NewSErr(parts[3])
		if err != nil {
			fmt.Fprintln(v, "invalid price", parts[3])
			goto again
		}
		if err := exchange.ModifyOrder(orderID, price, qty); err != nil {
			vlogln("log", "unable to modify", err)
		}
	} else if "cancel" == parts[0] && len(parts) == 2 {
		orderID := NewOrderID(parts[1])
		if err := exchange.CancelOrder(orderID); err != nil {
			vlogln("log", "unable to cancel", err)
		}
	} else if "cancelall" == parts[0] && len(parts) <= 2 {
		var instrument Instrument
		if len(parts) == 2 {
			if instrument = IMap.GetBySymbol(parts[1]); instrument == nil {
				fmt.Fprintln(v, "unknown instrument ", parts[1])
				goto again
			}
		}
		if err := exchange.CancelAll(instrument); err != nil {
			vlogln("log", "unable to cancel all", err)
		}
	} else {
		fmt.Fprintln(v, "Unknown command, '", cmd, "' use 'help'")
	}

again:
	printCommand(v)

	g.Update(scrollToEnd)

	return nil
}

func printCommand(v *gocui.View) {
	v.FgColor = gocui.AttrBold
	fmt.Fprint(v, "Command?")
	v.FgColor = gocui.ColorDefault
}

func main() {
	props := flag.String("props", "configs/twime.properties", "set the connector properties file")
	instruments := flag.String("instruments", "configs/instruments.txt", "set the instrument file")
	account := flag.String("account", "", "override the account_key property")
	health := flag.String("health", "", "serve grpc health on this address")
	metrics := flag.String("metrics", "", "serve /metrics on this address")

	flag.Parse()

	p, err := NewProperties(*props)
	if err != nil {
		log.Fatalln(err)
	}
	if *account != "" {
		p.SetString("account_key", *account)
	}
	if err := IMap.Load(*instruments); err != nil {
		log.Fatalln(err)
	}

	g, err := gocui.NewGui(gocui.OutputNormal)
	if err != nil {
		log.Panicln(err)
	}
	g.EscapeProcessing = false // we manage our own colors
	defer g.Close()

	gui = g

	g.SetManagerFunc(layout)

	if err := g.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone, quit); err != nil {
		log.Panicln(err)
	}
	if err := g.SetKeybinding("commands", gocui.KeyEnter, gocui.ModNone, processCommand); err != nil {
		log.Panicln(err)
	}

	mon := monitor.New(p.GetString("account_key", ""), MyCallback{}, NewLogger(viewLogger{}, false))
	defer mon.Close()
	if err := mon.Listen(*health, *metrics); err != nil {
		log.Panicln(err)
	}

	exchange, err = connector.NewConnector(mon, p, viewLogger{})
	if err != nil {
		log.Panicln(err)
	}

	if err := exchange.Connect(); err != nil {
		vlogln("log", "unable to connect", err)
	}

	if err := g.MainLoop(); err != nil && err != gocui.ErrQuit {
		log.Panicln(err)
	}
	if exchange.IsConnected() {
		exchange.Disconnect()
	}
}
