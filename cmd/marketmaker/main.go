package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"runtime/pprof"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/VividCortex/gohistogram"
	. "github.com/robaho/fixed"

	. "github.com/robaho/go-twime/pkg/common"
	"github.com/robaho/go-twime/pkg/connector"
)

// MyCallback signals every status change of the quoting orders, a replace is acknowledged when its status arrives
type MyCallback struct {
	ch     chan OrderID
	symbol string
}

func (cb *MyCallback) OnOrderStatus(order *Order) {
	if order.Instrument.Symbol() == cb.symbol {
		cb.ch <- order.Id
	}
}

func (*MyCallback) OnFill(fill *Fill) {
	fmt.Println("fill", fill.Order.Id, fill.Side, fill.Quantity, "@", fill.Price)
}

func (cb *MyCallback) OnConnectorStatus(active bool, at time.Time) {
	fmt.Println(cb.symbol, "session active:", active, at.Format("15:04:05.000"))
}

func main() {

	symbol := flag.String("symbol", "Si-12.26", "set the symbol")
	symbols := flag.String("symbols", "", "set the comma delimited list of symbols")
	props := flag.String("props", "configs/twime.properties", "set the connector properties file")
	instruments := flag.String("instruments", "configs/instruments.txt", "set the instrument file")
	delay := flag.Int("delay", 0, "set the delay in ms after each quote, 0 to disable")
	duration := flag.Int("duration", 0, "run for N seconds, 0 = forever")
	cpuprofile := flag.String("cpuprofile", "", "write cpu profile to file")
	credentials := flag.String("id", "MM", "set the session credentials")

	flag.Parse()

	quotedSymbols := make([]string, 0)

	if *symbols != "" {
		quotedSymbols = append(quotedSymbols, strings.Split(*symbols, ",")...)
	} else if *symbol != "" {
		quotedSymbols = append(quotedSymbols, *symbol)
	}

	fmt.Println("quoted symbols: ", strings.Join(quotedSymbols, ","))

	if len(quotedSymbols) == 0 {
		panic("must provide either symbols or symbol")
	}

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	p, err := NewProperties(*props)
	if err != nil {
		panic(err)
	}
	if err := IMap.Load(*instruments); err != nil {
		panic(err)
	}

	var wg sync.WaitGroup

	for _, symbol := range quotedSymbols {
		wg.Add(1)
		// every symbol is quoted on its own session
		creds := *credentials
		if len(quotedSymbols) > 1 {
			creds = creds + "-" + symbol
		}
		go quoteSymbol(symbol, creds, p, *duration, *delay, &wg)
	}
	wg.Wait()
}

func quoteSymbol(symbol string, credentials string, p Properties, duration int, delay int, wg *sync.WaitGroup) {
	defer wg.Done()
	p = p.Clone()
	p.SetString(p.GetString("account_key", "")+".credentials", credentials)

	instrument := IMap.GetBySymbol(symbol)
	if instrument == nil {
		log.Fatal("unknown symbol ", symbol)
	}

	var callback = MyCallback{make(chan OrderID, 128), symbol}

	exchange, err := connector.NewConnector(&callback, p, nil)
	if err != nil {
		log.Fatal(err)
	}

	if err := exchange.Connect(); err != nil {
		log.Fatal("exchange is not connected ", err)
	}
	defer exchange.Disconnect()
	go func() {
		if err := <-connector.Exited(exchange); err != nil {
			log.Fatal(symbol, " session asked to exit ", err)
		}
	}()

	bidPrice := NewS("99.75")
	askPrice := NewS("100")
	qty := NewI(10, 0)
	tick := NewS("0.25")

	lowLim := NewS("75")
	highLim := NewS("125")

	bid, err := exchange.CreateOrder(LimitOrder(instrument, Buy, bidPrice, qty))
	if err != nil {
		log.Fatal("unable to submit bid ", err)
	}
	ask, err := exchange.CreateOrder(LimitOrder(instrument, Sell, askPrice, qty))
	if err != nil {
		log.Fatal("unable to submit ask ", err)
	}
	awaitAck(callback.ch, bid)
	awaitAck(callback.ch, ask)

	var updates uint64

	start := time.Now()
	end := start.Add(time.Duration(int64(duration)) * time.Second)

	fmt.Println("sending quotes on", instrument.Symbol(), "...")

	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	h := gohistogram.NewHistogram(50)

	for duration == 0 || time.Now().Before(end) {
		var delta int64
		var r = r.Intn(10)
		if r <= 2 {
			delta = -1
		} else if r >= 7 {
			delta = 1
		} else {
			delta = 0
		}

		for {
			bidPrice = bidPrice.Add(tick.Mul(NewI(delta, 0)))
			askPrice = askPrice.Add(tick.Mul(NewI(delta, 0)))

			if bidPrice.LessThan(lowLim) {
				delta = 1
			} else if bidPrice.GreaterThan(highLim) {
				delta = -1
			} else {
				break
			}
		}

		now := time.Now()
		if delta != 0 {
			// move the side being approached first so the quote never crosses
			first, second := ask, bid
			firstPrice, secondPrice := askPrice, bidPrice
			if delta < 0 {
				first, second = bid, ask
				firstPrice, secondPrice = bidPrice, askPrice
			}
			if err := exchange.ModifyOrder(first, firstPrice, qty); err != nil {
				log.Fatal("unable to modify quote ", err)
			}
			awaitAck(callback.ch, first)
			if err := exchange.ModifyOrder(second, secondPrice, qty); err != nil {
				log.Fatal("unable to modify quote ", err)
			}
			awaitAck(callback.ch, second)
		}
		h.Add(float64(time.Since(now).Nanoseconds()))
		if delay != 0 {
			time.Sleep(time.Duration(int64(delay)) * time.Millisecond)
		}
		atomic.AddUint64(&updates, 1)
		if time.Since(start).Seconds() > 10 {
			fmt.Printf("updates per second %d, avg rtt %dus, 10%% rtt %dus 99%% rtt %dus\n", updates/10, int(h.Mean()/1000.0), int(h.Quantile(.10)/1000.0), int(h.Quantile(.99)/1000.0))
			updates = 0
			start = time.Now()
			h = gohistogram.NewHistogram(50)
		}
	}
	exchange.CancelAll(instrument)
}

func awaitAck(ch <-chan OrderID, id OrderID) {
	timeout := time.After(10 * time.Second)
	for {
		select {
		case got := <-ch:
			if got == id {
				return
			}
		case <-timeout:
			log.Fatal("no acknowledgement for order ", id)
		}
	}
}
