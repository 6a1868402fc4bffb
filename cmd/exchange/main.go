package main

import (
	"bufio"
	"flag"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/robaho/go-twime/internal/exchange"
	"github.com/robaho/go-twime/pkg/common"
	"github.com/robaho/go-twime/pkg/protocol"
)

import _ "net/http/pprof"

func main() {

	runtime.GOMAXPROCS(8)

	mainAddr := flag.String("main", ":9000", "set the main TWIME endpoint address")
	recoveryAddr := flag.String("recovery", ":9001", "set the recovery endpoint address")
	instruments := flag.String("instruments", "configs/instruments.txt", "set the instrument file")
	profile := flag.String("profile", "", "serve pprof on this address, e.g. :6060")
	debug := flag.Bool("debug", false, "log every frame")

	flag.Parse()

	log := common.NewLogger(os.Stdout, *debug)
	defer log.Sync()

	if err := common.IMap.Load(*instruments); err != nil {
		log.Fatal("unable to load instruments", zap.String("file", *instruments), zap.Error(err))
	}

	g := exchange.NewGateway(exchange.NewExchange(), log.Named("gateway"))
	defer g.Close()

	for _, l := range []struct {
		addr     string
		recovery bool
	}{{*mainAddr, false}, {*recoveryAddr, true}} {
		addr, err := g.Listen(l.addr, l.recovery)
		if err != nil {
			log.Fatal("unable to listen", zap.String("addr", l.addr), zap.Error(err))
		}
		fmt.Println("listening on", addr, "recovery:", l.recovery)
	}

	if *profile != "" {
		runtime.SetBlockProfileRate(1)
		go func() {
			log.Warn("pprof server", zap.Error(http.ListenAndServe(*profile, nil)))
		}()
	}

	fmt.Println("use 'help' to get a list of commands")
	fmt.Print("Command?")

	scanner := bufio.NewScanner(os.Stdin)

	for scanner.Scan() {
		s := scanner.Text()
		parts := strings.Fields(s)
		if len(parts) == 0 {
			goto again
		}
		if "help" == parts[0] {
			fmt.Println("The available commands are: quit, sessions, book SYMBOL, terminate CREDENTIALS [CODE], drop CREDENTIALS, clear, event N")
		} else if "quit" == parts[0] {
			break
		} else if "sessions" == parts[0] {
			fmt.Println("Sessions: ", g.Sessions())
			fmt.Println("With orders: ", g.Exchange().ListSessions())
		} else if "book" == parts[0] && len(parts) == 2 {
			instrument := common.IMap.GetBySymbol(parts[1])
			if instrument == nil {
				fmt.Println("unknown symbol", parts[1])
			} else if book := g.Exchange().GetBook(instrument); book != nil {
				fmt.Println(book)
			}
		} else if "terminate" == parts[0] && len(parts) >= 2 {
			code := protocol.Finished
			if len(parts) == 3 {
				code = protocol.TerminationCode(common.ParseInt(parts[2]))
			}
			fmt.Println("terminated:", g.Terminate(parts[1], code))
		} else if "drop" == parts[0] && len(parts) == 2 {
			fmt.Println("dropped:", g.Drop(parts[1]))
		} else if "clear" == parts[0] {
			fmt.Println("cancelled", g.EmptyBook(), "orders")
		} else if "event" == parts[0] && len(parts) == 2 {
			event, err := strconv.ParseUint(parts[1], 10, 8)
			if err != nil {
				fmt.Println("invalid event", parts[1])
			} else {
				g.SystemEvent(uint8(event))
			}
		} else {
			fmt.Println("Unknown command, '", s, "' use 'help'")
		}
	again:
		fmt.Print("Command?")
	}
}
