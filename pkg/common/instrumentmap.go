package common

import (
	"bufio"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// global instrument map which is fully synchronized
var IMap instrumentMap

type instrumentMap struct {
	sync.RWMutex
	id       int64
	bySymbol map[string]Instrument
	byID     map[int64]Instrument
}

func (im *instrumentMap) GetBySymbol(symbol string) Instrument {
	im.RLock()
	defer im.RUnlock()

	i, ok := im.bySymbol[symbol]
	if !ok {
		return nil
	}
	return i
}
func (im *instrumentMap) GetByID(id int64) Instrument {
	im.RLock()
	defer im.RUnlock()

	i, ok := im.byID[id]
	if !ok {
		return nil
	}
	return i
}
func (im *instrumentMap) AllSymbols() []string {
	im.RLock()
	defer im.RUnlock()

	var symbols []string
	for k := range im.bySymbol {
		symbols = append(symbols, k)
	}
	return symbols
}

// NextID is used by the exchange simulator when an instrument is created dynamically
func (im *instrumentMap) NextID() int64 {
	return atomic.AddInt64(&im.id, 1)
}
func (im *instrumentMap) Put(instrument Instrument) {
	im.Lock()
	defer im.Unlock()

	for {
		id := atomic.LoadInt64(&im.id)
		if instrument.ID() <= id || atomic.CompareAndSwapInt64(&im.id, id, instrument.ID()) {
			break
		}
	}

	im.bySymbol[instrument.Symbol()] = instrument
	im.byID[instrument.ID()] = instrument
}

// load the instrument map from a file, each line is "securityID symbol [group]", see configs/instruments.txt
func (im *instrumentMap) Load(filepath string) error {
	inputFile, err := os.Open(filepath)
	if err != nil {
		return err
	}
	defer inputFile.Close()

	scanner := bufio.NewScanner(inputFile)
	for scanner.Scan() {
		s := scanner.Text()
		if strings.HasPrefix(s, "//") || strings.HasPrefix(s, "#") {
			continue
		}
		if s == "" {
			continue
		}
		parts := strings.Fields(s)
		id := int64(ParseInt(parts[0]))
		switch len(parts) {
		case 2:
			im.Put(NewInstrument(id, parts[1]))
		case 3:
			im.Put(NewFuture(id, parts[1], parts[2]))
		default:
			return errors.Errorf("invalid instrument line %q", s)
		}
	}
	return scanner.Err()
}

func init() {
	IMap.bySymbol = make(map[string]Instrument)
	IMap.byID = make(map[int64]Instrument)
}
