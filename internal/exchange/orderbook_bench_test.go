package exchange

import (
	"testing"
	"time"

	. "github.com/robaho/fixed"

	. "github.com/robaho/go-twime/pkg/common"
)

func BenchmarkOrders(b *testing.B) {
	var ob = newTestBook()
	var ex = testClient("bench")

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		side := Buy
		if i%2 == 1 {
			side = Sell
		}
		var o1 = LimitOrder(testInstrument, side, NewI(100, 0), NewI(10, 0))
		o1.ExchangeId = int64(i)
		ob.add(sessionOrder{client: ex, order: o1, id: o1.ExchangeId, time: time.Now()})
	}
}

func BenchmarkMultiLevel(b *testing.B) {
	var ob = newTestBook()
	var ex = testClient("bench")

	const levels = 1000

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		side := Buy
		price := NewI(int64(100+i%levels), 0)
		if i%2 == 1 {
			side = Sell
			price = NewI(int64(100+levels+i%levels), 0)
		}
		var o1 = LimitOrder(testInstrument, side, price, NewI(10, 0))
		o1.ExchangeId = int64(i)
		ob.add(sessionOrder{client: ex, order: o1, id: o1.ExchangeId, time: time.Now()})
	}
}
