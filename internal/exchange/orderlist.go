package exchange

import (
	"fmt"
	"strings"

	"github.com/robaho/go-twime/pkg/common"
)

type listNode struct {
	prev  *listNode
	next  *listNode
	order sessionOrder
}

// orderList is the time priority queue of one price level, it allows efficient removal at start, middle, and end
type orderList struct {
	head      *listNode
	tail      *listNode
	size      int
	allOrders map[*common.Order]*listNode
}

func newOrderList() orderList {
	return orderList{allOrders: make(map[*common.Order]*listNode)}
}

func (l *orderList) String() string {
	var sb strings.Builder
	for node := l.head; node != nil; node = node.next {
		if node != l.head {
			sb.WriteString(",")
		}
		sb.WriteString(fmt.Sprint(node.order.order.ExchangeId, ":", node.order.order.Remaining))
	}
	return sb.String()
}

func (l *orderList) top() sessionOrder {
	return l.head.order
}

func (l *orderList) pushBack(so sessionOrder) {
	node := &listNode{prev: l.tail, order: so}
	if l.tail != nil {
		l.tail.next = node
	}
	if l.head == nil {
		l.head = node
	}
	l.tail = node
	l.size++
	l.allOrders[so.order] = node
}

func (l *orderList) remove(so sessionOrder) error {
	node, ok := l.allOrders[so.order]
	if !ok {
		return common.OrderNotFound
	}
	delete(l.allOrders, so.order)

	if node.prev != nil {
		node.prev.next = node.next
	} else {
		l.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		l.tail = node.prev
	}
	node.next = nil
	node.prev = nil
	l.size--
	return nil
}
