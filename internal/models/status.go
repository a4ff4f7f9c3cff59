package models

// orderTransitions lists the order-level moves an admin or vendor may request.
// Forward progress may skip steps; cancelled, returned and refunded are side
// exits. Only shipped or delivered orders can be returned, and refunded
// follows a delivery, cancellation or return, so stock is always released
// before an order closes as refunded.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusCancelled, OrderStatusReturned},
	OrderStatusDelivered:  {OrderStatusReturned, OrderStatusRefunded},
	OrderStatusCancelled:  {OrderStatusRefunded},
	OrderStatusReturned:   {OrderStatusRefunded},
	OrderStatusRefunded:   {},
}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// CanTransitionTo reports whether an order in status s may move to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Cancellable reports whether a customer or admin may cancel from s.
func (s OrderStatus) Cancellable() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped:
		return true
	}
	return false
}

// Closed reports whether fulfillment work is over for the order.
func (s OrderStatus) Closed() bool {
	switch s {
	case OrderStatusCancelled, OrderStatusReturned, OrderStatusRefunded:
		return true
	}
	return false
}

var orderRank = map[OrderStatus]int{
	OrderStatusPending:    0,
	OrderStatusProcessing: 1,
	OrderStatusShipped:    2,
	OrderStatusDelivered:  3,
}

// Before reports whether s is an earlier step of the forward path than other.
// Side-exit statuses are never before anything.
func (s OrderStatus) Before(other OrderStatus) bool {
	a, okA := orderRank[s]
	b, okB := orderRank[other]
	return okA && okB && a < b
}

var fulfillmentTransitions = map[FulfillmentStatus][]FulfillmentStatus{
	FulfillmentPending:    {FulfillmentProcessing, FulfillmentShipped, FulfillmentCancelled},
	FulfillmentProcessing: {FulfillmentShipped, FulfillmentCancelled},
	FulfillmentShipped:    {FulfillmentDelivered, FulfillmentReturned},
	FulfillmentDelivered:  {FulfillmentReturned},
	FulfillmentCancelled:  {},
	FulfillmentReturned:   {},
}

// Valid reports whether s is a known fulfillment status.
func (s FulfillmentStatus) Valid() bool {
	_, ok := fulfillmentTransitions[s]
	return ok
}

// CanTransitionTo reports whether an item in status s may move to next.
func (s FulfillmentStatus) CanTransitionTo(next FulfillmentStatus) bool {
	for _, allowed := range fulfillmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Active reports whether the item still counts towards the order's progress.
func (s FulfillmentStatus) Active() bool {
	return s != FulfillmentCancelled && s != FulfillmentReturned
}

var fulfillmentRank = map[FulfillmentStatus]int{
	FulfillmentPending:    0,
	FulfillmentProcessing: 1,
	FulfillmentShipped:    2,
	FulfillmentDelivered:  3,
}

// AtLeast reports whether s has reached other on the forward path.
func (s FulfillmentStatus) AtLeast(other FulfillmentStatus) bool {
	a, okA := fulfillmentRank[s]
	b, okB := fulfillmentRank[other]
	return okA && okB && a >= b
}
