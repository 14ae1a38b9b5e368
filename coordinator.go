package intentpay

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Poller types owned by the coordinator. Registry keys are
// "<pollerType>:<orderID>".
const (
	pollerFindPayment  = "find_payment"
	pollerRefreshOrder = "refresh_order"
)

func pollerRegistryKey(pollerType, orderID string) string {
	return pollerType + ":" + orderID
}

// Default coordinator timings.
const (
	DefaultFindPaymentInterval  = 3 * time.Second
	DefaultRefreshOrderInterval = 3 * time.Second
	DefaultPushGracePeriod      = 15 * time.Second
)

// Coordinator subscribes to a store and performs the asynchronous work its
// transitions imply: remote order creation and preview, hydration, source
// payment submission, and status polling. Results are dispatched back into
// the store as effect-completion events.
//
// Each coordinator owns its poller registry, in-flight markers, and push
// subscriptions; nothing is process-wide, so independent checkout instances
// never interfere.
type Coordinator struct {
	store    *Store
	api      OrderAPI
	push     PushChannel
	notifier *Notifier
	logger   Logger

	findInterval    time.Duration
	refreshInterval time.Duration
	pushGrace       time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	active   bool
	pollers  map[string]func()      // stop handles, keyed pollerType:orderID
	inFlight map[string]uint64      // async op key → generation it serves
	pushSubs map[string]*pushHandle // live push readers, keyed by order id

	// generation identifies the current logical intent. It advances on every
	// set_pay_params, set_pay_id, and reset; effect completions carry the
	// generation they were started under and are discarded on mismatch.
	generation uint64

	unsubscribe func()
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithLogger sets the coordinator's logger.
func WithLogger(logger Logger) CoordinatorOption {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithNotifier sets the milestone notifier. Without this option the
// coordinator creates its own, reachable via Notifier().
func WithNotifier(n *Notifier) CoordinatorOption {
	return func(c *Coordinator) {
		c.notifier = n
	}
}

// WithPushChannel enables real-time status updates. Absent a channel the
// coordinator relies on polling alone.
func WithPushChannel(push PushChannel) CoordinatorOption {
	return func(c *Coordinator) {
		c.push = push
	}
}

// WithPollIntervals overrides the find-payment and refresh-order intervals.
func WithPollIntervals(find, refresh time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		c.findInterval = find
		c.refreshInterval = refresh
	}
}

// WithPushGracePeriod overrides how long the coordinator waits for a first
// push message before dropping the subscription and relying on polling.
func WithPushGracePeriod(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		c.pushGrace = d
	}
}

// NewCoordinator creates a coordinator and subscribes it to the store.
// Close tears it down: the store subscription is removed, every owned
// poller stops, and in-flight completions no longer dispatch.
func NewCoordinator(store *Store, api OrderAPI, opts ...CoordinatorOption) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		store:           store,
		api:             api,
		findInterval:    DefaultFindPaymentInterval,
		refreshInterval: DefaultRefreshOrderInterval,
		pushGrace:       DefaultPushGracePeriod,
		ctx:             ctx,
		cancel:          cancel,
		active:          true,
		pollers:         make(map[string]func()),
		inFlight:        make(map[string]uint64),
		pushSubs:        make(map[string]*pushHandle),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = defaultLogger()
	}
	if c.notifier == nil {
		c.notifier = NewNotifier()
	}
	c.unsubscribe = store.Subscribe(c.onTransition)
	return c
}

// Notifier returns the milestone notifier host code subscribes to.
func (c *Coordinator) Notifier() *Notifier {
	return c.notifier
}

// Close tears the coordinator down. Safe to call more than once.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	c.active = false
	stops := make([]func(), 0, len(c.pollers)+len(c.pushSubs))
	for _, stop := range c.pollers {
		stops = append(stops, stop)
	}
	for _, h := range c.pushSubs {
		stops = append(stops, h.cancel)
	}
	c.pollers = make(map[string]func())
	c.pushSubs = make(map[string]*pushHandle)
	c.mu.Unlock()

	c.cancel()
	c.unsubscribe()
	for _, stop := range stops {
		stop()
	}
}

func (c *Coordinator) isActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// dispatch forwards an event into the store unless the coordinator has been
// torn down since the effect began.
func (c *Coordinator) dispatch(ev PaymentEvent) {
	if !c.isActive() {
		return
	}
	c.store.Dispatch(ev)
}

// nextGeneration advances the intent generation, invalidating every effect
// still in flight for the previous intent.
func (c *Coordinator) nextGeneration() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	return c.generation
}

func (c *Coordinator) currentGeneration() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// dispatchFor forwards an effect-completion event unless the intent the
// effect was started for has been superseded. Completions resolve in any
// order; only ones belonging to the latest intent may land.
func (c *Coordinator) dispatchFor(gen uint64, ev PaymentEvent) {
	if c.currentGeneration() != gen {
		c.logger.Printf("discarding %s result from a superseded intent", ev.EventType())
		return
	}
	c.dispatch(ev)
}

// ============================================================================
// Transition handling
// ============================================================================

func (c *Coordinator) onTransition(t Transition) {
	c.handleStateChange(t)
	c.handleEvent(t)
}

// handleStateChange drives poller and push lifecycles purely off the state
// type entered and exited, and emits lifecycle milestones.
func (c *Coordinator) handleStateChange(t Transition) {
	prevType, nextType := t.Prev.StateType(), t.Next.StateType()
	if prevType == nextType {
		return
	}

	// Exited state type: release what it governed.
	prevID := orderIDOf(t.Prev)
	switch prevType {
	case StateTypeUnpaid:
		c.stopPoller(pollerRegistryKey(pollerFindPayment, prevID))
	case StateTypeStarted:
		c.stopPoller(pollerRegistryKey(pollerRefreshOrder, prevID))
	}

	order := StateOrder(t.Next)
	switch nextType {
	case StateTypeUnpaid:
		c.startFindPaymentPoller(order.ID, 0)
	case StateTypeStarted:
		c.startRefreshOrderPoller(order.ID)
		c.subscribePush(order.ID)
		c.notifier.Emit(NotifierPaymentStarted, order.ID, *order)
	case StateTypeCompleted:
		c.stopOwnedForOrder(order.ID)
		c.notifier.Emit(NotifierPaymentCompleted, order.ID, *order)
		if order.Status == OrderStatusPayoutCompleted {
			c.notifier.Emit(NotifierPayoutCompleted, order.ID, *order)
		}
	case StateTypeBounced:
		c.stopOwnedForOrder(order.ID)
		c.notifier.Emit(NotifierPaymentBounced, order.ID, *order)
	case StateTypeIdle, StateTypeError:
		if prevID != "" {
			c.stopOwnedForOrder(prevID)
		}
	}
}

// handleEvent performs event-specific asynchronous work exactly once per
// dispatched event instance. Every case is guarded by the previous state
// type so an event the reducer ignored performs no network call.
func (c *Coordinator) handleEvent(t Transition) {
	switch ev := t.Event.(type) {
	case SetPayParams:
		c.runPreview(ev.Params, c.nextGeneration())

	case SetPayID:
		c.runLoad(ev.ID, c.nextGeneration())

	case HydrateOrder:
		switch t.Prev.StateType() {
		case StateTypePreview, StateTypeUnhydrated:
			c.runHydrate(*StateOrder(t.Prev), ev, c.currentGeneration())
		}

	case PayEthereumSource:
		c.runSubmit(t.Prev, ev.Submission, c.currentGeneration())
	case PaySolanaSource:
		c.runSubmit(t.Prev, ev.Submission, c.currentGeneration())
	case PayStellarSource:
		c.runSubmit(t.Prev, ev.Submission, c.currentGeneration())

	case PaySource:
		// Nudge: restart the find-payment cycle immediately instead of
		// waiting out the current interval.
		switch t.Prev.StateType() {
		case StateTypeUnpaid, StateTypeStarted:
			id := orderIDOf(t.Prev)
			c.stopPoller(pollerRegistryKey(pollerFindPayment, id))
			c.startFindPaymentPoller(id, 0)
		}

	case Reset:
		c.nextGeneration()
		if id := orderIDOf(t.Prev); id != "" {
			c.notifier.Reset(id)
		}
	}
}

func orderIDOf(s PaymentState) string {
	if o := StateOrder(s); o != nil {
		return o.ID
	}
	return ""
}

// ============================================================================
// Asynchronous operations
// ============================================================================

// beginOp marks an operation in flight for a generation. A second identical
// dispatch while the first is pending starts no second call; the pending
// call is adopted by the newer generation instead, so its result still
// serves the re-dispatched intent.
func (c *Coordinator) beginOp(key string, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return false
	}
	if _, pending := c.inFlight[key]; pending {
		c.inFlight[key] = gen
		return false
	}
	c.inFlight[key] = gen
	return true
}

// opGeneration returns the generation the pending op currently serves,
// which a re-dispatch of the identical op may have advanced since it began.
func (c *Coordinator) opGeneration(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight[key]
}

func (c *Coordinator) endOp(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inFlight, key)
}

func (c *Coordinator) runPreview(params PayParams, gen uint64) {
	key := fmt.Sprintf("preview:%s|%s|%s|%s", params.ToChain, params.ToToken.Address, params.ToUnits, params.ToAddress)
	if !c.beginOp(key, gen) {
		return
	}
	go func() {
		defer c.endOp(key)
		order, err := c.api.PreviewOrder(c.ctx, params)
		if err != nil {
			c.dispatchFor(c.opGeneration(key), ErrorEvent{Code: ErrCodePreviewFailed, Message: err.Error()})
			return
		}
		c.dispatchFor(c.opGeneration(key), PreviewGenerated{Order: order})
	}()
}

func (c *Coordinator) runLoad(id string, gen uint64) {
	key := "load:" + id
	if !c.beginOp(key, gen) {
		return
	}
	go func() {
		defer c.endOp(key)
		order, err := c.api.GetOrder(c.ctx, id)
		if err != nil {
			c.dispatchFor(c.opGeneration(key), ErrorEvent{Code: ErrCodeOrderNotFound, Message: err.Error()})
			return
		}
		c.dispatchFor(c.opGeneration(key), OrderLoaded{Order: order})
	}()
}

func (c *Coordinator) runHydrate(order Order, ev HydrateOrder, gen uint64) {
	ident := order.ID
	if ident == "" {
		units := "0"
		if order.DestFinalCallTokenAmount.Units != nil {
			units = order.DestFinalCallTokenAmount.Units.String()
		}
		ident = fmt.Sprintf("%s|%s|%s", order.DestChainID, order.DestAddr, units)
	}
	key := "hydrate:" + ident
	if !c.beginOp(key, gen) {
		return
	}
	go func() {
		defer c.endOp(key)
		hydrated, err := c.api.HydrateOrder(c.ctx, HydrationRequest{
			Order:       order,
			RefundAddr:  ev.RefundAddr,
			ChosenToken: ev.ChosenToken,
		})
		if err != nil {
			c.dispatchFor(c.opGeneration(key), ErrorEvent{Code: ErrCodeHydrationFailed, Message: err.Error()})
			return
		}
		// The store may have moved on (reset, new params) while the
		// hydration call was in flight; a stale result is discarded.
		switch c.store.GetState().StateType() {
		case StateTypePreview, StateTypeUnhydrated:
			c.dispatchFor(c.opGeneration(key), OrderHydrated{Order: hydrated})
		default:
			c.logger.Printf("discarding stale hydration result for order %q", hydrated.ID)
		}
	}()
}

func (c *Coordinator) runSubmit(prev PaymentState, sub SourceSubmission, gen uint64) {
	switch prev.StateType() {
	case StateTypeUnpaid, StateTypeStarted:
	default:
		return
	}
	order := StateOrder(prev)
	key := fmt.Sprintf("submit:%s|%s|%s", order.ID, sub.SourceChainID, sub.PaymentTxHash)
	if !c.beginOp(key, gen) {
		return
	}
	orderID := order.ID
	go func() {
		defer c.endOp(key)
		verified, err := c.api.SubmitSourcePayment(c.ctx, orderID, sub)
		if err != nil {
			c.dispatchFor(c.opGeneration(key), ErrorEvent{Code: ErrCodeVerificationFailed, Message: err.Error()})
			return
		}
		c.dispatchFor(c.opGeneration(key), PaymentVerified{Order: verified})
	}()
}

// ============================================================================
// Poller registry
// ============================================================================

// registerPoller enforces single ownership per key: registering a second
// poller under a live key is a programming error, caught here rather than
// in the poller itself.
func (c *Coordinator) registerPoller(key string, cfg PollConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return
	}
	if _, exists := c.pollers[key]; exists {
		c.logger.Printf("poller %q already registered, ignoring", key)
		return
	}
	c.pollers[key] = StartPolling(cfg)
}

func (c *Coordinator) stopPoller(key string) {
	c.mu.Lock()
	stop := c.pollers[key]
	delete(c.pollers, key)
	c.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// stopOwnedForOrder stops every poller and push subscription owned for an
// order id. Used on terminal states and on reset.
func (c *Coordinator) stopOwnedForOrder(orderID string) {
	c.mu.Lock()
	var stops []func()
	for key, stop := range c.pollers {
		if strings.HasSuffix(key, ":"+orderID) {
			stops = append(stops, stop)
			delete(c.pollers, key)
		}
	}
	if h, ok := c.pushSubs[orderID]; ok {
		stops = append(stops, h.cancel)
		delete(c.pushSubs, orderID)
	}
	c.mu.Unlock()
	for _, stop := range stops {
		stop()
	}
}

func (c *Coordinator) startFindPaymentPoller(orderID string, initialDelay time.Duration) {
	key := pollerRegistryKey(pollerFindPayment, orderID)
	c.registerPoller(key, PollConfig{
		Interval:     c.findInterval,
		InitialDelay: initialDelay,
		Poll: func(ctx context.Context) (interface{}, error) {
			return c.api.FindOrderPayments(ctx, orderID)
		},
		OnResult: func(result interface{}) {
			order := result.(Order)
			switch cur := c.store.GetState(); cur.StateType() {
			case StateTypeUnpaid, StateTypeStarted:
				if orderIDOf(cur) != orderID {
					c.stopPoller(key)
					return
				}
				c.dispatch(OrderRefreshed{Order: order})
			default:
				// Governing state is gone; the poll is stale.
				c.stopPoller(key)
			}
		},
		OnError: func(err error) {
			// Transient failure: swallowed, retried next tick.
			c.logger.Printf("find payment poll for order %q: %v", orderID, err)
		},
	})
}

func (c *Coordinator) startRefreshOrderPoller(orderID string) {
	key := pollerRegistryKey(pollerRefreshOrder, orderID)
	c.registerPoller(key, PollConfig{
		Interval: c.refreshInterval,
		Poll: func(ctx context.Context) (interface{}, error) {
			return c.api.GetOrder(ctx, orderID)
		},
		OnResult: func(result interface{}) {
			order := result.(Order)
			cur := c.store.GetState()
			if cur.StateType() != StateTypeStarted || orderIDOf(cur) != orderID {
				c.stopPoller(key)
				return
			}
			c.dispatch(OrderRefreshed{Order: order})
		},
		OnError: func(err error) {
			c.logger.Printf("refresh order poll for order %q: %v", orderID, err)
		},
	})
}

// ============================================================================
// Push channel
// ============================================================================

// pushHandle identifies one live push reader in the registry. Entries are
// compared by pointer so a reader only ever removes its own registration.
type pushHandle struct {
	cancel context.CancelFunc
}

// subscribePush binds a real-time status subscription for an order. Any
// failure falls back silently to polling; pollers stay authoritative.
func (c *Coordinator) subscribePush(orderID string) {
	if c.push == nil {
		return
	}
	ctx, cancel := context.WithCancel(c.ctx)
	handle := &pushHandle{cancel: cancel}

	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		cancel()
		return
	}
	if _, exists := c.pushSubs[orderID]; exists {
		c.mu.Unlock()
		cancel()
		return
	}
	c.pushSubs[orderID] = handle
	c.mu.Unlock()

	go c.runPushReader(ctx, orderID, handle)
}

func (c *Coordinator) runPushReader(ctx context.Context, orderID string, handle *pushHandle) {
	// Deregister on exit however the reader ends (cancel, grace timeout,
	// subscribe failure, connection loss) so the registry holds only live
	// subscriptions.
	defer func() {
		c.mu.Lock()
		if c.pushSubs[orderID] == handle {
			delete(c.pushSubs, orderID)
		}
		c.mu.Unlock()
		handle.cancel()
	}()

	sub, err := c.push.Subscribe(orderID)
	if err != nil {
		c.logger.Printf("push subscribe for order %q failed, polling only: %v", orderID, err)
		return
	}
	defer sub.Unsubscribe()

	grace := time.NewTimer(c.pushGrace)
	defer grace.Stop()
	graceC := grace.C

	for {
		select {
		case <-ctx.Done():
			return
		case <-graceC:
			// No push data within the grace period; polling covers us.
			c.logger.Printf("no push data for order %q within %s, dropping subscription", orderID, c.pushGrace)
			return
		case update, ok := <-sub.Updates():
			if !ok {
				return
			}
			graceC = nil
			c.handlePushUpdate(orderID, update)
		}
	}
}

// handlePushUpdate folds a push status message into the current order and
// dispatches it as an order refresh. Unknown statuses are ignored.
func (c *Coordinator) handlePushUpdate(orderID string, update StatusUpdate) {
	if update.PaymentID != "" && update.PaymentID != orderID {
		return
	}
	cur := c.store.GetState()
	po := StateOrder(cur)
	if po == nil || po.ID != orderID {
		return
	}
	updated := *po

	switch OrderStatus(update.Status) {
	case OrderStatusStarted:
		updated.Status = OrderStatusStarted
	case OrderStatusCompleted:
		updated.Status = OrderStatusCompleted
	case OrderStatusBounced:
		updated.Status = OrderStatusBounced
	case OrderStatusPayoutCompleted:
		// The payout milestone is emitted by handleStateChange once the
		// order actually lands in a completed state.
		updated.Status = OrderStatusPayoutCompleted
	default:
		c.logger.Printf("ignoring push update with unknown status %q for order %q", update.Status, orderID)
		return
	}
	if update.SourceTxHash != "" {
		updated.SourceInitiateTxHash = update.SourceTxHash
	}
	if update.DestinationTxHash != "" {
		updated.DestClaimTxHash = update.DestinationTxHash
	}
	c.dispatch(OrderRefreshed{Order: updated})
}
