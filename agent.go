package agentz

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/zoobzio/clockz"
	"go.uber.org/zap"

	"github.com/zoobzio/agentz/attributes"
	"github.com/zoobzio/agentz/normalizer"
)

// TransactionHandler is called when a transaction finishes and was not ignored.
type TransactionHandler func(txn *Transaction)

type handlerEntry struct {
	handler TransactionHandler
	id      uint64
	async   bool
}

// Agent manages transaction lifecycle, attribute filtering and name normalization.
// Safe for concurrent use by multiple goroutines.
//
//nolint:govet // Field order optimized for functionality over memory
type Agent struct {
	handlers     []handlerEntry
	panicHook    func(handlerID uint64, r interface{})
	workers      *workerPool
	ids          *idPool
	clock        clockz.Clock
	logger       *zap.Logger
	registerer   prometheus.Registerer
	metrics      *Metrics
	filter       *attributes.FilterRef
	normalizer   *normalizer.Normalizer
	cfg          Config
	handlersLock sync.RWMutex
	idsLock      sync.Mutex
	closed       atomic.Bool
	nextID       atomic.Uint64
	droppedTxns  atomic.Uint64
}

// Option configures an Agent.
type Option func(*Agent)

// WithClock sets the clock used by every timer.
// Enables clock injection for deterministic testing.
func WithClock(clock clockz.Clock) Option {
	return func(a *Agent) { a.clock = clock }
}

// WithLogger sets the agent's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Agent) { a.logger = logger }
}

// WithRegisterer sets where supportability metrics are registered.
// Defaults to a private registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(a *Agent) { a.registerer = reg }
}

// New creates an agent from cfg.
func New(cfg Config, opts ...Option) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid agent configuration: %w", err)
	}

	a := &Agent{
		handlers: make([]handlerEntry, 0),
		clock:    clockz.RealClock,
		logger:   zap.NewNop(),
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.registerer == nil {
		a.registerer = prometheus.NewRegistry()
	}
	a.metrics = NewMetrics(a.registerer)

	filter, err := attributes.NewFilter(cfg.FilterConfig())
	if err != nil {
		return nil, fmt.Errorf("invalid attribute filter: %w", err)
	}
	a.filter = attributes.NewFilterRef(filter)
	a.normalizer = normalizer.New(normalizer.WithLogger(a.logger.Named("normalizer")))

	if cfg.Harvest.Workers > 0 {
		if err := a.EnableWorkerPool(cfg.Harvest.Workers, cfg.Harvest.QueueSize); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Metrics returns the agent's supportability metrics.
func (a *Agent) Metrics() *Metrics { return a.metrics }

// Filter returns the current attribute filter snapshot.
func (a *Agent) Filter() *attributes.Filter { return a.filter.Load() }

// Normalizer returns the agent's name normalizer.
func (a *Agent) Normalizer() *normalizer.Normalizer { return a.normalizer }

// generateID draws from the ID pool, creating it on first use.
// After Close no pool is created and IDs are generated directly.
func (a *Agent) generateID() string {
	a.idsLock.Lock()
	if a.ids == nil && !a.closed.Load() {
		a.ids = newIDPool(a.cfg.Harvest.IDPoolSize)
	}
	ids := a.ids
	a.idsLock.Unlock()

	if ids == nil {
		return uuid.NewString()
	}
	return ids.Get()
}

// BeginTransaction starts a transaction and returns a context carrying it
// with its root segment as the current segment.
func (a *Agent) BeginTransaction(ctx context.Context, name string) (context.Context, *Transaction) {
	if ctx == nil {
		ctx = context.Background()
	}
	txn := newTransaction(a, name)
	return NewContext(ctx, txn, txn.root), txn
}

// StartSegment creates a child of the current segment in ctx.
// Returns ctx unchanged and a nil Segment when ctx carries no transaction.
func (a *Agent) StartSegment(ctx context.Context, name string) (context.Context, *Segment) {
	txn := FromContext(ctx)
	if txn == nil {
		return ctx, nil
	}
	parent := SegmentFromContext(ctx)
	if parent == nil {
		parent = txn.root
	}
	seg := parent.AddChild(name)
	return NewContext(ctx, txn, seg), seg
}

// UpdateAttributeFilter installs a filter built from cfg.
// On error the current filter stays in place.
func (a *Agent) UpdateAttributeFilter(cfg attributes.FilterConfig) error {
	filter, err := attributes.NewFilter(cfg)
	if err != nil {
		a.logger.Warn("rejected attribute filter update", zap.Error(err))
		return err
	}
	a.filter.Store(filter)
	return nil
}

// UpdateRules replaces the normalization rule set.
func (a *Agent) UpdateRules(specs []normalizer.RuleSpec) {
	a.normalizer.Load(specs)
	for _, r := range a.normalizer.Rules() {
		if r.Err() != nil {
			a.metrics.ruleFallbacks.Inc()
		}
	}
}

// Normalize canonicalizes name and records the outcome.
func (a *Agent) Normalize(name string) normalizer.Result {
	res := a.normalizer.Normalize(name)
	switch {
	case res.Ignored:
		a.metrics.names.WithLabelValues(outcomeIgnored).Inc()
	case res.Name != name:
		a.metrics.names.WithLabelValues(outcomeRenamed).Inc()
	default:
		a.metrics.names.WithLabelValues(outcomeUnchanged).Inc()
	}
	return res
}

func (a *Agent) newAttributes(scope string) *attributes.Attributes {
	// scope is always one of the package constants, so New cannot fail.
	attrs, _ := attributes.New(scope,
		attributes.WithLimit(a.cfg.Attributes.Limit),
		attributes.WithMaxKeyBytes(a.cfg.Attributes.MaxKeyBytes),
		attributes.WithMaxValueBytes(a.cfg.Attributes.MaxValueBytes),
		attributes.WithFilter(a.filter),
		attributes.WithDropHook(a.metrics.attributeDropped),
	)
	return attrs
}

func (a *Agent) addAttribute(attrs *attributes.Attributes, dest attributes.Destination, key string, value attributes.Value) {
	dest = a.filter.Load().Apply(dest, key)
	if dest == attributes.None {
		attrs.Dropped(attributes.DropFiltered)
		return
	}
	attrs.AddAttribute(dest, key, value)
}

func (a *Agent) addAttributes(attrs *attributes.Attributes, dest attributes.Destination, values map[string]any) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v, ok := attributes.ValueOf(values[k])
		if !ok {
			attrs.Dropped(attributes.DropInvalidValue)
			continue
		}
		a.addAttribute(attrs, dest, k, v)
	}
}

// finishTransaction normalizes the transaction name and dispatches it.
func (a *Agent) finishTransaction(txn *Transaction) {
	res := a.Normalize(txn.Name())
	if res.Ignored {
		txn.ignored.Store(true)
		a.metrics.transactions.WithLabelValues(outcomeIgnored).Inc()
		a.logger.Debug("transaction ignored by normalization rules",
			zap.String("transaction_id", txn.ID()),
			zap.String("name", res.Name))
		return
	}
	txn.SetName(res.Name)
	a.metrics.transactions.WithLabelValues(outcomeFinished).Inc()
	a.executeHandlers(txn)
}

// OnTransactionEnd registers a synchronous handler called when transactions finish.
func (a *Agent) OnTransactionEnd(handler TransactionHandler) uint64 {
	return a.registerHandler(handler, false)
}

// OnTransactionEndAsync registers an asynchronous handler called when transactions finish.
func (a *Agent) OnTransactionEndAsync(handler TransactionHandler) uint64 {
	return a.registerHandler(handler, true)
}

// AddCollector delivers every finished transaction to c.
func (a *Agent) AddCollector(c *Collector) uint64 {
	return a.OnTransactionEnd(c.Collect)
}

func (a *Agent) registerHandler(handler TransactionHandler, async bool) uint64 {
	if handler == nil {
		return 0
	}

	id := a.nextID.Add(1)

	a.handlersLock.Lock()
	defer a.handlersLock.Unlock()

	a.handlers = append(a.handlers, handlerEntry{
		id:      id,
		handler: handler,
		async:   async,
	})

	return id
}

// RemoveHandler removes a handler by ID.
func (a *Agent) RemoveHandler(id uint64) {
	a.handlersLock.Lock()
	defer a.handlersLock.Unlock()

	// Preserve order
	for i, h := range a.handlers {
		if h.id == id {
			copy(a.handlers[i:], a.handlers[i+1:])
			a.handlers = a.handlers[:len(a.handlers)-1]
			return
		}
	}
}

// SetPanicHook sets a function to be called when a handler panics.
func (a *Agent) SetPanicHook(hook func(handlerID uint64, r interface{})) {
	a.panicHook = hook
}

// executeHandlers calls all registered handlers with the finished transaction.
func (a *Agent) executeHandlers(txn *Transaction) {
	a.handlersLock.RLock()
	if len(a.handlers) == 0 {
		a.handlersLock.RUnlock()
		return
	}

	handlers := make([]handlerEntry, len(a.handlers))
	copy(handlers, a.handlers)
	workers := a.workers
	a.handlersLock.RUnlock()

	for _, h := range handlers {
		if h.async {
			entry := h
			if workers != nil {
				workers.submit(func() {
					a.safeCall(entry, txn)
				})
			} else {
				go a.safeCall(entry, txn)
			}
		} else {
			a.safeCall(h, txn)
		}
	}
}

func (a *Agent) safeCall(entry handlerEntry, txn *Transaction) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("transaction handler panicked",
				zap.Uint64("handler_id", entry.id),
				zap.Any("panic", r))
			if a.panicHook != nil {
				a.panicHook(entry.id, r)
			}
		}
	}()
	entry.handler(txn)
}

// EnableWorkerPool creates a bounded worker pool for async handlers.
func (a *Agent) EnableWorkerPool(workers, queueSize int) error {
	if workers <= 0 {
		return errors.New("workers must be > 0")
	}
	if queueSize <= 0 {
		return errors.New("queueSize must be > 0")
	}

	a.handlersLock.Lock()
	defer a.handlersLock.Unlock()

	if a.closed.Load() {
		return errors.New("agent is closed")
	}
	if a.workers != nil {
		return errors.New("worker pool already enabled")
	}

	a.workers = &workerPool{
		tasks: make(chan func(), queueSize),
		stop:  make(chan struct{}),
		onDrop: func() {
			a.droppedTxns.Add(1)
			a.metrics.handlerDrops.Inc()
		},
	}

	a.workers.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go a.workers.run()
	}

	return nil
}

// DroppedTransactions returns the number of async deliveries dropped due to a full worker queue.
func (a *Agent) DroppedTransactions() uint64 {
	return a.droppedTxns.Load()
}

// Close shuts down the agent gracefully and cleans up resources.
// Safe to call multiple times. Transactions started afterwards still work
// but are not delivered to handlers.
func (a *Agent) Close() {
	a.closed.Store(true)

	a.handlersLock.Lock()
	a.handlers = nil
	workers := a.workers
	a.workers = nil
	a.handlersLock.Unlock()

	if workers != nil {
		workers.shutdown()
	}

	a.idsLock.Lock()
	ids := a.ids
	a.idsLock.Unlock()

	if ids != nil {
		ids.Close()
	}
	_ = a.logger.Sync()
}

// workerPool manages a fixed number of workers for processing async handlers.
//
//nolint:govet // Field order optimized for functionality over memory
type workerPool struct {
	tasks  chan func()
	stop   chan struct{}
	onDrop func()
	wg     sync.WaitGroup
}

func (w *workerPool) run() {
	defer w.wg.Done()
	for {
		select {
		case task := <-w.tasks:
			task()
		case <-w.stop:
			return
		}
	}
}

func (w *workerPool) submit(task func()) {
	select {
	case w.tasks <- task:
	default:
		w.onDrop()
	}
}

func (w *workerPool) shutdown() {
	close(w.stop)
	w.wg.Wait()
}
