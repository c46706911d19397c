// Package controller owns the record store and turns user actions into
// store mutations, saves and observer notifications.
package controller

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"payrollforms/internal/core"
	"payrollforms/internal/export"
	"payrollforms/internal/log"
	"payrollforms/internal/persist"
)

const (
	DefaultSaveDebounce = time.Second
	DefaultFocusDelay   = 100 * time.Millisecond
)

var (
	ErrMonthReadOnly        = errors.New("only the current month can be edited")
	ErrConfirmationRequired = errors.New("clearing all forms requires confirmation")
	ErrClosed               = errors.New("controller closed")
)

type Options struct {
	SaveDebounce time.Duration
	FocusDelay   time.Duration
	// RestrictToCurrentMonth limits mutations to the real current month.
	RestrictToCurrentMonth bool
	Now                    func() time.Time
	Logger                 *log.Logger
}

// DefaultOptions returns the taskpane defaults.
func DefaultOptions() Options {
	return Options{
		SaveDebounce:           DefaultSaveDebounce,
		FocusDelay:             DefaultFocusDelay,
		RestrictToCurrentMonth: true,
	}
}

type Controller struct {
	adapter persist.Adapter
	opts    Options
	logger  *log.Logger
	ids     core.IDGenerator
	flush   *pendingFlush

	// saveMu orders writes to the adapter; savedSeq is the newest snapshot written.
	saveMu   sync.Mutex
	savedSeq uint64

	mu        sync.Mutex
	seq       uint64
	store     *core.Store
	selected  core.Month
	lastSaved time.Time
	closed    bool
	focus     map[*time.Timer]struct{}

	obsMu     sync.RWMutex
	observers map[int]Observer
	nextObs   int
}

// New returns a controller over an empty store with the current month selected.
// Call Load to read the backend.
func New(adapter persist.Adapter, opts Options) *Controller {
	if opts.SaveDebounce <= 0 {
		opts.SaveDebounce = DefaultSaveDebounce
	}
	if opts.FocusDelay <= 0 {
		opts.FocusDelay = DefaultFocusDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	c := &Controller{
		adapter:   adapter,
		opts:      opts,
		logger:    opts.Logger.WithComponent(log.ComponentController),
		store:     core.NewStore(),
		selected:  core.MonthOf(opts.Now()),
		focus:     make(map[*time.Timer]struct{}),
		observers: make(map[int]Observer),
	}
	c.flush = newPendingFlush(opts.SaveDebounce, c.flushEdits)
	return c
}

// Subscribe registers fn and returns a function that removes it.
func (c *Controller) Subscribe(fn Observer) func() {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	return func() {
		c.obsMu.Lock()
		defer c.obsMu.Unlock()
		delete(c.observers, id)
	}
}

func (c *Controller) notify(events ...Event) {
	c.obsMu.RLock()
	observers := make([]Observer, 0, len(c.observers))
	for id := range c.observers {
		observers = append(observers, c.observers[id])
	}
	c.obsMu.RUnlock()

	for _, ev := range events {
		for _, fn := range observers {
			fn(ev)
		}
	}
}

// Load replaces the store with the backend's content. On failure the current
// store is kept and the error is returned for the caller to report.
func (c *Controller) Load(ctx context.Context) error {
	s, err := c.adapter.Load(ctx)
	if err != nil {
		c.logger.ErrorContext(ctx, "Loading forms failed", log.FieldBackend, c.adapter.Name(), log.FieldError, err)
		return err
	}
	for r := range s.All() {
		c.ids.Observe(r.ID)
	}

	c.mu.Lock()
	c.store = s
	view := c.viewLocked()
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "Forms loaded", log.FieldBackend, c.adapter.Name(), log.FieldRecords, s.Len())
	c.notify(Event{Kind: EventRender, View: view})
	return nil
}

// ChangeMonth shifts the selected month by n. There is no range limit.
func (c *Controller) ChangeMonth(n int) View {
	c.mu.Lock()
	c.selected = c.selected.Add(n)
	view := c.viewLocked()
	c.mu.Unlock()

	c.notify(Event{Kind: EventRender, View: view})
	return view
}

// GoToToday selects the real current month.
func (c *Controller) GoToToday() View {
	c.mu.Lock()
	c.selected = core.MonthOf(c.opts.Now())
	view := c.viewLocked()
	c.mu.Unlock()

	c.notify(Event{Kind: EventRender, View: view})
	return view
}

func (c *Controller) Selected() core.Month {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

func (c *Controller) viewLocked() View {
	key := c.selected.Key()
	records := core.RecordsFor(c.store, key)
	current := core.IsCurrentMonth(c.selected, c.opts.Now())
	return View{
		Month:      c.selected,
		MonthKey:   key,
		Label:      c.selected.Label(),
		Records:    records,
		Total:      c.store.Len(),
		MonthCount: len(records),
		IsCurrent:  current,
		ReadOnly:   c.opts.RestrictToCurrentMonth && !current,
		LastSaved:  c.lastSaved,
	}
}

func (c *Controller) checkWritableLocked() error {
	if c.closed {
		return ErrClosed
	}
	if c.opts.RestrictToCurrentMonth && !core.IsCurrentMonth(c.selected, c.opts.Now()) {
		return fmt.Errorf("%w: %s", ErrMonthReadOnly, c.selected.Key())
	}
	return nil
}

// AddNew appends an empty record to the selected month, saves at once and
// schedules a focus event for it.
func (c *Controller) AddNew(ctx context.Context) (core.Record, error) {
	c.mu.Lock()
	if err := c.checkWritableLocked(); err != nil {
		c.mu.Unlock()
		return core.Record{}, err
	}
	now := c.opts.Now()
	r := core.NewRecord(c.ids.Next(now), now, c.selected.Key())
	if err := c.store.Add(r); err != nil {
		c.mu.Unlock()
		return core.Record{}, fmt.Errorf("add record: %w", err)
	}
	snapshot, seq := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "Form added", log.FieldRecordID, r.ID, log.FieldMonthKey, r.MonthKey)
	err := c.save(ctx, seq, snapshot)
	c.notify(Event{Kind: EventRender, View: c.View()})
	c.scheduleFocus(r.ID)
	return r, err
}

func (c *Controller) scheduleFocus(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	var t *time.Timer
	t = time.AfterFunc(c.opts.FocusDelay, func() {
		c.mu.Lock()
		_, live := c.focus[t]
		delete(c.focus, t)
		c.mu.Unlock()
		if live {
			c.notify(Event{Kind: EventFocus, RecordID: id})
		}
	})
	c.focus[t] = struct{}{}
}

// Edit replaces the content of a record and schedules the debounced save.
// Nothing is written until the edits pause for the debounce interval.
func (c *Controller) Edit(id, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkWritableLocked(); err != nil {
		return err
	}
	err := c.store.Update(id, c.opts.Now(), func(r *core.Record) {
		r.Content = content
	})
	if err != nil {
		return err
	}
	c.flush.Schedule()
	return nil
}

// flushEdits runs when the debounce elapses: every record of the selected
// month is stamped with the flush time and the whole store is saved once.
func (c *Controller) flushEdits() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	now := c.opts.Now()
	for _, r := range core.RecordsFor(c.store, c.selected.Key()) {
		_ = c.store.Update(r.ID, now, func(*core.Record) {})
	}
	snapshot, seq := c.snapshotLocked()
	c.mu.Unlock()

	ctx := context.Background()
	c.logger.DebugContext(ctx, "Flushing edits", log.FieldRecords, snapshot.Len())
	_ = c.save(ctx, seq, snapshot)
}

// PendingSave reports whether debounced edits are waiting to be written.
func (c *Controller) PendingSave() bool {
	return c.flush.Pending()
}

// Delete removes a record and saves at once. A missing id leaves the store untouched.
func (c *Controller) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	if err := c.checkWritableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	r, err := c.store.Get(id)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	if err := c.store.Delete(id); err != nil {
		c.mu.Unlock()
		return err
	}
	snapshot, seq := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "Form deleted", log.FieldRecordID, id, log.FieldMonthKey, r.MonthKey)
	err = c.save(ctx, seq, snapshot)
	c.notify(Event{Kind: EventRender, View: c.View()})
	return err
}

// Duplicate copies a record under a fresh id. The copy keeps the original month key.
func (c *Controller) Duplicate(ctx context.Context, id string) (core.Record, error) {
	c.mu.Lock()
	if err := c.checkWritableLocked(); err != nil {
		c.mu.Unlock()
		return core.Record{}, err
	}
	orig, err := c.store.Get(id)
	if err != nil {
		c.mu.Unlock()
		return core.Record{}, err
	}
	now := c.opts.Now()
	dup := orig.Duplicate(c.ids.Next(now), now)
	if err := c.store.Add(dup); err != nil {
		c.mu.Unlock()
		return core.Record{}, fmt.Errorf("add duplicate: %w", err)
	}
	snapshot, seq := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "Form duplicated", log.FieldRecordID, dup.ID, "source_id", id, log.FieldMonthKey, dup.MonthKey)
	err = c.save(ctx, seq, snapshot)
	c.notify(Event{Kind: EventRender, View: c.View()})
	return dup, err
}

// ClearAll empties the store. It refuses to run unless confirmed.
// Clearing is not limited to the current month.
func (c *Controller) ClearAll(ctx context.Context, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	n := c.store.Len()
	c.store.Clear()
	snapshot, seq := c.snapshotLocked()
	c.mu.Unlock()

	c.flush.Cancel()
	c.logger.InfoContext(ctx, "All forms cleared", log.FieldRecords, n)
	err := c.save(ctx, seq, snapshot)
	c.notify(Event{Kind: EventRender, View: c.View()})
	return err
}

// Export renders the payload for f. JSON and text cover the whole store,
// CSV covers the selected month.
func (c *Controller) Export(f export.Format) ([]byte, string, error) {
	c.mu.Lock()
	snapshot := c.store.Clone()
	key := c.selected.Key()
	monthRecords := core.RecordsFor(c.store, key)
	c.mu.Unlock()

	switch f {
	case export.FormatJSON:
		data, err := export.JSON(snapshot)
		if err != nil {
			return nil, "", err
		}
		return data, export.Filename(f, key), nil
	case export.FormatCSV:
		return export.CSV(slices.Values(monthRecords)), export.Filename(f, key), nil
	case export.FormatText:
		return export.Text(snapshot.All()), export.Filename(f, key), nil
	default:
		return nil, "", fmt.Errorf("unknown export format %q", f)
	}
}

// Close cancels pending timers. Debounced edits that were not written yet are dropped.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	for t := range c.focus {
		t.Stop()
	}
	clear(c.focus)
	c.mu.Unlock()

	if c.flush.Cancel() {
		c.logger.Warn("Closed with unsaved edits pending")
	}
}

// snapshotLocked copies the store and stamps the copy with the next sequence number.
func (c *Controller) snapshotLocked() (*core.Store, uint64) {
	c.seq++
	return c.store.Clone(), c.seq
}

// save writes snapshot unless a newer one already reached the adapter. Saves
// run one at a time so a slow older write cannot land after a newer one.
func (c *Controller) save(ctx context.Context, seq uint64, snapshot *core.Store) error {
	c.saveMu.Lock()
	var err error
	if seq > c.savedSeq {
		if err = c.adapter.Save(ctx, snapshot); err == nil {
			c.savedSeq = seq
		}
	} else {
		c.logger.DebugContext(ctx, "Skipping superseded snapshot", "seq", seq, "saved_seq", c.savedSeq)
	}
	c.saveMu.Unlock()
	if err != nil {
		var pe *core.PersistenceError
		if !errors.As(err, &pe) {
			err = &core.PersistenceError{Backend: c.adapter.Name(), Op: log.OpSave, Err: err}
		}
		c.logger.ErrorContext(ctx, "Saving forms failed", log.FieldBackend, c.adapter.Name(), log.FieldError, err)
		c.notify(Event{Kind: EventSaveFailed, Err: err, View: c.View()})
		return err
	}

	c.mu.Lock()
	c.lastSaved = c.opts.Now()
	view := c.viewLocked()
	c.mu.Unlock()
	c.notify(Event{Kind: EventSaved, View: view})
	return nil
}
