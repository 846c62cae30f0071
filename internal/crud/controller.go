// Package crud holds the create/edit/delete flow shared by the studies and
// addresses lists: editor and confirmation state, the local list and the
// notifications sent after each call.
package crud

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

type Entity interface {
	EntityID() int
}

// Owned is an input that can be stamped with its owning user.
type Owned[In any] interface {
	WithOwner(userID int) In
}

type Service[T Entity, In any] interface {
	Create(ctx context.Context, in In) (T, error)
	Update(ctx context.Context, id int, in In) (T, error)
	Delete(ctx context.Context, id int) error
}

type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
)

type Notifier interface {
	Notify(message string, kind Kind)
}

type NotifierFunc func(message string, kind Kind)

func (f NotifierFunc) Notify(message string, kind Kind) { f(message, kind) }

type Messages struct {
	CreateSuccess string
	UpdateSuccess string
	DeleteSuccess string
	CreateError   string
	UpdateError   string
	DeleteError   string
}

func DefaultMessages() Messages {
	return Messages{
		CreateSuccess: "Item created",
		UpdateSuccess: "Item updated",
		DeleteSuccess: "Item deleted",
		CreateError:   "Could not create item",
		UpdateError:   "Could not update item",
		DeleteError:   "Could not delete item",
	}
}

func (m Messages) withDefaults() Messages {
	d := DefaultMessages()
	if m.CreateSuccess == "" {
		m.CreateSuccess = d.CreateSuccess
	}
	if m.UpdateSuccess == "" {
		m.UpdateSuccess = d.UpdateSuccess
	}
	if m.DeleteSuccess == "" {
		m.DeleteSuccess = d.DeleteSuccess
	}
	if m.CreateError == "" {
		m.CreateError = d.CreateError
	}
	if m.UpdateError == "" {
		m.UpdateError = d.UpdateError
	}
	if m.DeleteError == "" {
		m.DeleteError = d.DeleteError
	}
	return m
}

type Options[T Entity, In Owned[In]] struct {
	Items    []T
	OnChange func([]T)
	Service  Service[T, In]
	UserID   int
	Messages Messages
	Notifier Notifier
	Log      zerolog.Logger
}

// Confirmation is the pending delete.
type Confirmation struct {
	Open         bool
	ItemID       int
	IsSubmitting bool
}

type Controller[T Entity, In Owned[In]] struct {
	service  Service[T, In]
	userID   int
	messages Messages
	notifier Notifier
	onChange func([]T)
	log      zerolog.Logger

	mu         sync.Mutex
	items      []T
	current    *T
	editorOpen bool
	saving     bool
	confirm    Confirmation
}

func New[T Entity, In Owned[In]](opts Options[T, In]) *Controller[T, In] {
	notifier := opts.Notifier
	if notifier == nil {
		notifier = NotifierFunc(func(string, Kind) {})
	}
	return &Controller[T, In]{
		service:  opts.Service,
		userID:   opts.UserID,
		messages: opts.Messages.withDefaults(),
		notifier: notifier,
		onChange: opts.OnChange,
		log:      opts.Log,
		items:    append([]T(nil), opts.Items...),
	}
}

// Add opens the editor in create mode.
func (c *Controller[T, In]) Add() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = nil
	c.editorOpen = true
}

func (c *Controller[T, In]) Edit(item T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = &item
	c.editorOpen = true
}

func (c *Controller[T, In]) CloseEditor() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.editorOpen = false
}

// Save creates or updates depending on whether an item is being edited.
// Errors are notified and returned so the caller can show them next to the
// offending field.
func (c *Controller[T, In]) Save(ctx context.Context, in In) (T, error) {
	c.mu.Lock()
	current := c.current
	c.saving = true
	c.mu.Unlock()

	in = in.WithOwner(c.userID)

	var (
		saved T
		err   error
	)
	if current != nil {
		saved, err = c.service.Update(ctx, (*current).EntityID(), in)
	} else {
		saved, err = c.service.Create(ctx, in)
	}

	c.mu.Lock()
	c.saving = false
	if err != nil {
		c.mu.Unlock()
		msg := c.messages.CreateError
		if current != nil {
			msg = c.messages.UpdateError
		}
		c.log.Error().Err(err).Msg("save item")
		c.notifier.Notify(msg, KindError)
		return saved, err
	}
	if current != nil {
		c.items = replaceByID(c.items, saved)
	} else {
		c.items = append(c.items, saved)
	}
	c.editorOpen = false
	items := c.snapshot()
	c.mu.Unlock()

	c.changed(items)
	if current != nil {
		c.notifier.Notify(c.messages.UpdateSuccess, KindSuccess)
	} else {
		c.notifier.Notify(c.messages.CreateSuccess, KindSuccess)
	}
	return saved, nil
}

func (c *Controller[T, In]) RequestDelete(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.confirm = Confirmation{Open: true, ItemID: id}
}

// ConfirmDelete deletes the pending item. The confirmation is closed
// whatever the outcome.
func (c *Controller[T, In]) ConfirmDelete(ctx context.Context) error {
	c.mu.Lock()
	if !c.confirm.Open {
		c.mu.Unlock()
		return nil
	}
	c.confirm.IsSubmitting = true
	id := c.confirm.ItemID
	c.mu.Unlock()

	err := c.service.Delete(ctx, id)

	c.mu.Lock()
	c.confirm = Confirmation{}
	if err != nil {
		c.mu.Unlock()
		c.log.Error().Err(err).Int("id", id).Msg("delete item")
		c.notifier.Notify(c.messages.DeleteError, KindError)
		return err
	}
	c.items = removeByID(c.items, id)
	items := c.snapshot()
	c.mu.Unlock()

	c.changed(items)
	c.notifier.Notify(c.messages.DeleteSuccess, KindInfo)
	return nil
}

func (c *Controller[T, In]) CancelDelete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.confirm = Confirmation{}
}

func (c *Controller[T, In]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

// Current returns the item being edited, if any.
func (c *Controller[T, In]) Current() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		var zero T
		return zero, false
	}
	return *c.current, true
}

func (c *Controller[T, In]) EditorOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.editorOpen
}

func (c *Controller[T, In]) Saving() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saving
}

func (c *Controller[T, In]) Confirmation() Confirmation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.confirm
}

func (c *Controller[T, In]) snapshot() []T {
	return append([]T(nil), c.items...)
}

func (c *Controller[T, In]) changed(items []T) {
	if c.onChange != nil {
		c.onChange(items)
	}
}

func replaceByID[T Entity](items []T, item T) []T {
	for i := range items {
		if items[i].EntityID() == item.EntityID() {
			items[i] = item
			return items
		}
	}
	return items
}

func removeByID[T Entity](items []T, id int) []T {
	out := items[:0]
	for _, item := range items {
		if item.EntityID() != id {
			out = append(out, item)
		}
	}
	return out
}
