package session

import (
	"context"
	"strconv"

	"github.com/EmaRG1/user-manager/internal/kv"
)

const (
	SidebarKey       = "sidebarOpen"
	MobileBreakpoint = 768
)

// Sidebar keeps the open/closed preference in long-lived storage,
// independent of the login session.
type Sidebar struct {
	kv kv.Store
}

func NewSidebar(storage kv.Store) *Sidebar {
	return &Sidebar{kv: storage}
}

// Open returns the saved preference, or whether width is a desktop width
// when nothing was saved.
func (s *Sidebar) Open(ctx context.Context, width int) bool {
	raw, ok, err := s.kv.Get(ctx, SidebarKey)
	if err == nil && ok {
		if open, err := strconv.ParseBool(raw); err == nil {
			return open
		}
	}
	return width >= MobileBreakpoint
}

func (s *Sidebar) Set(ctx context.Context, open bool) error {
	return s.kv.Set(ctx, SidebarKey, strconv.FormatBool(open))
}

// Resize closes the sidebar when the viewport drops below the mobile
// breakpoint. Growing the viewport never reopens it.
func (s *Sidebar) Resize(ctx context.Context, width int) (bool, error) {
	if width < MobileBreakpoint {
		return false, s.Set(ctx, false)
	}
	return s.Open(ctx, width), nil
}
