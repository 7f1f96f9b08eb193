package app

import (
	"sync"
	"time"
)

// NotificationKind distinguishes success banners from error banners.
type NotificationKind int

const (
	NotifySuccess NotificationKind = iota
	NotifyError
)

// Notification is one visible banner.
type Notification struct {
	Message string
	Kind    NotificationKind
}

const defaultNotificationTTL = 5 * time.Second

// NotificationPresenter shows one banner at a time. A new banner replaces
// the current one immediately (last write wins) and every banner dismisses
// itself after the TTL.
type NotificationPresenter struct {
	mu      sync.Mutex
	current *Notification
	timer   *time.Timer
	ttl     time.Duration
}

// NotifyOption customizes a NotificationPresenter.
type NotifyOption func(*NotificationPresenter)

// WithTTL overrides the auto-dismiss delay.
func WithTTL(ttl time.Duration) NotifyOption {
	return func(p *NotificationPresenter) { p.ttl = ttl }
}

// NewNotificationPresenter creates a presenter with the standard 5 second
// auto-dismiss.
func NewNotificationPresenter(opts ...NotifyOption) *NotificationPresenter {
	p := &NotificationPresenter{ttl: defaultNotificationTTL}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Show displays a banner, replacing whatever is currently visible and
// restarting the dismiss timer.
func (p *NotificationPresenter) Show(kind NotificationKind, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.timer != nil {
		p.timer.Stop()
	}
	banner := &Notification{Message: message, Kind: kind}
	p.current = banner
	p.timer = time.AfterFunc(p.ttl, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		// Only clear if no newer banner replaced this one.
		if p.current == banner {
			p.current = nil
		}
	})
}

// Success shows a success banner.
func (p *NotificationPresenter) Success(message string) {
	p.Show(NotifySuccess, message)
}

// Error shows an error banner.
func (p *NotificationPresenter) Error(message string) {
	p.Show(NotifyError, message)
}

// Current returns the visible banner, or nil when none is shown.
func (p *NotificationPresenter) Current() *Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Dismiss hides the banner immediately.
func (p *NotificationPresenter) Dismiss() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
	}
	p.current = nil
}
