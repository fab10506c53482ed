package favicon

import "sync"

// MediaQuery is an in-process preference source. Set notifies subscribers
// when the value changes.
type MediaQuery struct {
	mu     sync.Mutex
	dark   bool
	nextID int
	subs   map[int]func(bool)
}

// NewMediaQuery creates a preference with an initial value.
func NewMediaQuery(dark bool) *MediaQuery {
	return &MediaQuery{dark: dark, subs: map[int]func(bool){}}
}

// Dark implements Preference.
func (m *MediaQuery) Dark() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.dark
}

// Set changes the preference and notifies subscribers if it differs.
func (m *MediaQuery) Set(dark bool) {
	m.mu.Lock()
	if m.dark == dark {
		m.mu.Unlock()
		return
	}

	m.dark = dark
	fns := make([]func(bool), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(dark)
	}
}

// Subscribe implements Preference.
func (m *MediaQuery) Subscribe(fn func(bool)) Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.subs[id] = fn

	return &mqSubscription{m: m, id: id}
}

// Listeners returns the number of active subscriptions.
func (m *MediaQuery) Listeners() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.subs)
}

type mqSubscription struct {
	m  *MediaQuery
	id int
}

func (s *mqSubscription) Unsubscribe() {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	delete(s.m.subs, s.id)
}

// Static is a preference that never changes.
type Static bool

// Dark implements Preference.
func (s Static) Dark() bool { return bool(s) }

// Subscribe implements Preference; the listener is never called.
func (Static) Subscribe(func(bool)) Subscription { return noSubscription{} }

type noSubscription struct{}

func (noSubscription) Unsubscribe() {}
