// Package notify tracks the newest stored version of a catalog across server instances.
package notify

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/asakaida/schemareg/internal/logging"
)

// Channel is the PostgreSQL NOTIFY channel fed by the catalogs insert trigger
const Channel = "catalog_changed"

// CatalogWatcher follows the latest version of one catalog.
// It uses PostgreSQL LISTEN/NOTIFY for instant updates and re-reads the
// table every refreshTTL to catch notifications lost while disconnected.
type CatalogWatcher struct {
	mu          sync.RWMutex
	name        string
	current     string
	db          *sql.DB
	connStr     string
	refreshTTL  time.Duration
	lastRefresh time.Time
	listener    *pq.Listener
	fetch       func(ctx context.Context) (string, error)
	onChange    func(version string)
	stopCh      chan struct{}
	stopped     bool
}

// NewCatalogWatcher creates a watcher for the named catalog.
// connStr is the PostgreSQL connection string used for LISTEN.
func NewCatalogWatcher(db *sql.DB, connStr, name string, refreshTTL time.Duration) *CatalogWatcher {
	w := &CatalogWatcher{
		name:       name,
		db:         db,
		connStr:    connStr,
		refreshTTL: refreshTTL,
		stopCh:     make(chan struct{}),
	}
	w.fetch = w.fetchLatestVersion
	return w
}

// OnChange registers a callback invoked with each newly observed version.
// It must be set before Start.
func (w *CatalogWatcher) OnChange(fn func(version string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = fn
}

// Start reads the current version and begins listening for new ones
func (w *CatalogWatcher) Start(ctx context.Context) error {
	version, err := w.fetch(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch initial catalog version: %w", err)
	}
	w.SetVersion(version)

	reportProblem := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logging.Warn().Err(err).Str("catalog", w.name).Msg("catalog listener error")
		}
	}
	w.listener = pq.NewListener(w.connStr, 10*time.Second, time.Minute, reportProblem)
	if err := w.listener.Listen(Channel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", Channel, err)
	}

	go w.handleNotifications(w.listener.Notify)
	return nil
}

// Stop stops listening. It is safe to call more than once.
func (w *CatalogWatcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	w.mu.Unlock()

	if w.listener != nil {
		return w.listener.Close()
	}
	return nil
}

// LatestVersion returns the newest known version, refreshing it from the
// database when the cached value is stale. An empty string means no version is stored.
func (w *CatalogWatcher) LatestVersion(ctx context.Context) (string, error) {
	w.mu.RLock()
	version := w.current
	stale := time.Since(w.lastRefresh) > w.refreshTTL
	w.mu.RUnlock()

	if w.db == nil || !stale {
		return version, nil
	}

	latest, err := w.fetch(ctx)
	if err != nil {
		return "", err
	}
	w.observe(latest)
	return latest, nil
}

// SetVersion records a version without notifying the callback
func (w *CatalogWatcher) SetVersion(version string) {
	w.mu.Lock()
	w.current = version
	w.lastRefresh = time.Now()
	w.mu.Unlock()
}

// observe records a version and notifies the callback when it is newer
func (w *CatalogWatcher) observe(version string) {
	w.mu.Lock()
	changed := version > w.current
	if changed {
		w.current = version
	}
	w.lastRefresh = time.Now()
	fn := w.onChange
	w.mu.Unlock()

	if changed && fn != nil {
		fn(version)
	}
}

func (w *CatalogWatcher) fetchLatestVersion(ctx context.Context) (string, error) {
	var version string
	err := w.db.QueryRowContext(ctx, `
		SELECT version
		FROM catalogs
		WHERE name = $1
		ORDER BY version DESC
		LIMIT 1
	`, w.name).Scan(&version)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to fetch latest catalog version: %w", err)
	}
	return version, nil
}

// handleNotifications applies notified versions and re-reads the table every refreshTTL
func (w *CatalogWatcher) handleNotifications(notifications <-chan *pq.Notification) {
	var refreshC <-chan time.Time
	if w.refreshTTL > 0 {
		ticker := time.NewTicker(w.refreshTTL)
		defer ticker.Stop()
		refreshC = ticker.C
	}
	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case n := <-notifications:
			if n == nil {
				// reconnected; notifications sent while down are lost
				w.refresh()
				continue
			}
			if name, version, ok := ParsePayload(n.Extra); ok && name == w.name {
				w.observe(version)
			}
		case <-refreshC:
			w.refresh()
		case <-ping.C:
			if w.listener == nil {
				continue
			}
			go func() {
				if err := w.listener.Ping(); err != nil {
					logging.Warn().Err(err).Str("catalog", w.name).Msg("catalog listener ping failed")
				}
			}()
		}
	}
}

func (w *CatalogWatcher) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	version, err := w.fetch(ctx)
	if err != nil {
		logging.Warn().Err(err).Str("catalog", w.name).Msg("catalog refresh failed")
		return
	}
	w.observe(version)
}

// ParsePayload splits a "name:version" notification payload
func ParsePayload(payload string) (name, version string, ok bool) {
	i := strings.LastIndex(payload, ":")
	if i <= 0 || i == len(payload)-1 {
		return "", "", false
	}
	return payload[:i], payload[i+1:], true
}
