// Package notifications delivers job lifecycle events to observers.
//
// The queue engine talks to a single Notifier. EventHub keeps a bounded log of
// events that API clients long-poll, Ntfy pushes finished and failed downloads
// to an ntfy topic when one is configured, and Multi fans events out to both.
package notifications
