// Package feed implements the notification feed engine: it merges the push
// and in-app channels into one deduplicated, chronologically ordered feed,
// overlays the durable read-state annotation onto the remote-owned content,
// and keeps the unread counter consistent under optimistic, possibly-failing
// mutations.
//
// The remote source owns every field except Read; records are rebuilt fresh
// on each fetch and the read flag is carried across fetches only through the
// read-state store. Keeping the two ownerships in separate stores with a join
// step is what makes rollback unambiguous.
package feed

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/Shiftline/shiftline-notify/errors"
	"github.com/Shiftline/shiftline-notify/internal/feedsource"
	"github.com/Shiftline/shiftline-notify/logger"
	"github.com/Shiftline/shiftline-notify/store"
	"github.com/Shiftline/shiftline-notify/types"
)

// Engine owns one user's feed state. The mutex guards in-memory state only
// and is never held across a feed-source call or a store write; those are the
// operation's suspension points, and mutations issued while a fetch is in
// flight apply to the current snapshot immediately.
type Engine struct {
	userID    string
	source    FeedSource
	readStore store.ReadStateStore
	publisher types.CounterPublisher
	log       *zap.SugaredLogger
	metrics   *engineMetrics

	mu         sync.Mutex
	records    []*types.NotificationRecord
	byIdentity map[types.Identity]*types.NotificationRecord
	unread     int
	fetchedAt  time.Time

	// issuedSeq numbers fetches as they are issued; only the most recently
	// issued fetch may publish (last-issued-wins, not last-completed-wins).
	issuedSeq uint64
	// publishGen increments on every publish. A rollback captured against an
	// older generation is skipped: the republished snapshot already reflects
	// durable truth.
	publishGen uint64
	eventSeq   uint64
}

var _ FeedEngine = (*Engine)(nil)

// NewEngine creates an engine for one user. publisher may be nil when no
// counter consumers exist (e.g. in one-shot tooling).
func NewEngine(userID string, source FeedSource, readStore store.ReadStateStore, publisher types.CounterPublisher) *Engine {
	return &Engine{
		userID:     userID,
		source:     source,
		readStore:  readStore,
		publisher:  publisher,
		log:        logger.GetLogger().Named("FeedEngine").With("userID", userID),
		metrics:    newEngineMetrics(),
		byIdentity: make(map[types.Identity]*types.NotificationRecord),
	}
}

// channelResult carries one channel's fetch outcome.
type channelResult struct {
	channel types.Channel
	items   []feedsource.RemoteNotification
	err     error
}

// Fetch implements the fetch-and-merge operation. Both channels are
// required: if either fails, no partial feed is published and the previous
// snapshot stays intact. The returned view honors categoryFilter; the
// counter never does.
func (e *Engine) Fetch(ctx context.Context, categoryFilter string) (types.FeedView, error) {
	start := time.Now()

	e.mu.Lock()
	e.issuedSeq++
	seq := e.issuedSeq
	e.mu.Unlock()

	results := make(chan channelResult, 2)
	for _, ch := range []types.Channel{types.ChannelPush, types.ChannelInApp} {
		go func(ch types.Channel) {
			items, err := e.source.FetchChannel(ctx, ch, e.userID)
			results <- channelResult{channel: ch, items: items, err: err}
		}(ch)
	}

	byChannel := make(map[types.Channel][]feedsource.RemoteNotification, 2)
	var fetchErr error
	for i := 0; i < 2; i++ {
		res := <-results
		if res.err != nil && fetchErr == nil {
			fetchErr = res.err
		}
		byChannel[res.channel] = res.items
	}
	if fetchErr != nil {
		e.metrics.fetchesTotal.WithLabelValues("error").Inc()
		return types.FeedView{}, apperrors.NewFetchError(fetchErr, "one of the upstream channels failed")
	}

	merged := e.merge(byChannel)

	readSet, err := e.readStore.ReadIdentities(ctx, e.userID)
	if err != nil {
		e.metrics.fetchesTotal.WithLabelValues("error").Inc()
		return types.FeedView{}, apperrors.NewFetchError(err, "failed to load read state for overlay")
	}

	unread := 0
	for _, rec := range merged {
		if _, ok := readSet[rec.Identity()]; ok {
			rec.Read = true
		} else {
			unread++
		}
	}

	e.mu.Lock()
	if seq != e.issuedSeq {
		// A newer fetch was issued while this one was in flight. Its result
		// must not overwrite newer state; hand back whatever is published.
		e.mu.Unlock()
		e.metrics.supersededFetches.Inc()
		e.metrics.fetchesTotal.WithLabelValues("superseded").Inc()
		e.log.Debugw("Discarding superseded fetch", "seq", seq)
		return e.Snapshot(categoryFilter), nil
	}

	e.records = merged
	e.byIdentity = make(map[types.Identity]*types.NotificationRecord, len(merged))
	for _, rec := range merged {
		e.byIdentity[rec.Identity()] = rec
	}
	e.unread = unread
	e.fetchedAt = time.Now().UTC()
	e.publishGen++
	e.announceCounterLocked()
	view := e.viewLocked(categoryFilter)
	e.mu.Unlock()

	e.metrics.fetchesTotal.WithLabelValues("success").Inc()
	e.metrics.fetchDuration.Observe(time.Since(start).Seconds())
	e.log.Debugw("Published feed snapshot",
		"seq", seq,
		"records", len(merged),
		"unread", unread,
		"duration", time.Since(start))

	return view, nil
}

// merge builds the deduplicated, sorted record set from both channel
// responses. The channels are independent append-only logs, so a repeated
// identity within one fetch is a backend defect; the later-seen record wins
// and the event is logged, never surfaced.
func (e *Engine) merge(byChannel map[types.Channel][]feedsource.RemoteNotification) []*types.NotificationRecord {
	keyed := make(map[types.Identity]*types.NotificationRecord)
	for _, ch := range []types.Channel{types.ChannelPush, types.ChannelInApp} {
		for _, item := range byChannel[ch] {
			rec := &types.NotificationRecord{
				Channel:           ch,
				RemoteID:          item.RemoteID,
				Title:             item.Title,
				Message:           item.Message,
				Category:          item.Category,
				Priority:          types.NormalizePriority(item.Priority),
				NavigationPayload: item.Data,
				CreatedAt:         item.CreatedAt,
			}
			id := rec.Identity()
			if _, dup := keyed[id]; dup {
				e.metrics.duplicateIdentities.Inc()
				e.log.Warnw("Duplicate identity observed within one fetch, later record wins",
					"identity", id.String())
			}
			keyed[id] = rec
		}
	}

	merged := make([]*types.NotificationRecord, 0, len(keyed))
	for _, rec := range keyed {
		merged = append(merged, rec)
	}
	sort.Slice(merged, func(i, j int) bool {
		if !merged[i].CreatedAt.Equal(merged[j].CreatedAt) {
			return merged[i].CreatedAt.After(merged[j].CreatedAt)
		}
		return merged[i].Identity().Less(merged[j].Identity())
	})
	return merged
}

// Snapshot returns the currently published feed as a copy. Filtering is a
// pure view: it narrows the returned records and nothing else.
func (e *Engine) Snapshot(categoryFilter string) types.FeedView {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewLocked(categoryFilter)
}

func (e *Engine) viewLocked(categoryFilter string) types.FeedView {
	notifications := make([]types.NotificationRecord, 0, len(e.records))
	for _, rec := range e.records {
		if categoryFilter != "" && rec.Category != categoryFilter {
			continue
		}
		notifications = append(notifications, *rec)
	}
	return types.FeedView{
		Notifications: notifications,
		UnreadCount:   e.unread,
		Category:      categoryFilter,
		FetchedAt:     e.fetchedAt,
	}
}

// UnreadCount returns the current unread counter over the unfiltered feed.
func (e *Engine) UnreadCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.unread
}

// MarkRead optimistically marks one notification read, then persists the
// mark. The in-memory update is visible before durability is confirmed; if
// the write fails, exactly that record and one counter unit are reverted so
// unrelated concurrent mutations keep their progress.
func (e *Engine) MarkRead(ctx context.Context, id types.Identity) error {
	e.mu.Lock()
	rec, ok := e.byIdentity[id]
	if !ok {
		e.mu.Unlock()
		e.metrics.markReadTotal.WithLabelValues("one", "not_found").Inc()
		return apperrors.NotFound("notification", id.String())
	}
	if rec.Read {
		// Already read: idempotent no-op, never a double decrement.
		e.mu.Unlock()
		e.metrics.markReadTotal.WithLabelValues("one", "noop").Inc()
		return nil
	}
	rec.Read = true
	e.unread--
	gen := e.publishGen
	e.announceCounterLocked()
	e.mu.Unlock()

	if err := e.readStore.MarkRead(ctx, e.userID, id); err != nil {
		e.rollbackOne(rec, gen)
		e.metrics.markReadTotal.WithLabelValues("one", "error").Inc()
		return apperrors.NewPersistenceError(err, "failed to persist read mark for "+id.String())
	}

	e.metrics.markReadTotal.WithLabelValues("one", "success").Inc()
	return nil
}

// rollbackOne reverts a single failed optimistic mark. It touches only the
// one record and one counter unit, and only while the snapshot it mutated is
// still the published one; after a republish the overlay already reflects
// durable truth.
func (e *Engine) rollbackOne(rec *types.NotificationRecord, gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.publishGen != gen {
		e.log.Debugw("Skipping rollback, snapshot republished since mutation",
			"identity", rec.Identity().String())
		return
	}
	rec.Read = false
	e.unread++
	e.metrics.rollbacksTotal.WithLabelValues("one").Inc()
	e.announceCounterLocked()
}

// MarkAllRead marks every unread notification in the unfiltered feed read
// and persists the marks as one all-or-nothing batch. Bulk operations always
// act on the full feed so a filtered view can never leave invisible items
// permanently unread.
func (e *Engine) MarkAllRead(ctx context.Context) (int, error) {
	e.mu.Lock()
	touched := make([]*types.NotificationRecord, 0, e.unread)
	for _, rec := range e.records {
		if !rec.Read {
			touched = append(touched, rec)
		}
	}
	if len(touched) == 0 {
		e.mu.Unlock()
		e.metrics.markReadTotal.WithLabelValues("all", "noop").Inc()
		return 0, nil
	}

	ids := make([]types.Identity, len(touched))
	for i, rec := range touched {
		ids[i] = rec.Identity()
		rec.Read = true
	}
	// The pre-call counter is cached, not recomputed on rollback: other
	// records' state must be unaffected by this operation either way.
	prevUnread := e.unread
	e.unread = 0
	gen := e.publishGen
	e.announceCounterLocked()
	e.mu.Unlock()

	if err := e.readStore.MarkReadBatch(ctx, e.userID, ids); err != nil {
		e.rollbackAll(touched, prevUnread, gen)
		e.metrics.markReadTotal.WithLabelValues("all", "error").Inc()
		return 0, apperrors.NewPersistenceError(err, "failed to persist batch read marks")
	}

	e.metrics.markReadTotal.WithLabelValues("all", "success").Inc()
	return len(touched), nil
}

// rollbackAll reverts a failed batch mark: exactly the touched records and
// the cached pre-call counter.
func (e *Engine) rollbackAll(touched []*types.NotificationRecord, prevUnread int, gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.publishGen != gen {
		e.log.Debug("Skipping batch rollback, snapshot republished since mutation")
		return
	}
	for _, rec := range touched {
		rec.Read = false
	}
	e.unread = prevUnread
	e.metrics.rollbacksTotal.WithLabelValues("all").Inc()
	e.announceCounterLocked()
}

// announceCounterLocked publishes the current counter value. Callers hold
// e.mu, so the publisher must not block; the broadcaster's buffered
// drop-and-warn delivery guarantees that.
func (e *Engine) announceCounterLocked() {
	e.metrics.unreadGauge.WithLabelValues(e.userID).Set(float64(e.unread))
	if e.publisher == nil {
		return
	}
	e.eventSeq++
	e.publisher.Publish(types.CounterEvent{
		ID:        uuid.New().String(),
		Type:      types.EventTypeUnreadCountChanged,
		UserID:    e.userID,
		Unread:    e.unread,
		Seq:       e.eventSeq,
		Timestamp: time.Now().UTC(),
	})
}
