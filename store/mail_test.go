package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"flaremail/models"
	"flaremail/utils"
)

type fakeGateway struct {
	mu   sync.Mutex
	data map[string]map[string]models.Mail // "key/partition" -> id -> mail

	failWriteTo string // "key/partition" that rejects writes
	failReads   bool
	failPatch   bool
	failDelete  bool

	patches []string // "key/partition/id"
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{data: make(map[string]map[string]models.Mail)}
}

func (g *fakeGateway) partition(key, partition string) map[string]models.Mail {
	pk := key + "/" + partition
	if g.data[pk] == nil {
		g.data[pk] = make(map[string]models.Mail)
	}
	return g.data[pk]
}

func (g *fakeGateway) put(key, partition string, mail models.Mail) {
	g.mu.Lock()
	g.partition(key, partition)[mail.ID] = mail
	g.mu.Unlock()
}

func (g *fakeGateway) WriteMail(ctx context.Context, key, partition string, mail models.Mail) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failWriteTo == key+"/"+partition {
		return errors.New("write rejected")
	}
	g.partition(key, partition)[mail.ID] = mail
	return nil
}

func (g *fakeGateway) ReadAll(ctx context.Context, key, partition string) (map[string]models.Mail, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failReads {
		return nil, errors.New("read rejected")
	}
	out := make(map[string]models.Mail)
	for id, m := range g.partition(key, partition) {
		out[id] = m
	}
	return out, nil
}

func (g *fakeGateway) Patch(ctx context.Context, key, partition, id string, fields map[string]interface{}) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failPatch {
		return errors.New("patch rejected")
	}
	g.patches = append(g.patches, fmt.Sprintf("%s/%s/%s", key, partition, id))
	m, ok := g.partition(key, partition)[id]
	if !ok {
		return errors.New("no such record")
	}
	if read, ok := fields["read"].(bool); ok {
		m.Read = read
	}
	g.partition(key, partition)[id] = m
	return nil
}

func (g *fakeGateway) Delete(ctx context.Context, key, partition, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failDelete {
		return errors.New("delete rejected")
	}
	delete(g.partition(key, partition), id)
	return nil
}

const (
	aliceEmail = "alice@example.com"
	bobEmail   = "bob@example.com"
)

func testMailStore(g *fakeGateway) *MailStore {
	return NewMailStore(g, aliceEmail)
}

func TestSendMailWritesBothPartitions(t *testing.T) {
	g := newFakeGateway()
	s := testMailStore(g)

	s.SendMail(context.Background(), aliceEmail, bobEmail, "hello", "<p>hi</p>")

	state := s.State()
	if state.Error != "" {
		t.Fatalf("unexpected error %q", state.Error)
	}
	if state.Sending {
		t.Fatalf("sending flag not reset")
	}
	if len(state.Sent) != 1 {
		t.Fatalf("sent mail not added locally, got %d", len(state.Sent))
	}

	sent := state.Sent[0]
	if sent.From != aliceEmail || sent.To != bobEmail || sent.Subject != "hello" {
		t.Fatalf("wrong mail recorded: %+v", sent)
	}
	if sent.Read {
		t.Fatalf("fresh mail must start unread")
	}

	inboxSide := g.partition(utils.EmailToKey(bobEmail), models.PartitionInbox)
	sentSide := g.partition(utils.EmailToKey(aliceEmail), models.PartitionSent)
	if len(inboxSide) != 1 || len(sentSide) != 1 {
		t.Fatalf("expected one record on each side, got %d and %d", len(inboxSide), len(sentSide))
	}
	if _, ok := inboxSide[sent.ID]; !ok {
		t.Fatalf("recipient copy keyed by a different id")
	}
}

func TestSendMailDefaultSubject(t *testing.T) {
	g := newFakeGateway()
	s := testMailStore(g)

	s.SendMail(context.Background(), aliceEmail, bobEmail, "", "<p>hi</p>")

	if got := s.State().Sent[0].Subject; got != "(no subject)" {
		t.Fatalf("empty subject not defaulted, got %q", got)
	}
}

func TestSendMailFailure(t *testing.T) {
	g := newFakeGateway()
	g.failWriteTo = utils.EmailToKey(bobEmail) + "/" + models.PartitionInbox
	s := testMailStore(g)

	s.SendMail(context.Background(), aliceEmail, bobEmail, "hello", "<p>hi</p>")

	state := s.State()
	if state.Error != "Failed to send mail" {
		t.Fatalf("expected send error, got %q", state.Error)
	}
	if state.Sending {
		t.Fatalf("sending flag not reset after failure")
	}
	if len(state.Sent) != 0 {
		t.Fatalf("failed send must not touch local state")
	}
}

func TestFetchInboxOrdersNewestFirst(t *testing.T) {
	g := newFakeGateway()
	key := utils.EmailToKey(aliceEmail)
	g.put(key, models.PartitionInbox, mail("m1", 100, false))
	g.put(key, models.PartitionInbox, mail("m3", 300, false))
	g.put(key, models.PartitionInbox, mail("m2", 200, false))
	s := testMailStore(g)

	s.FetchInbox(context.Background())

	state := s.State()
	if state.Error != "" {
		t.Fatalf("unexpected error %q", state.Error)
	}
	if state.LoadingInbox {
		t.Fatalf("loading flag not reset")
	}
	var ids []string
	for _, m := range state.Inbox {
		ids = append(ids, m.ID)
	}
	if got := strings.Join(ids, ","); got != "m3,m2,m1" {
		t.Fatalf("inbox not ordered newest first: %s", got)
	}
}

func TestFetchInboxUnchangedDataIsDiscarded(t *testing.T) {
	g := newFakeGateway()
	key := utils.EmailToKey(aliceEmail)
	g.put(key, models.PartitionInbox, mail("m1", 100, false))
	s := testMailStore(g)

	var notifications int
	s.SetOnChange(func(view string) {
		if view == models.PartitionInbox {
			notifications++
		}
	})

	s.FetchInbox(context.Background())
	s.FetchInbox(context.Background())
	s.FetchInbox(context.Background())

	if notifications != 1 {
		t.Fatalf("unchanged fetches should not notify, got %d notifications", notifications)
	}
	if len(s.State().Inbox) != 1 {
		t.Fatalf("inbox lost data across unchanged fetches")
	}
}

func TestFetchInboxDetectsReadFlagChange(t *testing.T) {
	g := newFakeGateway()
	key := utils.EmailToKey(aliceEmail)
	g.put(key, models.PartitionInbox, mail("m1", 100, false))
	s := testMailStore(g)

	s.FetchInbox(context.Background())
	g.put(key, models.PartitionInbox, mail("m1", 100, true))
	s.FetchInbox(context.Background())

	if !s.State().Inbox[0].Read {
		t.Fatalf("read flag change was treated as unchanged data")
	}
}

func TestFetchInboxRefreshesSelection(t *testing.T) {
	g := newFakeGateway()
	key := utils.EmailToKey(aliceEmail)
	g.put(key, models.PartitionInbox, mail("m1", 100, false))
	s := testMailStore(g)

	s.FetchInbox(context.Background())
	s.SelectMail(s.State().Inbox[0])

	g.put(key, models.PartitionInbox, mail("m1", 100, true))
	s.FetchInbox(context.Background())

	sel := s.State().Selected
	if sel == nil || !sel.Read {
		t.Fatalf("selection not refreshed from fetched data: %+v", sel)
	}
}

func TestFetchInboxLoadingOnlyWhenEmpty(t *testing.T) {
	g := newFakeGateway()
	key := utils.EmailToKey(aliceEmail)
	g.put(key, models.PartitionInbox, mail("m1", 100, false))
	s := testMailStore(g)

	s.FetchInbox(context.Background())

	// With data present a failing refresh must not flip the loading flag
	// back on.
	g.failReads = true
	s.FetchInbox(context.Background())

	state := s.State()
	if state.LoadingInbox {
		t.Fatalf("background refresh raised the loading flag")
	}
	if state.Error != "Failed to load inbox" {
		t.Fatalf("expected inbox load error, got %q", state.Error)
	}
	if len(state.Inbox) != 1 {
		t.Fatalf("failed refresh discarded existing data")
	}
}

func TestFetchSent(t *testing.T) {
	g := newFakeGateway()
	key := utils.EmailToKey(aliceEmail)
	g.put(key, models.PartitionSent, mail("s1", 100, false))
	g.put(key, models.PartitionSent, mail("s2", 200, false))
	s := testMailStore(g)

	s.FetchSent(context.Background())

	state := s.State()
	if len(state.Sent) != 2 || state.Sent[0].ID != "s2" {
		t.Fatalf("sent not fetched newest first: %+v", state.Sent)
	}

	g.failReads = true
	s.FetchSent(context.Background())
	if got := s.State().Error; got != "Failed to load sent data" {
		t.Fatalf("expected sent load error, got %q", got)
	}
}

func TestFetchSentUnchangedDataDoesNotNotify(t *testing.T) {
	g := newFakeGateway()
	key := utils.EmailToKey(aliceEmail)
	g.put(key, models.PartitionSent, mail("s1", 100, false))
	s := testMailStore(g)

	var notifications int
	s.SetOnChange(func(view string) {
		if view == models.PartitionSent {
			notifications++
		}
	})

	s.FetchSent(context.Background())
	s.FetchSent(context.Background())
	s.FetchSent(context.Background())

	if notifications != 1 {
		t.Fatalf("unchanged sent fetches should not notify, got %d notifications", notifications)
	}

	g.put(key, models.PartitionSent, mail("s2", 200, false))
	s.FetchSent(context.Background())
	if notifications != 2 {
		t.Fatalf("changed sent data should notify again, got %d notifications", notifications)
	}
}

func TestFetchSentAfterSendDoesNotReNotify(t *testing.T) {
	g := newFakeGateway()
	s := testMailStore(g)

	var notifications int
	s.SetOnChange(func(view string) {
		if view == models.PartitionSent {
			notifications++
		}
	})

	s.SendMail(context.Background(), aliceEmail, bobEmail, "hi", "<p>hi</p>")
	if notifications != 1 {
		t.Fatalf("send should notify once, got %d", notifications)
	}

	// The fetch returns exactly what the optimistic prepend already shows.
	s.FetchSent(context.Background())
	if notifications != 1 {
		t.Fatalf("fetch matching the optimistic state re-notified, got %d notifications", notifications)
	}
}

// reorderedGateway delays the first ReadAll until the test releases it, so
// a later fetch can complete and apply before an earlier one returns.
type reorderedGateway struct {
	mu      sync.Mutex
	calls   int
	entered chan struct{} // closed once the first call is in flight
	resume  chan struct{} // closed when the first call may return
	stale   map[string]models.Mail
	fresh   map[string]models.Mail
}

func newReorderedGateway(stale, fresh map[string]models.Mail) *reorderedGateway {
	return &reorderedGateway{
		entered: make(chan struct{}),
		resume:  make(chan struct{}),
		stale:   stale,
		fresh:   fresh,
	}
}

func (g *reorderedGateway) ReadAll(ctx context.Context, key, partition string) (map[string]models.Mail, error) {
	g.mu.Lock()
	g.calls++
	n := g.calls
	g.mu.Unlock()

	if n == 1 {
		close(g.entered)
		<-g.resume
		return g.stale, nil
	}
	return g.fresh, nil
}

func (g *reorderedGateway) WriteMail(ctx context.Context, key, partition string, mail models.Mail) error {
	return nil
}

func (g *reorderedGateway) Patch(ctx context.Context, key, partition, id string, fields map[string]interface{}) error {
	return nil
}

func (g *reorderedGateway) Delete(ctx context.Context, key, partition, id string) error {
	return nil
}

func TestStaleInboxResponseDiscarded(t *testing.T) {
	g := newReorderedGateway(
		map[string]models.Mail{"m1": mail("m1", 100, false)},
		map[string]models.Mail{"m1": mail("m1", 100, false), "m2": mail("m2", 200, false)},
	)
	s := NewMailStore(g, aliceEmail)

	done := make(chan struct{})
	go func() {
		s.FetchInbox(context.Background())
		close(done)
	}()
	<-g.entered

	// The second fetch completes and applies while the first is in flight.
	s.FetchInbox(context.Background())
	close(g.resume)
	<-done

	state := s.State()
	if len(state.Inbox) != 2 || state.Inbox[0].ID != "m2" {
		t.Fatalf("stale response overwrote newer inbox data: %+v", state.Inbox)
	}
}

func TestStaleSentResponseDiscarded(t *testing.T) {
	g := newReorderedGateway(
		map[string]models.Mail{"s1": mail("s1", 100, false)},
		map[string]models.Mail{"s1": mail("s1", 100, false), "s2": mail("s2", 200, false)},
	)
	s := NewMailStore(g, aliceEmail)

	done := make(chan struct{})
	go func() {
		s.FetchSent(context.Background())
		close(done)
	}()
	<-g.entered

	s.FetchSent(context.Background())
	close(g.resume)
	<-done

	state := s.State()
	if len(state.Sent) != 2 || state.Sent[0].ID != "s2" {
		t.Fatalf("stale response overwrote newer sent data: %+v", state.Sent)
	}
}

func TestMarkRead(t *testing.T) {
	g := newFakeGateway()
	key := utils.EmailToKey(aliceEmail)
	g.put(key, models.PartitionInbox, mail("m1", 100, false))
	s := testMailStore(g)

	s.FetchInbox(context.Background())
	s.SelectMail(s.State().Inbox[0])
	s.MarkRead(context.Background(), "m1")

	state := s.State()
	if !state.Inbox[0].Read {
		t.Fatalf("local copy not flipped")
	}
	if state.Selected == nil || !state.Selected.Read {
		t.Fatalf("selection not flipped")
	}
	if len(g.patches) != 1 || g.patches[0] != key+"/inbox/m1" {
		t.Fatalf("unexpected patches %v", g.patches)
	}
}

func TestMarkReadFailure(t *testing.T) {
	g := newFakeGateway()
	key := utils.EmailToKey(aliceEmail)
	g.put(key, models.PartitionInbox, mail("m1", 100, false))
	s := testMailStore(g)

	s.FetchInbox(context.Background())
	g.failPatch = true
	s.MarkRead(context.Background(), "m1")

	state := s.State()
	if state.Error != "Failed to mark mail as read" {
		t.Fatalf("expected mark-read error, got %q", state.Error)
	}
	if state.Inbox[0].Read {
		t.Fatalf("failed patch must not flip the local flag")
	}
}

func TestDeleteInboxMail(t *testing.T) {
	g := newFakeGateway()
	key := utils.EmailToKey(aliceEmail)
	g.put(key, models.PartitionInbox, mail("m1", 100, false))
	g.put(key, models.PartitionInbox, mail("m2", 200, false))
	s := testMailStore(g)

	s.FetchInbox(context.Background())
	s.SelectMail(s.State().Inbox[1]) // m1
	s.DeleteInboxMail(context.Background(), "m1")

	state := s.State()
	if len(state.Inbox) != 1 || state.Inbox[0].ID != "m2" {
		t.Fatalf("mail not removed locally: %+v", state.Inbox)
	}
	if state.Selected != nil {
		t.Fatalf("selection pointing at deleted mail not cleared")
	}
	if len(g.partition(key, models.PartitionInbox)) != 1 {
		t.Fatalf("mail not removed remotely")
	}
}

func TestDeleteFailures(t *testing.T) {
	g := newFakeGateway()
	key := utils.EmailToKey(aliceEmail)
	g.put(key, models.PartitionInbox, mail("m1", 100, false))
	g.put(key, models.PartitionSent, mail("s1", 100, false))
	s := testMailStore(g)

	s.FetchInbox(context.Background())
	s.FetchSent(context.Background())
	g.failDelete = true

	s.DeleteInboxMail(context.Background(), "m1")
	if got := s.State().Error; got != "Failed to delete inbox mail" {
		t.Fatalf("expected inbox delete error, got %q", got)
	}
	if len(s.State().Inbox) != 1 {
		t.Fatalf("failed delete removed the local inbox copy")
	}

	s.DeleteSentMail(context.Background(), "s1")
	if got := s.State().Error; got != "Failed to delete sent mail" {
		t.Fatalf("expected sent delete error, got %q", got)
	}
	if len(s.State().Sent) != 1 {
		t.Fatalf("failed delete removed the local sent copy")
	}
}

func TestSelectAndClear(t *testing.T) {
	g := newFakeGateway()
	s := testMailStore(g)

	m := mail("m1", 100, false)
	s.SelectMail(m)
	if sel := s.State().Selected; sel == nil || sel.ID != "m1" {
		t.Fatalf("selection not recorded")
	}

	s.ClearSelected()
	if s.State().Selected != nil {
		t.Fatalf("selection not cleared")
	}
}

func TestStateReturnsCopies(t *testing.T) {
	g := newFakeGateway()
	key := utils.EmailToKey(aliceEmail)
	g.put(key, models.PartitionInbox, mail("m1", 100, false))
	s := testMailStore(g)

	s.FetchInbox(context.Background())
	state := s.State()
	state.Inbox[0].Subject = "mutated"

	if s.State().Inbox[0].Subject == "mutated" {
		t.Fatalf("State leaked the internal slice")
	}
}
