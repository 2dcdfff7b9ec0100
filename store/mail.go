package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"flaremail/models"
	"flaremail/utils"
)

// NewMailID builds a globally unique mail id from the current timestamp
// and a random suffix.
func NewMailID() string {
	return fmt.Sprintf("%d_%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

// MailState is a point-in-time copy of a MailStore for rendering. The
// slices are private copies; callers may keep them across further store
// mutations.
type MailState struct {
	Sending      bool
	LoadingInbox bool
	Inbox        []models.Mail
	Sent         []models.Mail
	Selected     *models.Mail
	Error        string
}

// MailStore holds the inbox and sent collections of one identity, both
// ordered newest first, plus the selected-mail pointer and the in-flight
// operation flags. Remote failures never propagate to callers; they land
// in the shared error field and the progress flags are reset either way.
type MailStore struct {
	mu      sync.Mutex
	gateway MailGateway
	email   string
	key     string

	sending      bool
	loadingInbox bool
	inbox        []models.Mail
	sent         []models.Mail
	selected     *models.Mail
	err          string

	lastInboxHash string
	lastSentHash  string

	// Fetch responses apply in issue order: a response whose sequence is
	// lower than the last applied one is discarded, so a slow stale poll
	// cannot overwrite newer data.
	inboxSeq     uint64
	inboxApplied uint64
	sentSeq      uint64
	sentApplied  uint64

	onChange func(view string)
}

// NewMailStore creates an empty mailbox view for the given identity.
func NewMailStore(gw MailGateway, email string) *MailStore {
	return &MailStore{
		gateway: gw,
		email:   email,
		key:     utils.EmailToKey(email),
	}
}

// Email returns the identity this store belongs to.
func (s *MailStore) Email() string {
	return s.email
}

// SetOnChange registers a hook invoked (outside the lock) after a change
// has been applied to the named view, "inbox" or "sent".
func (s *MailStore) SetOnChange(fn func(view string)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// State returns a copy of the current mailbox state.
func (s *MailStore) State() MailState {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := MailState{
		Sending:      s.sending,
		LoadingInbox: s.loadingInbox,
		Inbox:        append([]models.Mail(nil), s.inbox...),
		Sent:         append([]models.Mail(nil), s.sent...),
		Error:        s.err,
	}
	if s.selected != nil {
		sel := *s.selected
		state.Selected = &sel
	}
	return state
}

// SendMail writes a fresh record to the recipient's inbox partition and the
// sender's sent partition. Both writes are always issued; if either fails
// the whole operation fails and local state stays unchanged. A write that
// already succeeded on the other partition is not rolled back, so a mail
// can end up visible to only one party.
func (s *MailStore) SendMail(ctx context.Context, fromEmail, toEmail, subject, html string) {
	s.mu.Lock()
	s.sending = true
	s.err = ""
	s.mu.Unlock()

	if subject == "" {
		subject = "(no subject)"
	}
	mail := models.Mail{
		ID:        NewMailID(),
		From:      fromEmail,
		To:        toEmail,
		Subject:   subject,
		HTML:      html,
		CreatedAt: time.Now().UnixMilli(),
		Read:      false,
	}

	fromKey := utils.EmailToKey(fromEmail)
	toKey := utils.EmailToKey(toEmail)

	errc := make(chan error, 2)
	go func() { errc <- s.gateway.WriteMail(ctx, toKey, models.PartitionInbox, mail) }()
	go func() { errc <- s.gateway.WriteMail(ctx, fromKey, models.PartitionSent, mail) }()

	var firstErr error
	for i := 0; i < 2; i++ {
		if err := <-errc; err != nil && firstErr == nil {
			firstErr = err
		}
	}

	s.mu.Lock()
	s.sending = false
	if firstErr != nil {
		s.err = "Failed to send mail"
		s.mu.Unlock()
		utils.Log.Warn("Send mail failed: %v", firstErr)
		return
	}
	s.sent = append([]models.Mail{mail}, s.sent...)
	s.lastSentHash = Fingerprint(s.sent)
	s.mu.Unlock()
	s.notify(models.PartitionSent)
}

// FetchInbox retrieves the inbox partition, newest first. The loading flag
// is only raised while the local list is empty, so background refreshes do
// not flicker the UI. A result whose fingerprint matches the previous fetch
// is discarded, which keeps the list untouched for unchanged data; an
// applied result also refreshes the selected mail by id so read-flag
// changes propagate into the open view.
func (s *MailStore) FetchInbox(ctx context.Context) {
	s.mu.Lock()
	if len(s.inbox) == 0 {
		s.loadingInbox = true
	}
	s.err = ""
	s.inboxSeq++
	seq := s.inboxSeq
	s.mu.Unlock()

	records, err := s.gateway.ReadAll(ctx, s.key, models.PartitionInbox)
	if err != nil {
		s.mu.Lock()
		s.loadingInbox = false
		s.err = "Failed to load inbox"
		s.mu.Unlock()
		return
	}
	list := sortByCreatedDesc(records)
	hash := Fingerprint(list)

	s.mu.Lock()
	s.loadingInbox = false
	if seq < s.inboxApplied {
		s.mu.Unlock()
		return
	}
	s.inboxApplied = seq
	if hash == s.lastInboxHash {
		s.mu.Unlock()
		return
	}
	s.lastInboxHash = hash
	s.inbox = list
	if s.selected != nil {
		for i := range list {
			if list[i].ID == s.selected.ID {
				sel := list[i]
				s.selected = &sel
				break
			}
		}
	}
	s.mu.Unlock()
	s.notify(models.PartitionInbox)
}

// FetchSent retrieves the sent partition, newest first. Like the inbox
// path, a result whose fingerprint matches the previous fetch is discarded,
// so unchanged data never raises a change event. Without that suppression
// every push-triggered refetch would notify and trigger the next refetch.
func (s *MailStore) FetchSent(ctx context.Context) {
	s.mu.Lock()
	s.sentSeq++
	seq := s.sentSeq
	s.mu.Unlock()

	records, err := s.gateway.ReadAll(ctx, s.key, models.PartitionSent)
	if err != nil {
		s.mu.Lock()
		s.err = "Failed to load sent data"
		s.mu.Unlock()
		return
	}
	list := sortByCreatedDesc(records)
	hash := Fingerprint(list)

	s.mu.Lock()
	if seq < s.sentApplied {
		s.mu.Unlock()
		return
	}
	s.sentApplied = seq
	if hash == s.lastSentHash {
		s.mu.Unlock()
		return
	}
	s.lastSentHash = hash
	s.sent = list
	s.mu.Unlock()
	s.notify(models.PartitionSent)
}

// MarkRead flags an inbox record as read remotely, then flips the local
// copy and the selection without a refetch. Read never reverses.
func (s *MailStore) MarkRead(ctx context.Context, mailID string) {
	err := s.gateway.Patch(ctx, s.key, models.PartitionInbox, mailID, map[string]interface{}{"read": true})
	if err != nil {
		s.mu.Lock()
		s.err = "Failed to mark mail as read"
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	for i := range s.inbox {
		if s.inbox[i].ID == mailID {
			s.inbox[i].Read = true
			break
		}
	}
	if s.selected != nil && s.selected.ID == mailID {
		s.selected.Read = true
	}
	s.mu.Unlock()
	s.notify(models.PartitionInbox)
}

// DeleteInboxMail removes an inbox record remotely and locally; the
// selection is cleared when it pointed at the removed record.
func (s *MailStore) DeleteInboxMail(ctx context.Context, mailID string) {
	if err := s.gateway.Delete(ctx, s.key, models.PartitionInbox, mailID); err != nil {
		s.mu.Lock()
		s.err = "Failed to delete inbox mail"
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	s.inbox = removeByID(s.inbox, mailID)
	if s.selected != nil && s.selected.ID == mailID {
		s.selected = nil
	}
	s.mu.Unlock()
	s.notify(models.PartitionInbox)
}

// DeleteSentMail removes a sent record remotely and locally.
func (s *MailStore) DeleteSentMail(ctx context.Context, mailID string) {
	if err := s.gateway.Delete(ctx, s.key, models.PartitionSent, mailID); err != nil {
		s.mu.Lock()
		s.err = "Failed to delete sent mail"
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	s.sent = removeByID(s.sent, mailID)
	if s.selected != nil && s.selected.ID == mailID {
		s.selected = nil
	}
	s.mu.Unlock()
	s.notify(models.PartitionSent)
}

// SelectMail marks a record as the one open in the view. Local only.
func (s *MailStore) SelectMail(mail models.Mail) {
	s.mu.Lock()
	sel := mail
	s.selected = &sel
	s.mu.Unlock()
}

// ClearSelected drops the selection, typically on navigation away.
func (s *MailStore) ClearSelected() {
	s.mu.Lock()
	s.selected = nil
	s.mu.Unlock()
}

// ClearError resets only the shared error field.
func (s *MailStore) ClearError() {
	s.mu.Lock()
	s.err = ""
	s.mu.Unlock()
}

func (s *MailStore) notify(view string) {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn(view)
	}
}

// sortByCreatedDesc materializes a partition map as a list ordered newest
// first. Ties break on id so equal timestamps keep a stable order across
// fetches and fingerprints stay comparable.
func sortByCreatedDesc(records map[string]models.Mail) []models.Mail {
	list := make([]models.Mail, 0, len(records))
	for _, m := range records {
		list = append(list, m)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt != list[j].CreatedAt {
			return list[i].CreatedAt > list[j].CreatedAt
		}
		return list[i].ID > list[j].ID
	})
	return list
}

func removeByID(list []models.Mail, id string) []models.Mail {
	out := list[:0]
	for _, m := range list {
		if m.ID != id {
			out = append(out, m)
		}
	}
	return out
}
