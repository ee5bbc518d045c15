package service

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/wrprafra/newsletter-project/internal/ai"
	"github.com/wrprafra/newsletter-project/internal/domain"
	"github.com/wrprafra/newsletter-project/internal/gmail"
	"github.com/wrprafra/newsletter-project/internal/images"
	"github.com/wrprafra/newsletter-project/internal/queue"
	"github.com/wrprafra/newsletter-project/internal/repository"
)

type fakeMailbox struct {
	messages map[string]*gmailapi.Message
	err      error
	gets     int
}

func (f *fakeMailbox) Get(ctx context.Context, id string) (*gmailapi.Message, error) {
	f.gets++
	if f.err != nil {
		return nil, f.err
	}
	msg, ok := f.messages[id]
	if !ok {
		return nil, gmail.ErrMessageNotFound
	}
	return msg, nil
}

type fakeEnricher struct {
	summary ai.Summary
	keyword string
	class   ai.Classification
}

func (f *fakeEnricher) Summarize(ctx context.Context, content string) ai.Summary {
	if f.summary.Title == "" && !f.summary.Placeholder {
		return ai.Summary{Title: "A Title", SummaryMarkdown: "Some **summary**."}
	}
	return f.summary
}

func (f *fakeEnricher) Keyword(ctx context.Context, content string) string {
	if f.keyword == "" {
		return "mountain lake"
	}
	return f.keyword
}

func (f *fakeEnricher) Classify(ctx context.Context, content string) ai.Classification {
	if f.class.TypeTag == "" {
		return ai.Classification{TypeTag: "newsletter", TopicTag: "technology"}
	}
	return f.class
}

type fakeResolver struct {
	url    string
	accent string
}

func (f *fakeResolver) Resolve(ctx context.Context, keyword string) (string, string) {
	return f.url, f.accent
}

type recordingPublisher struct {
	updates  []queue.ItemUpdate
	progress int
	failures int
}

func (p *recordingPublisher) PublishUpdate(ctx context.Context, jobID string, update queue.ItemUpdate) error {
	p.updates = append(p.updates, update)
	return nil
}

func (p *recordingPublisher) PublishProgress(ctx context.Context, jobID string, failed bool) error {
	p.progress++
	if failed {
		p.failures++
	}
	return nil
}

func rawPart(mime, content string) *gmailapi.MessagePart {
	return &gmailapi.MessagePart{
		MimeType: mime,
		Body: &gmailapi.MessagePartBody{
			Data: base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte(content)),
		},
	}
}

func testMessage(id, threadID string, labels ...string) *gmailapi.Message {
	return &gmailapi.Message{
		Id:           id,
		ThreadId:     threadID,
		LabelIds:     labels,
		InternalDate: time.Date(2026, 4, 10, 8, 30, 0, 0, time.UTC).UnixMilli(),
		Payload: &gmailapi.MessagePart{
			MimeType: "multipart/alternative",
			Headers: []*gmailapi.MessagePartHeader{
				{Name: "From", Value: `"Tech Weekly" <digest@mail.techweekly.com>`},
				{Name: "Subject", Value: "This week in tech"},
				{Name: "Message-ID", Value: "<abc@mail.techweekly.com>"},
			},
			Parts: []*gmailapi.MessagePart{
				rawPart("text/html", "<p>Big news this week.</p>"),
			},
		},
	}
}

func newTestWorker(t *testing.T, repo *repository.NewsletterRepository, overrides *repository.OverrideRepository, mailbox Mailbox, resolver ImageResolver, pub ProgressPublisher) *Worker {
	t.Helper()
	factory := func(ctx context.Context, userID string) (Mailbox, error) { return mailbox, nil }
	return NewWorker(repo, overrides, nil, factory, &fakeEnricher{}, resolver, pub, WorkerConfig{})
}

func TestProcessHappyPath(t *testing.T) {
	db := testDB(t)
	repo := repository.NewNewsletterRepository(db)
	overrides := repository.NewOverrideRepository(db)
	ctx := context.Background()

	if err := repo.CreateStub(ctx, "m1", "u1", ""); err != nil {
		t.Fatalf("CreateStub: %v", err)
	}

	mailbox := &fakeMailbox{messages: map[string]*gmailapi.Message{"m1": testMessage("m1", "t1")}}
	pub := &recordingPublisher{}
	w := newTestWorker(t, repo, overrides, mailbox, &fakeResolver{url: "https://cdn.test/img.jpg", accent: "#112233"}, pub)

	w.Process(ctx, domain.QueueEntry{EmailID: "m1", UserID: "u1", JobID: "job-1"})

	rec, err := repo.GetByID(ctx, "m1", "u1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !rec.Enriched || !rec.IsComplete || rec.IsDeleted {
		t.Errorf("flags = enriched %v complete %v deleted %v", rec.Enriched, rec.IsComplete, rec.IsDeleted)
	}
	if rec.SenderName != "Tech Weekly" || rec.SenderEmail != "digest@mail.techweekly.com" {
		t.Errorf("sender = %q <%s>", rec.SenderName, rec.SenderEmail)
	}
	if rec.SourceDomain != "techweekly.com" {
		t.Errorf("source domain = %q", rec.SourceDomain)
	}
	if rec.AITitle != "A Title" || rec.ImageURL != "https://cdn.test/img.jpg" || rec.AccentHex != "#112233" {
		t.Errorf("enrichment = %q %q %q", rec.AITitle, rec.ImageURL, rec.AccentHex)
	}
	if rec.TypeTag != "newsletter" || rec.TopicTag != "technology" {
		t.Errorf("tags = %q %q", rec.TypeTag, rec.TopicTag)
	}
	if rec.ThreadID != "t1" || rec.RFC822MessageID != "<abc@mail.techweekly.com>" {
		t.Errorf("thread %q rfc822 %q", rec.ThreadID, rec.RFC822MessageID)
	}
	if rec.ReceivedDate == nil {
		t.Error("received date missing")
	}
	if len(pub.updates) != 1 || pub.updates[0].Failed {
		t.Errorf("updates = %+v", pub.updates)
	}
	if pub.progress != 1 || pub.failures != 0 {
		t.Errorf("progress = %d failures = %d, want 1 and 0", pub.progress, pub.failures)
	}
}

func TestProcessSpamMarksDeleted(t *testing.T) {
	db := testDB(t)
	repo := repository.NewNewsletterRepository(db)
	overrides := repository.NewOverrideRepository(db)
	ctx := context.Background()

	repo.CreateStub(ctx, "m1", "u1", "")
	mailbox := &fakeMailbox{messages: map[string]*gmailapi.Message{"m1": testMessage("m1", "t1", "SPAM")}}
	w := newTestWorker(t, repo, overrides, mailbox, &fakeResolver{}, nil)

	w.Process(ctx, domain.QueueEntry{EmailID: "m1", UserID: "u1"})

	rec, _ := repo.GetByID(ctx, "m1", "u1")
	if !rec.Enriched || !rec.IsDeleted {
		t.Errorf("flags = enriched %v deleted %v, want both true", rec.Enriched, rec.IsDeleted)
	}
	if rec.IsComplete {
		t.Error("spam must not be complete")
	}
}

func TestProcessThreadDuplicateHidden(t *testing.T) {
	db := testDB(t)
	repo := repository.NewNewsletterRepository(db)
	overrides := repository.NewOverrideRepository(db)
	ctx := context.Background()

	// An earlier email in the same thread is already stored.
	repo.CreateStub(ctx, "m0", "u1", "t-shared")
	repo.CreateStub(ctx, "m1", "u1", "")

	mailbox := &fakeMailbox{messages: map[string]*gmailapi.Message{"m1": testMessage("m1", "t-shared")}}
	w := newTestWorker(t, repo, overrides, mailbox, &fakeResolver{url: "https://cdn.test/x.jpg"}, nil)

	w.Process(ctx, domain.QueueEntry{EmailID: "m1", UserID: "u1"})

	rec, _ := repo.GetByID(ctx, "m1", "u1")
	if !rec.Enriched {
		t.Error("duplicate must still be marked enriched")
	}
	if rec.IsComplete {
		t.Error("duplicate must stay invisible")
	}
	if rec.AITitle != "" {
		t.Error("duplicate must not be enriched with AI output")
	}
}

func TestProcessAlreadyEnrichedSkipsFetch(t *testing.T) {
	db := testDB(t)
	repo := repository.NewNewsletterRepository(db)
	overrides := repository.NewOverrideRepository(db)
	ctx := context.Background()

	repo.CreateStub(ctx, "m1", "u1", "")
	repo.UpdateFields(ctx, "m1", "u1", map[string]interface{}{"enriched": true})

	mailbox := &fakeMailbox{messages: map[string]*gmailapi.Message{"m1": testMessage("m1", "t1")}}
	w := newTestWorker(t, repo, overrides, mailbox, &fakeResolver{}, nil)

	w.Process(ctx, domain.QueueEntry{EmailID: "m1", UserID: "u1"})

	if mailbox.gets != 0 {
		t.Errorf("gets = %d, replay must not refetch", mailbox.gets)
	}
}

func TestProcessMissingMessageMarksDeleted(t *testing.T) {
	db := testDB(t)
	repo := repository.NewNewsletterRepository(db)
	overrides := repository.NewOverrideRepository(db)
	ctx := context.Background()

	repo.CreateStub(ctx, "gone", "u1", "")
	mailbox := &fakeMailbox{messages: map[string]*gmailapi.Message{}}
	w := newTestWorker(t, repo, overrides, mailbox, &fakeResolver{}, nil)

	w.Process(ctx, domain.QueueEntry{EmailID: "gone", UserID: "u1"})

	rec, _ := repo.GetByID(ctx, "gone", "u1")
	if !rec.Enriched || !rec.IsDeleted {
		t.Errorf("flags = enriched %v deleted %v, want both true", rec.Enriched, rec.IsDeleted)
	}
}

func TestProcessNoRecordDrops(t *testing.T) {
	db := testDB(t)
	repo := repository.NewNewsletterRepository(db)
	overrides := repository.NewOverrideRepository(db)
	mailbox := &fakeMailbox{messages: map[string]*gmailapi.Message{}}
	pub := &recordingPublisher{}
	w := newTestWorker(t, repo, overrides, mailbox, &fakeResolver{}, pub)

	w.Process(context.Background(), domain.QueueEntry{EmailID: "ghost", UserID: "u1", JobID: "job-1"})

	if mailbox.gets != 0 {
		t.Error("missing record must not reach the mailbox")
	}
	if pub.progress != 1 {
		t.Error("progress must tick even for dropped entries")
	}
}

func TestProcessImageFailureLeavesIncomplete(t *testing.T) {
	db := testDB(t)
	repo := repository.NewNewsletterRepository(db)
	overrides := repository.NewOverrideRepository(db)
	ctx := context.Background()

	repo.CreateStub(ctx, "m1", "u1", "")
	mailbox := &fakeMailbox{messages: map[string]*gmailapi.Message{"m1": testMessage("m1", "t1")}}
	w := newTestWorker(t, repo, overrides, mailbox, &fakeResolver{url: ""}, nil)

	w.Process(ctx, domain.QueueEntry{EmailID: "m1", UserID: "u1"})

	rec, _ := repo.GetByID(ctx, "m1", "u1")
	if !rec.Enriched {
		t.Error("record must be enriched even without an image")
	}
	if rec.IsComplete {
		t.Error("no image means not complete")
	}
	if rec.AITitle == "" {
		t.Error("partial enrichment must keep the summary")
	}
	if rec.AccentHex != images.DefaultAccent {
		t.Errorf("accent = %q, want default", rec.AccentHex)
	}
}

func TestProcessAppliesDomainOverride(t *testing.T) {
	db := testDB(t)
	repo := repository.NewNewsletterRepository(db)
	overrides := repository.NewOverrideRepository(db)
	ctx := context.Background()

	if err := overrides.Upsert(ctx, &domain.DomainTypeOverride{
		UserID: "u1", Domain: "techweekly.com", TypeTag: "promo",
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	repo.CreateStub(ctx, "m1", "u1", "")
	mailbox := &fakeMailbox{messages: map[string]*gmailapi.Message{"m1": testMessage("m1", "t1")}}
	w := newTestWorker(t, repo, overrides, mailbox, &fakeResolver{url: "https://cdn.test/x.jpg"}, nil)

	w.Process(ctx, domain.QueueEntry{EmailID: "m1", UserID: "u1"})

	rec, _ := repo.GetByID(ctx, "m1", "u1")
	if rec.TypeTag != "promo" {
		t.Errorf("type tag = %q, want override promo", rec.TypeTag)
	}
}

func TestCreateStubIdempotent(t *testing.T) {
	db := testDB(t)
	repo := repository.NewNewsletterRepository(db)
	ctx := context.Background()

	if err := repo.CreateStub(ctx, "m1", "u1", "t1"); err != nil {
		t.Fatalf("first CreateStub: %v", err)
	}
	if err := repo.UpdateFields(ctx, "m1", "u1", map[string]interface{}{"ai_title": "kept"}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	// Replay after enrichment must not clobber anything.
	if err := repo.CreateStub(ctx, "m1", "u1", "t1"); err != nil {
		t.Fatalf("second CreateStub: %v", err)
	}

	rec, err := repo.GetByID(ctx, "m1", "u1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if rec.AITitle != "kept" {
		t.Errorf("ai_title = %q, replay clobbered the record", rec.AITitle)
	}

	var count int64
	db.Model(&domain.Newsletter{}).Where("email_id = ?", "m1").Count(&count)
	if count != 1 {
		t.Errorf("rows = %d, want 1", count)
	}
}

func TestPropagateTypeByDomain(t *testing.T) {
	db := testDB(t)
	repo := repository.NewNewsletterRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 5, 6, 9, 0, 0, 0, time.UTC)
	for _, id := range []string{"a", "b"} {
		row := visibleRow(id, "u1", "", base)
		row.SourceDomain = "techweekly.com"
		row.TypeTag = "newsletter"
		if err := db.Create(row).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	other := visibleRow("c", "u1", "", base)
	other.SourceDomain = "elsewhere.com"
	other.TypeTag = "newsletter"
	db.Create(other)

	updated, err := repo.PropagateTypeByDomain(ctx, "u1", "techweekly.com", "promo")
	if err != nil {
		t.Fatalf("PropagateTypeByDomain: %v", err)
	}
	if updated != 2 {
		t.Errorf("updated = %d, want 2", updated)
	}
	rec, _ := repo.GetByID(ctx, "c", "u1")
	if rec.TypeTag != "newsletter" {
		t.Errorf("unrelated domain changed: %q", rec.TypeTag)
	}
}
