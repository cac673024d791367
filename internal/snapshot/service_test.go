package snapshot

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/slotkeeper/internal/model"
	"github.com/hitoshi/slotkeeper/internal/repository"
	"github.com/hitoshi/slotkeeper/internal/security"
)

func newTestService(t *testing.T, cfg Config) (*Service, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	svc := NewService(store, nil, security.NewTextSanitizer(), cfg)
	svc.now = func() time.Time { return time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC) }
	return svc, store
}

func sampleDocument() *Document {
	return &Document{
		Platforms: []PlatformRecord{
			{ID: "p1", Name: "NETFLIX", Email: "n@example.com", Password: "x", Profiles: 5},
			{ID: "p2", Name: "DISNEY", Email: "d@example.com", Password: "y", Profiles: 2},
		},
		Subscriptions: []SubscriptionRecord{
			{ID: 1, PlatformID: "p1", Service: "Netflix", AccountEmail: "a", AccountPassword: "b",
				ProfileNumber: 1, ClientName: "Ana", StartDate: "2024-01-01", EndDate: "2024-02-01"},
			{ID: 2, PlatformID: "p2", Service: "Disney", AccountEmail: "a", AccountPassword: "b",
				ProfileNumber: 2, Pin: "1234", ClientName: "Luis", StartDate: "2024-01-01", EndDate: "2024-01-10"},
		},
	}
}

func TestImport_ReplacesEverything(t *testing.T) {
	svc, store := newTestService(t, Config{})
	ctx := context.Background()

	if err := store.Platforms().Create(ctx, &model.Platform{ID: "old", Name: "OLD", Email: "e", Password: "p", Profiles: 1}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if _, err := store.Security().SetPasswordHashIfAbsent(ctx, "hash"); err != nil {
		t.Fatalf("seed hash failed: %v", err)
	}

	res, err := svc.Import(ctx, sampleDocument())
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if res.Platforms != 2 || res.Subscriptions != 2 {
		t.Errorf("unexpected result: %+v", res)
	}

	old, _ := store.Platforms().FindByID(ctx, "old")
	if old != nil {
		t.Error("previous platforms should be removed")
	}
	hash, _ := store.Security().GetPasswordHash(ctx)
	if hash != "hash" {
		t.Errorf("password hash should survive import, got %q", hash)
	}
}

func TestExport_RoundTrip(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	ctx := context.Background()

	if _, err := svc.Import(ctx, sampleDocument()); err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	doc, err := svc.Export(ctx)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	if len(doc.Platforms) != 2 || doc.Platforms[0].Name != "DISNEY" {
		t.Errorf("platforms should be ordered by name: %+v", doc.Platforms)
	}
	if len(doc.Subscriptions) != 2 || doc.Subscriptions[0].ID != 2 {
		t.Errorf("subscriptions should be ordered by end date: %+v", doc.Subscriptions)
	}
	if !doc.Timestamp.Equal(time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected timestamp: %v", doc.Timestamp)
	}

	for _, format := range []Format{FormatJSON, FormatYAML} {
		var buf bytes.Buffer
		if err := Encode(&buf, doc, format); err != nil {
			t.Fatalf("Encode(%s) failed: %v", format, err)
		}
		if !strings.Contains(buf.String(), "profile_number") {
			t.Errorf("%s output should use snake_case keys:\n%s", format, buf.String())
		}
		decoded, err := Decode(&buf, format)
		if err != nil {
			t.Fatalf("Decode(%s) failed: %v", format, err)
		}
		if len(decoded.Subscriptions) != 2 || decoded.Subscriptions[1].Pin != doc.Subscriptions[1].Pin {
			t.Errorf("%s round trip lost data: %+v", format, decoded.Subscriptions)
		}
	}
}

func TestImport_RejectsInvalidDocumentWithoutChanges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Document)
		code   string
	}{
		{"duplicate platform name", func(d *Document) { d.Platforms[1].Name = "NETFLIX" }, model.ErrCodePlatformExists},
		{"missing platform field", func(d *Document) { d.Platforms[0].Email = "" }, model.ErrCodeMissingFields},
		{"unknown platform", func(d *Document) { d.Subscriptions[0].PlatformID = "nope" }, model.ErrCodePlatformNotFound},
		{"bad date", func(d *Document) { d.Subscriptions[0].EndDate = "2024-13-01" }, model.ErrCodeInvalidDate},
		{"profile zero", func(d *Document) { d.Subscriptions[0].ProfileNumber = 0 }, model.ErrCodeMissingFields},
		{"negative profile", func(d *Document) { d.Subscriptions[0].ProfileNumber = -1 }, model.ErrCodeProfileOutOfRange},
		{"slot taken twice", func(d *Document) {
			d.Subscriptions[1].PlatformID = "p1"
			d.Subscriptions[1].ProfileNumber = 1
		}, model.ErrCodeProfileInUse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestService(t, Config{})
			ctx := context.Background()
			if err := store.Platforms().Create(ctx, &model.Platform{ID: "keep", Name: "KEEP", Email: "e", Password: "p", Profiles: 1}); err != nil {
				t.Fatalf("seed failed: %v", err)
			}

			doc := sampleDocument()
			tt.mutate(doc)
			_, err := svc.Import(ctx, doc)
			if !model.IsCode(err, tt.code) {
				t.Fatalf("got %v, want %s", err, tt.code)
			}

			platforms, _ := store.Platforms().List(ctx)
			if len(platforms) != 1 || platforms[0].ID != "keep" {
				t.Errorf("failed import must not change data: %+v", platforms)
			}
		})
	}
}

func TestImport_CapacityPolicy(t *testing.T) {
	doc := sampleDocument()
	doc.Subscriptions[1].ProfileNumber = 3 // DISNEY has 2 profiles

	lenient, _ := newTestService(t, Config{})
	if _, err := lenient.Import(context.Background(), doc); err != nil {
		t.Errorf("capacity should not be enforced by default: %v", err)
	}

	strict, _ := newTestService(t, Config{EnforceProfileCapacity: true})
	_, err := strict.Import(context.Background(), doc)
	if !model.IsCode(err, model.ErrCodeProfileOutOfRange) {
		t.Errorf("got %v, want profile_out_of_range", err)
	}
}

func TestImport_AssignsMissingIDs(t *testing.T) {
	svc, store := newTestService(t, Config{})
	ctx := context.Background()

	doc := sampleDocument()
	doc.Platforms[0].ID = ""
	doc.Platforms[1].ID = ""
	doc.Subscriptions = []SubscriptionRecord{
		{ID: 7, PlatformID: "p1", Service: "S", AccountEmail: "a", AccountPassword: "b", ProfileNumber: 1, ClientName: "c", StartDate: "2024-01-01", EndDate: "2024-01-02"},
	}
	svc.newID = func() string { return "generated" }
	// 2つ目のプラットフォームにも同じIDが振られるため衝突する
	if _, err := svc.Import(ctx, doc); !model.IsCode(err, model.ErrCodePlatformExists) {
		t.Fatalf("colliding generated ids should be rejected, got %v", err)
	}

	svc.newID = func() string { return "g1" }
	doc.Subscriptions = append(doc.Subscriptions[:0],
		SubscriptionRecord{ID: 0, PlatformID: "p1", Service: "S", AccountEmail: "a", AccountPassword: "b", ProfileNumber: 1, ClientName: "c", StartDate: "2024-01-01", EndDate: "2024-01-02"},
		SubscriptionRecord{ID: 4, PlatformID: "p1", Service: "S", AccountEmail: "a", AccountPassword: "b", ProfileNumber: 2, ClientName: "c", StartDate: "2024-01-01", EndDate: "2024-01-03"},
		SubscriptionRecord{ID: 4, PlatformID: "p1", Service: "S", AccountEmail: "a", AccountPassword: "b", ProfileNumber: 3, ClientName: "c", StartDate: "2024-01-01", EndDate: "2024-01-04"},
	)
	doc.Platforms[0].ID = "p1"
	if _, err := svc.Import(ctx, doc); err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	p2, _ := store.Platforms().FindByID(ctx, "g1")
	if p2 == nil || p2.Name != "DISNEY" {
		t.Errorf("platform without id should get a generated one, got %+v", p2)
	}
	subs, _ := store.Subscriptions().List(ctx)
	got := []int64{}
	for _, s := range subs {
		got = append(got, s.ID)
	}
	want := []int64{5, 4, 6}
	for i := range want {
		if i >= len(got) || got[i] != want[i] {
			t.Fatalf("subscription ids = %v, want %v", got, want)
		}
	}
}

func TestImport_SanitizesText(t *testing.T) {
	svc, store := newTestService(t, Config{})
	ctx := context.Background()

	doc := sampleDocument()
	doc.Platforms[0].Name = "<b>NETFLIX</b>"
	doc.Subscriptions[0].ClientName = "<script>x</script>Ana"
	if _, err := svc.Import(ctx, doc); err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	p, _ := store.Platforms().FindByID(ctx, "p1")
	if p.Name != "NETFLIX" {
		t.Errorf("name = %q", p.Name)
	}
	s, _ := store.Subscriptions().FindByID(ctx, 1)
	if strings.Contains(s.ClientName, "<") {
		t.Errorf("client name should be sanitized: %q", s.ClientName)
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatJSON, "json": FormatJSON, "yaml": FormatYAML, "yml": FormatYAML} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
}

func TestDecode_AcceptsNumericStrings(t *testing.T) {
	docs := map[Format]string{
		FormatJSON: `{"platforms":[{"id":"p1","name":"NETFLIX","email":"n@example.com","password":"x","profiles":"5"}],
			"subscriptions":[{"id":1,"platform_id":"p1","service":"Netflix","account_email":"a","account_password":"b",
			"profile_number":"3","client_name":"Ana","start_date":"2024-01-01","end_date":"2024-02-01"}]}`,
		FormatYAML: `platforms:
  - id: p1
    name: NETFLIX
    email: n@example.com
    password: x
    profiles: "5"
subscriptions:
  - id: 1
    platform_id: p1
    service: Netflix
    account_email: a
    account_password: b
    profile_number: "3"
    client_name: Ana
    start_date: "2024-01-01"
    end_date: "2024-02-01"
`,
	}

	for format, raw := range docs {
		t.Run(string(format), func(t *testing.T) {
			doc, err := Decode(strings.NewReader(raw), format)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if doc.Platforms[0].Profiles != 5 || doc.Subscriptions[0].ProfileNumber != 3 {
				t.Fatalf("decoded %+v / %+v", doc.Platforms[0], doc.Subscriptions[0])
			}

			svc, store := newTestService(t, Config{EnforceProfileCapacity: true})
			if _, err := svc.Import(context.Background(), doc); err != nil {
				t.Fatalf("Import failed: %v", err)
			}
			sub, _ := store.Subscriptions().FindByID(context.Background(), 1)
			if sub == nil || sub.ProfileNumber != 3 {
				t.Errorf("stored subscription = %+v", sub)
			}
		})
	}
}
